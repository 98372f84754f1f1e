package tournament

import (
	"fmt"
	"sync"
	"time"

	"tournament-bot/internal/clock"
)

// Tracker remembers which users have talked to the bot and when they
// last opened a registration. It gates how often /register may start a
// new payment session.
type Tracker struct {
	mu           sync.Mutex
	clock        clock.Clock
	window       time.Duration
	lastRegister map[int64]time.Time
	interacted   map[int64]bool
	greeted      map[int64]bool
}

func NewTracker(window time.Duration, clk clock.Clock) *Tracker {
	return &Tracker{
		clock:        clk,
		window:       window,
		lastRegister: map[int64]time.Time{},
		interacted:   map[int64]bool{},
		greeted:      map[int64]bool{},
	}
}

func (t *Tracker) RecordInteraction(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interacted[userID] = true
}

func (t *Tracker) HasInteracted(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interacted[userID]
}

// IsFirstTime reports whether this is the first time the user is
// observed by the registration flow. It returns true exactly once per
// user and flips permanently afterwards.
func (t *Tracker) IsFirstTime(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.greeted[userID] {
		return false
	}
	t.greeted[userID] = true
	return true
}

// CheckCooldown returns the remaining wait for the user, or zero when a
// new registration may start. The first-ever registration never waits.
func (t *Tracker) CheckCooldown(userID int64) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.lastRegister[userID]
	if !ok {
		return 0
	}
	elapsed := t.clock.Now().Sub(last)
	if elapsed >= t.window {
		return 0
	}
	return t.window - elapsed
}

func (t *Tracker) MarkRegistered(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRegister[userID] = t.clock.Now()
}

// FormatWait renders a remaining cooldown as "M minutes and S seconds".
func FormatWait(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d minutes and %d seconds", secs/60, secs%60)
}
