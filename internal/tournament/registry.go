package tournament

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"tournament-bot/internal/config"
)

var ErrTierNotFound = errors.New("tournament tier not found")

// Tier is a read-only snapshot of one tournament bucket. Slot indices are
// stable 1-based identifiers; a zero occupant means the slot is empty.
type Tier struct {
	EntryFee int
	Prize    int
	Slots    map[int]int64
}

func (t Tier) Full() bool {
	for _, occupant := range t.Slots {
		if occupant == 0 {
			return false
		}
	}
	return true
}

// Registry holds the fixed set of tiers and serializes every slot
// mutation. Both the admin approval path and the webhook auto-assignment
// path go through it, so nothing here assumes a single caller.
type Registry struct {
	mu        sync.Mutex
	tiers     map[int]*tierState
	slotCount int

	resetPolicy string
	resetDelay  time.Duration

	broadcast func(tierID int, summary string)

	log *zap.Logger
}

type tierState struct {
	prize      int
	slots      map[int]int64
	resetTimer *time.Timer
}

func NewRegistry(cfg config.Config, log *zap.Logger) *Registry {
	r := &Registry{
		tiers:       map[int]*tierState{},
		slotCount:   cfg.SlotsPerTier,
		resetPolicy: cfg.ResetPolicy,
		resetDelay:  cfg.ResetDelay,
		log:         log,
	}
	for fee, prize := range cfg.Tiers {
		slots := make(map[int]int64, cfg.SlotsPerTier)
		for i := 1; i <= cfg.SlotsPerTier; i++ {
			slots[i] = 0
		}
		r.tiers[fee] = &tierState{prize: prize, slots: slots}
	}
	return r
}

// SetBroadcast installs the slot-summary fan-out. Must be called before
// the registry is shared between goroutines.
func (r *Registry) SetBroadcast(fn func(tierID int, summary string)) {
	r.broadcast = fn
}

// Fees returns the configured entry fees in ascending order.
func (r *Registry) Fees() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	fees := make([]int, 0, len(r.tiers))
	for fee := range r.tiers {
		fees = append(fees, fee)
	}
	sort.Ints(fees)
	return fees
}

func (r *Registry) HasTier(fee int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tiers[fee]
	return ok
}

func (r *Registry) GetTier(fee int) (Tier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.tiers[fee]
	if !ok {
		return Tier{}, ErrTierNotFound
	}
	return snapshot(fee, st), nil
}

// AssignSlot places user into the first empty slot of the tier, scanning
// slot indices in ascending order. A full tier never rejects: depending
// on the reset policy it is either cleared first (on-full) or the new
// user overwrites slot 1 and the remaining slots are cleared (eviction).
func (r *Registry) AssignSlot(fee int, user int64) (int, error) {
	r.mu.Lock()
	st, ok := r.tiers[fee]
	if !ok {
		r.mu.Unlock()
		return 0, ErrTierNotFound
	}

	wasFull := full(st)
	if wasFull && r.resetPolicy == config.ResetOnFull {
		clearSlots(st)
		r.stopResetTimer(st)
		wasFull = false
	}

	slot := 0
	for i := 1; i <= r.slotCount; i++ {
		if st.slots[i] == 0 {
			st.slots[i] = user
			slot = i
			break
		}
	}
	if slot == 0 {
		// Eviction: the new user takes slot 1, everyone else is out.
		// The tier stays full, so a running reset timer keeps counting
		// from the original fill.
		st.slots[1] = user
		for i := 2; i <= r.slotCount; i++ {
			st.slots[i] = 0
		}
		slot = 1
	}

	if !wasFull && full(st) && r.resetPolicy == config.ResetAfterTimeout && st.resetTimer == nil {
		st.resetTimer = time.AfterFunc(r.resetDelay, func() { r.resetTier(fee) })
	}

	summary := r.render(fee, st)
	r.mu.Unlock()

	r.log.Info("slot assigned",
		zap.Int("tier", fee),
		zap.Int("slot", slot),
		zap.Int64("user", user),
	)
	r.notify(fee, summary)
	return slot, nil
}

// ClearTier empties every slot of the tier and cancels any scheduled
// reset.
func (r *Registry) ClearTier(fee int) error {
	r.mu.Lock()
	st, ok := r.tiers[fee]
	if !ok {
		r.mu.Unlock()
		return ErrTierNotFound
	}
	clearSlots(st)
	r.stopResetTimer(st)
	summary := r.render(fee, st)
	r.mu.Unlock()

	r.log.Info("tier cleared", zap.Int("tier", fee))
	r.notify(fee, summary)
	return nil
}

// RenderSlotSummary renders the tier's slot table as Telegram HTML.
func (r *Registry) RenderSlotSummary(fee int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.tiers[fee]
	if !ok {
		return "", ErrTierNotFound
	}
	return r.render(fee, st), nil
}

func (r *Registry) resetTier(fee int) {
	r.mu.Lock()
	st, ok := r.tiers[fee]
	if !ok {
		r.mu.Unlock()
		return
	}
	clearSlots(st)
	st.resetTimer = nil
	summary := r.render(fee, st)
	r.mu.Unlock()

	r.log.Info("tier reset after timeout", zap.Int("tier", fee))
	r.notify(fee, summary)
}

func (r *Registry) stopResetTimer(st *tierState) {
	if st.resetTimer != nil {
		st.resetTimer.Stop()
		st.resetTimer = nil
	}
}

func (r *Registry) notify(fee int, summary string) {
	if r.broadcast != nil {
		r.broadcast(fee, summary)
	}
}

func (r *Registry) render(fee int, st *tierState) string {
	msg := fmt.Sprintf("🛑 <b>₹%d Tournament Slots</b> 🛑\n\n", fee)
	for i := 1; i <= r.slotCount; i++ {
		player := "_______"
		if user := st.slots[i]; user != 0 {
			player = fmt.Sprintf(`<a href="tg://user?id=%d">Player %d</a>`, user, user)
		}
		msg += fmt.Sprintf("⚽ Slot %d: %s\n", i, player)
	}
	msg += fmt.Sprintf("\n🏆 Winner receives ₹%d. All the best!", st.prize)
	return msg
}

func full(st *tierState) bool {
	for _, occupant := range st.slots {
		if occupant == 0 {
			return false
		}
	}
	return true
}

func clearSlots(st *tierState) {
	for i := range st.slots {
		st.slots[i] = 0
	}
}

func snapshot(fee int, st *tierState) Tier {
	slots := make(map[int]int64, len(st.slots))
	for i, u := range st.slots {
		slots[i] = u
	}
	return Tier{EntryFee: fee, Prize: st.prize, Slots: slots}
}
