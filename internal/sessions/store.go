package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tournament-bot/internal/clock"
	"tournament-bot/internal/payments"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrSessionPending     = errors.New("payment session already pending for this tier")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusDeclined  Status = "declined"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusDeclined
}

// Session links one user to one tier through a gateway payment link.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Tier      int       `json:"tier"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// WebhookResult classifies an incoming payment confirmation.
type WebhookResult int

const (
	ResultAccepted WebhookResult = iota
	ResultDuplicate
	ResultUnauthorized
	ResultUnrecognized
)

func (r WebhookResult) String() string {
	switch r {
	case ResultAccepted:
		return "accepted"
	case ResultDuplicate:
		return "duplicate"
	case ResultUnauthorized:
		return "unauthorized"
	default:
		return "unrecognized"
	}
}

// TierTable reports which entry fees exist. Satisfied by
// *tournament.Registry.
type TierTable interface {
	HasTier(fee int) bool
}

// Store owns every registration session from creation to terminal
// status, plus the inbox of confirmed sessions awaiting bot-side
// processing. All transitions happen under one mutex, so a session is
// never mutated by two workflows at once.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	inbox    []Session

	provider payments.Provider
	tiers    TierTable
	clock    clock.Clock
	log      *zap.Logger
}

func NewStore(provider payments.Provider, tiers TierTable, clk clock.Clock, log *zap.Logger) *Store {
	return &Store{
		sessions: map[string]*Session{},
		provider: provider,
		tiers:    tiers,
		clock:    clk,
		log:      log,
	}
}

// Open creates a pending session for (user, tier) and returns the
// gateway payment URL. A user may hold at most one non-terminal session
// per tier; a repeat open while one is pending fails with
// ErrSessionPending. Gateway failure surfaces ErrGatewayUnavailable.
func (s *Store) Open(ctx context.Context, userID int64, tier int) (Session, string, error) {
	s.mu.Lock()
	if active := s.findActive(userID, tier); active != nil {
		s.mu.Unlock()
		return Session{}, "", ErrSessionPending
	}
	s.mu.Unlock()

	link, err := s.provider.CreateLink(ctx, payments.LinkRequest{UserID: userID, Tier: tier})
	if err != nil {
		return Session{}, "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if active := s.findActive(userID, tier); active != nil {
		// Lost the race to a concurrent open; the extra link is never
		// referenced again.
		return Session{}, "", ErrSessionPending
	}
	sess := &Session{
		ID:        link.ID,
		UserID:    userID,
		Tier:      tier,
		Status:    StatusPending,
		CreatedAt: s.clock.Now(),
	}
	s.sessions[link.ID] = sess
	s.log.Info("payment session opened",
		zap.String("session", link.ID),
		zap.Int64("user", userID),
		zap.Int("tier", tier),
	)
	return *sess, link.URL, nil
}

// RecordWebhook applies a verified payment confirmation. Replays against
// a session that already left pending are a no-op reported as duplicate;
// a confirmation whose authorized user disagrees with the derived user
// is rejected without any state change. Amounts that match no configured
// tier are ignored.
func (s *Store) RecordWebhook(conf payments.Confirmation) WebhookResult {
	if !s.tiers.HasTier(conf.Amount) {
		s.log.Info("webhook ignored: amount matches no tier", zap.Int("amount", conf.Amount))
		return ResultUnrecognized
	}
	if conf.UserID == 0 {
		s.log.Warn("webhook ignored: no user identity", zap.String("link", conf.LinkID))
		return ResultUnrecognized
	}
	if conf.AuthorizedUser != 0 && conf.AuthorizedUser != conf.UserID {
		s.log.Warn("webhook rejected: authorized user mismatch",
			zap.String("link", conf.LinkID),
			zap.Int64("user", conf.UserID),
			zap.Int64("authorized", conf.AuthorizedUser),
		)
		return ResultUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[conf.LinkID]
	if ok {
		if sess.UserID != conf.UserID {
			s.log.Warn("webhook rejected: user does not match session",
				zap.String("link", conf.LinkID),
				zap.Int64("session_user", sess.UserID),
				zap.Int64("webhook_user", conf.UserID),
			)
			return ResultUnauthorized
		}
		if sess.Status != StatusPending {
			return ResultDuplicate
		}
	} else {
		// The link was created by another process (or before a restart);
		// rebuild the session from the event itself.
		sess = &Session{
			ID:        conf.LinkID,
			UserID:    conf.UserID,
			Tier:      conf.Amount,
			Status:    StatusPending,
			CreatedAt: s.clock.Now(),
		}
		s.sessions[conf.LinkID] = sess
	}

	sess.Status = StatusPaid
	s.inbox = append(s.inbox, *sess)
	s.log.Info("payment confirmed",
		zap.String("session", sess.ID),
		zap.Int64("user", sess.UserID),
		zap.Int("tier", sess.Tier),
	)
	return ResultAccepted
}

// Drain hands the confirmed inbox to exactly one caller: entries are
// removed on return, so the bot loop and the HTTP drain endpoint can
// poll concurrently without double-processing.
func (s *Store) Drain() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.inbox
	s.inbox = nil
	return out
}

// CompleteActive flips the user's non-terminal session for the tier to
// completed. Reports false when no such session exists.
func (s *Store) CompleteActive(userID int64, tier int) bool {
	return s.finish(userID, tier, StatusCompleted)
}

// DeclineActive flips the user's non-terminal session for the tier to
// declined. Reports false when no such session exists.
func (s *Store) DeclineActive(userID int64, tier int) bool {
	return s.finish(userID, tier, StatusDeclined)
}

// DeclineAll declines every non-terminal session the user holds and
// returns how many were declined.
func (s *Store) DeclineAll(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.UserID == userID && !sess.Status.Terminal() {
			sess.Status = StatusDeclined
			n++
		}
	}
	return n
}

// Get returns the session for a link id.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

func (s *Store) finish(userID int64, tier int, st Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findActive(userID, tier)
	if sess == nil {
		return false
	}
	sess.Status = st
	return true
}

// findActive is called with s.mu held.
func (s *Store) findActive(userID int64, tier int) *Session {
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Tier == tier && !sess.Status.Terminal() {
			return sess
		}
	}
	return nil
}
