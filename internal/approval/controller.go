package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tournament-bot/internal/tournament"
)

// ErrAlreadyProcessed marks a resolution that already happened through
// either mutation path; the second resolver sees a no-op.
var ErrAlreadyProcessed = errors.New("registration already processed")

// Messenger is the outbound slice of the chat transport the controller
// needs. Implemented by tgbot.App.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendApprovalPrompt(ctx context.Context, chatID int64, userID int64, tier int) error
}

// Slots is the slot-allocation surface of the tournament registry.
type Slots interface {
	GetTier(fee int) (tournament.Tier, error)
	AssignSlot(fee int, user int64) (int, error)
}

// Sessions finalizes registration sessions on resolution.
type Sessions interface {
	CompleteActive(userID int64, tier int) bool
	DeclineActive(userID int64, tier int) bool
	DeclineAll(userID int64) int
}

type pendingKey struct {
	user int64
	tier int
}

// Controller drives the payment-confirmed to slot-assigned transition.
// Resolution can arrive from an admin button press or from the
// gateway-driven auto-assignment; one mutex serializes both so the same
// registration can never allocate twice.
type Controller struct {
	mu      sync.Mutex
	pending map[pendingKey]struct{}

	slots    Slots
	sessions Sessions
	msgr     Messenger
	admins   []int64
	log      *zap.Logger
}

func NewController(slots Slots, sessions Sessions, msgr Messenger, admins []int64, log *zap.Logger) *Controller {
	return &Controller{
		pending:  map[pendingKey]struct{}{},
		slots:    slots,
		sessions: sessions,
		msgr:     msgr,
		admins:   admins,
		log:      log,
	}
}

// RequestApproval records the (user, tier) pair as awaiting an admin
// decision and prompts every administrator. Requesting an already
// pending pair refreshes the prompt without duplicating the entry.
func (c *Controller) RequestApproval(ctx context.Context, userID int64, tier int) {
	c.mu.Lock()
	c.pending[pendingKey{user: userID, tier: tier}] = struct{}{}
	c.mu.Unlock()

	for _, admin := range c.admins {
		if err := c.msgr.SendApprovalPrompt(ctx, admin, userID, tier); err != nil {
			c.log.Error("approval prompt failed",
				zap.Int64("admin", admin),
				zap.Int64("user", userID),
				zap.Error(err),
			)
		}
	}
}

// Approve assigns the user a slot in the tier. Nothing is mutated when
// the tier is unknown (stale reference) or the pair was already
// resolved. Returns the assigned slot and the tier prize.
func (c *Controller) Approve(ctx context.Context, userID int64, tier int) (slot, prize int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.slots.GetTier(tier)
	if err != nil {
		return 0, 0, err
	}

	key := pendingKey{user: userID, tier: tier}
	_, wasPending := c.pending[key]
	completed := c.sessions.CompleteActive(userID, tier)
	if !wasPending && !completed {
		return 0, 0, ErrAlreadyProcessed
	}
	delete(c.pending, key)

	slot, err = c.slots.AssignSlot(tier, userID)
	if err != nil {
		return 0, 0, err
	}

	text := fmt.Sprintf(
		"✅ <b>Registration Approved!</b>\n\n🏆 Tournament: ₹%d\n🎯 Slot: %d\n🏅 Prize: ₹%d\n\nGood luck in the tournament!",
		tier, slot, t.Prize,
	)
	c.notifyUser(ctx, userID, text)

	c.log.Info("registration approved",
		zap.Int64("user", userID),
		zap.Int("tier", tier),
		zap.Int("slot", slot),
	)
	return slot, t.Prize, nil
}

// Decline resolves every pending entry the user holds. The decision
// payload carries only the user id, so the decline covers all tiers.
func (c *Controller) Decline(ctx context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.pending {
		if key.user == userID {
			delete(c.pending, key)
			removed++
		}
	}
	declined := c.sessions.DeclineAll(userID)
	if removed == 0 && declined == 0 {
		return ErrAlreadyProcessed
	}

	c.notifyUser(ctx, userID,
		"❌ <b>Registration Declined</b>\n\nYour registration request was not approved. Please contact support if you believe this is an error.")

	c.log.Info("registration declined", zap.Int64("user", userID))
	return nil
}

// Pending reports whether the pair awaits a decision.
func (c *Controller) Pending(userID int64, tier int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[pendingKey{user: userID, tier: tier}]
	return ok
}

// notifyUser degrades gracefully: a user who blocked the bot must not
// abort the workflow, so the failure is logged and relayed to admins.
func (c *Controller) notifyUser(ctx context.Context, userID int64, text string) {
	if err := c.msgr.SendText(ctx, userID, text); err != nil {
		c.log.Error("user notification failed", zap.Int64("user", userID), zap.Error(err))
		for _, admin := range c.admins {
			_ = c.msgr.SendText(ctx, admin, fmt.Sprintf("❌ Could not notify user %d: %v", userID, err))
		}
	}
}
