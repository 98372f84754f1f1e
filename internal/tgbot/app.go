package tgbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"tournament-bot/internal/approval"
	"tournament-bot/internal/config"
	"tournament-bot/internal/sessions"
	"tournament-bot/internal/tournament"
	"tournament-bot/internal/util"
)

// App is the long-lived Telegram actor. It reacts to user commands and
// admin button presses, and polls the session store for confirmations
// that arrived through the webhook receiver.
type App struct {
	cfg       config.Config
	bot       *tgbotapi.BotAPI
	registry  *tournament.Registry
	cooldowns *tournament.Tracker
	store     *sessions.Store
	approvals *approval.Controller
	log       *zap.Logger
}

func New(cfg config.Config, registry *tournament.Registry, cooldowns *tournament.Tracker, store *sessions.Store, log *zap.Logger) (*App, error) {
	b, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	b.Debug = false
	return &App{
		cfg:       cfg,
		bot:       b,
		registry:  registry,
		cooldowns: cooldowns,
		store:     store,
		log:       log,
	}, nil
}

// AttachApprovals wires the approval controller in after construction;
// the controller needs the app as its messenger.
func (a *App) AttachApprovals(ctrl *approval.Controller) {
	a.approvals = ctrl
}

func (a *App) Run(ctx context.Context) error {
	go a.consumeConfirmed(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-updates:
			if upd.Message != nil {
				if err := a.handleMessage(ctx, upd.Message); err != nil {
					a.log.Error("handle message", zap.Error(err))
				}
			} else if upd.CallbackQuery != nil {
				if err := a.handleCallback(ctx, upd.CallbackQuery); err != nil {
					a.log.Error("handle callback", zap.Error(err))
				}
			}
		}
	}
}

// consumeConfirmed drains paid sessions handed over by the webhook
// receiver and routes each one into the approval workflow exactly once.
func (a *App) consumeConfirmed(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.PendingPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sess := range a.store.Drain() {
				a.processConfirmed(ctx, sess)
			}
		}
	}
}

func (a *App) processConfirmed(ctx context.Context, sess sessions.Session) {
	a.NotifyAdmins(ctx, fmt.Sprintf(
		"💳 <b>Payment Received!</b>\n\n💰 Amount: ₹%d\n🏆 Tournament: ₹%d\n🆔 Payment ID: %s\n⏰ Time: %s",
		sess.Tier, sess.Tier, sess.ID, util.NowISO(),
	))

	if !a.cfg.AutoAssign {
		a.approvals.RequestApproval(ctx, sess.UserID, sess.Tier)
		return
	}

	_, _, err := a.approvals.Approve(ctx, sess.UserID, sess.Tier)
	switch {
	case err == nil:
	case errors.Is(err, approval.ErrAlreadyProcessed):
		// An admin click won the race; nothing left to do.
	default:
		a.log.Error("auto-assign failed",
			zap.Int64("user", sess.UserID),
			zap.Int("tier", sess.Tier),
			zap.Error(err),
		)
		a.NotifyAdmins(ctx, fmt.Sprintf("❌ Auto-assign failed for user %d (₹%d): %v", sess.UserID, sess.Tier, err))
	}
}

// ---------- Outbound (approval.Messenger and broadcast) ----------

func (a *App) SendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) SendApprovalPrompt(ctx context.Context, chatID int64, userID int64, tier int) error {
	tierInfo, err := a.registry.GetTier(tier)
	if err != nil {
		return err
	}
	text := fmt.Sprintf(
		"🧾 <b>Registration Pending Approval</b>\n\n👤 User: <a href=\"tg://user?id=%d\">%d</a>\n🏆 Tournament: ₹%d\n🏅 Prize: ₹%d",
		userID, userID, tier, tierInfo.Prize,
	)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", encodeApprove(tier, userID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Decline", encodeDecline(userID)),
		),
	)
	_, err = a.bot.Send(msg)
	return err
}

// BroadcastSlots publishes a tier's slot summary to the tournament
// group, falling back to the admins when no group is configured. Send
// failures degrade to an admin notice, never an abort.
func (a *App) BroadcastSlots(tierID int, summary string) {
	ctx := context.Background()
	if a.cfg.GroupChatID != 0 {
		if err := a.SendText(ctx, a.cfg.GroupChatID, summary); err != nil {
			a.log.Error("group broadcast failed", zap.Int("tier", tierID), zap.Error(err))
			a.NotifyAdmins(ctx, fmt.Sprintf("❌ Error updating group: %v", err))
		}
		return
	}
	a.NotifyAdmins(ctx, summary)
}

func (a *App) NotifyAdmins(ctx context.Context, text string) {
	for admin := range a.cfg.AdminTGIDs {
		if err := a.SendText(ctx, admin, text); err != nil {
			a.log.Error("admin notification failed", zap.Int64("admin", admin), zap.Error(err))
		}
	}
}

func (a *App) isAdmin(tgID int64) bool {
	return a.cfg.AdminTGIDs[tgID]
}

// ---------- Message handling ----------

func (a *App) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	user := m.From
	if user == nil {
		return nil
	}
	txt := strings.TrimSpace(m.Text)

	if strings.HasPrefix(txt, "/start") {
		return a.handleStart(ctx, m)
	}
	if strings.HasPrefix(txt, "/register") {
		return a.handleRegister(ctx, m)
	}
	return a.handleChatter(ctx, m)
}

func (a *App) handleStart(ctx context.Context, m *tgbotapi.Message) error {
	user := m.From
	a.cooldowns.RecordInteraction(user.ID)

	if m.Chat.IsPrivate() {
		text := "🏆 <b>Welcome to the Tournament Bot!</b>\n\n" +
			"🎮 Join exciting tournaments with real prizes!\n" +
			fmt.Sprintf("💰 Entry fees: %s\n", a.feeLine()) +
			"🏅 Win amazing cash prizes!\n\n" +
			"Use /register to participate."
		msg := tgbotapi.NewMessage(m.Chat.ID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		_, err := a.bot.Send(msg)
		return err
	}

	// Group chat: deep-link the user into a private conversation.
	msg := tgbotapi.NewMessage(m.Chat.ID, "🏆 Ready to join the tournament? Click below to register!")
	if a.cfg.BotUsername != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("🎮 Start Registration",
					fmt.Sprintf("https://t.me/%s?start=registration", a.cfg.BotUsername)),
			),
		)
	}
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) handleRegister(ctx context.Context, m *tgbotapi.Message) error {
	user := m.From
	a.cooldowns.RecordInteraction(user.ID)

	if user.UserName == "" {
		return a.SendText(ctx, m.Chat.ID,
			"⚠️ Please set a Telegram username first (Settings → Username), then run /register again.")
	}

	if a.cooldowns.IsFirstTime(user.ID) {
		msg := tgbotapi.NewMessage(m.Chat.ID,
			"🎉 <b>Welcome to your first tournament!</b>\n\nClick below to begin the registration process.")
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🎮 Start Registration", "start_registration"),
			),
		)
		_, err := a.bot.Send(msg)
		return err
	}

	if wait := a.cooldowns.CheckCooldown(user.ID); wait > 0 {
		return a.SendText(ctx, m.Chat.ID, fmt.Sprintf(
			"⏰ <b>Cooldown Active</b>\n\nYou can register again in %s.",
			tournament.FormatWait(wait),
		))
	}
	a.cooldowns.MarkRegistered(user.ID)

	msg := tgbotapi.NewMessage(m.Chat.ID, "🏆 <b>Choose Your Tournament</b>\n\nSelect the tournament you want to join:")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = a.tierKeyboard(user.ID)
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) handleChatter(ctx context.Context, m *tgbotapi.Message) error {
	if !m.Chat.IsGroup() && !m.Chat.IsSuperGroup() {
		return nil
	}
	mentioned := a.cfg.BotUsername != "" && strings.Contains(strings.ToLower(m.Text), "@"+strings.ToLower(a.cfg.BotUsername))
	repliedTo := m.ReplyToMessage != nil && m.ReplyToMessage.From != nil && m.ReplyToMessage.From.ID == a.bot.Self.ID
	if !mentioned && !repliedTo {
		return nil
	}
	reply := tgbotapi.NewMessage(m.Chat.ID, "🏆 To register for tournaments, use the /register command!")
	reply.ReplyToMessageID = m.MessageID
	_, err := a.bot.Send(reply)
	return err
}

// ---------- Callback handling ----------

func (a *App) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	actor := q.From.ID

	cb := tgbotapi.NewCallback(q.ID, "")
	_, _ = a.bot.Request(cb)

	act, err := decodeAction(q.Data)
	if err != nil {
		a.log.Warn("undecodable callback", zap.String("data", q.Data), zap.Int64("actor", actor))
		return nil
	}

	switch act := act.(type) {
	case BeginRegistration:
		return a.editMessage(q, "🏆 <b>Choose Your Tournament</b>\n\nSelect the tournament you want to join:", a.tierKeyboard(actor))

	case SelectTier:
		if act.User != actor {
			alert := tgbotapi.NewCallbackWithAlert(q.ID, "❌ That's not for you! Request your own registration.")
			_, _ = a.bot.Request(alert)
			return nil
		}
		return a.startPayment(ctx, q, act.Tier)

	case Approve:
		if !a.isAdmin(actor) {
			return a.SendText(ctx, actor, "Access denied.")
		}
		return a.resolveApprove(ctx, q, act)

	case Decline:
		if !a.isAdmin(actor) {
			return a.SendText(ctx, actor, "Access denied.")
		}
		return a.resolveDecline(ctx, q, act)

	case PaymentSecurity:
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("← Back to Payment", "back_to_payment"),
			),
		)
		return a.editMessage(q,
			"🔒 <b>Payment Security Information</b>\n\n"+
				"• Each payment link is personalized and can only be used by the requesting user\n"+
				"• Only you can complete payment using your link\n"+
				"• After successful payment your registration goes to approval\n"+
				"• Your slot is assigned right after approval\n\n"+
				"🛡 <i>Your payment is secure and protected.</i>", kb)

	case BackToPayment:
		return a.editMessage(q, "Please use /register to start a new registration.", tgbotapi.InlineKeyboardMarkup{})
	}
	return nil
}

func (a *App) startPayment(ctx context.Context, q *tgbotapi.CallbackQuery, tier int) error {
	userID := q.From.ID

	tierInfo, err := a.registry.GetTier(tier)
	if err != nil {
		return a.editMessage(q, "❌ Unknown tournament. Please use /register again.", tgbotapi.InlineKeyboardMarkup{})
	}

	_, payURL, err := a.store.Open(ctx, userID, tier)
	switch {
	case errors.Is(err, sessions.ErrSessionPending):
		return a.editMessage(q,
			fmt.Sprintf("⌛ You already have a pending registration for the ₹%d tournament. Complete the payment or wait for approval.", tier),
			tgbotapi.InlineKeyboardMarkup{})
	case errors.Is(err, sessions.ErrGatewayUnavailable):
		a.log.Error("payment link creation failed", zap.Int64("user", userID), zap.Int("tier", tier), zap.Error(err))
		return a.editMessage(q,
			"❌ <b>Payment Error</b>\n\nUnable to create payment link. Please try again later.",
			tgbotapi.InlineKeyboardMarkup{})
	case err != nil:
		return err
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("💳 Pay Now", payURL),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚠️ Payment Security", "payment_security"),
		),
	)
	text := fmt.Sprintf(
		"💳 <b>Payment Required</b>\n\n🏆 Tournament: ₹%d\n💰 Entry Fee: ₹%d\n🏅 Prize: ₹%d\n\n"+
			"Click below to complete your payment.\n\n"+
			"⚠️ <b>IMPORTANT:</b> This payment link is personalized for you only.",
		tier, tier, tierInfo.Prize,
	)
	return a.editMessage(q, text, kb)
}

func (a *App) resolveApprove(ctx context.Context, q *tgbotapi.CallbackQuery, act Approve) error {
	slot, _, err := a.approvals.Approve(ctx, act.User, act.Tier)
	switch {
	case errors.Is(err, approval.ErrAlreadyProcessed):
		return a.editMessage(q, "ℹ️ Already processed.", tgbotapi.InlineKeyboardMarkup{})
	case errors.Is(err, tournament.ErrTierNotFound):
		return a.editMessage(q, fmt.Sprintf("❌ Tournament ₹%d no longer exists; nothing changed.", act.Tier), tgbotapi.InlineKeyboardMarkup{})
	case err != nil:
		return err
	}
	return a.editMessage(q,
		fmt.Sprintf("✅ <b>Approved</b>\n\nUser assigned to ₹%d Tournament, Slot %d", act.Tier, slot),
		tgbotapi.InlineKeyboardMarkup{})
}

func (a *App) resolveDecline(ctx context.Context, q *tgbotapi.CallbackQuery, act Decline) error {
	err := a.approvals.Decline(ctx, act.User)
	if errors.Is(err, approval.ErrAlreadyProcessed) {
		return a.editMessage(q, "ℹ️ Already processed.", tgbotapi.InlineKeyboardMarkup{})
	}
	if err != nil {
		return err
	}
	return a.editMessage(q, "❌ Registration declined.", tgbotapi.InlineKeyboardMarkup{})
}

// ---------- Helpers ----------

func (a *App) tierKeyboard(userID int64) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{}
	for _, fee := range a.registry.Fees() {
		t, err := a.registry.GetTier(fee)
		if err != nil {
			continue
		}
		label := fmt.Sprintf("💰 ₹%d Tournament (Win ₹%d)", fee, t.Prize)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, encodeSelectTier(fee, userID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (a *App) feeLine() string {
	parts := []string{}
	for _, fee := range a.registry.Fees() {
		parts = append(parts, fmt.Sprintf("₹%d", fee))
	}
	return strings.Join(parts, ", ")
}

func (a *App) editMessage(q *tgbotapi.CallbackQuery, text string, kb tgbotapi.InlineKeyboardMarkup) error {
	if q.Message == nil {
		return nil
	}
	edit := tgbotapi.NewEditMessageText(q.Message.Chat.ID, q.Message.MessageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	if len(kb.InlineKeyboard) > 0 {
		edit.ReplyMarkup = &kb
	}
	_, err := a.bot.Send(edit)
	return err
}
