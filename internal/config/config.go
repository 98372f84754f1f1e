package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Reset policies for a full tier.
const (
	ResetNever        = "never"
	ResetOnFull       = "on-full"
	ResetAfterTimeout = "after-timeout"
)

type Config struct {
	TelegramToken string
	BotUsername   string

	AdminTGIDs  map[int64]bool
	GroupChatID int64

	PaymentProvider      string
	RazorpayKeyID        string
	RazorpayKeySecret    string
	PaymentWebhookSecret string

	HTTPAddr      string
	BasePublicURL string

	// Tiers maps entry fee to prize.
	Tiers        map[int]int
	SlotsPerTier int

	CooldownWindow time.Duration
	ResetPolicy    string
	ResetDelay     time.Duration

	AutoAssign          bool
	PendingPollInterval time.Duration

	LogLevel  string
	LogFormat string
}

func FromEnv() (Config, error) {
	var c Config
	c.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	c.BotUsername = strings.TrimPrefix(strings.TrimSpace(os.Getenv("BOT_USERNAME")), "@")

	c.PaymentProvider = strings.TrimSpace(os.Getenv("PAYMENT_PROVIDER"))
	if c.PaymentProvider == "" {
		c.PaymentProvider = "stub"
	}
	c.RazorpayKeyID = strings.TrimSpace(os.Getenv("RAZORPAY_KEY_ID"))
	c.RazorpayKeySecret = strings.TrimSpace(os.Getenv("RAZORPAY_KEY_SECRET"))
	c.PaymentWebhookSecret = strings.TrimSpace(os.Getenv("PAYMENT_WEBHOOK_SECRET"))
	if c.PaymentWebhookSecret == "" {
		c.PaymentWebhookSecret = "change-me"
	}

	c.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	c.BasePublicURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BASE_PUBLIC_URL")), "/")

	if c.TelegramToken == "" {
		return c, fmt.Errorf("TELEGRAM_BOT_TOKEN is empty")
	}

	c.AdminTGIDs = parseAdminIDs(os.Getenv("ADMIN_TG_IDS"))
	if len(c.AdminTGIDs) == 0 {
		return c, fmt.Errorf("ADMIN_TG_IDS must contain at least one id")
	}

	var err error
	c.GroupChatID, err = parseInt64(os.Getenv("GROUP_CHAT_ID"), 0)
	if err != nil {
		return c, fmt.Errorf("GROUP_CHAT_ID: %w", err)
	}

	c.Tiers, err = parseTiers(os.Getenv("TOURNAMENT_TIERS"))
	if err != nil {
		return c, fmt.Errorf("TOURNAMENT_TIERS: %w", err)
	}

	c.SlotsPerTier, err = parseInt(os.Getenv("SLOTS_PER_TIER"), 2)
	if err != nil || c.SlotsPerTier < 1 {
		return c, fmt.Errorf("SLOTS_PER_TIER must be a positive integer")
	}

	c.CooldownWindow, err = parseDuration(os.Getenv("REGISTER_COOLDOWN"), 10*time.Minute)
	if err != nil {
		return c, fmt.Errorf("REGISTER_COOLDOWN: %w", err)
	}

	c.ResetPolicy = strings.TrimSpace(os.Getenv("TIER_RESET_POLICY"))
	if c.ResetPolicy == "" {
		c.ResetPolicy = ResetNever
	}
	switch c.ResetPolicy {
	case ResetNever, ResetOnFull, ResetAfterTimeout:
	default:
		return c, fmt.Errorf("TIER_RESET_POLICY must be one of never, on-full, after-timeout")
	}
	c.ResetDelay, err = parseDuration(os.Getenv("TIER_RESET_DELAY"), 10*time.Minute)
	if err != nil {
		return c, fmt.Errorf("TIER_RESET_DELAY: %w", err)
	}

	c.AutoAssign = parseBool(os.Getenv("AUTO_ASSIGN_ON_PAYMENT"))
	c.PendingPollInterval, err = parseDuration(os.Getenv("PENDING_POLL_INTERVAL"), 5*time.Second)
	if err != nil {
		return c, fmt.Errorf("PENDING_POLL_INTERVAL: %w", err)
	}

	c.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	c.LogFormat = strings.TrimSpace(os.Getenv("LOG_FORMAT"))

	if c.PaymentProvider == "razorpay" && (c.RazorpayKeyID == "" || c.RazorpayKeySecret == "") {
		return c, fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required for the razorpay provider")
	}

	return c, nil
}

func parseAdminIDs(raw string) map[int64]bool {
	m := map[int64]bool{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return m
	}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		m[v] = true
	}
	return m
}

// parseTiers reads a "fee:prize,fee:prize" list. The default table is the
// 15/30/50 line-up.
func parseTiers(raw string) (map[int]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[int]int{15: 25, 30: 50, 50: 80}, nil
	}
	tiers := map[int]int{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		fee, prize, ok := strings.Cut(p, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q must be fee:prize", p)
		}
		f, err := strconv.Atoi(strings.TrimSpace(fee))
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("bad fee in %q", p)
		}
		w, err := strconv.Atoi(strings.TrimSpace(prize))
		if err != nil || w <= 0 {
			return nil, fmt.Errorf("bad prize in %q", p)
		}
		tiers[f] = w
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no tiers configured")
	}
	return tiers, nil
}

func parseInt(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func parseInt64(raw string, def int64) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func parseDuration(raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return time.ParseDuration(raw)
}

func parseBool(raw string) bool {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}
