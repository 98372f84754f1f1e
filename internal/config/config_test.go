package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_TG_IDS", "1181844922")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "stub", cfg.PaymentProvider)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, map[int]int{15: 25, 30: 50, 50: 80}, cfg.Tiers)
	assert.Equal(t, 2, cfg.SlotsPerTier)
	assert.Equal(t, 10*time.Minute, cfg.CooldownWindow)
	assert.Equal(t, ResetNever, cfg.ResetPolicy)
	assert.False(t, cfg.AutoAssign)
	assert.True(t, cfg.AdminTGIDs[1181844922])
}

func TestFromEnvRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("ADMIN_TG_IDS", "1")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvRequiresAdmins(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_TG_IDS", "")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TOURNAMENT_TIERS", "10:18, 20:35")
	t.Setenv("SLOTS_PER_TIER", "4")
	t.Setenv("REGISTER_COOLDOWN", "1m")
	t.Setenv("TIER_RESET_POLICY", "after-timeout")
	t.Setenv("TIER_RESET_DELAY", "30m")
	t.Setenv("AUTO_ASSIGN_ON_PAYMENT", "true")
	t.Setenv("GROUP_CHAT_ID", "-1002143662557")
	t.Setenv("BOT_USERNAME", "@Tournament_bot")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, map[int]int{10: 18, 20: 35}, cfg.Tiers)
	assert.Equal(t, 4, cfg.SlotsPerTier)
	assert.Equal(t, time.Minute, cfg.CooldownWindow)
	assert.Equal(t, ResetAfterTimeout, cfg.ResetPolicy)
	assert.Equal(t, 30*time.Minute, cfg.ResetDelay)
	assert.True(t, cfg.AutoAssign)
	assert.Equal(t, int64(-1002143662557), cfg.GroupChatID)
	assert.Equal(t, "Tournament_bot", cfg.BotUsername, "leading @ is stripped")
}

func TestFromEnvRejectsBadResetPolicy(t *testing.T) {
	setRequired(t)
	t.Setenv("TIER_RESET_POLICY", "sometimes")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvRazorpayNeedsKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYMENT_PROVIDER", "razorpay")

	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("RAZORPAY_KEY_ID", "rzp_test_key")
	t.Setenv("RAZORPAY_KEY_SECRET", "shh")
	_, err = FromEnv()
	assert.NoError(t, err)
}

func TestParseTiersRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"15", "15:", ":25", "a:b", "15:-1"} {
		_, err := parseTiers(raw)
		assert.Error(t, err, raw)
	}
}
