package tournament

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tournament-bot/internal/clock"
)

func TestIsFirstTimeFlipsOnce(t *testing.T) {
	tr := NewTracker(10*time.Minute, clock.NewFixed(time.Now()))

	assert.True(t, tr.IsFirstTime(1))
	assert.False(t, tr.IsFirstTime(1))
	assert.False(t, tr.IsFirstTime(1))

	// Other users are independent of each other.
	assert.True(t, tr.IsFirstTime(2))
	assert.False(t, tr.IsFirstTime(2))
	assert.True(t, tr.IsFirstTime(3))
}

func TestCooldownWindow(t *testing.T) {
	clk := clock.NewFixed(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	tr := NewTracker(10*time.Minute, clk)

	// First-ever registration never waits.
	assert.Zero(t, tr.CheckCooldown(1))

	tr.MarkRegistered(1)
	assert.Equal(t, 10*time.Minute, tr.CheckCooldown(1))

	clk.Advance(3*time.Minute + 15*time.Second)
	assert.Equal(t, 6*time.Minute+45*time.Second, tr.CheckCooldown(1))

	clk.Advance(6*time.Minute + 45*time.Second)
	assert.Zero(t, tr.CheckCooldown(1))

	// Just past the window stays ready.
	clk.Advance(time.Second)
	assert.Zero(t, tr.CheckCooldown(1))
}

func TestCooldownPerUser(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	tr := NewTracker(time.Minute, clk)

	tr.MarkRegistered(1)
	assert.NotZero(t, tr.CheckCooldown(1))
	assert.Zero(t, tr.CheckCooldown(2))
}

func TestRecordInteraction(t *testing.T) {
	tr := NewTracker(time.Minute, clock.NewFixed(time.Now()))

	assert.False(t, tr.HasInteracted(7))
	tr.RecordInteraction(7)
	assert.True(t, tr.HasInteracted(7))
}

func TestFormatWait(t *testing.T) {
	assert.Equal(t, "6 minutes and 45 seconds", FormatWait(6*time.Minute+45*time.Second))
	assert.Equal(t, "0 minutes and 1 seconds", FormatWait(900*time.Millisecond))
	assert.Equal(t, "10 minutes and 0 seconds", FormatWait(10*time.Minute))
}
