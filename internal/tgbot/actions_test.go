package tgbot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAction(t *testing.T) {
	tests := []struct {
		data string
		want Action
	}{
		{"start_registration", BeginRegistration{}},
		{"payment_security", PaymentSecurity{}},
		{"back_to_payment", BackToPayment{}},
		{"register_15_100", SelectTier{Tier: 15, User: 100}},
		{"approve_30_1181844922", Approve{Tier: 30, User: 1181844922}},
		{"decline_100", Decline{User: 100}},
	}
	for _, tt := range tests {
		got, err := decodeAction(tt.data)
		require.NoError(t, err, tt.data)
		assert.Equal(t, tt.want, got, tt.data)
	}
}

func TestDecodeActionRejectsGarbage(t *testing.T) {
	for _, data := range []string{
		"",
		"register_15",
		"register_x_100",
		"register_15_x",
		"approve_15",
		"decline_abc",
		"unknown_thing",
	} {
		_, err := decodeAction(data)
		assert.Error(t, err, data)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	act, err := decodeAction(encodeSelectTier(50, 42))
	require.NoError(t, err)
	assert.Equal(t, SelectTier{Tier: 50, User: 42}, act)

	act, err = decodeAction(encodeApprove(15, 7))
	require.NoError(t, err)
	assert.Equal(t, Approve{Tier: 15, User: 7}, act)

	act, err = decodeAction(encodeDecline(7))
	require.NoError(t, err)
	assert.Equal(t, Decline{User: 7}, act)
}
