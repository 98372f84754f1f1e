package stub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tournament-bot/internal/payments"
	"tournament-bot/internal/util"
)

func TestCreateLink(t *testing.T) {
	p := New("secret", "http://localhost:8080")

	link, err := p.CreateLink(context.Background(), payments.LinkRequest{UserID: 100, Tier: 15})
	require.NoError(t, err)
	assert.Contains(t, link.ID, "stub_")
	assert.Contains(t, link.URL, "http://localhost:8080/pay/stub?link="+link.ID)
	assert.Contains(t, link.URL, "amount=15")
	assert.Contains(t, link.URL, "user=100")
}

func TestParseWebhook(t *testing.T) {
	p := New("secret", "")
	body := `{"event":"payment_link.paid","link_id":"stub_1","amount":15,"user_id":100,"authorized_user":100}`

	conf, err := p.ParseWebhook(context.Background(), []byte(body), map[string]string{
		"x-signature": util.HMACSHA256Hex("secret", body),
	})
	require.NoError(t, err)
	assert.Equal(t, "stub_1", conf.LinkID)
	assert.Equal(t, 15, conf.Amount)
	assert.Equal(t, int64(100), conf.UserID)

	_, err = p.ParseWebhook(context.Background(), []byte(body), map[string]string{"x-signature": "bad"})
	assert.ErrorIs(t, err, payments.ErrInvalidSignature)
}
