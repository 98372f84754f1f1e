package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tournament-bot/internal/payments"
	"tournament-bot/internal/util"
)

// Stub provider:
// - CreateLink issues a local /pay/stub page URL
// - Webhook: POST /payment-webhook with X-Signature (HMAC SHA-256 hex)

type Provider struct {
	secret  string
	baseURL string
}

func New(secret, baseURL string) *Provider {
	return &Provider{secret: secret, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *Provider) Name() string { return "stub" }

func (p *Provider) CreateLink(ctx context.Context, req payments.LinkRequest) (payments.Link, error) {
	id := "stub_" + uuid.NewString()
	url := fmt.Sprintf("/pay/stub?link=%s&amount=%d&user=%d", id, req.Tier, req.UserID)
	if p.baseURL != "" {
		url = p.baseURL + url
	}
	return payments.Link{ID: id, URL: url}, nil
}

type webhookPayload struct {
	Event          string `json:"event"`
	LinkID         string `json:"link_id"`
	Amount         int    `json:"amount"`
	UserID         int64  `json:"user_id"`
	AuthorizedUser int64  `json:"authorized_user"`
}

func (p *Provider) ParseWebhook(ctx context.Context, body []byte, headers map[string]string) (payments.Confirmation, error) {
	sig := headers["x-signature"]
	if sig == "" || !util.VerifyHMACSHA256Hex(p.secret, string(body), sig) {
		return payments.Confirmation{}, payments.ErrInvalidSignature
	}

	var pl webhookPayload
	if err := json.Unmarshal(body, &pl); err != nil {
		return payments.Confirmation{}, fmt.Errorf("%w: %v", payments.ErrUnrecognizedEvent, err)
	}
	if pl.Event != "payment_link.paid" {
		return payments.Confirmation{}, payments.ErrUnrecognizedEvent
	}
	return payments.Confirmation{
		LinkID:         pl.LinkID,
		Amount:         pl.Amount,
		UserID:         pl.UserID,
		AuthorizedUser: pl.AuthorizedUser,
	}, nil
}
