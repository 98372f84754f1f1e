package payments

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrUnrecognizedEvent = errors.New("unrecognized webhook event")
)

// LinkRequest asks the gateway for a payment link binding one user to
// one tournament tier. The tier's entry fee is the amount, in whole
// currency units.
type LinkRequest struct {
	UserID int64
	Tier   int
}

type Link struct {
	ID  string
	URL string
}

// Confirmation is a signature-verified, decoded payment webhook.
// UserID comes from the link metadata (with a description fallback) and
// is zero when neither is present. AuthorizedUser carries the separately
// recorded id the link was bound to at creation time, zero if absent.
type Confirmation struct {
	LinkID         string
	Amount         int
	UserID         int64
	AuthorizedUser int64
}

type Provider interface {
	Name() string

	CreateLink(ctx context.Context, req LinkRequest) (Link, error)

	// ParseWebhook verifies the signature over the raw body (constant
	// time) and decodes the event. Returns ErrInvalidSignature on a bad
	// or missing signature and ErrUnrecognizedEvent for event classes
	// other than a payment confirmation.
	ParseWebhook(ctx context.Context, body []byte, headers map[string]string) (Confirmation, error)
}
