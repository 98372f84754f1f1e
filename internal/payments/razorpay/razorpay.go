package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tournament-bot/internal/payments"
	"tournament-bot/internal/util"
)

const defaultAPIBase = "https://api.razorpay.com/v1"

// Provider creates Razorpay payment links and validates payment_link
// webhooks. Each link carries notes binding it to the requesting user,
// checked again on confirmation.
type Provider struct {
	keyID         string
	keySecret     string
	webhookSecret string
	callbackURL   string
	apiBase       string
	httpc         *http.Client
}

func New(keyID, keySecret, webhookSecret, callbackURL string) *Provider {
	return &Provider{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		callbackURL:   strings.TrimRight(callbackURL, "/"),
		apiBase:       defaultAPIBase,
		httpc:         &http.Client{Timeout: 15 * time.Second},
	}
}

// SetAPIBase overrides the API endpoint, used in tests.
func (p *Provider) SetAPIBase(base string) {
	p.apiBase = strings.TrimRight(base, "/")
}

func (p *Provider) Name() string { return "razorpay" }

type linkResponse struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
}

func (p *Provider) CreateLink(ctx context.Context, req payments.LinkRequest) (payments.Link, error) {
	payload := map[string]any{
		"amount":         req.Tier * 100, // minor units
		"currency":       "INR",
		"accept_partial": false,
		"description":    fmt.Sprintf("Tournament ₹%d - User %d", req.Tier, req.UserID),
		"customer": map[string]any{
			"name": fmt.Sprintf("User %d", req.UserID),
		},
		"notes": map[string]string{
			"user_id":         strconv.FormatInt(req.UserID, 10),
			"tournament_type": strconv.Itoa(req.Tier),
			"authorized_user": strconv.FormatInt(req.UserID, 10),
		},
		"notify":          map[string]bool{"sms": false, "email": false},
		"reminder_enable": false,
	}
	if p.callbackURL != "" {
		payload["callback_url"] = fmt.Sprintf("%s/payment-success?user_id=%d&tournament=%d", p.callbackURL, req.UserID, req.Tier)
		payload["callback_method"] = "get"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return payments.Link{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/payment_links", bytes.NewReader(body))
	if err != nil {
		return payments.Link{}, err
	}
	httpReq.SetBasicAuth(p.keyID, p.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpc.Do(httpReq)
	if err != nil {
		return payments.Link{}, fmt.Errorf("razorpay request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return payments.Link{}, fmt.Errorf("razorpay status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var lr linkResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return payments.Link{}, fmt.Errorf("razorpay response: %w", err)
	}
	if lr.ID == "" || lr.ShortURL == "" {
		return payments.Link{}, fmt.Errorf("razorpay response missing link data")
	}
	return payments.Link{ID: lr.ID, URL: lr.ShortURL}, nil
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		PaymentLink struct {
			ID          string            `json:"id"`
			Amount      int               `json:"amount"`
			Status      string            `json:"status"`
			Description string            `json:"description"`
			Notes       map[string]string `json:"notes"`
		} `json:"payment_link"`
	} `json:"payload"`
}

var descUserRe = regexp.MustCompile(`User (\d+)`)

func (p *Provider) ParseWebhook(ctx context.Context, body []byte, headers map[string]string) (payments.Confirmation, error) {
	sig := headers["x-razorpay-signature"]
	if sig == "" || !util.VerifyHMACSHA256Hex(p.webhookSecret, string(body), sig) {
		return payments.Confirmation{}, payments.ErrInvalidSignature
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return payments.Confirmation{}, fmt.Errorf("%w: %v", payments.ErrUnrecognizedEvent, err)
	}
	link := ev.Payload.PaymentLink
	if ev.Event != "payment_link.paid" || link.Status != "paid" {
		return payments.Confirmation{}, payments.ErrUnrecognizedEvent
	}

	conf := payments.Confirmation{
		LinkID: link.ID,
		Amount: link.Amount / 100, // paise to rupees
	}
	if raw, ok := link.Notes["user_id"]; ok {
		conf.UserID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if conf.UserID == 0 {
		if m := descUserRe.FindStringSubmatch(link.Description); m != nil {
			conf.UserID, _ = strconv.ParseInt(m[1], 10, 64)
		}
	}
	if raw, ok := link.Notes["authorized_user"]; ok {
		conf.AuthorizedUser, _ = strconv.ParseInt(raw, 10, 64)
	}
	return conf, nil
}
