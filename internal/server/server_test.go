package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tournament-bot/internal/clock"
	"tournament-bot/internal/config"
	"tournament-bot/internal/payments/stub"
	"tournament-bot/internal/sessions"
	"tournament-bot/internal/util"
)

const testSecret = "test-secret"

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeNotifier) NotifyAdmins(_ context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
}

type fixedTiers struct{}

func (fixedTiers) HasTier(fee int) bool {
	return fee == 15 || fee == 30 || fee == 50
}

func newTestServer(t *testing.T) (*httptest.Server, *sessions.Store, *fakeNotifier) {
	t.Helper()
	cfg := config.Config{
		HTTPAddr:             ":0",
		PaymentWebhookSecret: testSecret,
		BasePublicURL:        "https://bot.example",
	}
	provider := stub.New(testSecret, cfg.BasePublicURL)
	store := sessions.NewStore(provider, fixedTiers{}, clock.NewFixed(time.Now()), zap.NewNop())
	notifier := &fakeNotifier{}

	srv := New(cfg, provider, store, notifier, zap.NewNop())
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts, store, notifier
}

func postWebhook(t *testing.T, ts *httptest.Server, body, signature string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/payment-webhook", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func paidBody(linkID string, amount int, user, authorized int64) string {
	raw, _ := json.Marshal(map[string]any{
		"event":           "payment_link.paid",
		"link_id":         linkID,
		"amount":          amount,
		"user_id":         user,
		"authorized_user": authorized,
	})
	return string(raw)
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
}

func TestWebhookMissingBody(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postWebhook(t, ts, "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestWebhookBadSignature(t *testing.T) {
	ts, _, _ := newTestServer(t)

	body := paidBody("stub_1", 15, 100, 100)
	resp := postWebhook(t, ts, body, "deadbeef")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Equal(t, "invalid signature", out["error"])
}

func TestWebhookAcceptedThenDrained(t *testing.T) {
	ts, _, _ := newTestServer(t)

	body := paidBody("stub_1", 15, 100, 100)
	resp := postWebhook(t, ts, body, util.HMACSHA256Hex(testSecret, body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Equal(t, "success", out["status"])

	// First drain returns the confirmation, second is empty.
	resp, err := http.Get(ts.URL + "/pending-payments")
	require.NoError(t, err)
	first := decodeBody(t, resp)
	assert.Equal(t, float64(1), first["count"])

	resp, err = http.Get(ts.URL + "/pending-payments")
	require.NoError(t, err)
	second := decodeBody(t, resp)
	assert.Equal(t, float64(0), second["count"])
}

func TestWebhookReplayIsNoOp(t *testing.T) {
	ts, store, _ := newTestServer(t)

	body := paidBody("stub_1", 15, 100, 100)
	sig := util.HMACSHA256Hex(testSecret, body)

	resp := postWebhook(t, ts, body, sig)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postWebhook(t, ts, body, sig)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Equal(t, "already processed", out["message"])

	assert.Len(t, store.Drain(), 1, "replay must not enqueue a second confirmation")
}

func TestWebhookAuthorizedUserMismatch(t *testing.T) {
	ts, store, _ := newTestServer(t)

	body := paidBody("stub_1", 15, 100, 999)
	resp := postWebhook(t, ts, body, util.HMACSHA256Hex(testSecret, body))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Equal(t, "unauthorized", out["error"])

	assert.Empty(t, store.Drain())
}

func TestWebhookUnknownAmountIgnored(t *testing.T) {
	ts, _, _ := newTestServer(t)

	body := paidBody("stub_1", 17, 100, 100)
	resp := postWebhook(t, ts, body, util.HMACSHA256Hex(testSecret, body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Equal(t, "ignored", out["status"])
}

func TestWebhookUnknownEventIgnored(t *testing.T) {
	ts, _, _ := newTestServer(t)

	body := `{"event":"payment_link.expired","link_id":"stub_1","amount":15}`
	resp := postWebhook(t, ts, body, util.HMACSHA256Hex(testSecret, body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Equal(t, "ignored", out["status"])
}

func TestPaymentSuccessPage(t *testing.T) {
	ts, _, notifier := newTestServer(t)

	resp, err := http.Get(ts.URL + "/payment-success")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/payment-success?razorpay_payment_id=pay_1&razorpay_payment_link_id=plink_1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.texts, 1)
	assert.Contains(t, notifier.texts[0], "pay_1")
}

func TestStats(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Equal(t, "active", out["status"])
}
