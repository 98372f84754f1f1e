package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"tournament-bot/internal/config"
	"tournament-bot/internal/payments"
	"tournament-bot/internal/sessions"
	"tournament-bot/internal/util"
)

// AdminNotifier relays secondary events (payment redirects, manual
// triggers) to the administrators. Implemented by tgbot.App.
type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, text string)
}

// New builds the webhook receiver. It shares the session store with the
// bot process; every route is safe to hit concurrently with bot-side
// mutations.
func New(cfg config.Config, provider payments.Provider, store *sessions.Store, notifier AdminNotifier, log *zap.Logger) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"message":   "Bot is running ✅",
			"timestamp": util.NowISO(),
		})
	})

	r.Post("/payment-webhook", func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil || len(body) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "no data received"})
			return
		}

		headers := map[string]string{}
		for k, v := range req.Header {
			if len(v) > 0 {
				headers[strings.ToLower(k)] = v[0]
			}
		}

		// DEV loop for the stub provider: the local pay page cannot sign
		// requests, so fill the signature in when running without a
		// public URL.
		if provider.Name() == "stub" && headers["x-signature"] == "" &&
			(cfg.BasePublicURL == "" || strings.Contains(cfg.BasePublicURL, "localhost")) {
			headers["x-signature"] = util.HMACSHA256Hex(cfg.PaymentWebhookSecret, string(body))
		}

		conf, err := provider.ParseWebhook(req.Context(), body, headers)
		switch {
		case errors.Is(err, payments.ErrInvalidSignature):
			log.Warn("webhook rejected: bad signature", zap.String("remote", req.RemoteAddr))
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid signature"})
			return
		case errors.Is(err, payments.ErrUnrecognizedEvent):
			writeJSON(w, http.StatusOK, map[string]any{"status": "ignored", "message": "event not handled"})
			return
		case err != nil:
			log.Error("webhook processing failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal server error"})
			return
		}

		switch result := store.RecordWebhook(conf); result {
		case sessions.ResultAccepted:
			writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "payment processed"})
		case sessions.ResultDuplicate:
			writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "already processed"})
		case sessions.ResultUnauthorized:
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unauthorized"})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"status": "ignored", "message": "event not handled"})
		}
	})

	// Atomic hand-off for a split deployment: confirmed sessions are
	// delivered to exactly one caller and cleared on return.
	r.Get("/pending-payments", func(w http.ResponseWriter, req *http.Request) {
		pending := store.Drain()
		if pending == nil {
			pending = []sessions.Session{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"pending": pending,
			"count":   len(pending),
		})
	})

	r.Get("/payment-success", func(w http.ResponseWriter, req *http.Request) {
		paymentID := req.URL.Query().Get("razorpay_payment_id")
		linkID := req.URL.Query().Get("razorpay_payment_link_id")
		if paymentID == "" || linkID == "" {
			http.Error(w, "payment information not found", http.StatusBadRequest)
			return
		}
		if notifier != nil {
			notifier.NotifyAdmins(req.Context(), fmt.Sprintf(
				"✅ <b>Payment Success Redirect</b>\n\n🆔 Payment ID: %s\n🔗 Link ID: %s\n⏰ Time: %s",
				paymentID, linkID, util.NowISO(),
			))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(successPage))
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "active",
			"endpoints": []string{
				"/health",
				"/payment-webhook",
				"/pending-payments",
				"/payment-success",
				"/stats",
			},
			"timestamp": util.NowISO(),
		})
	})

	if provider.Name() == "stub" {
		r.Get("/pay/stub", stubPayPage)
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// stubPayPage is the local checkout used with the stub provider. The
// "Pay" button posts the confirmation straight to /payment-webhook.
func stubPayPage(w http.ResponseWriter, r *http.Request) {
	link := r.URL.Query().Get("link")
	amount := r.URL.Query().Get("amount")
	user := r.URL.Query().Get("user")
	if link == "" {
		http.Error(w, "link required", http.StatusBadRequest)
		return
	}
	if amount == "" {
		amount = "0"
	}
	if user == "" {
		user = "0"
	}
	html := `<!doctype html><html><head><meta charset="utf-8"><title>Stub Pay</title></head><body>
<h2>Payment (stub provider)</h2>
<p>Link: ` + link + ` / Amount: ` + amount + `</p>
<button onclick="pay()">Pay</button>
<pre id="out"></pre>
<script>
async function pay(){
  const body = JSON.stringify({event: "payment_link.paid", link_id: "` + link + `", amount: ` + amount + `, user_id: ` + user + `, authorized_user: ` + user + `});
  const res = await fetch("/payment-webhook", {method:"POST", headers: {"Content-Type":"application/json"}, body});
  document.getElementById("out").textContent = await res.text();
}
</script>
</body></html>`
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Payment Successful</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: Arial, sans-serif; text-align: center; padding: 50px; background-color: #f0f8ff; }
        .success-container { background: white; padding: 30px; border-radius: 10px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); max-width: 400px; margin: 0 auto; }
        .success-icon { font-size: 60px; color: #28a745; margin-bottom: 20px; }
        h1 { color: #28a745; margin-bottom: 20px; }
        p { color: #666; line-height: 1.6; }
    </style>
</head>
<body>
    <div class="success-container">
        <div class="success-icon">✅</div>
        <h1>Payment Successful!</h1>
        <p>Your payment has been processed successfully. Your tournament registration is now pending admin approval.</p>
        <p>You will receive a notification in the bot once your registration is approved.</p>
    </div>
</body>
</html>`
