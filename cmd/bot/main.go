package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tournament-bot/internal/approval"
	"tournament-bot/internal/clock"
	"tournament-bot/internal/config"
	"tournament-bot/internal/logging"
	"tournament-bot/internal/payments"
	"tournament-bot/internal/payments/razorpay"
	"tournament-bot/internal/payments/stub"
	"tournament-bot/internal/server"
	"tournament-bot/internal/sessions"
	"tournament-bot/internal/tgbot"
	"tournament-bot/internal/tournament"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	provider, err := newPaymentProvider(cfg)
	if err != nil {
		log.Fatal("payments", zap.Error(err))
	}

	clk := clock.NewSystem()
	registry := tournament.NewRegistry(cfg, log.Named("registry"))
	cooldowns := tournament.NewTracker(cfg.CooldownWindow, clk)
	store := sessions.NewStore(provider, registry, clk, log.Named("sessions"))

	botApp, err := tgbot.New(cfg, registry, cooldowns, store, log.Named("tgbot"))
	if err != nil {
		log.Fatal("telegram", zap.Error(err))
	}

	admins := make([]int64, 0, len(cfg.AdminTGIDs))
	for id := range cfg.AdminTGIDs {
		admins = append(admins, id)
	}
	approvals := approval.NewController(registry, store, botApp, admins, log.Named("approval"))
	botApp.AttachApprovals(approvals)
	registry.SetBroadcast(func(tierID int, summary string) {
		botApp.BroadcastSlots(tierID, summary)
	})

	httpSrv := server.New(cfg, provider, store, botApp, log.Named("server"))

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := botApp.Run(ctx); err != nil {
			log.Error("bot stopped", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	cancel()
	ctxTimeout, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = httpSrv.Shutdown(ctxTimeout)
}

func newPaymentProvider(cfg config.Config) (payments.Provider, error) {
	switch cfg.PaymentProvider {
	case "stub":
		return stub.New(cfg.PaymentWebhookSecret, cfg.BasePublicURL), nil
	case "razorpay":
		return razorpay.New(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.PaymentWebhookSecret, cfg.BasePublicURL), nil
	default:
		return nil, fmt.Errorf("unknown payment provider: %s", cfg.PaymentProvider)
	}
}
