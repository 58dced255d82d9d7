package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mymmrac/telego"
	"go.uber.org/zap"

	"refbot/internal/bot"
	"refbot/internal/config"
	"refbot/internal/database"
	"refbot/internal/ledger"
	"refbot/internal/logging"
	"refbot/internal/membership"
	"refbot/internal/monitoring"
	"refbot/internal/payout"
	"refbot/internal/settings"
	"refbot/internal/worker"
)

func main() {
	// Load Configuration
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.LogProduction)
	if err != nil {
		log.Fatalf("Could not build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to Database
	db, err := database.Open(cfg, logger)
	if err != nil {
		logger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
	}()

	store := settings.NewStore(db)
	if err := store.Seed(ctx); err != nil {
		logger.Fatal("Could not seed settings", zap.Error(err))
	}

	accounts := ledger.New(db, store, logger.Named("ledger"))
	withdrawals := ledger.NewWithdrawalLog(accounts)

	tgBot, err := telego.NewBot(cfg.BotToken)
	if err != nil {
		logger.Fatal("Could not create bot", zap.Error(err))
	}

	var gate membership.Gate = membership.AllowAll{}
	if len(cfg.Channels) > 0 {
		gate = membership.NewPlatformGate(membership.NewTelegramLookup(tgBot), cfg.MembershipTimeout, logger.Named("membership"))
	}

	dispatcher := bot.NewBot(tgBot, accounts, withdrawals, store, gate, cfg, logger.Named("bot"))

	if cfg.PayoutEnabled() {
		// Connect to Redis
		rdb, err := database.ConnectRedis(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Could not connect to redis", zap.Error(err))
		}
		defer rdb.Close()

		payouts := &worker.Payouts{
			Withdrawals: withdrawals,
			Settings:    store,
			Redis:       rdb,
			Payer:       payout.NewClient(cfg.XRocketURL, cfg.XRocketKey),
			Notifier:    dispatcher,
			Currency:    cfg.Currency,
			Interval:    cfg.PayoutEvery,
			Log:         logger.Named("payouts"),
		}
		go payouts.Start(ctx)
	}

	if cfg.MetricsAddr != "" {
		handler, err := monitoring.Handler(cfg.MetricsAllowed)
		if err != nil {
			logger.Fatal("Could not build metrics handler", zap.Error(err))
		}
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: handler}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("Service started successfully")

	if err := dispatcher.Start(ctx); err != nil {
		logger.Error("Bot stopped with error", zap.Error(err))
	}
	logger.Info("Shutting down")
}
