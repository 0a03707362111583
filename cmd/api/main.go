package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/surveycash/surveycash-backend/api/routes"
	"github.com/surveycash/surveycash-backend/internal/accounts"
	"github.com/surveycash/surveycash-backend/internal/ledger"
	"github.com/surveycash/surveycash-backend/internal/offerwall"
	"github.com/surveycash/surveycash-backend/internal/rewards"
	"github.com/surveycash/surveycash-backend/internal/withdrawals"
	"github.com/surveycash/surveycash-backend/pkg/config"
	"github.com/surveycash/surveycash-backend/pkg/db"
	"github.com/surveycash/surveycash-backend/pkg/logger"
	"github.com/surveycash/surveycash-backend/pkg/metrics"
	"github.com/surveycash/surveycash-backend/pkg/migrate"
	"github.com/surveycash/surveycash-backend/pkg/paypal"
	"github.com/surveycash/surveycash-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	paypalClient, err := paypal.NewClient(context.Background(), cfg.PayPal, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap paypal client", err)
		os.Exit(1)
	}

	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)
	conn := dbClient.DB()

	accountsRepo := accounts.NewRepository(conn)
	accountsService, err := accounts.NewService(accountsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create accounts service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	engine, err := rewards.NewEngine(rewards.EngineParams{
		DB:       dbClient,
		Accounts: accountsRepo,
		Events:   rewards.NewRepository(conn),
		Ledger:   ledgerService,
		Logger:   logg,
		Metrics:  ledgerMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reward engine", err)
		os.Exit(1)
	}
	rewardApplier, err := rewards.NewGuardedApplier(engine, redisClient, cfg.Postback.IdempotencyTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reward guard", err)
		os.Exit(1)
	}

	withdrawalsService, err := withdrawals.NewService(withdrawals.ServiceParams{
		DB:       dbClient,
		Repo:     withdrawals.NewRepository(conn),
		Accounts: accountsRepo,
		Ledger:   ledgerService,
		Provider: paypalClient,
		Config:   cfg.Payouts,
		Logger:   logg,
		Metrics:  ledgerMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create withdrawals service", err)
		os.Exit(1)
	}

	wallBuilder, err := offerwall.NewBuilder(cfg.Offerwall)
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "reason", err.Error()), "survey wall disabled")
		wallBuilder = nil
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			prometheus.DefaultGatherer,
			rewardApplier,
			accountsService,
			ledgerService,
			withdrawalsService,
			wallBuilder,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
