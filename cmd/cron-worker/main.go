package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/paygate-backend/internal/cron"
	"github.com/angelmondragon/paygate-backend/internal/intents"
	"github.com/angelmondragon/paygate-backend/internal/ledger"
	"github.com/angelmondragon/paygate-backend/pkg/config"
	"github.com/angelmondragon/paygate-backend/pkg/db"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
	"github.com/angelmondragon/paygate-backend/pkg/metrics"
	"github.com/angelmondragon/paygate-backend/pkg/migrate"
	"github.com/angelmondragon/paygate-backend/pkg/redis"
)

const sweeperLockName = "intent_ttl_sweeper"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
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

	if err := migrate.MaybeRunDev(context.Background(), cfg, dbClient, logg); err != nil {
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

	registry := prometheus.NewRegistry()
	cronMetrics := metrics.NewCronJobMetrics(registry)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:   ledger.NewRepo(dbClient),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	ttlJob, err := cron.NewIntentTTLJob(cron.IntentTTLJobParams{
		Logger:    logg,
		Intents:   intents.NewRepo(dbClient),
		Ledger:    ledgerService,
		Metrics:   paymentMetrics,
		Retention: cfg.Gateway.IntentRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create intent ttl job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(sweeperLockName), cfg.Sweeper.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(ttlJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Sweeper.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"retention": cfg.Gateway.IntentRetention.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
