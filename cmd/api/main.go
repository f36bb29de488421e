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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/paygate-backend/api/controllers"
	"github.com/angelmondragon/paygate-backend/api/routes"
	"github.com/angelmondragon/paygate-backend/internal/intents"
	"github.com/angelmondragon/paygate-backend/internal/ledger"
	"github.com/angelmondragon/paygate-backend/internal/processor"
	"github.com/angelmondragon/paygate-backend/pkg/config"
	"github.com/angelmondragon/paygate-backend/pkg/db"
	"github.com/angelmondragon/paygate-backend/pkg/idempotency"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
	"github.com/angelmondragon/paygate-backend/pkg/metrics"
	"github.com/angelmondragon/paygate-backend/pkg/migrate"
	"github.com/angelmondragon/paygate-backend/pkg/redis"
	"github.com/angelmondragon/paygate-backend/pkg/security"
)

const shutdownGrace = 15 * time.Second

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
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	antiforgery, err := security.NewAntiforgery(
		cfg.Security.AntiforgerySecret,
		cfg.Security.AntiforgeryIssuer,
		cfg.Security.AntiforgeryTTL,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to build anti-forgery minter", err)
		os.Exit(1)
	}
	verifier, err := security.NewSignedRequestVerifier(cfg.Security.SigningKeys, cfg.Security.SignatureMaxSkew)
	if err != nil {
		logg.Error(context.Background(), "failed to build signed-request verifier", err)
		os.Exit(1)
	}

	idemStore, err := idempotency.NewRedisStore(redisClient, "intake", cfg.Gateway.IdempotencyRetention)
	if err != nil {
		logg.Error(context.Background(), "failed to build idempotency store", err)
		os.Exit(1)
	}

	upstream, err := processor.FromConfig(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build processor client", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:   ledger.NewRepo(dbClient),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	intentService, err := intents.NewService(intents.ServiceParams{
		Config:      cfg,
		Logger:      logg,
		Repo:        intents.NewRepo(dbClient),
		Ledger:      ledgerService,
		Idempotency: idemStore,
		Processor:   upstream,
		Metrics:     paymentMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create intent service", err)
		os.Exit(1)
	}

	paymentsController, err := controllers.NewPaymentsController(intentService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments controller", err)
		os.Exit(1)
	}
	tokensController, err := controllers.NewTokensController(antiforgery, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create tokens controller", err)
		os.Exit(1)
	}
	healthController := controllers.NewHealthController(dbClient, redisClient, logg)

	router := routes.New(routes.RouterParams{
		Logger:      logg,
		Config:      cfg,
		Payments:    paymentsController,
		Tokens:      tokensController,
		Health:      healthController,
		Antiforgery: antiforgery,
		Verifier:    verifier,
		RateLimiter: redisClient,
		Registry:    registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"processor": upstream.Name(),
	})
	logg.Info(ctx, "starting payment gateway api")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

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
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shut down gracefully")
}
