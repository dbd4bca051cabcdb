package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vantage-app/licensing-backend/api/routes"
	"github.com/vantage-app/licensing-backend/internal/billing"
	"github.com/vantage-app/licensing-backend/internal/contracts"
	"github.com/vantage-app/licensing-backend/internal/licenses"
	"github.com/vantage-app/licensing-backend/internal/notifications"
	"github.com/vantage-app/licensing-backend/internal/reconciliation"
	"github.com/vantage-app/licensing-backend/internal/users"
	"github.com/vantage-app/licensing-backend/pkg/config"
	"github.com/vantage-app/licensing-backend/pkg/db"
	"github.com/vantage-app/licensing-backend/pkg/logger"
	"github.com/vantage-app/licensing-backend/pkg/metrics"
	"github.com/vantage-app/licensing-backend/pkg/migrate"
	"github.com/vantage-app/licensing-backend/pkg/redis"
	"github.com/vantage-app/licensing-backend/pkg/stripe"
)

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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to initialize stripe", err)
		os.Exit(1)
	}

	var notifier notifications.Notifier
	if cfg.SMTP.Enabled() {
		smtpNotifier, err := notifications.NewSMTPNotifier(cfg.SMTP)
		if err != nil {
			logg.Error(context.Background(), "failed to configure smtp notifier", err)
			os.Exit(1)
		}
		notifier = smtpNotifier
	} else {
		logg.Warn(context.Background(), "smtp not configured, unbind notices disabled")
		notifier = notifications.NewNoopNotifier()
	}

	userRepo := users.NewRepository(dbClient.DB())
	billingRepo := billing.NewRepository(dbClient.DB())
	licenseRepo := licenses.NewRepository(dbClient.DB())
	contractRepo := contracts.NewRepository(dbClient.DB())

	issuer, err := licenses.NewIssuer(licenseRepo, cfg.Licensing.CodeAttempts)
	if err != nil {
		logg.Error(context.Background(), "failed to create code issuer", err)
		os.Exit(1)
	}

	licenseService, err := licenses.NewService(licenseRepo, contractRepo, billingRepo, userRepo, notifier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create license service", err)
		os.Exit(1)
	}

	contractService, err := contracts.NewService(
		contractRepo,
		licenseRepo,
		issuer,
		cfg.Licensing.NumberingRetries,
		cfg.Licensing.DefaultExpireDays,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create contract service", err)
		os.Exit(1)
	}

	reconcileService, err := reconciliation.NewService(
		userRepo,
		billingRepo,
		licenseRepo,
		issuer,
		reconciliation.NewStripeClient(stripeClient),
		cfg.Licensing.InvoicePageSize,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(registry)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			httpMetrics,
			metricsHandler,
			licenseService,
			contractService,
			reconcileService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
