package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/cleanly/booking-api/config"
	adminHandler "github.com/cleanly/booking-api/internal/handler/admin"
	bookingHandler "github.com/cleanly/booking-api/internal/handler/booking"
	"github.com/cleanly/booking-api/internal/handler/health"
	jobHandler "github.com/cleanly/booking-api/internal/handler/job"
	promHandler "github.com/cleanly/booking-api/internal/handler/prometheus"
	providerHandler "github.com/cleanly/booking-api/internal/handler/provider"
	webhookHandler "github.com/cleanly/booking-api/internal/handler/webhook"
	"github.com/cleanly/booking-api/internal/middleware"
	"github.com/cleanly/booking-api/internal/repository/postgres"
	"github.com/cleanly/booking-api/internal/router"
	"github.com/cleanly/booking-api/internal/service/booking"
	"github.com/cleanly/booking-api/internal/service/event"
	"github.com/cleanly/booking-api/internal/service/idempotency"
	"github.com/cleanly/booking-api/internal/service/job"
	"github.com/cleanly/booking-api/internal/service/payment"
	"github.com/cleanly/booking-api/internal/service/verification"
	"github.com/cleanly/booking-api/pkg/auth"
	"github.com/cleanly/booking-api/pkg/logger"
	"github.com/cleanly/booking-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "failed to load configuration")
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	})

	if cfg.JWT.Secret == "" {
		log.Fatal(errors.New("jwt secret is empty"), "JWT_SECRET must be set")
	}

	gin.SetMode(cfg.Server.Mode)
	middleware.ConfigureValidator(middleware.DefaultValidationConfig())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database.ToPostgresConfig())
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(cfg.Monitoring.Namespace, "api", registry)

	repos := postgres.NewRepositories(db)

	gateway, err := payment.New(cfg.Payment.ToPaymentConfig(), log, m)
	if err != nil {
		log.Fatal(err, "failed to initialize payment gateway")
	}
	log.Info("payment gateway ready", "provider", gateway.Name())

	events := event.NewEventService(repos.Outbox)
	gate := verification.NewService(repos.Tx, repos.Profiles, log)

	bookingSvc := booking.NewService(booking.Deps{
		Tx:        repos.Tx,
		Bookings:  repos.Bookings,
		Services:  repos.Services,
		Addresses: repos.Addresses,
		Ledger:    idempotency.NewService(repos.Idempotency, cfg.Idempotency.TTL),
		Gateway:   gateway,
		Events:    events,
		Currency:  cfg.Payment.Currency,
		Metrics:   m,
		Logger:    log,
	})
	jobSvc := job.NewService(job.Deps{
		Tx:          repos.Tx,
		Jobs:        repos.Jobs,
		Bookings:    repos.Bookings,
		Companies:   repos.Companies,
		Eligibility: gate,
		Events:      events,
		Metrics:     m,
		Logger:      log,
	})

	stripeWebhooks := strings.EqualFold(cfg.Payment.Provider, payment.ProviderStripe)
	handlers := router.Handlers{
		Health:   health.NewHandler(db),
		Bookings: bookingHandler.NewHandler(bookingSvc),
		Jobs:     jobHandler.NewHandler(jobSvc),
		Provider: providerHandler.NewHandler(gate),
		Admin:    adminHandler.NewHandler(gate),
		Webhooks: webhookHandler.NewHandler(bookingSvc, payment.NewWebhookVerifier(cfg.Payment.StripeWebhookSecret), stripeWebhooks, log),
	}
	if cfg.Monitoring.PrometheusEnabled {
		handlers.Metrics = promHandler.New(registry).Handler()
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(auth.NewJWTService(cfg.JWT.Secret), repos.Companies),
		handlers,
		log,
		m,
		router.RouterConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimiter: middleware.RateLimiterConfig{
				Rate:      rate.Limit(cfg.RateLimit.RequestsPerSecond),
				Burst:     cfg.RateLimit.Burst,
				ClientTTL: cfg.RateLimit.ClientTTL,
			},
			MetricsPath: cfg.Monitoring.MetricsPath,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down server")
	case err := <-errCh:
		log.Error(err, "server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
	}

	log.Info("server exited")
}
