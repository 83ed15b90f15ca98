package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cleanly/booking-api/config"
	"github.com/cleanly/booking-api/internal/repository/postgres"
	"github.com/cleanly/booking-api/internal/service/idempotency"
	cleanup "github.com/cleanly/booking-api/internal/worker"
	"github.com/cleanly/booking-api/pkg/logger"
	"github.com/cleanly/booking-api/pkg/messaging/redis"
	"github.com/cleanly/booking-api/pkg/metrics"
	"github.com/cleanly/booking-api/pkg/worker"
)

const healthAddr = ":8081"

func setupHealthCheck(db *sqlx.DB, registry *prometheus.Registry, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              healthAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "health check server failed")
		}
	}()
	return srv
}

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
	}).WithFields(map[string]interface{}{"component": "worker"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database.ToPostgresConfig())
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), log)
	if err != nil {
		log.Fatal(err, "failed to create Redis broker")
	}
	defer broker.Close()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(cfg.Monitoring.Namespace, "worker", registry)
	repos := postgres.NewRepositories(db)

	processor := worker.NewOutboxProcessor(
		repos.Tx,
		repos.Outbox,
		broker,
		cfg.Outbox.ToWorkerConfig(),
		log,
		m,
	)
	cleaner := cleanup.NewCleanupWorker(
		idempotency.NewService(repos.Idempotency, cfg.Idempotency.TTL),
		repos.Outbox,
		cfg.Outbox.Retention,
		cfg.Idempotency.CleanupInterval,
		log,
	)

	health := setupHealthCheck(db, registry, log)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleaner.Start(ctx)
	}()

	<-ctx.Done()
	log.Info("shutting down")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "health check server forced to shutdown")
	}
	log.Info("worker exited")
}
