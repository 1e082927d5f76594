// Command analytics starts the standalone analytics aggregation service.
//
// It consumes analysis events published by the server from Kafka, folds them
// into running statistics (outcomes, cache hit rate, latency percentiles, top
// hosts and terms), snapshots them to Postgres, and exposes:
//
//	GET /api/v1/analytics          current statistics
//	GET /api/v1/analytics/history  recent snapshots, newest first
//	GET /metrics                   Prometheus scrape endpoint
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/termlens/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 0, "override the HTTP port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalysisEvents, analytics.HandleEvent(agg))
	defer consumer.Close()

	go func() {
		if err := agg.Start(ctx, consumer); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.AnalysisEvents)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		stats := consumer.Stats()
		msg := fmt.Sprintf("handled=%d skipped=%d failed=%d", stats.Handled, stats.Skipped, stats.Failed)
		if stats.Failed > stats.Handled {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: msg}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: msg}
	})

	var (
		store         *aggregator.Store
		snapshotsDone chan struct{}
	)
	pg, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer pg.Close()
		store = aggregator.NewStore(pg, cfg.Postgres.RetainSnapshots)
		if err := resilience.WithTimeout(ctx, 10*time.Second, "ensure-schema", store.EnsureSchema); err != nil {
			slog.Error("failed to prepare analytics schema", "error", err)
			os.Exit(1)
		}
		snapshotsDone = make(chan struct{})
		go func() {
			defer close(snapshotsDone)
			store.Run(ctx, agg, cfg.Postgres.SnapshotEvery)
		}()
		checker.RegisterPing("postgres", true, pg.Ping)
	}

	analyticsHandler := analytics.NewHandler(agg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", historyHandler(store))
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler(prometheus.DefaultGatherer))

	var chain http.Handler = mux
	chain = middleware.Metrics(metrics.New())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// ListenAndServe returns as soon as Shutdown starts; in-flight handlers
	// must finish before the deferred closers run.
	<-shutdownDone

	if snapshotsDone != nil {
		<-snapshotsDone
	}
	slog.Info("analytics service stopped")
}

func historyHandler(store *aggregator.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if store == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"error": "snapshot store disabled"})
			return
		}
		limit := 20
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 500 {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"error": "limit must be between 1 and 500"})
				return
			}
			limit = n
		}
		snapshots, err := store.ListSnapshots(r.Context(), limit)
		if err != nil {
			slog.Error("listing snapshots failed", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "failed to list snapshots"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(snapshots)
	}
}
