// Command server runs the term-frequency HTTP API.
//
// It fetches web pages on request, strips their markup, and returns the
// ranked term table. Fetched pages are cached in memory and, when enabled,
// in Redis. Analysis events feed an in-process aggregator and are published
// to Kafka for the standalone analytics service.
//
// Usage:
//
//	go run ./cmd/server [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/termlens/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/analyzer"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/analyzer/cache"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/analyzer/handler"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/fetch"
	"github.com/Adithya-Monish-Kumar-K/termlens/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/termlens/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting termlens server", "port", cfg.Server.Port)

	defaults, err := cfg.Analysis.Options()
	if err != nil {
		slog.Error("invalid analysis defaults", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	checker := health.NewChecker()

	breaker := resilience.NewCircuitBreaker("fetch", resilience.CircuitBreakerConfig{
		FailureThreshold:    cfg.Fetch.BreakerThreshold,
		ResetTimeout:        cfg.Fetch.BreakerReset,
		HalfOpenMaxRequests: 1,
		OnStateChange: func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
		IsFailure: func(err error) bool {
			var fe *fetch.Error
			return errors.As(err, &fe) && fe.Temporary()
		},
	})
	checker.Register("fetch-breaker", func(ctx context.Context) health.ComponentHealth {
		if breaker.GetState() == resilience.StateOpen {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit open"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	fetcher := fetch.New(cfg.Fetch, breaker)

	var remote cache.Store
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, using local page cache only", "error", err)
		} else {
			defer redisClient.Close()
			remote = redisClient
			checker.RegisterPing("redis", false, redisClient.Ping)
		}
	}
	pageCache := cache.New(remote, cfg.Redis)
	slog.Info("page cache enabled",
		"remote", pageCache.Remote(),
		"ttl", cfg.Redis.CacheTTL,
		"local_items", cfg.Redis.LocalItems,
	)

	agg := analytics.NewAggregator()
	trackers := analytics.Trackers{agg}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalysisEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 10000, 100, time.Second)
		// Runs until the deferred Close so events from draining requests are
		// still published.
		collector.Start(context.WithoutCancel(ctx))
		defer collector.Close()
		trackers = append(trackers, collector)
		checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
			stats := producer.Stats()
			msg := fmt.Sprintf("published=%d dropped=%d failed=%d", stats.Published, stats.Dropped, stats.Failed)
			if stats.Failed > stats.Published {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: msg}
			}
			return health.ComponentHealth{Status: health.StatusUp, Message: msg}
		})
		slog.Info("analytics collector started", "topic", producer.Topic())
	}

	var snapshotsDone chan struct{}
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
		} else {
			defer pg.Close()
			store := aggregator.NewStore(pg, cfg.Postgres.RetainSnapshots)
			if err := resilience.WithTimeout(ctx, 10*time.Second, "ensure-schema", store.EnsureSchema); err != nil {
				slog.Error("failed to prepare analytics schema", "error", err)
			} else {
				snapshotsDone = make(chan struct{})
				go func() {
					defer close(snapshotsDone)
					store.Run(ctx, agg, cfg.Postgres.SnapshotEvery)
				}()
			}
			checker.RegisterPing("postgres", false, pg.Ping)
		}
	}

	svc := analyzer.New(fetcher,
		analyzer.WithCache(pageCache),
		analyzer.WithTracker(trackers),
		analyzer.WithMetrics(m),
		analyzer.WithSpanLogging(cfg.Tracing.Enabled),
	)
	analyzeHandler := handler.New(svc, pageCache, defaults, cfg.Analysis.MaxTopN)
	analyticsHandler := analytics.NewHandler(agg)

	mux := http.NewServeMux()
	analyzeHandler.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, 0)
		go limiter.RunCleanup(time.Minute, ctx.Done())
		chain = middleware.RateLimit(limiter, m)(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer, map[string]http.Handler{
			"GET /health/live": checker.LiveHandler(),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

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

	slog.Info("termlens server listening", "addr", server.Addr)
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
	slog.Info("termlens server stopped")
}
