package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NewMux routes /metrics to the metrics gathered by g and mounts each extra
// handler under its pattern.
func NewMux(g prometheus.Gatherer, extra map[string]http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler(g))
	for pattern, h := range extra {
		mux.Handle(pattern, h)
	}
	return mux
}

// StartServer serves NewMux on a dedicated port in the background and
// returns a function that shuts it down.
func StartServer(port int, g prometheus.Gatherer, extra map[string]http.Handler) (shutdown func(context.Context) error) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           NewMux(g, extra),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	log := slog.Default().With("component", "metrics-server")

	go func() {
		log.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server stopped", "error", err)
		}
	}()

	return func(ctx context.Context) error {
		err := server.Shutdown(ctx)
		if err != nil {
			log.Warn("metrics server shutdown", "error", err)
		}
		return err
	}
}
