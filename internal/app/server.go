package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/deusflow/newsai/internal/metrics"
)

// NewMonitoringHandler serves /health as JSON and /metrics in the Prometheus
// exposition format.
func NewMonitoringHandler(m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		healthHandler(w, r, m)
	})
	mux.Handle("GET /metrics", m.Handler())
	return mux
}

func healthHandler(w http.ResponseWriter, _ *http.Request, m *metrics.Metrics) {
	stats := m.GetStats()

	status := "ok"
	code := http.StatusOK
	if !m.Healthy() {
		status = "error"
		code = http.StatusServiceUnavailable
	}

	response := map[string]any{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
		"runs":       stats["runs"],
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

// ServeMonitoring listens on addr until ctx is cancelled.
func ServeMonitoring(ctx context.Context, addr string, m *metrics.Metrics, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMonitoringHandler(m),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("monitoring server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
