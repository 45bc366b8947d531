package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StartListener serves the Prometheus scrape endpoint on addr in a background
// goroutine. A batch sweep is short-lived, so the listener has no shutdown
// hook; it dies with the process.
func StartListener(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		logger.Info("metrics listener started", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics listener stopped", "error", err)
		}
	}()
}
