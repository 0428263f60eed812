// Package middleware provides HTTP middleware for request logging and
// metrics.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmynk/tally/internal/metrics"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging logs every request with method, path, status, and duration.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			duration := time.Since(start).Milliseconds()
			if rec.status >= 500 {
				logger.Error("request failed",
					"method", r.Method, "path", r.URL.Path,
					"status", rec.status, "duration_ms", duration)
			} else if rec.status >= 400 {
				logger.Warn("request rejected",
					"method", r.Method, "path", r.URL.Path,
					"status", rec.status, "duration_ms", duration)
			} else {
				logger.Info("request ok",
					"method", r.Method, "path", r.URL.Path,
					"status", rec.status, "duration_ms", duration)
			}
		})
	}
}

// Metrics records Prometheus counters and latency per route pattern. It runs
// after routing so the chi route pattern is available as a low-cardinality
// label.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
