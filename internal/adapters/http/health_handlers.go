package http

import (
	"context"
	"net/http"
	"time"

	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
)

// HealthHandler serves GET /health. It only reports that the process is up.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessCheck probes one dependency.
type ReadinessCheck func(ctx context.Context) error

// ReadyHandler serves GET /ready. Every check must pass within two seconds.
func ReadyHandler(logger domain.Logger, checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn(ctx, "Readiness check failed", "dependency", name, "error", err.Error())
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		writeJSON(w, status, results)
	}
}
