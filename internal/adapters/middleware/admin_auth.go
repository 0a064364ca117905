package middleware

import (
	"crypto/subtle"
	"net/http"

	"gitlab.com/timkado/api/site-freshness-service/internal/adapters/config"
	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
)

const (
	apiKeyHeaderName = "X-API-Key"
	apiKeyQueryParam = "x-api-key" // browsers cannot set headers on websocket upgrades
)

// AdminAPIKeyAuthMiddleware guards the admin routes with the X-API-Key header.
// The key is read from config on every request so a reload takes effect at once.
func AdminAPIKeyAuthMiddleware(cfgProvider config.Provider, logger domain.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(apiKeyHeaderName)
			if key == "" {
				key = r.URL.Query().Get(apiKeyQueryParam)
			}

			cfg := cfgProvider.Get()
			if cfg == nil || cfg.Auth.AdminAPIKey == "" {
				logger.Error(r.Context(), "Admin auth failed: admin API key not configured", "path", r.URL.Path)
				domain.NewErrorResponse(domain.ErrInternal, "Server configuration error", "Admin auth cannot be performed.").
					WriteJSON(w, http.StatusInternalServerError)
				return
			}

			if key == "" {
				logger.Warn(r.Context(), "Admin auth failed: API key missing", "path", r.URL.Path)
				domain.NewErrorResponse(domain.ErrInvalidAPIKey, "Admin API key is required", "Provide the key in the X-API-Key header.").
					WriteJSON(w, http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.Auth.AdminAPIKey)) != 1 {
				logger.Warn(r.Context(), "Admin auth failed: invalid API key", "path", r.URL.Path)
				domain.NewErrorResponse(domain.ErrInvalidAPIKey, "Invalid admin API key", "").
					WriteJSON(w, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
