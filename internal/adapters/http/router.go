package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gitlab.com/timkado/api/site-freshness-service/internal/adapters/config"
	"gitlab.com/timkado/api/site-freshness-service/internal/adapters/middleware"
	"gitlab.com/timkado/api/site-freshness-service/internal/application"
	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
)

// RouterDeps are the collaborators behind the HTTP surface.
type RouterDeps struct {
	Logger      domain.Logger
	Config      config.Provider
	Cache       *application.QueryCache
	Content     *application.ContentService
	Submissions *application.SubmissionService
	Unread      *application.UnreadAggregator
	BadgeSocket http.Handler
	Readiness   map[string]ReadinessCheck
}

// NewRouter builds the service mux. Admin routes sit behind the API key.
func NewRouter(d RouterDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", HealthHandler())
	mux.HandleFunc("GET /ready", ReadyHandler(d.Logger, d.Readiness))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/content/{collection}", ListContentHandler(d.Content, d.Logger))
	mux.HandleFunc("GET /api/content/{collection}/{id}", GetContentHandler(d.Content, d.Logger))
	mux.HandleFunc("POST /api/submissions/{section}", SubmitHandler(d.Submissions, d.Logger))

	admin := middleware.AdminAPIKeyAuthMiddleware(d.Config, d.Logger)
	mux.Handle("POST /admin/content/{collection}", admin(CreateContentHandler(d.Content, d.Logger)))
	mux.Handle("PUT /admin/content/{collection}/{id}", admin(UpdateContentHandler(d.Content, d.Logger)))
	mux.Handle("DELETE /admin/content/{collection}/{id}", admin(DeleteContentHandler(d.Content, d.Logger)))
	mux.Handle("POST /admin/cache/invalidate", admin(InvalidateCacheHandler(d.Cache, d.Logger)))
	mux.Handle("DELETE /admin/cache", admin(ClearCacheHandler(d.Cache, d.Logger)))
	mux.Handle("GET /admin/unread", admin(UnreadCountsHandler(d.Unread)))
	mux.Handle("POST /admin/unread/refresh", admin(RefreshUnreadHandler(d.Unread)))
	mux.Handle("POST /admin/unread/{section}/read", admin(MarkSectionReadHandler(d.Unread, d.Logger)))
	mux.Handle("POST /admin/navigation", admin(NavigationHandler(d.Unread, d.Logger)))
	if d.BadgeSocket != nil {
		mux.Handle("GET /admin/ws/unread", admin(d.BadgeSocket))
	}

	return middleware.RequestIDMiddleware(middleware.AccessLogMiddleware(d.Logger)(mux))
}
