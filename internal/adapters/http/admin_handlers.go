package http

import (
	"net/http"
	"strings"

	"gitlab.com/timkado/api/site-freshness-service/internal/application"
	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
)

// InvalidateCacheRequest selects what to drop: one key or every key under a prefix.
type InvalidateCacheRequest struct {
	Key    string `json:"key,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

// InvalidateCacheResponse reports how many entries a prefix invalidation removed.
type InvalidateCacheResponse struct {
	Removed int `json:"removed"`
}

// InvalidateCacheHandler serves POST /admin/cache/invalidate.
func InvalidateCacheHandler(cache *application.QueryCache, logger domain.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req InvalidateCacheRequest
		if !decodeBody(w, r, logger, &req) {
			return
		}
		key, prefix := strings.TrimSpace(req.Key), strings.TrimSpace(req.Prefix)

		var resp InvalidateCacheResponse
		switch {
		case key != "" && prefix == "":
			before := cache.Len()
			cache.Invalidate(key)
			resp.Removed = before - cache.Len()
		case prefix != "" && key == "":
			resp.Removed = cache.InvalidateByPrefix(prefix)
		default:
			domain.NewErrorResponse(domain.ErrBadRequest, "Invalid payload", "Exactly one of key or prefix is required.").WriteJSON(w, http.StatusBadRequest)
			return
		}
		logger.Info(r.Context(), "Cache invalidated by admin", "key", key, "prefix", prefix, "removed", resp.Removed)
		writeJSON(w, http.StatusOK, resp)
	}
}

// ClearCacheHandler serves DELETE /admin/cache.
func ClearCacheHandler(cache *application.QueryCache, logger domain.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cache.Clear()
		logger.Info(r.Context(), "Cache cleared by admin")
		w.WriteHeader(http.StatusNoContent)
	}
}

// UnreadResponse is the admin view of the badge counters.
type UnreadResponse struct {
	Counts domain.UnreadCounts                     `json:"counts"`
	States map[domain.Section]domain.CounterState `json:"states"`
	Total  int                                     `json:"total"`
}

func unreadResponse(agg *application.UnreadAggregator) UnreadResponse {
	counts := agg.Counts()
	return UnreadResponse{Counts: counts, States: agg.States(), Total: counts.Total()}
}

// UnreadCountsHandler serves GET /admin/unread.
func UnreadCountsHandler(agg *application.UnreadAggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, unreadResponse(agg))
	}
}

// RefreshUnreadHandler serves POST /admin/unread/refresh.
func RefreshUnreadHandler(agg *application.UnreadAggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agg.RefreshAll(r.Context())
		writeJSON(w, http.StatusOK, unreadResponse(agg))
	}
}

// MarkSectionReadHandler serves POST /admin/unread/{section}/read.
func MarkSectionReadHandler(agg *application.UnreadAggregator, logger domain.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		section, err := domain.ParseSection(r.PathValue("section"))
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		if err := agg.MarkSectionAsRead(r.Context(), section); err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, unreadResponse(agg))
	}
}

// NavigationRequest reports the admin console's active route.
type NavigationRequest struct {
	Path string `json:"path"`
}

// NavigationResponse tells whether visiting the route cleared a section.
type NavigationResponse struct {
	MarkedRead bool                `json:"markedRead"`
	Counts     domain.UnreadCounts `json:"counts"`
}

// NavigationHandler serves POST /admin/navigation.
func NavigationHandler(agg *application.UnreadAggregator, logger domain.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NavigationRequest
		if !decodeBody(w, r, logger, &req) {
			return
		}
		if strings.TrimSpace(req.Path) == "" {
			domain.NewErrorResponse(domain.ErrBadRequest, "Invalid payload", "path is required.").WriteJSON(w, http.StatusBadRequest)
			return
		}
		marked := agg.HandleRoute(r.Context(), req.Path)
		writeJSON(w, http.StatusOK, NavigationResponse{MarkedRead: marked, Counts: agg.Counts()})
	}
}
