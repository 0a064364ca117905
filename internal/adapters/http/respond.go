package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps application errors onto the HTTP error envelope.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger domain.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCollection), errors.Is(err, domain.ErrUnknownSection), errors.Is(err, domain.ErrNotFound):
		domain.NewErrorResponse(domain.ErrNotFoundCode, "Not found", err.Error()).WriteJSON(w, http.StatusNotFound)
	case errors.Is(err, domain.ErrValidation):
		domain.NewErrorResponse(domain.ErrBadRequest, "Invalid request", err.Error()).WriteJSON(w, http.StatusBadRequest)
	default:
		logger.Error(r.Context(), "Backend call failed", "path", r.URL.Path, "error", err.Error())
		domain.NewErrorResponse(domain.ErrUpstreamFailure, "Backend unavailable", "").WriteJSON(w, http.StatusBadGateway)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, logger domain.Logger, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		logger.Warn(r.Context(), "Failed to decode request payload", "path", r.URL.Path, "error", err.Error())
		domain.NewErrorResponse(domain.ErrBadRequest, "Invalid request payload", err.Error()).WriteJSON(w, http.StatusBadRequest)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		domain.NewErrorResponse(domain.ErrBadRequest, "Invalid id", "id must be a positive integer.").WriteJSON(w, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
