package domain

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorCode represents a specific error condition.
type ErrorCode string

const (
	ErrInvalidAPIKey       ErrorCode = "InvalidAPIKey"       // HTTP 401
	ErrBadRequest          ErrorCode = "BadRequest"          // HTTP 400
	ErrNotFoundCode        ErrorCode = "NotFound"            // HTTP 404
	ErrMethodNotAllowed    ErrorCode = "MethodNotAllowed"    // HTTP 405
	ErrSubscriptionFailure ErrorCode = "SubscriptionFailure" // Internal, change feed could not be established
	ErrUpstreamFailure     ErrorCode = "UpstreamFailure"     // HTTP 502, backend store rejected the call
	ErrInternal            ErrorCode = "InternalServerError" // HTTP 500, WS Close 1011
)

var (
	// ErrUnknownSection is returned when a section name is not one of the monitored collections.
	ErrUnknownSection = errors.New("unknown section")

	// ErrInvalidCollection is returned for content collections the site does not publish.
	ErrInvalidCollection = errors.New("invalid content collection")

	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation wraps rejected input.
	ErrValidation = errors.New("validation failed")
)

// ErrorResponse is the standard error format returned to clients via WebSocket or HTTP JSON.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// NewErrorResponse creates a new ErrorResponse struct.
func NewErrorResponse(code ErrorCode, message string, details string) ErrorResponse {
	return ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// WriteJSON sends an ErrorResponse as JSON with the given HTTP status code.
func (er ErrorResponse) WriteJSON(w http.ResponseWriter, httpStatusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	json.NewEncoder(w).Encode(er) // Best effort, error from Encode is not typically handled here.
}
