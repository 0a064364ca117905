package contextkeys

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for storing and retrieving a request ID.
	RequestIDKey contextKey = "request_id"

	// SectionKey carries the unread section an operation works on.
	SectionKey contextKey = "section"

	// RouteKey carries the admin console route that triggered an operation.
	RouteKey contextKey = "route"

	// CollectionKey carries the content collection of a cached read or admin write.
	CollectionKey contextKey = "collection"
)

// String makes contextKey satisfy fmt.Stringer to help with debugging/logging of keys themselves.
func (c contextKey) String() string {
	return string(c)
}

// LoggedKeys are copied from the context onto every log line when present.
var LoggedKeys = []contextKey{RequestIDKey, SectionKey, RouteKey, CollectionKey}
