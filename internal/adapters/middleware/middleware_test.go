package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"gitlab.com/timkado/api/site-freshness-service/internal/mocks"
	"gitlab.com/timkado/api/site-freshness-service/pkg/contextkeys"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(contextkeys.RequestIDKey).(string)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get(XRequestIDHeader) != seen {
		t.Fatalf("generated id %q, header %q", seen, rec.Header().Get(XRequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(XRequestIDHeader, "req-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "req-123" {
		t.Errorf("propagated id = %q, want req-123", seen)
	}
}

func TestAdminAPIKeyAuthMiddleware(t *testing.T) {
	cfg := mocks.NewMockConfigProvider()
	h := AdminAPIKeyAuthMiddleware(cfg, mocks.NewMockLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing key", "", "", http.StatusUnauthorized},
		{"wrong key", "nope", "", http.StatusUnauthorized},
		{"header key", "test-admin-key", "", http.StatusNoContent},
		{"query key", "", "test-admin-key", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/admin/unread"
			if tt.query != "" {
				target += "?x-api-key=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	unset := mocks.NewMockConfigProvider()
	c := *unset.Get()
	c.Auth.AdminAPIKey = ""
	unset.UpdateConfig(&c)
	rec := httptest.NewRecorder()
	AdminAPIKeyAuthMiddleware(unset, mocks.NewMockLogger())(http.NotFoundHandler()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/unread", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("unconfigured key status = %d, want 500", rec.Code)
	}
}
