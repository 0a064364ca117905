package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gitlab.com/timkado/api/site-freshness-service/internal/application"
	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
	"gitlab.com/timkado/api/site-freshness-service/internal/mocks"
)

const testAPIKey = "test-admin-key"

type testEnv struct {
	handler http.Handler
	content *mocks.MockContentStore
	unread  *mocks.MockUnreadStore
	feed    *mocks.MockChangeFeed
	agg     *application.UnreadAggregator
}

func newTestEnv(t *testing.T, readiness map[string]ReadinessCheck) *testEnv {
	t.Helper()
	logger := mocks.NewMockLogger()
	cache := application.NewQueryCache()
	content := mocks.NewMockContentStore()
	feed := mocks.NewMockChangeFeed()
	unread := mocks.NewMockUnreadStore(map[domain.Section]int{
		domain.SectionMessages:          3,
		domain.SectionTenderSubmissions: 2,
		domain.SectionCommercialOffers:  1,
	})
	routes, err := application.NewRouteTable(map[string]string{"/admin/messages": "messages"})
	if err != nil {
		t.Fatal(err)
	}
	agg := application.NewUnreadAggregator(logger, unread, feed, routes, application.AggregatorConfig{QueryTimeout: time.Second})
	t.Cleanup(agg.Stop)

	h := NewRouter(RouterDeps{
		Logger:      logger,
		Config:      mocks.NewMockConfigProvider(),
		Cache:       cache,
		Content:     application.NewContentService(logger, content, cache, time.Hour),
		Submissions: application.NewSubmissionService(logger, content, feed),
		Unread:      agg,
		Readiness:   readiness,
	})
	return &testEnv{handler: h, content: content, unread: unread, feed: feed, agg: agg}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if admin {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestContentRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/content/news", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	if rec := env.do(t, http.MethodGet, "/api/content/guestbook", nil, false); rec.Code != http.StatusNotFound {
		t.Errorf("unknown collection status = %d, want 404", rec.Code)
	}

	if rec := env.do(t, http.MethodPost, "/admin/content/news", ContentRequest{Title: "Depot opened"}, false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("create without key status = %d, want 401", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/admin/content/news", ContentRequest{Title: "Depot opened"}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.ContentItem
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	rec = env.do(t, http.MethodGet, "/api/content/news", nil, false)
	var items []domain.ContentItem
	_ = json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 1 || items[0].Title != "Depot opened" {
		t.Fatalf("list after create = %+v", items)
	}

	if rec := env.do(t, http.MethodPost, "/admin/content/news", ContentRequest{}, true); rec.Code != http.StatusBadRequest {
		t.Errorf("create without title status = %d, want 400", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/content/news/abc", nil, false); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/admin/content/news/999", nil, true); rec.Code != http.StatusNotFound {
		t.Errorf("delete missing status = %d, want 404", rec.Code)
	}
}

func TestSubmissionRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/submissions/commercial_offers", SubmissionRequest{
		Name: "Supplier", Email: "sales@supplier.example", Body: "Concrete at a discount",
	}, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if published := env.feed.Published(); len(published) != 1 || published[0].Section != domain.SectionCommercialOffers {
		t.Errorf("published = %+v", published)
	}

	if rec := env.do(t, http.MethodPost, "/api/submissions/guestbook", SubmissionRequest{Name: "a", Email: "a@b.c", Body: "x"}, false); rec.Code != http.StatusNotFound {
		t.Errorf("unknown section status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/submissions/messages", SubmissionRequest{Name: "a", Email: "bad", Body: "x"}, false); rec.Code != http.StatusBadRequest {
		t.Errorf("bad email status = %d, want 400", rec.Code)
	}
}

func TestUnreadRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/admin/unread/refresh", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d", rec.Code)
	}
	var resp UnreadResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 6 || resp.States[domain.SectionMessages].Status != domain.CounterKnown {
		t.Fatalf("refresh response = %+v", resp)
	}

	rec = env.do(t, http.MethodPost, "/admin/navigation", NavigationRequest{Path: "/admin/messages"}, true)
	var nav NavigationResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &nav)
	if !nav.MarkedRead || nav.Counts.Messages != 0 {
		t.Errorf("navigation response = %+v", nav)
	}

	rec = env.do(t, http.MethodPost, "/admin/unread/tender_submissions/read", nil, true)
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec.Code != http.StatusOK || resp.Counts.TenderSubmissions != 0 {
		t.Errorf("mark read status = %d, counts = %+v", rec.Code, resp.Counts)
	}

	if rec := env.do(t, http.MethodPost, "/admin/unread/guestbook/read", nil, true); rec.Code != http.StatusNotFound {
		t.Errorf("unknown section status = %d, want 404", rec.Code)
	}

	env.unread.FailMark(domain.SectionCommercialOffers, mocks.ErrMockBackend)
	if rec := env.do(t, http.MethodPost, "/admin/unread/commercial_offers/read", nil, true); rec.Code != http.StatusBadGateway {
		t.Errorf("failed mark status = %d, want 502", rec.Code)
	}

	if rec := env.do(t, http.MethodGet, "/admin/unread", nil, false); rec.Code != http.StatusUnauthorized {
		t.Errorf("unread without key status = %d, want 401", rec.Code)
	}
}

func TestCacheRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/api/content/projects", nil, false)
	env.do(t, http.MethodGet, "/api/content/services", nil, false)

	rec := env.do(t, http.MethodPost, "/admin/cache/invalidate", InvalidateCacheRequest{Prefix: "content:projects"}, true)
	var resp InvalidateCacheResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec.Code != http.StatusOK || resp.Removed != 1 {
		t.Errorf("prefix invalidate = %d, %+v", rec.Code, resp)
	}

	if rec := env.do(t, http.MethodPost, "/admin/cache/invalidate", InvalidateCacheRequest{Key: "a", Prefix: "b"}, true); rec.Code != http.StatusBadRequest {
		t.Errorf("ambiguous invalidate status = %d, want 400", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/admin/cache", nil, true); rec.Code != http.StatusNoContent {
		t.Errorf("clear status = %d, want 204", rec.Code)
	}
}

func TestReadyRoute(t *testing.T) {
	env := newTestEnv(t, map[string]ReadinessCheck{
		"sqlite": func(ctx context.Context) error { return nil },
		"nats":   func(ctx context.Context) error { return errors.New("disconnected") },
	})

	rec := env.do(t, http.MethodGet, "/ready", nil, false)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var results map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &results)
	if results["sqlite"] != "ok" || results["nats"] != "disconnected" {
		t.Errorf("results = %+v", results)
	}

	if rec := env.do(t, http.MethodGet, "/health", nil, false); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}
