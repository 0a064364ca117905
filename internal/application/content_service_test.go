package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
	"gitlab.com/timkado/api/site-freshness-service/internal/mocks"
)

func newTestContentService(t *testing.T) (*ContentService, *mocks.MockContentStore, *QueryCache, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	cache := NewQueryCache(WithClock(clock.Now))
	store := mocks.NewMockContentStore()
	return NewContentService(mocks.NewMockLogger(), store, cache, time.Hour), store, cache, clock
}

func TestContentService_ListIsCachedAndSeededOnce(t *testing.T) {
	svc, store, _, clock := newTestContentService(t)
	ctx := context.Background()

	if _, err := store.CreateContent(ctx, domain.ContentItem{Collection: "vacancies", Title: "Site engineer"}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		items, err := svc.List(ctx, "vacancies")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("items = %d, want 1", len(items))
		}
	}
	if n := atomic.LoadInt64(&store.ListCalls); n != 1 {
		t.Errorf("list calls = %d, want 1", n)
	}
	if n := atomic.LoadInt64(&store.EnsureCalls); n != 1 {
		t.Errorf("seed calls = %d, want 1", n)
	}

	clock.Advance(61 * time.Minute)
	if _, err := svc.List(ctx, "vacancies"); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt64(&store.ListCalls); n != 2 {
		t.Errorf("list calls after ttl = %d, want 2", n)
	}
	if n := atomic.LoadInt64(&store.EnsureCalls); n != 1 {
		t.Errorf("seeding repeated after ttl, calls = %d", n)
	}
}

func TestContentService_MutationsInvalidateCollection(t *testing.T) {
	svc, _, cache, _ := newTestContentService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.ContentItem{Collection: "news", Title: "Bridge opened"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.List(ctx, "news"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(ctx, "news", created.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.List(ctx, "projects"); err != nil {
		t.Fatal(err)
	}
	if cache.Len() != 3 {
		t.Fatalf("cache len = %d, want 3", cache.Len())
	}

	created.Title = "Bridge opened ahead of schedule"
	if _, err := svc.Update(ctx, created); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if cache.Len() != 1 {
		t.Fatalf("cache len after update = %d, want 1", cache.Len())
	}

	got, err := svc.Get(ctx, "news", created.ID)
	if err != nil || got.Title != created.Title {
		t.Fatalf("Get after update = %+v, %v", got, err)
	}

	if err := svc.Delete(ctx, "news", created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, "news", created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get after delete err = %v, want ErrNotFound", err)
	}
}

func TestContentService_Validation(t *testing.T) {
	svc, _, _, _ := newTestContentService(t)
	ctx := context.Background()

	if _, err := svc.List(ctx, "guestbook"); !errors.Is(err, domain.ErrInvalidCollection) {
		t.Errorf("List(guestbook) err = %v", err)
	}
	if _, err := svc.Create(ctx, domain.ContentItem{Collection: "news"}); !errors.Is(err, domain.ErrValidation) {
		t.Error("Create without title should fail")
	}
	if err := svc.Delete(ctx, "news", 999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Delete missing err = %v", err)
	}
}

func TestContentService_ListErrorPropagates(t *testing.T) {
	svc, store, cache, _ := newTestContentService(t)
	store.FailList(mocks.ErrMockBackend)

	if _, err := svc.List(context.Background(), "services"); !errors.Is(err, mocks.ErrMockBackend) {
		t.Fatalf("err = %v, want ErrMockBackend", err)
	}
	if cache.Len() != 0 {
		t.Error("failed list was cached")
	}
}
