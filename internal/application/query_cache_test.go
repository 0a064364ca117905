package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingFetch returns value and counts its calls.
func countingFetch[T any](calls *int64, value T) FetchFunc[T] {
	return func(ctx context.Context) (T, error) {
		atomic.AddInt64(calls, 1)
		return value, nil
	}
}

func TestGetCachedData_ServesFreshEntryAndRefetchesAfterTTL(t *testing.T) {
	clock := newFakeClock()
	cache := NewQueryCache(WithClock(clock.Now))
	ctx := context.Background()
	var calls int64

	v, err := GetCachedData(ctx, cache, "content:vacancies", countingFetch(&calls, "A"), 60*time.Minute)
	if err != nil || v != "A" {
		t.Fatalf("first read = %q, %v; want A, nil", v, err)
	}

	clock.Advance(30 * time.Minute)
	v, err = GetCachedData(ctx, cache, "content:vacancies", countingFetch(&calls, "B"), 60*time.Minute)
	if err != nil || v != "A" {
		t.Fatalf("read at 30m = %q, %v; want cached A", v, err)
	}
	if calls != 1 {
		t.Fatalf("fetch calls at 30m = %d, want 1", calls)
	}

	clock.Advance(31 * time.Minute)
	v, err = GetCachedData(ctx, cache, "content:vacancies", countingFetch(&calls, "B"), 60*time.Minute)
	if err != nil || v != "B" {
		t.Fatalf("read at 61m = %q, %v; want refetched B", v, err)
	}
	if calls != 2 {
		t.Fatalf("fetch calls at 61m = %d, want 2", calls)
	}
}

func TestGetCachedData_TTLBoundaryIsExclusive(t *testing.T) {
	clock := newFakeClock()
	cache := NewQueryCache(WithClock(clock.Now))
	ctx := context.Background()
	var calls int64

	_, _ = GetCachedData(ctx, cache, "k", countingFetch(&calls, 1), time.Minute)
	clock.Advance(time.Minute)
	_, _ = GetCachedData(ctx, cache, "k", countingFetch(&calls, 2), time.Minute)

	if calls != 2 {
		t.Errorf("entry exactly ttl old should be refetched, calls = %d", calls)
	}
}

func TestGetCachedData_TTLIsPerRead(t *testing.T) {
	clock := newFakeClock()
	cache := NewQueryCache(WithClock(clock.Now))
	ctx := context.Background()
	var calls int64

	_, _ = GetCachedData(ctx, cache, "k", countingFetch(&calls, "first"), time.Hour)
	clock.Advance(10 * time.Minute)

	tests := []struct {
		name      string
		ttl       time.Duration
		wantCalls int64
	}{
		{name: "long ttl still fresh", ttl: time.Hour, wantCalls: 1},
		{name: "short ttl sees stale entry", ttl: 5 * time.Minute, wantCalls: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GetCachedData(ctx, cache, "k", countingFetch(&calls, "second"), tt.ttl)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := atomic.LoadInt64(&calls); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestGetCachedData_DefaultTTL(t *testing.T) {
	clock := newFakeClock()
	cache := NewQueryCache(WithClock(clock.Now), WithDefaultTTL(10*time.Minute))
	ctx := context.Background()
	var calls int64

	_, _ = GetCachedData(ctx, cache, "k", countingFetch(&calls, 1), 0)
	clock.Advance(9 * time.Minute)
	_, _ = GetCachedData(ctx, cache, "k", countingFetch(&calls, 1), -1)
	if calls != 1 {
		t.Fatalf("calls before default ttl = %d, want 1", calls)
	}
	clock.Advance(time.Minute)
	_, _ = GetCachedData(ctx, cache, "k", countingFetch(&calls, 1), 0)
	if calls != 2 {
		t.Fatalf("calls after default ttl = %d, want 2", calls)
	}
}

func TestGetCachedData_FetchErrorIsNotCached(t *testing.T) {
	cache := NewQueryCache()
	ctx := context.Background()
	boom := errors.New("backend unavailable")

	_, err := GetCachedData(ctx, cache, "k", func(ctx context.Context) (string, error) {
		return "", boom
	}, time.Hour)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if cache.Len() != 0 {
		t.Fatalf("failed fetch stored an entry")
	}

	var calls int64
	v, err := GetCachedData(ctx, cache, "k", countingFetch(&calls, "ok"), time.Hour)
	if err != nil || v != "ok" || calls != 1 {
		t.Fatalf("retry after failure = %q, %v (calls %d)", v, err, calls)
	}
}

func TestGetCachedData_StaleEntryNotServedOnFailure(t *testing.T) {
	clock := newFakeClock()
	cache := NewQueryCache(WithClock(clock.Now))
	ctx := context.Background()
	var calls int64

	_, _ = GetCachedData(ctx, cache, "k", countingFetch(&calls, "old"), time.Minute)
	clock.Advance(2 * time.Minute)

	v, err := GetCachedData(ctx, cache, "k", func(ctx context.Context) (string, error) {
		return "", errors.New("down")
	}, time.Minute)
	if err == nil {
		t.Fatal("expected error")
	}
	if v != "" {
		t.Errorf("stale value %q served on failure", v)
	}
}

func TestGetCachedData_TypeMismatchRefetches(t *testing.T) {
	cache := NewQueryCache()
	ctx := context.Background()
	var calls int64

	_, _ = GetCachedData(ctx, cache, "k", countingFetch(&calls, 42), time.Hour)
	v, err := GetCachedData(ctx, cache, "k", countingFetch(&calls, "text"), time.Hour)
	if err != nil || v != "text" {
		t.Fatalf("got %q, %v", v, err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestGetCachedData_SingleFlight(t *testing.T) {
	cache := NewQueryCache()
	ctx := context.Background()

	var calls int64
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		if atomic.AddInt64(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return "shared", nil
	}

	const readers = 10
	results := make([]string, readers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = GetCachedData(ctx, cache, "k", fetch, time.Hour)
	}()
	<-started

	for i := 1; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = GetCachedData(ctx, cache, "k", fetch, time.Hour)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}
	for i, r := range results {
		if r != "shared" {
			t.Errorf("reader %d got %q", i, r)
		}
	}
}

func TestGetCachedData_InvalidateDuringFetchDropsResult(t *testing.T) {
	cache := NewQueryCache()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan string)
	go func() {
		v, _ := GetCachedData(ctx, cache, "content:news", func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "before-edit", nil
		}, time.Hour)
		done <- v
	}()

	<-started
	cache.InvalidateByPrefix("content:news")
	close(release)

	if v := <-done; v != "before-edit" {
		t.Fatalf("in-flight caller got %q", v)
	}
	if cache.Len() != 0 {
		t.Fatal("result of a fetch that raced an invalidation was stored")
	}

	var calls int64
	v, _ := GetCachedData(ctx, cache, "content:news", countingFetch(&calls, "after-edit"), time.Hour)
	if v != "after-edit" || calls != 1 {
		t.Errorf("next read = %q (calls %d), want fresh fetch", v, calls)
	}
}

func TestQueryCache_InvalidateByPrefix(t *testing.T) {
	cache := NewQueryCache()
	ctx := context.Background()
	var calls int64

	for _, key := range []string{
		QueryKeyContentList("news"),
		QueryKeyContentItem("news", 1),
		QueryKeyContentItem("news", 2),
		QueryKeyContentList("projects"),
	} {
		_, _ = GetCachedData(ctx, cache, key, countingFetch(&calls, key), time.Hour)
	}

	cache.Invalidate(QueryKeyContentList("news"))
	removed := cache.InvalidateByPrefix(QueryKeyContentItemPrefix("news"))
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if cache.Len() != 1 {
		t.Fatalf("len = %d, want 1", cache.Len())
	}

	before := calls
	_, _ = GetCachedData(ctx, cache, QueryKeyContentList("projects"), countingFetch(&calls, "x"), time.Hour)
	if calls != before {
		t.Error("unrelated key was dropped")
	}
	_, _ = GetCachedData(ctx, cache, QueryKeyContentList("news"), countingFetch(&calls, "x"), time.Hour)
	if calls != before+1 {
		t.Error("invalidated key was still served")
	}
}

func TestQueryKeyContentItemPrefix_StaysInsideCollection(t *testing.T) {
	prefix := QueryKeyContentItemPrefix("news")
	tests := []struct {
		key  string
		want bool
	}{
		{QueryKeyContentItem("news", 7), true},
		{QueryKeyContentList("news"), false},
		{QueryKeyContentList("newsletter"), false},
		{QueryKeyContentItem("newsletter", 7), false},
	}
	for _, tt := range tests {
		if got := strings.HasPrefix(tt.key, prefix); got != tt.want {
			t.Errorf("HasPrefix(%q, %q) = %v, want %v", tt.key, prefix, got, tt.want)
		}
	}
}

func TestGetCachedData_UnrelatedInvalidationKeepsInFlightResult(t *testing.T) {
	cache := NewQueryCache()
	ctx := context.Background()

	for _, invalidate := range []func(){
		func() { cache.Invalidate("some-absent-key") },
		func() { cache.Invalidate(QueryKeyContentList("projects")) },
		func() { cache.InvalidateByPrefix(QueryKeyContentItemPrefix("projects")) },
	} {
		cache.Clear()
		started := make(chan struct{})
		release := make(chan struct{})
		done := make(chan error)
		go func() {
			_, err := GetCachedData(ctx, cache, QueryKeyContentList("vacancies"), func(ctx context.Context) (string, error) {
				close(started)
				<-release
				return "rows", nil
			}, time.Hour)
			done <- err
		}()

		<-started
		invalidate()
		close(release)
		if err := <-done; err != nil {
			t.Fatalf("fetch: %v", err)
		}

		var calls int64
		v, _ := GetCachedData(ctx, cache, QueryKeyContentList("vacancies"), countingFetch(&calls, "refetched"), time.Hour)
		if v != "rows" || calls != 0 {
			t.Errorf("next read = %q with %d fetches, want stored rows", v, calls)
		}
	}
}

func TestGetCachedData_LeaderCancellationDoesNotFailFollowers(t *testing.T) {
	cache := NewQueryCache()

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int64
	fetch := func(ctx context.Context) (string, error) {
		if atomic.AddInt64(&calls, 1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return "shared", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error)
	go func() {
		_, err := GetCachedData(leaderCtx, cache, "k", fetch, time.Hour)
		leaderErr <- err
	}()
	<-started

	type result struct {
		v   string
		err error
	}
	follower := make(chan result)
	go func() {
		v, err := GetCachedData(context.Background(), cache, "k", fetch, time.Hour)
		follower <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("leader err = %v, want context.Canceled", err)
	}
	close(release)

	r := <-follower
	if r.err != nil || r.v != "shared" {
		t.Fatalf("follower = %q, %v; want shared, nil", r.v, r.err)
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}
	if cache.Len() != 1 {
		t.Error("shared result was not stored")
	}
}

func TestGetCachedData_SharedFetchIsBounded(t *testing.T) {
	cache := NewQueryCache(WithFetchTimeout(20 * time.Millisecond))

	_, err := GetCachedData(context.Background(), cache, "k", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, time.Hour)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestQueryCache_InvalidateAndClear(t *testing.T) {
	cache := NewQueryCache()
	ctx := context.Background()
	var calls int64

	_, _ = GetCachedData(ctx, cache, "a", countingFetch(&calls, 1), time.Hour)
	_, _ = GetCachedData(ctx, cache, "b", countingFetch(&calls, 2), time.Hour)

	cache.Invalidate("missing")
	cache.Invalidate("a")
	if cache.Len() != 1 {
		t.Fatalf("len after Invalidate = %d, want 1", cache.Len())
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Fatalf("len after Clear = %d, want 0", cache.Len())
	}
}

func TestQueryCache_NeedsSeedingLatch(t *testing.T) {
	cache := NewQueryCache()

	if !cache.NeedsSeeding("vacancies") {
		t.Fatal("first call should report true")
	}
	for i := 0; i < 3; i++ {
		if cache.NeedsSeeding("vacancies") {
			t.Fatalf("call %d reported true again", i+2)
		}
	}
	if !cache.NeedsSeeding("projects") {
		t.Error("latch is per seed type")
	}

	cache.Clear()
	if cache.NeedsSeeding("vacancies") {
		t.Error("Clear must not reset the latch")
	}
}

func TestQueryCache_NeedsSeedingConcurrent(t *testing.T) {
	cache := NewQueryCache()
	var trues int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cache.NeedsSeeding("services") {
				atomic.AddInt64(&trues, 1)
			}
		}()
	}
	wg.Wait()
	if trues != 1 {
		t.Errorf("latch opened %d times, want 1", trues)
	}
}

func BenchmarkGetCachedData_Hit(b *testing.B) {
	cache := NewQueryCache()
	ctx := context.Background()
	fetch := func(ctx context.Context) ([]int, error) { return []int{1, 2, 3}, nil }
	_, _ = GetCachedData(ctx, cache, "bench", fetch, time.Hour)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = GetCachedData(ctx, cache, "bench", fetch, time.Hour)
		}
	})
}
