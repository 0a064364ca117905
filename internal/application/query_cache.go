package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"gitlab.com/timkado/api/site-freshness-service/internal/adapters/metrics"
)

// DefaultCacheTTL applies when a read passes a non-positive TTL.
const DefaultCacheTTL = 60 * time.Minute

// DefaultFetchTimeout bounds a shared fetch once it no longer follows the
// context of the caller that started it.
const DefaultFetchTimeout = 30 * time.Second

type cacheEntry struct {
	value     any
	fetchedAt time.Time
}

// flight is one fetch in progress for a key. An invalidation that covers the
// key marks it so its result is handed out but never stored.
type flight struct {
	id          uint64
	invalidated bool
}

// QueryCache is a process-local keyed store of fetched values.
// Entries carry only their fetch time; the TTL is supplied by every read, so
// the same key may be fresh for one caller and stale for another.
// There is no background eviction: entries stay until invalidated or cleared.
type QueryCache struct {
	mu       sync.RWMutex
	entries  map[string]cacheEntry
	seeded   map[string]bool
	flights  map[string]*flight
	flightID uint64

	group        singleflight.Group
	now          func() time.Time
	defaultTTL   time.Duration
	fetchTimeout time.Duration
}

// QueryCacheOption configures a QueryCache.
type QueryCacheOption func(*QueryCache)

// WithClock replaces time.Now. Tests use it to move time deterministically.
func WithClock(now func() time.Time) QueryCacheOption {
	return func(c *QueryCache) {
		c.now = now
	}
}

// WithDefaultTTL changes the TTL used when a read passes ttl <= 0.
func WithDefaultTTL(ttl time.Duration) QueryCacheOption {
	return func(c *QueryCache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithFetchTimeout bounds every shared fetch.
func WithFetchTimeout(d time.Duration) QueryCacheOption {
	return func(c *QueryCache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// NewQueryCache creates an empty cache.
func NewQueryCache(opts ...QueryCacheOption) *QueryCache {
	c := &QueryCache{
		entries:      make(map[string]cacheEntry),
		seeded:       make(map[string]bool),
		flights:      make(map[string]*flight),
		now:          time.Now,
		defaultTTL:   DefaultCacheTTL,
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchFunc produces a fresh value for a cache key.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// GetCachedData returns the value cached under key if it was fetched less than
// ttl ago. Otherwise it calls fetchFn, stores the result and returns it.
//
// Concurrent misses for the same key share a single fetchFn call. The shared
// call keeps running when the caller that started it goes away; each caller
// only stops waiting when its own ctx ends. A failed fetch is returned
// unchanged and leaves the cache untouched; a stale entry is never served in
// its place.
func GetCachedData[T any](ctx context.Context, c *QueryCache, key string, fetchFn FetchFunc[T], ttl time.Duration) (T, error) {
	var zero T
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	if v, ok := c.lookup(key, ttl); ok {
		if typed, ok := castValue[T](v); ok {
			metrics.IncrementCacheHit()
			return typed, nil
		}
	}
	metrics.IncrementCacheMiss()

	f := c.joinFlight(key)
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey(key, f.id), func() (any, error) {
		fctx, cancel := context.WithTimeout(fetchCtx, c.fetchTimeout)
		defer cancel()
		val, err := fetchFn(fctx)
		c.finishFlight(key, f, val, err)
		if err != nil {
			return nil, err
		}
		return val, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	if res.Err != nil {
		metrics.IncrementCacheFetchError()
		return zero, res.Err
	}

	typed, ok := castValue[T](res.Val)
	if !ok {
		return zero, fmt.Errorf("query cache: key %q holds %T, not %T", key, res.Val, zero)
	}
	return typed, nil
}

func castValue[T any](v any) (T, bool) {
	if v == nil {
		var zero T
		return zero, true
	}
	typed, ok := v.(T)
	return typed, ok
}

// flightKey scopes single-flight groups to one flight so that callers
// arriving after an invalidation never join a fetch that started before it.
func flightKey(key string, id uint64) string {
	return fmt.Sprintf("%d\x00%s", id, key)
}

func (c *QueryCache) lookup(key string, ttl time.Duration) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) >= ttl {
		return nil, false
	}
	return e.value, true
}

// joinFlight returns the live flight for key, starting a new one if needed.
func (c *QueryCache) joinFlight(key string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.flights[key]; ok {
		return f
	}
	c.flightID++
	f := &flight{id: c.flightID}
	c.flights[key] = f
	return f
}

// finishFlight stores a successful result unless the key was invalidated while
// the fetch ran, and retires the flight.
func (c *QueryCache) finishFlight(key string, f *flight, value any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flights[key] == f {
		delete(c.flights, key)
	}
	if err != nil || f.invalidated {
		return
	}
	c.entries[key] = cacheEntry{value: value, fetchedAt: c.now()}
}

// abandonFlightLocked makes an in-flight fetch for key drop its result. c.mu must be held.
func (c *QueryCache) abandonFlightLocked(key string) {
	if f, ok := c.flights[key]; ok {
		f.invalidated = true
		delete(c.flights, key)
	}
}

// Invalidate removes the entry for key. Missing keys are ignored.
func (c *QueryCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.abandonFlightLocked(key)
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		metrics.AddCacheInvalidations("key", 1)
	}
}

// InvalidateByPrefix removes every entry whose key starts with prefix and
// returns how many were removed.
func (c *QueryCache) InvalidateByPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.flights {
		if strings.HasPrefix(key, prefix) {
			c.abandonFlightLocked(key)
		}
	}
	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	metrics.AddCacheInvalidations("prefix", removed)
	return removed
}

// Clear drops every entry. The seeding latch is not reset.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.flights {
		c.abandonFlightLocked(key)
	}
	metrics.AddCacheInvalidations("clear", len(c.entries))
	c.entries = make(map[string]cacheEntry)
}

// Len reports the number of stored entries, expired ones included.
func (c *QueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// NeedsSeeding reports true exactly once per seedType for the lifetime of the
// cache and false on every later call.
func (c *QueryCache) NeedsSeeding(seedType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seeded[seedType] {
		return false
	}
	c.seeded[seedType] = true
	return true
}
