package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
	"gitlab.com/timkado/api/site-freshness-service/pkg/contextkeys"
)

// ContentService serves the marketing collections through the query cache and
// invalidates a collection's keys whenever the admin console mutates it.
type ContentService struct {
	logger domain.Logger
	store  domain.ContentStore
	cache  *QueryCache
	ttl    time.Duration
}

// NewContentService creates a ContentService. ttl <= 0 uses the cache default.
func NewContentService(logger domain.Logger, store domain.ContentStore, cache *QueryCache, ttl time.Duration) *ContentService {
	return &ContentService{
		logger: logger,
		store:  store,
		cache:  cache,
		ttl:    ttl,
	}
}

// List returns the items of collection. The first call for a collection makes
// sure its default rows exist.
func (s *ContentService) List(ctx context.Context, collection string) ([]domain.ContentItem, error) {
	if err := domain.ValidateCollection(collection); err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, contextkeys.CollectionKey, collection)

	if s.cache.NeedsSeeding(SeedTypeContent(collection)) {
		if err := s.store.EnsureDefaults(ctx, collection); err != nil {
			// The latch has flipped; seeding is not retried for this process.
			s.logger.Error(ctx, "Failed to seed default content", "error", err)
		} else {
			s.logger.Debug(ctx, "Default content ensured")
		}
	}

	return GetCachedData(ctx, s.cache, QueryKeyContentList(collection), func(ctx context.Context) ([]domain.ContentItem, error) {
		return s.store.ListContent(ctx, collection)
	}, s.ttl)
}

// Get returns one item of collection.
func (s *ContentService) Get(ctx context.Context, collection string, id int64) (domain.ContentItem, error) {
	if err := domain.ValidateCollection(collection); err != nil {
		return domain.ContentItem{}, err
	}
	return GetCachedData(ctx, s.cache, QueryKeyContentItem(collection, id), func(ctx context.Context) (domain.ContentItem, error) {
		return s.store.GetContent(ctx, collection, id)
	}, s.ttl)
}

// Create inserts a new item and invalidates the collection.
func (s *ContentService) Create(ctx context.Context, item domain.ContentItem) (domain.ContentItem, error) {
	if err := validateItem(item); err != nil {
		return domain.ContentItem{}, err
	}
	created, err := s.store.CreateContent(ctx, item)
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("create %s item: %w", item.Collection, err)
	}
	s.invalidate(ctx, item.Collection)
	return created, nil
}

// Update replaces an item and invalidates the collection.
func (s *ContentService) Update(ctx context.Context, item domain.ContentItem) (domain.ContentItem, error) {
	if err := validateItem(item); err != nil {
		return domain.ContentItem{}, err
	}
	updated, err := s.store.UpdateContent(ctx, item)
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("update %s item %d: %w", item.Collection, item.ID, err)
	}
	s.invalidate(ctx, item.Collection)
	return updated, nil
}

// Delete removes an item and invalidates the collection.
func (s *ContentService) Delete(ctx context.Context, collection string, id int64) error {
	if err := domain.ValidateCollection(collection); err != nil {
		return err
	}
	if err := s.store.DeleteContent(ctx, collection, id); err != nil {
		return fmt.Errorf("delete %s item %d: %w", collection, id, err)
	}
	s.invalidate(ctx, collection)
	return nil
}

func (s *ContentService) invalidate(ctx context.Context, collection string) {
	s.cache.Invalidate(QueryKeyContentList(collection))
	items := s.cache.InvalidateByPrefix(QueryKeyContentItemPrefix(collection))
	s.logger.Debug(context.WithValue(ctx, contextkeys.CollectionKey, collection), "Content cache invalidated", "items_removed", items)
}

func validateItem(item domain.ContentItem) error {
	if err := domain.ValidateCollection(item.Collection); err != nil {
		return err
	}
	if strings.TrimSpace(item.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	return nil
}
