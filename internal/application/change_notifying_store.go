package application

import (
	"context"
	"time"

	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
)

// ChangeNotifyingUnreadStore publishes an UPDATE change after every successful
// MarkAllRead, so every instance watching the feed refreshes its counters.
type ChangeNotifyingUnreadStore struct {
	domain.UnreadStore
	publisher domain.ChangePublisher
	logger    domain.Logger
}

// NewChangeNotifyingUnreadStore wraps store.
func NewChangeNotifyingUnreadStore(store domain.UnreadStore, publisher domain.ChangePublisher, logger domain.Logger) *ChangeNotifyingUnreadStore {
	return &ChangeNotifyingUnreadStore{UnreadStore: store, publisher: publisher, logger: logger}
}

// MarkAllRead marks the section read and announces the change.
func (s *ChangeNotifyingUnreadStore) MarkAllRead(ctx context.Context, section domain.Section) error {
	if err := s.UnreadStore.MarkAllRead(ctx, section); err != nil {
		return err
	}
	event := domain.ChangeEvent{Section: section, Op: domain.ChangeUpdate, OccurredAt: time.Now().UTC()}
	if err := s.publisher.PublishChange(ctx, event); err != nil {
		s.logger.Warn(ctx, "Failed to publish mark-read change", "section", string(section), "error", err)
	}
	return nil
}
