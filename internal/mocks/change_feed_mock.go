package mocks

import (
	"context"
	"sync"
	"sync/atomic"

	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
)

// MockChangeFeed implements domain.ChangeSubscriber and domain.ChangePublisher in memory.
// Published events are delivered synchronously to every live subscription of the section.
type MockChangeFeed struct {
	mu            sync.Mutex
	subscriptions map[domain.Section][]*MockChangeSubscription
	subscribeErr  map[domain.Section]int // remaining failures per section
	published     []domain.ChangeEvent

	SubscribeCalls int64
}

// NewMockChangeFeed creates an empty feed.
func NewMockChangeFeed() *MockChangeFeed {
	return &MockChangeFeed{
		subscriptions: make(map[domain.Section][]*MockChangeSubscription),
		subscribeErr:  make(map[domain.Section]int),
	}
}

// MockChangeSubscription implements domain.ChangeSubscription.
type MockChangeSubscription struct {
	section      domain.Section
	handler      domain.ChangeHandler
	unsubscribed atomic.Bool
	calls        atomic.Int64
}

// Unsubscribe implements domain.ChangeSubscription
func (s *MockChangeSubscription) Unsubscribe() error {
	s.calls.Add(1)
	s.unsubscribed.Store(true)
	return nil
}

// Section implements domain.ChangeSubscription
func (s *MockChangeSubscription) Section() domain.Section {
	return s.section
}

// Active reports whether the subscription has not been torn down.
func (s *MockChangeSubscription) Active() bool {
	return !s.unsubscribed.Load()
}

// UnsubscribeCalls counts Unsubscribe invocations.
func (s *MockChangeSubscription) UnsubscribeCalls() int64 {
	return s.calls.Load()
}

// FailSubscribe makes the next n SubscribeChanges calls for section fail.
func (m *MockChangeFeed) FailSubscribe(section domain.Section, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribeErr[section] = n
}

// SubscribeChanges implements domain.ChangeSubscriber
func (m *MockChangeFeed) SubscribeChanges(ctx context.Context, section domain.Section, handler domain.ChangeHandler) (domain.ChangeSubscription, error) {
	atomic.AddInt64(&m.SubscribeCalls, 1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr[section] > 0 {
		m.subscribeErr[section]--
		return nil, ErrMockBackend
	}
	sub := &MockChangeSubscription{section: section, handler: handler}
	m.subscriptions[section] = append(m.subscriptions[section], sub)
	return sub, nil
}

// PublishChange implements domain.ChangePublisher
func (m *MockChangeFeed) PublishChange(ctx context.Context, event domain.ChangeEvent) error {
	m.mu.Lock()
	m.published = append(m.published, event)
	subs := append([]*MockChangeSubscription(nil), m.subscriptions[event.Section]...)
	m.mu.Unlock()

	for _, sub := range subs {
		if sub.Active() {
			sub.handler(ctx, event)
		}
	}
	return nil
}

// Emit publishes an UPDATE event for section.
func (m *MockChangeFeed) Emit(section domain.Section) {
	_ = m.PublishChange(context.Background(), domain.ChangeEvent{Section: section, Op: domain.ChangeUpdate})
}

// Subscriptions returns every subscription ever opened for section.
func (m *MockChangeFeed) Subscriptions(section domain.Section) []*MockChangeSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockChangeSubscription(nil), m.subscriptions[section]...)
}

// Published returns every event published so far.
func (m *MockChangeFeed) Published() []domain.ChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ChangeEvent(nil), m.published...)
}
