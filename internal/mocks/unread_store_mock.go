package mocks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
)

// ErrMockBackend is returned by the mocks when a failure is injected.
var ErrMockBackend = errors.New("mock backend failure")

// MockUnreadStore implements domain.UnreadStore over an in-memory unread table.
type MockUnreadStore struct {
	mu        sync.Mutex
	unread    map[domain.Section]int
	countErr  map[domain.Section]error
	markErr   map[domain.Section]error
	countGate map[domain.Section]chan struct{}

	CountCalls int64
	MarkCalls  int64
}

// NewMockUnreadStore creates a store with the given unread counts.
func NewMockUnreadStore(unread map[domain.Section]int) *MockUnreadStore {
	m := &MockUnreadStore{
		unread:    make(map[domain.Section]int),
		countErr:  make(map[domain.Section]error),
		markErr:   make(map[domain.Section]error),
		countGate: make(map[domain.Section]chan struct{}),
	}
	for s, n := range unread {
		m.unread[s] = n
	}
	return m
}

// CountUnread implements domain.UnreadStore. The result is read when the call
// starts; a gated call returns that snapshot once released, like a slow query.
// A gate holds only the first call that reaches it.
func (m *MockUnreadStore) CountUnread(ctx context.Context, section domain.Section) (int, error) {
	atomic.AddInt64(&m.CountCalls, 1)

	m.mu.Lock()
	gate := m.countGate[section]
	delete(m.countGate, section)
	n, err := m.unread[section], m.countErr[section]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// MarkAllRead implements domain.UnreadStore
func (m *MockUnreadStore) MarkAllRead(ctx context.Context, section domain.Section) error {
	atomic.AddInt64(&m.MarkCalls, 1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.markErr[section]; err != nil {
		return err
	}
	m.unread[section] = 0
	return nil
}

// SetUnread changes the remote unread count of section.
func (m *MockUnreadStore) SetUnread(section domain.Section, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unread[section] = n
}

// Unread returns the remote unread count of section.
func (m *MockUnreadStore) Unread(section domain.Section) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unread[section]
}

// FailCount makes CountUnread fail for section until cleared with nil.
func (m *MockUnreadStore) FailCount(section domain.Section, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countErr[section] = err
}

// FailMark makes MarkAllRead fail for section until cleared with nil.
func (m *MockUnreadStore) FailMark(section domain.Section, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markErr[section] = err
}

// GateCount blocks the next CountUnread for section until the returned func is
// called. Later calls are not held.
func (m *MockUnreadStore) GateCount(section domain.Section) (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.countGate[section] = gate
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.countGate[section] == gate {
				delete(m.countGate, section)
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns the number of count and mark calls so far.
func (m *MockUnreadStore) Calls() (count, mark int64) {
	return atomic.LoadInt64(&m.CountCalls), atomic.LoadInt64(&m.MarkCalls)
}
