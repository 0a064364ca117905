package mocks

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
)

// MockContentStore implements domain.ContentStore and domain.SubmissionStore in memory.
type MockContentStore struct {
	mu          sync.Mutex
	items       map[int64]domain.ContentItem
	submissions []domain.Submission
	nextID      int64
	listErr     error

	ListCalls   int64
	GetCalls    int64
	EnsureCalls int64
}

// NewMockContentStore creates an empty store.
func NewMockContentStore() *MockContentStore {
	return &MockContentStore{items: make(map[int64]domain.ContentItem)}
}

// FailList makes ListContent return err until cleared with nil.
func (m *MockContentStore) FailList(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// ListContent implements domain.ContentStore
func (m *MockContentStore) ListContent(ctx context.Context, collection string) ([]domain.ContentItem, error) {
	atomic.AddInt64(&m.ListCalls, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.ContentItem
	for _, it := range m.items {
		if it.Collection == collection {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetContent implements domain.ContentStore
func (m *MockContentStore) GetContent(ctx context.Context, collection string, id int64) (domain.ContentItem, error) {
	atomic.AddInt64(&m.GetCalls, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok || it.Collection != collection {
		return domain.ContentItem{}, domain.ErrNotFound
	}
	return it, nil
}

// CreateContent implements domain.ContentStore
func (m *MockContentStore) CreateContent(ctx context.Context, item domain.ContentItem) (domain.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	item.ID = m.nextID
	item.CreatedAt = time.Now().UTC()
	item.UpdatedAt = item.CreatedAt
	m.items[item.ID] = item
	return item, nil
}

// UpdateContent implements domain.ContentStore
func (m *MockContentStore) UpdateContent(ctx context.Context, item domain.ContentItem) (domain.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.items[item.ID]
	if !ok || old.Collection != item.Collection {
		return domain.ContentItem{}, domain.ErrNotFound
	}
	item.CreatedAt = old.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	m.items[item.ID] = item
	return item, nil
}

// DeleteContent implements domain.ContentStore
func (m *MockContentStore) DeleteContent(ctx context.Context, collection string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok || it.Collection != collection {
		return domain.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

// EnsureDefaults implements domain.ContentStore
func (m *MockContentStore) EnsureDefaults(ctx context.Context, collection string) error {
	atomic.AddInt64(&m.EnsureCalls, 1)
	return nil
}

// CreateSubmission implements domain.SubmissionStore
func (m *MockContentStore) CreateSubmission(ctx context.Context, sub domain.Submission) (domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	sub.ID = m.nextID
	sub.CreatedAt = time.Now().UTC()
	m.submissions = append(m.submissions, sub)
	return sub, nil
}

// Submissions returns every stored submission.
func (m *MockContentStore) Submissions() []domain.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Submission(nil), m.submissions...)
}
