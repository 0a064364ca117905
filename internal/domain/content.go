package domain

import (
	"context"
	"fmt"
	"time"
)

// ContentCollections are the marketing collections served to the public pages.
var ContentCollections = []string{"vacancies", "projects", "services", "news", "tenders"}

// ValidateCollection rejects collections the site does not publish.
func ValidateCollection(collection string) error {
	for _, c := range ContentCollections {
		if c == collection {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
}

// ContentItem is one row of a marketing collection.
type ContentItem struct {
	ID         int64     `json:"id"`
	Collection string    `json:"collection"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Published  bool      `json:"published"`
	SortOrder  int       `json:"sort_order"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ContentStore is the admin CRUD surface over marketing collections.
type ContentStore interface {
	ListContent(ctx context.Context, collection string) ([]ContentItem, error)
	GetContent(ctx context.Context, collection string, id int64) (ContentItem, error)
	CreateContent(ctx context.Context, item ContentItem) (ContentItem, error)
	UpdateContent(ctx context.Context, item ContentItem) (ContentItem, error)
	DeleteContent(ctx context.Context, collection string, id int64) error

	// EnsureDefaults inserts the default rows for collection when it is empty.
	EnsureDefaults(ctx context.Context, collection string) error
}

// Submission is an inbound form entry (contact message, job application,
// tender bid, commercial offer). New submissions are always unread.
type Submission struct {
	ID        int64     `json:"id"`
	Section   Section   `json:"section"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmissionStore persists inbound submissions.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
}
