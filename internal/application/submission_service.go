package application

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
	"gitlab.com/timkado/api/site-freshness-service/pkg/contextkeys"
)

// SubmissionService stores public form entries and announces them on the
// change feed so that unread badges update.
type SubmissionService struct {
	logger    domain.Logger
	store     domain.SubmissionStore
	publisher domain.ChangePublisher
	now       func() time.Time
}

// NewSubmissionService creates a SubmissionService.
func NewSubmissionService(logger domain.Logger, store domain.SubmissionStore, publisher domain.ChangePublisher) *SubmissionService {
	return &SubmissionService{
		logger:    logger,
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// Submit validates and stores sub as unread. A failed change notification is
// logged but does not fail the submission.
func (s *SubmissionService) Submit(ctx context.Context, sub domain.Submission) (domain.Submission, error) {
	if _, err := domain.ParseSection(string(sub.Section)); err != nil {
		return domain.Submission{}, err
	}
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Email = strings.TrimSpace(sub.Email)
	sub.Body = strings.TrimSpace(sub.Body)
	if sub.Name == "" || sub.Body == "" {
		return domain.Submission{}, fmt.Errorf("%w: name and body are required", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(sub.Email); err != nil {
		return domain.Submission{}, fmt.Errorf("%w: invalid email %q", domain.ErrValidation, sub.Email)
	}
	sub.IsRead = false

	ctx = context.WithValue(ctx, contextkeys.SectionKey, string(sub.Section))
	created, err := s.store.CreateSubmission(ctx, sub)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("store submission: %w", err)
	}

	event := domain.ChangeEvent{Section: created.Section, Op: domain.ChangeInsert, RowID: created.ID, OccurredAt: s.now().UTC()}
	if err := s.publisher.PublishChange(ctx, event); err != nil {
		s.logger.Warn(ctx, "Failed to publish submission change", "row_id", created.ID, "error", err)
	}
	s.logger.Info(ctx, "Submission stored", "row_id", created.ID)
	return created, nil
}
