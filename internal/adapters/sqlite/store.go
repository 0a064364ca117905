package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
)

// Store is the SQLite backend for unread counters, marketing content and form
// submissions. It implements domain.UnreadStore, domain.ContentStore and
// domain.SubmissionStore.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens and migrates the database at path. ":memory:" keeps everything
// on a single connection so that all callers see the same database.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// sectionTable maps a section onto its table. Section names double as table
// names, so only validated sections may reach a query string.
func sectionTable(section domain.Section) (string, error) {
	s, err := domain.ParseSection(string(section))
	if err != nil {
		return "", err
	}
	return string(s), nil
}

// CountUnread implements domain.UnreadStore.
func (s *Store) CountUnread(ctx context.Context, section domain.Section) (int, error) {
	table, err := sectionTable(section)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE is_read = 0").Scan(&n); err != nil {
		return 0, fmt.Errorf("count unread %s: %w", table, err)
	}
	return n, nil
}

// MarkAllRead implements domain.UnreadStore.
func (s *Store) MarkAllRead(ctx context.Context, section domain.Section) error {
	table, err := sectionTable(section)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE "+table+" SET is_read = 1 WHERE is_read = 0"); err != nil {
		return fmt.Errorf("mark %s read: %w", table, err)
	}
	return nil
}

// CreateSubmission implements domain.SubmissionStore.
func (s *Store) CreateSubmission(ctx context.Context, sub domain.Submission) (domain.Submission, error) {
	table, err := sectionTable(sub.Section)
	if err != nil {
		return domain.Submission{}, err
	}
	sub.CreatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO "+table+" (name, email, phone, subject, body, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		sub.Name, sub.Email, sub.Phone, sub.Subject, sub.Body, boolToInt(sub.IsRead), sub.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("insert %s: %w", table, err)
	}
	if sub.ID, err = res.LastInsertId(); err != nil {
		return domain.Submission{}, fmt.Errorf("insert %s: %w", table, err)
	}
	return sub, nil
}

const contentColumns = "id, collection, title, body, published, sort_order, created_at, updated_at"

// ListContent implements domain.ContentStore.
func (s *Store) ListContent(ctx context.Context, collection string) ([]domain.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+contentColumns+" FROM content_items WHERE collection = ? ORDER BY sort_order, id",
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	items := []domain.ContentItem{}
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return items, nil
}

// GetContent implements domain.ContentStore.
func (s *Store) GetContent(ctx context.Context, collection string, id int64) (domain.ContentItem, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+contentColumns+" FROM content_items WHERE collection = ? AND id = ?",
		collection, id,
	)
	item, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ContentItem{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("get %s %d: %w", collection, id, err)
	}
	return item, nil
}

// CreateContent implements domain.ContentStore.
func (s *Store) CreateContent(ctx context.Context, item domain.ContentItem) (domain.ContentItem, error) {
	now := s.now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO content_items (collection, title, body, published, sort_order, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		item.Collection, item.Title, item.Body, boolToInt(item.Published), item.SortOrder, now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("insert content: %w", err)
	}
	if item.ID, err = res.LastInsertId(); err != nil {
		return domain.ContentItem{}, fmt.Errorf("insert content: %w", err)
	}
	return item, nil
}

// UpdateContent implements domain.ContentStore.
func (s *Store) UpdateContent(ctx context.Context, item domain.ContentItem) (domain.ContentItem, error) {
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		"UPDATE content_items SET title = ?, body = ?, published = ?, sort_order = ?, updated_at = ? WHERE collection = ? AND id = ?",
		item.Title, item.Body, boolToInt(item.Published), item.SortOrder, now.UnixMilli(), item.Collection, item.ID,
	)
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("update content %d: %w", item.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ContentItem{}, domain.ErrNotFound
	}
	return s.GetContent(ctx, item.Collection, item.ID)
}

// DeleteContent implements domain.ContentStore.
func (s *Store) DeleteContent(ctx context.Context, collection string, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM content_items WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return fmt.Errorf("delete content %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// EnsureDefaults implements domain.ContentStore. Rows are only inserted when
// the collection is empty, so repeated calls and restarts are harmless.
func (s *Store) EnsureDefaults(ctx context.Context, collection string) error {
	defaults, ok := defaultContent[collection]
	if !ok {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed %s: %w", collection, err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM content_items WHERE collection = ?", collection).Scan(&n); err != nil {
		return fmt.Errorf("seed %s: %w", collection, err)
	}
	if n > 0 {
		return nil
	}

	now := s.now().UTC().UnixMilli()
	for i, d := range defaults {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO content_items (collection, title, body, published, sort_order, created_at, updated_at) VALUES (?, ?, ?, 1, ?, ?, ?)",
			collection, d.title, d.body, i, now, now,
		); err != nil {
			return fmt.Errorf("seed %s: %w", collection, err)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(r rowScanner) (domain.ContentItem, error) {
	var item domain.ContentItem
	var published int64
	var createdAt, updatedAt int64
	if err := r.Scan(&item.ID, &item.Collection, &item.Title, &item.Body, &published, &item.SortOrder, &createdAt, &updatedAt); err != nil {
		return domain.ContentItem{}, err
	}
	item.Published = published != 0
	item.CreatedAt = time.UnixMilli(createdAt).UTC()
	item.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return item, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
