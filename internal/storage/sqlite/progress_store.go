package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/codeburst/internal/domain"
)

// ProgressStore implements progress record persistence backed by SQLite.
type ProgressStore struct {
	db *DB
}

// NewProgressStore creates a new SQLite-backed progress store.
func NewProgressStore(db *DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// FindByUser returns the record for userID or domain.ErrProgressNotFound.
func (s *ProgressStore) FindByUser(ctx context.Context, userID string) (*domain.ProgressRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, current_step, completed_steps, last_accessed
		FROM progress_records WHERE user_id = ?`, userID)

	var (
		rec       domain.ProgressRecord
		completed string
	)
	err := row.Scan(&rec.RecordID, &rec.UserID, &rec.CurrentStepIndex, &completed, &rec.LastAccessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find progress: %w", err)
	}
	rec.CompletedStepIDs = domain.ParseCompletedList(completed)
	return &rec, nil
}

// Create inserts a new record. A concurrent create for the same user keeps
// the first record.
func (s *ProgressStore) Create(ctx context.Context, rec *domain.ProgressRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO progress_records (id, user_id, current_step, completed_steps, last_accessed)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		rec.RecordID, rec.UserID, rec.CurrentStepIndex, rec.CompletedList(), utc(rec.LastAccessedAt),
	)
	if err != nil {
		return fmt.Errorf("create progress: %w", err)
	}
	return nil
}

// Update writes index, completed set and last access time. Updates older than
// the stored record are dropped so the latest write wins.
func (s *ProgressStore) Update(ctx context.Context, rec *domain.ProgressRecord) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE progress_records
		SET current_step = ?, completed_steps = ?, last_accessed = ?
		WHERE id = ? AND last_accessed <= ?`,
		rec.CurrentStepIndex, rec.CompletedList(), utc(rec.LastAccessedAt),
		rec.RecordID, utc(rec.LastAccessedAt),
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}

	n, _ := result.RowsAffected()
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM progress_records WHERE id = ?", rec.RecordID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrProgressNotFound
	}
	return err
}
