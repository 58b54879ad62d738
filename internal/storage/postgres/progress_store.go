package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/codeburst/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProgressStore implements progress record persistence using PostgreSQL
type ProgressStore struct {
	pool *pgxpool.Pool
}

// NewProgressStore creates a new PostgreSQL progress store
func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

// FindByUser returns the record for userID or domain.ErrProgressNotFound
func (s *ProgressStore) FindByUser(ctx context.Context, userID string) (*domain.ProgressRecord, error) {
	query := `
		SELECT id, user_id, current_step, completed_steps, last_accessed
		FROM progress_records WHERE user_id = $1
	`
	var (
		rec       domain.ProgressRecord
		completed string
	)
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&rec.RecordID, &rec.UserID, &rec.CurrentStepIndex, &completed, &rec.LastAccessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find progress: %w", err)
	}
	rec.CompletedStepIDs = domain.ParseCompletedList(completed)
	return &rec, nil
}

// Create inserts a new record; an existing record for the user is kept
func (s *ProgressStore) Create(ctx context.Context, rec *domain.ProgressRecord) error {
	query := `
		INSERT INTO progress_records (id, user_id, current_step, completed_steps, last_accessed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query,
		rec.RecordID, rec.UserID, rec.CurrentStepIndex, rec.CompletedList(), rec.LastAccessedAt,
	)
	if err != nil {
		return fmt.Errorf("create progress: %w", err)
	}
	return nil
}

// Update writes the record unless the stored one is newer
func (s *ProgressStore) Update(ctx context.Context, rec *domain.ProgressRecord) error {
	query := `
		UPDATE progress_records
		SET current_step = $2, completed_steps = $3, last_accessed = $4
		WHERE id = $1 AND last_accessed <= $4
	`
	tag, err := s.pool.Exec(ctx, query,
		rec.RecordID, rec.CurrentStepIndex, rec.CompletedList(), rec.LastAccessedAt,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM progress_records WHERE id = $1)`, rec.RecordID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check progress: %w", err)
	}
	if !exists {
		return domain.ErrProgressNotFound
	}
	return nil
}
