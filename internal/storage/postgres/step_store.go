package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/codeburst/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StepStore implements tutorial step persistence using PostgreSQL
type StepStore struct {
	pool *pgxpool.Pool
}

// NewStepStore creates a new PostgreSQL step store
func NewStepStore(pool *pgxpool.Pool) *StepStore {
	return &StepStore{pool: pool}
}

// ListSteps returns non-deleted steps ordered by step order
func (s *StepStore) ListSteps(ctx context.Context) ([]domain.TutorialStep, error) {
	query := `
		SELECT id, title, description, content, code_example, expected_output, step_order, active
		FROM tutorial_steps
		WHERE NOT is_deleted
		ORDER BY step_order ASC, id ASC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.TutorialStep
	for rows.Next() {
		var step domain.TutorialStep
		if err := rows.Scan(&step.ID, &step.Title, &step.Description, &step.Content,
			&step.CodeExample, &step.ExpectedOutput, &step.Order, &step.Active); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// GetStep returns a single non-deleted step
func (s *StepStore) GetStep(ctx context.Context, id string) (*domain.TutorialStep, error) {
	query := `
		SELECT id, title, description, content, code_example, expected_output, step_order, active
		FROM tutorial_steps
		WHERE id = $1 AND NOT is_deleted
	`
	var step domain.TutorialStep
	err := s.pool.QueryRow(ctx, query, id).Scan(&step.ID, &step.Title, &step.Description,
		&step.Content, &step.CodeExample, &step.ExpectedOutput, &step.Order, &step.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStepNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get step: %w", err)
	}
	return &step, nil
}

// UpsertSteps inserts or replaces steps in one batch transaction
func (s *StepStore) UpsertSteps(ctx context.Context, steps []domain.TutorialStep) error {
	query := `
		INSERT INTO tutorial_steps (id, title, description, content, code_example,
			expected_output, step_order, active, is_deleted, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, description = EXCLUDED.description,
			content = EXCLUDED.content, code_example = EXCLUDED.code_example,
			expected_output = EXCLUDED.expected_output, step_order = EXCLUDED.step_order,
			active = EXCLUDED.active, is_deleted = FALSE, updated_at = NOW()
	`
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, step := range steps {
			batch.Queue(query, step.ID, step.Title, step.Description, step.Content,
				step.CodeExample, step.ExpectedOutput, step.Order, step.Active)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert steps: %w", err)
		}
		return nil
	})
}

// DeleteStep soft-deletes a step
func (s *StepStore) DeleteStep(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tutorial_steps SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1 AND NOT is_deleted`, id)
	if err != nil {
		return fmt.Errorf("delete step: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStepNotFound
	}
	return nil
}
