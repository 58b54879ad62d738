package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/codeburst/internal/domain"
)

// StepStore implements tutorial step persistence backed by SQLite.
type StepStore struct {
	db *DB
}

// NewStepStore creates a new SQLite-backed step store.
func NewStepStore(db *DB) *StepStore {
	return &StepStore{db: db}
}

const stepColumns = `id, title, description, content, code_example, expected_output, step_order, active`

// ListSteps returns non-deleted steps ordered by step order.
func (s *StepStore) ListSteps(ctx context.Context) ([]domain.TutorialStep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+stepColumns+`
		FROM tutorial_steps
		WHERE is_deleted = 0
		ORDER BY step_order ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.TutorialStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *step)
	}
	return steps, rows.Err()
}

// GetStep returns a single non-deleted step.
func (s *StepStore) GetStep(ctx context.Context, id string) (*domain.TutorialStep, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+stepColumns+`
		FROM tutorial_steps
		WHERE id = ? AND is_deleted = 0`, id)
	step, err := scanStep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStepNotFound
	}
	return step, err
}

// UpsertSteps inserts or replaces steps in one transaction. A step that was
// soft-deleted is revived.
func (s *StepStore) UpsertSteps(ctx context.Context, steps []domain.TutorialStep) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := utc(time.Now())
	for _, step := range steps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tutorial_steps (id, title, description, content, code_example,
				expected_output, step_order, active, is_deleted, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
			ON CONFLICT(id) DO UPDATE SET
				title=excluded.title, description=excluded.description,
				content=excluded.content, code_example=excluded.code_example,
				expected_output=excluded.expected_output, step_order=excluded.step_order,
				active=excluded.active, is_deleted=0, updated_at=excluded.updated_at`,
			step.ID, step.Title, step.Description, step.Content, step.CodeExample,
			nullString(step.ExpectedOutput), step.Order, boolToInt(step.Active), now,
		)
		if err != nil {
			return fmt.Errorf("upsert step %s: %w", step.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteStep soft-deletes a step.
func (s *StepStore) DeleteStep(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE tutorial_steps SET is_deleted = 1, updated_at = ? WHERE id = ? AND is_deleted = 0",
		utc(time.Now()), id)
	if err != nil {
		return fmt.Errorf("delete step: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrStepNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStep(row scanner) (*domain.TutorialStep, error) {
	var (
		step     domain.TutorialStep
		expected sql.NullString
		active   int
	)
	if err := row.Scan(&step.ID, &step.Title, &step.Description, &step.Content,
		&step.CodeExample, &expected, &step.Order, &active); err != nil {
		return nil, err
	}
	if expected.Valid {
		v := expected.String
		step.ExpectedOutput = &v
	}
	step.Active = active != 0
	return &step, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
