package progress

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/codeburst/internal/domain"
)

var (
	// ErrStepOutOfRange is returned by Advance for an index outside the
	// step sequence.
	ErrStepOutOfRange = errors.New("step index out of range")
	// ErrWriterClosed is returned when an update arrives after Drain.
	ErrWriterClosed = errors.New("progress writer closed")
	// ErrWriterFull is returned when the pending set is at capacity.
	ErrWriterFull = errors.New("progress writer full")
)

// Repository persists progress records. Implementations return
// domain.ErrProgressNotFound from FindByUser when the user has no record.
type Repository interface {
	FindByUser(ctx context.Context, userID string) (*domain.ProgressRecord, error)
	Create(ctx context.Context, rec *domain.ProgressRecord) error
	Update(ctx context.Context, rec *domain.ProgressRecord) error
}

// Update is a full snapshot of a record handed to the write-behind writer.
// It carries the index and the completed set so either alone is never
// written.
type Update struct {
	RecordID       string    `json:"record_id"`
	UserID         string    `json:"user_id"`
	CurrentStep    int       `json:"current_step"`
	Completed      []string  `json:"completed_steps"`
	LastAccessedAt time.Time `json:"last_accessed"`
}

// UpdateFromRecord snapshots rec
func UpdateFromRecord(rec *domain.ProgressRecord) Update {
	return Update{
		RecordID:       rec.RecordID,
		UserID:         rec.UserID,
		CurrentStep:    rec.CurrentStepIndex,
		Completed:      rec.Completed(),
		LastAccessedAt: rec.LastAccessedAt,
	}
}

// Record rebuilds the progress record the update describes
func (u Update) Record() *domain.ProgressRecord {
	completed := make(map[string]bool, len(u.Completed))
	for _, id := range u.Completed {
		completed[id] = true
	}
	return &domain.ProgressRecord{
		RecordID:         u.RecordID,
		UserID:           u.UserID,
		CurrentStepIndex: u.CurrentStep,
		CompletedStepIDs: completed,
		LastAccessedAt:   u.LastAccessedAt,
	}
}

// Sink applies updates somewhere durable
type Sink interface {
	Apply(ctx context.Context, u Update) error
}

// RepositorySink writes updates straight into a Repository
type RepositorySink struct {
	Repo Repository
}

// Apply updates the stored record. Failures are returned as
// *domain.PersistError.
func (s RepositorySink) Apply(ctx context.Context, u Update) error {
	err := s.Repo.Update(ctx, u.Record())
	if err == nil {
		return nil
	}
	var persistErr *domain.PersistError
	if errors.As(err, &persistErr) {
		return err
	}
	return &domain.PersistError{Op: "update", RecordID: u.RecordID, Err: err}
}
