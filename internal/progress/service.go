package progress

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/codeburst/internal/domain"
	"github.com/google/uuid"
)

// Enqueuer accepts updates for write-behind persistence
type Enqueuer interface {
	Enqueue(u Update) error
}

// Service tracks per-user progress in memory and persists changes through
// a write-behind Enqueuer. Local state is authoritative for the session:
// persistence failures are logged and never roll back a change.
type Service struct {
	repo   Repository
	writer Enqueuer
	now    func() time.Time
	newID  func() string

	mu      sync.Mutex
	records map[string]*tracked
	byUser  map[string]string
}

type tracked struct {
	mu    sync.Mutex
	rec   *domain.ProgressRecord
	steps []domain.TutorialStep
	// persisted is false for records that only exist in memory because the
	// repository could not be reached; their changes are not written.
	persisted bool
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the service clock
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides record id generation
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a progress service
func NewService(repo Repository, writer Enqueuer, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		writer:  writer,
		now:     time.Now,
		newID:   uuid.NewString,
		records: make(map[string]*tracked),
		byUser:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadProgress returns the record of userID reconciled against steps,
// creating it when the user has none. A usable record is returned even when
// the repository fails; the error is then a *domain.FetchError or
// *domain.PersistError the caller should surface as a notice. Only context
// errors yield a nil record.
func (s *Service) LoadProgress(ctx context.Context, userID string, steps []domain.TutorialStep) (*domain.ProgressRecord, error) {
	rec, err := s.repo.FindByUser(ctx, userID)
	switch {
	case err == nil:
		return s.track(rec, steps, true), nil

	case errors.Is(err, domain.ErrProgressNotFound):
		return s.create(ctx, userID, steps)

	case ctx.Err() != nil:
		return nil, ctx.Err()

	default:
		if !errors.Is(err, domain.ErrFetch) {
			err = &domain.FetchError{Op: "progress", Err: err}
		}
		slog.Warn("progress load failed, using session state", "user_id", userID, "error", err)
		if t := s.lookupUser(userID); t != nil {
			return s.retrack(t, steps), err
		}
		return s.track(s.fresh(userID, steps), steps, false), err
	}
}

// Resume returns the session record of userID bound to steps. The
// repository is only consulted when the user has no persisted session
// state yet, so pending write-behind changes are never overwritten by a
// stale read.
func (s *Service) Resume(ctx context.Context, userID string, steps []domain.TutorialStep) (*domain.ProgressRecord, error) {
	if t := s.lookupUser(userID); t != nil && t.persisted {
		return s.retrack(t, steps), nil
	}
	return s.LoadProgress(ctx, userID, steps)
}

func (s *Service) create(ctx context.Context, userID string, steps []domain.TutorialStep) (*domain.ProgressRecord, error) {
	rec := s.fresh(userID, steps)
	if err := s.repo.Create(ctx, rec); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var persistErr *domain.PersistError
		if !errors.As(err, &persistErr) {
			err = &domain.PersistError{Op: "create", RecordID: rec.RecordID, Err: err}
		}
		slog.Warn("progress create failed, using session state", "user_id", userID, "error", err)
		return s.track(rec, steps, false), err
	}

	// A concurrent create for the same user may have won; keep the stored one.
	if stored, err := s.repo.FindByUser(ctx, userID); err == nil {
		rec = stored
	}
	return s.track(rec, steps, true), nil
}

func (s *Service) fresh(userID string, steps []domain.TutorialStep) *domain.ProgressRecord {
	first := ""
	if len(steps) > 0 {
		first = steps[0].ID
	}
	return domain.NewProgressRecord(s.newID(), userID, first, s.now())
}

func (s *Service) track(rec *domain.ProgressRecord, steps []domain.TutorialStep, persisted bool) *domain.ProgressRecord {
	rec.Reconcile(steps)
	t := &tracked{rec: rec, steps: steps, persisted: persisted}

	s.mu.Lock()
	if oldID, ok := s.byUser[rec.UserID]; ok && oldID != rec.RecordID {
		delete(s.records, oldID)
	}
	s.records[rec.RecordID] = t
	s.byUser[rec.UserID] = rec.RecordID
	s.mu.Unlock()

	return rec.Clone()
}

func (s *Service) retrack(t *tracked, steps []domain.TutorialStep) *domain.ProgressRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = steps
	t.rec.Reconcile(steps)
	return t.rec.Clone()
}

func (s *Service) lookupUser(userID string) *tracked {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byUser[userID]
	if !ok {
		return nil
	}
	return s.records[id]
}

func (s *Service) lookup(recordID string) (*tracked, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.records[recordID]
	if !ok {
		return nil, domain.ErrProgressNotFound
	}
	return t, nil
}

// Advance moves the record to stepIndex and schedules persistence without
// waiting for it. An index outside the loaded step sequence leaves the
// record untouched and returns ErrStepOutOfRange.
func (s *Service) Advance(recordID string, stepIndex int) error {
	t, err := s.lookup(recordID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if !t.rec.SetStep(stepIndex, len(t.steps), s.now()) {
		t.mu.Unlock()
		return ErrStepOutOfRange
	}
	u := UpdateFromRecord(t.rec)
	persisted := t.persisted
	t.mu.Unlock()

	s.enqueue(u, persisted)
	return nil
}

// MarkComplete adds stepID to the completed set. Repeated calls and ids
// that are not part of the step sequence are no-ops.
func (s *Service) MarkComplete(recordID, stepID string) error {
	t, err := s.lookup(recordID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if domain.IndexOf(t.steps, stepID) < 0 || !t.rec.MarkComplete(stepID, s.now()) {
		t.mu.Unlock()
		return nil
	}
	u := UpdateFromRecord(t.rec)
	persisted := t.persisted
	t.mu.Unlock()

	s.enqueue(u, persisted)
	return nil
}

// Snapshot returns a copy of the tracked record of userID
func (s *Service) Snapshot(userID string) (*domain.ProgressRecord, bool) {
	t := s.lookupUser(userID)
	if t == nil {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rec.Clone(), true
}

// Forget drops the in-memory state of userID, e.g. on logout
func (s *Service) Forget(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byUser[userID]; ok {
		delete(s.records, id)
		delete(s.byUser, userID)
	}
}

func (s *Service) enqueue(u Update, persisted bool) {
	if !persisted || s.writer == nil {
		return
	}
	if err := s.writer.Enqueue(u); err != nil {
		slog.Error("progress update not scheduled",
			"record_id", u.RecordID,
			"error", &domain.PersistError{Op: "enqueue", RecordID: u.RecordID, Err: err})
	}
}
