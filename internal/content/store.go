package content

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/codeburst/internal/domain"
)

// StepSource provides the non-deleted tutorial steps of a backend
type StepSource interface {
	ListSteps(ctx context.Context) ([]domain.TutorialStep, error)
}

// StepSeeder writes steps into a backend
type StepSeeder interface {
	UpsertSteps(ctx context.Context, steps []domain.TutorialStep) error
}

// Store serves the tutorial step sequence from a StepSource with a
// snapshot cache.
type Store struct {
	source StepSource
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	cached   []domain.TutorialStep
	loadedAt time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the store clock
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a step store. A ttl of zero disables caching.
func NewStore(source StepSource, ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadSteps returns the step sequence ordered by Order. An empty source
// yields the built-in fallback sequence. Source failures are returned as
// *domain.FetchError.
func (s *Store) LoadSteps(ctx context.Context) ([]domain.TutorialStep, error) {
	if steps, ok := s.snapshot(); ok {
		return steps, nil
	}

	steps, err := s.source.ListSteps(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var fetchErr *domain.FetchError
		if !errors.As(err, &fetchErr) {
			err = &domain.FetchError{Op: "steps", Err: err}
		}
		return nil, err
	}

	if len(steps) == 0 {
		steps = domain.FallbackSteps()
	}
	steps = cloneSteps(steps)
	domain.SortSteps(steps)

	s.mu.Lock()
	s.cached = steps
	s.loadedAt = s.now()
	s.mu.Unlock()

	return cloneSteps(steps), nil
}

// LoadStepsWithFallback never fails: when the source cannot be read the
// fallback sequence is returned together with a learner-facing notice.
func (s *Store) LoadStepsWithFallback(ctx context.Context) ([]domain.TutorialStep, []string) {
	steps, err := s.LoadSteps(ctx)
	if err == nil {
		return steps, nil
	}
	slog.Warn("step load failed, serving fallback", "error", err)
	return domain.FallbackSteps(), []string{domain.Notice(err)}
}

// GetStep returns a single step by id
func (s *Store) GetStep(ctx context.Context, id string) (*domain.TutorialStep, error) {
	steps, _ := s.LoadStepsWithFallback(ctx)
	idx := domain.IndexOf(steps, id)
	if idx < 0 {
		return nil, domain.ErrStepNotFound
	}
	step := steps[idx]
	return &step, nil
}

// Reload drops the cached snapshot and reads the source again
func (s *Store) Reload(ctx context.Context) ([]domain.TutorialStep, error) {
	s.Invalidate()
	return s.LoadSteps(ctx)
}

// Invalidate drops the cached snapshot
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.loadedAt = time.Time{}
	s.mu.Unlock()
}

func (s *Store) snapshot() ([]domain.TutorialStep, bool) {
	if s.ttl <= 0 {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached == nil || s.now().Sub(s.loadedAt) >= s.ttl {
		return nil, false
	}
	return cloneSteps(s.cached), true
}

func cloneSteps(steps []domain.TutorialStep) []domain.TutorialStep {
	out := make([]domain.TutorialStep, len(steps))
	copy(out, steps)
	return out
}

// Seed loads every pack from loader and writes the steps into seeder. It
// returns the number of steps written.
func Seed(ctx context.Context, loader *PackLoader, seeder StepSeeder) (int, error) {
	steps, err := loader.ListSteps(ctx)
	if err != nil {
		return 0, err
	}
	if len(steps) == 0 {
		return 0, nil
	}
	if err := seeder.UpsertSteps(ctx, steps); err != nil {
		return 0, err
	}
	return len(steps), nil
}
