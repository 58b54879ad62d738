package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/codeburst/internal/domain"
	"github.com/felixgeelhaar/fortify/bulkhead"
)

var (
	// ErrRunnerBusy is returned when every execution slot is taken.
	ErrRunnerBusy = errors.New("runner busy")
	// ErrSourceTooLarge is returned for snippets over the configured size.
	ErrSourceTooLarge = errors.New("source too large")
)

// harnessGrace is added to the wall-clock deadline so the in-harness vm
// timeout normally fires first and reports the partial output.
const harnessGrace = 2 * time.Second

// Config holds runner configuration
type Config struct {
	Timeout        time.Duration
	MaxConcurrent  int
	QueueTimeout   time.Duration
	MaxSourceBytes int
}

// DefaultConfig returns default runner configuration
func DefaultConfig() Config {
	return Config{
		Timeout:        5 * time.Second,
		MaxConcurrent:  4,
		QueueTimeout:   2 * time.Second,
		MaxSourceBytes: 64 * 1024,
	}
}

// Stats is a point-in-time view of runner activity.
type Stats struct {
	Executor string `json:"executor"`
	InFlight int64  `json:"in_flight"`
	Total    int64  `json:"total"`
	Failed   int64  `json:"failed"`
	Rejected int64  `json:"rejected"`
}

// Service executes learner snippets and classifies the result.
type Service struct {
	config   Config
	executor Executor
	bulkhead bulkhead.Bulkhead[*HarnessOutput]

	inFlight atomic.Int64
	total    atomic.Int64
	failed   atomic.Int64
	rejected atomic.Int64
}

// NewService creates a new runner service
func NewService(cfg Config, executor Executor) *Service {
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaults.MaxConcurrent
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = defaults.QueueTimeout
	}

	return &Service{
		config:   cfg,
		executor: executor,
		bulkhead: bulkhead.New[*HarnessOutput](bulkhead.Config{
			MaxConcurrent: cfg.MaxConcurrent,
			MaxQueue:      cfg.MaxConcurrent,
			QueueTimeout:  cfg.QueueTimeout,
		}),
	}
}

// Execute runs source and returns its classified result. Errors raised by
// the snippet are part of the result; the returned error is reserved for
// infrastructure failures, ErrRunnerBusy and ErrSourceTooLarge.
func (s *Service) Execute(ctx context.Context, source string, step *domain.TutorialStep) (domain.ExecutionResult, error) {
	if s.config.MaxSourceBytes > 0 && len(source) > s.config.MaxSourceBytes {
		return domain.ExecutionResult{}, fmt.Errorf("%w: %d bytes (max %d)", ErrSourceTooLarge, len(source), s.config.MaxSourceBytes)
	}

	start := time.Now()
	var started atomic.Bool
	var timedOut atomic.Bool

	out, err := s.bulkhead.Execute(ctx, func(ctx context.Context) (*HarnessOutput, error) {
		started.Store(true)
		s.inFlight.Add(1)
		defer s.inFlight.Add(-1)

		runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout+harnessGrace)
		defer cancel()

		out, err := s.executor.Run(runCtx, source, s.config.Timeout)
		if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			timedOut.Store(true)
			return &HarnessOutput{TimedOut: true}, nil
		}
		return out, err
	})

	switch {
	case err != nil && ctx.Err() != nil:
		return domain.ExecutionResult{}, ctx.Err()
	case err != nil && !started.Load():
		s.rejected.Add(1)
		return domain.ExecutionResult{}, fmt.Errorf("%w: %v", ErrRunnerBusy, err)
	case err != nil:
		s.failed.Add(1)
		slog.Error("snippet execution failed", "executor", s.executor.Name(), "error", err)
		return domain.ExecutionResult{}, fmt.Errorf("execute snippet: %w", err)
	}

	s.total.Add(1)
	if timedOut.Load() {
		slog.Warn("snippet hit wall-clock timeout", "executor", s.executor.Name(), "timeout", s.config.Timeout)
	}

	result := out.Result(s.config.Timeout)
	result.Duration = time.Since(start)
	result.ApplyVerdict(step)
	return result, nil
}

// Stats returns execution counters
func (s *Service) Stats() Stats {
	return Stats{
		Executor: s.executor.Name(),
		InFlight: s.inFlight.Load(),
		Total:    s.total.Load(),
		Failed:   s.failed.Load(),
		Rejected: s.rejected.Load(),
	}
}

// Timeout returns the per-run timeout
func (s *Service) Timeout() time.Duration {
	return s.config.Timeout
}

// Close releases the executor
func (s *Service) Close() error {
	return s.executor.Close()
}
