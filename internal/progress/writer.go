package progress

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/codeburst/internal/domain"
	"github.com/felixgeelhaar/fortify/retry"
)

// WriterConfig holds write-behind settings
type WriterConfig struct {
	// MaxPending bounds the number of records waiting to be written (default: 256)
	MaxPending int
	// RetryAttempts bounds attempts per update (default: 3)
	RetryAttempts int
	// RetryDelay is the initial backoff between attempts (default: 200ms)
	RetryDelay time.Duration
	// WriteTimeout bounds a single apply (default: 10s)
	WriteTimeout time.Duration
	// OnError is called when an update is dropped after the last attempt
	OnError func(u Update, err error)
	Logger  *slog.Logger
}

// DefaultWriterConfig returns the default write-behind settings
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		MaxPending:    256,
		RetryAttempts: 3,
		RetryDelay:    200 * time.Millisecond,
		WriteTimeout:  10 * time.Second,
	}
}

// WriterStats reports writer activity
type WriterStats struct {
	Pending int   `json:"pending"`
	Applied int64 `json:"applied"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

// Writer is a write-behind queue in front of a Sink. Updates for the same
// record are coalesced so only the newest snapshot is applied, and a single
// goroutine applies them so writes for a record never overlap.
type Writer struct {
	sink    Sink
	retrier retry.Retry[struct{}]
	cfg     WriterConfig
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]Update
	order   []string
	closed  bool

	wake   chan struct{}
	quit   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	applied atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewWriter starts a writer applying updates to sink
func NewWriter(sink Sink, cfg WriterConfig) *Writer {
	defaults := DefaultWriterConfig()
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = defaults.MaxPending
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaults.RetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaults.RetryDelay
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Writer{
		sink:    sink,
		cfg:     cfg,
		logger:  logger,
		pending: make(map[string]Update),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	w.retrier = retry.New[struct{}](retry.Config{
		MaxAttempts:   cfg.RetryAttempts,
		InitialDelay:  cfg.RetryDelay,
		MaxDelay:      5 * time.Second,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable: func(err error) bool {
			return !errors.Is(err, domain.ErrProgressNotFound) &&
				!errors.Is(err, context.Canceled)
		},
	})

	go w.run()
	return w
}

// Enqueue hands an update to the writer without waiting for it to be
// applied. An older snapshot never replaces a newer pending one.
func (w *Writer) Enqueue(u Update) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	if existing, ok := w.pending[u.RecordID]; ok {
		if !existing.LastAccessedAt.After(u.LastAccessedAt) {
			w.pending[u.RecordID] = u
		}
	} else {
		if len(w.pending) >= w.cfg.MaxPending {
			w.mu.Unlock()
			w.dropped.Add(1)
			return ErrWriterFull
		}
		w.pending[u.RecordID] = u
		w.order = append(w.order, u.RecordID)
	}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Drain stops accepting updates and waits until every pending update has
// been applied or ctx ends. Pending updates left when ctx ends are dropped.
func (w *Writer) Drain(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.quit)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.cancel()
		<-w.done
		return ctx.Err()
	}
}

// Stats returns a snapshot of writer counters
func (w *Writer) Stats() WriterStats {
	w.mu.Lock()
	pending := len(w.pending)
	w.mu.Unlock()
	return WriterStats{
		Pending: pending,
		Applied: w.applied.Load(),
		Failed:  w.failed.Load(),
		Dropped: w.dropped.Load(),
	}
}

func (w *Writer) run() {
	defer close(w.done)
	defer w.cancel()

	for {
		select {
		case <-w.wake:
			w.flush()
		case <-w.quit:
			w.flush()
			return
		}
	}
}

// flush applies pending updates until none are left or the writer context
// is canceled.
func (w *Writer) flush() {
	for {
		u, ok := w.next()
		if !ok {
			return
		}
		if w.ctx.Err() != nil {
			w.dropped.Add(1)
			continue
		}
		w.apply(u)
	}
}

func (w *Writer) next() (Update, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.order) == 0 {
		return Update{}, false
	}
	id := w.order[0]
	w.order = w.order[1:]
	u := w.pending[id]
	delete(w.pending, id)
	return u, true
}

func (w *Writer) apply(u Update) {
	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.WriteTimeout)
	defer cancel()

	_, err := w.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.sink.Apply(ctx, u)
	})
	if err == nil {
		w.applied.Add(1)
		return
	}

	w.failed.Add(1)
	w.logger.Error("progress update dropped",
		"record_id", u.RecordID,
		"user_id", u.UserID,
		"current_step", u.CurrentStep,
		"error", err)
	if w.cfg.OnError != nil {
		w.cfg.OnError(u, err)
	}
}
