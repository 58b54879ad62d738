// Package app assembles the services of a CodeBurst process from its
// configuration. The Context it builds is passed explicitly to the daemon,
// the CLI and the MCP server; nothing is kept in package globals.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/felixgeelhaar/codeburst/internal/auth"
	"github.com/felixgeelhaar/codeburst/internal/config"
	"github.com/felixgeelhaar/codeburst/internal/content"
	"github.com/felixgeelhaar/codeburst/internal/progress"
	"github.com/felixgeelhaar/codeburst/internal/queue"
	"github.com/felixgeelhaar/codeburst/internal/runner"
	"github.com/felixgeelhaar/codeburst/internal/storage/local"
	"github.com/felixgeelhaar/codeburst/internal/theme"
)

// Context is the process-wide service container
type Context struct {
	Config   *config.LocalConfig
	Storage  *Storage
	Content  *content.Store
	Runner   *runner.Service
	Progress *progress.Service
	Writer   *progress.Writer
	Auth     *auth.Service
	Theme    *theme.Preferences

	queueConn *queue.Connection
	consumer  *queue.Consumer
}

// Option customises New
type Option func(*options)

type options struct {
	storage  *Storage
	executor runner.Executor
	noRunner bool
	getenv   func(string) string
}

// WithStorage uses s instead of opening the configured driver
func WithStorage(s *Storage) Option {
	return func(o *options) { o.storage = s }
}

// WithExecutor uses exec instead of building the configured executor
func WithExecutor(exec runner.Executor) Option {
	return func(o *options) { o.executor = exec }
}

// WithoutRunner skips executor setup for processes that never run code
func WithoutRunner() Option {
	return func(o *options) { o.noRunner = true }
}

// WithEnv overrides environment lookups for theme detection
func WithEnv(getenv func(string) string) Option {
	return func(o *options) { o.getenv = getenv }
}

// New builds a Context. On error every resource opened so far is released.
func New(ctx context.Context, cfg *config.LocalConfig, opts ...Option) (_ *Context, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &Context{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.Storage = o.storage
	if a.Storage == nil {
		if a.Storage, err = OpenStorage(ctx, cfg); err != nil {
			return nil, err
		}
	}

	source, err := stepSource(cfg, a.Storage)
	if err != nil {
		return nil, err
	}
	a.Content = content.NewStore(source, cfg.Content.CacheTTL())

	if !o.noRunner {
		exec := o.executor
		if exec == nil {
			if exec, err = newExecutor(cfg); err != nil {
				return nil, fmt.Errorf("create executor: %w", err)
			}
		}
		a.Runner = runner.NewService(runner.Config{
			Timeout:        cfg.Runner.Timeout(),
			MaxConcurrent:  cfg.Runner.MaxConcurrent,
			MaxSourceBytes: cfg.Runner.MaxSourceBytes,
		}, exec)
	}

	sink, err := a.progressSink(ctx)
	if err != nil {
		return nil, err
	}
	a.Writer = progress.NewWriter(sink, progress.WriterConfig{
		MaxPending:    cfg.Progress.QueueSize,
		RetryAttempts: cfg.Progress.RetryAttempts,
		RetryDelay:    cfg.Progress.RetryDelay(),
		Logger:        slog.Default().With("component", "progress_writer"),
	})
	a.Progress = progress.NewService(a.Storage.Progress, a.Writer)

	a.Auth = auth.NewService(a.Storage.Auth, cfg.Auth.SessionMaxAge())

	if a.Theme, err = newThemePreferences(cfg, o.getenv); err != nil {
		slog.Warn("theme preferences unavailable", "error", err)
	}

	return a, nil
}

// stepSource picks where steps come from: the storage driver, or the YAML
// pack directory for the builtin source.
func stepSource(cfg *config.LocalConfig, s *Storage) (content.StepSource, error) {
	if cfg.Content.Source == "builtin" {
		path, err := cfg.Content.ResolvedPacksPath()
		if err != nil {
			return nil, err
		}
		return content.NewPackLoader(path), nil
	}
	return s.Steps, nil
}

func newExecutor(cfg *config.LocalConfig) (runner.Executor, error) {
	d := cfg.Runner.Docker
	return runner.NewExecutor(cfg.Runner.Executor, runner.DockerConfig{
		Image:      d.Image,
		MemoryMB:   int64(d.MemoryMB),
		CPULimit:   d.CPULimit,
		PidsLimit:  int64(d.PidsLimit),
		NetworkOff: d.NetworkOff,
	}, cfg.Runner.NodePath)
}

// progressSink returns the writer's destination. With the amqp writer,
// updates are published to RabbitMQ and a consumer pool in this process
// applies them to the repository.
func (a *Context) progressSink(ctx context.Context) (progress.Sink, error) {
	direct := progress.RepositorySink{Repo: a.Storage.Progress}
	if a.Config.Progress.Writer != config.WriterAMQP {
		return direct, nil
	}

	conn, err := queue.NewConnection(a.Config.Queue.URL)
	if err != nil {
		return nil, fmt.Errorf("connect progress queue: %w", err)
	}
	a.queueConn = conn

	a.consumer = queue.NewConsumer(conn, direct.Apply, queue.ConsumerConfig{
		Workers: a.Config.Queue.Workers,
	})
	if err := a.consumer.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, fmt.Errorf("start progress consumer: %w", err)
	}

	return queue.NewProducer(conn), nil
}

func newThemePreferences(cfg *config.LocalConfig, getenv func(string) string) (*theme.Preferences, error) {
	dir, err := config.CodeBurstDir()
	if err != nil {
		return nil, err
	}
	store, err := local.NewStore(filepath.Join(dir, "preferences", local.DefaultFile))
	if err != nil {
		return nil, err
	}
	return theme.NewPreferences(store, cfg.Preferences.DarkMode, getenv), nil
}

// Close drains pending progress writes within ctx, then stops the queue
// consumer and releases the executor and storage.
func (a *Context) Close(ctx context.Context) error {
	var errs []error

	if a.Writer != nil {
		if err := a.Writer.Drain(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain progress writer: %w", err))
		}
		if stats := a.Writer.Stats(); stats.Pending > 0 || stats.Dropped > 0 {
			slog.Warn("progress writer closed with unsaved updates",
				"pending", stats.Pending,
				"dropped", stats.Dropped)
		}
	}
	if a.consumer != nil {
		a.consumer.Stop()
	}
	if a.queueConn != nil {
		if err := a.queueConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue: %w", err))
		}
	}
	if a.Runner != nil {
		if err := a.Runner.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close runner: %w", err))
		}
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
