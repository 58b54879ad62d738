package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/codeburst/internal/auth"
	"github.com/felixgeelhaar/codeburst/internal/collab"
	"github.com/felixgeelhaar/codeburst/internal/config"
	"github.com/felixgeelhaar/codeburst/internal/content"
	"github.com/felixgeelhaar/codeburst/internal/progress"
	"github.com/felixgeelhaar/codeburst/internal/storage/postgres"
	"github.com/felixgeelhaar/codeburst/internal/storage/sqlite"
)

// Storage bundles the repositories of the configured storage driver
type Storage struct {
	Driver   string
	Steps    content.StepSource
	Progress progress.Repository
	Auth     auth.Repository
	// Seeder is nil for the remote driver; its steps are managed upstream.
	Seeder content.StepSeeder

	ping    func(context.Context) error
	closers []func() error
}

// OpenStorage connects the driver named in cfg. The remote driver keeps
// identities in the local SQLite database since the records API has no
// user tables.
func OpenStorage(ctx context.Context, cfg *config.LocalConfig) (*Storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite, "":
		db, err := openSQLite(cfg)
		if err != nil {
			return nil, err
		}
		steps := sqlite.NewStepStore(db)
		return &Storage{
			Driver:   config.DriverSQLite,
			Steps:    steps,
			Seeder:   steps,
			Progress: sqlite.NewProgressStore(db),
			Auth:     sqlite.NewAuthStore(db),
			ping:     db.PingContext,
			closers:  []func() error{db.Close},
		}, nil

	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		steps := postgres.NewStepStore(db.Pool)
		return &Storage{
			Driver:   config.DriverPostgres,
			Steps:    steps,
			Seeder:   steps,
			Progress: postgres.NewProgressStore(db.Pool),
			Auth:     postgres.NewAuthStore(db.SQL),
			ping:     db.Pool.Ping,
			closers:  []func() error{db.Close},
		}, nil

	case config.DriverRemote:
		client, err := collab.NewClient(collab.Config{
			BaseURL:       cfg.Remote.BaseURL,
			ProjectID:     cfg.Remote.ProjectID,
			PublicKey:     cfg.Remote.PublicKey,
			Timeout:       cfg.Remote.Timeout(),
			RetryAttempts: cfg.Progress.RetryAttempts,
			RetryDelay:    cfg.Progress.RetryDelay(),
			Logger:        slog.Default().With("component", "collab"),
		})
		if err != nil {
			return nil, fmt.Errorf("create records api client: %w", err)
		}
		db, err := openSQLite(cfg)
		if err != nil {
			return nil, err
		}
		return &Storage{
			Driver:   config.DriverRemote,
			Steps:    collab.NewStepRepository(client),
			Progress: collab.NewProgressRepository(client),
			Auth:     sqlite.NewAuthStore(db),
			ping:     client.Ping,
			closers:  []func() error{db.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openSQLite(cfg *config.LocalConfig) (*sqlite.DB, error) {
	path, err := cfg.Storage.ResolvedSQLitePath()
	if err != nil {
		return nil, err
	}
	db, err := sqlite.OpenMigrated(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return db, nil
}

// Ping checks that the backend answers
func (s *Storage) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases every connection
func (s *Storage) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
