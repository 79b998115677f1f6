// Package backend builds the record store selected by DATA_BACKEND.
package backend

import (
	"context"
	"fmt"

	"fareboard/internal/config"
	"fareboard/internal/log"
	"fareboard/internal/records"
	"fareboard/internal/records/csvstore"
	"fareboard/internal/records/memory"
	"fareboard/internal/storage"
)

// Type names a record store implementation.
type Type string

const (
	CSV    Type = config.BackendCSV
	SQLite Type = config.BackendSQLite
	Memory Type = config.BackendMemory
)

func (t Type) String() string { return string(t) }

func (t Type) IsValid() bool {
	switch t {
	case CSV, SQLite, Memory:
		return true
	default:
		return false
	}
}

// Config holds what each backend needs to open.
type Config struct {
	Type         Type
	DataDir      string
	SQLiteDBPath string
}

// FromAppConfig extracts the backend settings from the application config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	c := Config{
		Type:         Type(cfg.DataBackend),
		DataDir:      cfg.DataDir,
		SQLiteDBPath: cfg.SQLiteDBPath,
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Type {
	case CSV:
		if c.DataDir == "" {
			return fmt.Errorf("data directory is required for csv backend")
		}
	case SQLite:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case Memory:
	default:
		return fmt.Errorf("invalid backend type: %q", c.Type)
	}
	return nil
}

// Result is an opened store with its optional probe and cleanup.
type Result struct {
	Store records.Store
	// Ready checks that the store can serve requests; nil means always ready.
	Ready func(ctx context.Context) error
	// Cleanup releases the store; nil means nothing to release.
	Cleanup func() error
}

// Close runs Cleanup when set.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{logger: logger}
}

// Create opens the store described by cfg.
func (f *Factory) Create(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := f.logger.WithComponent(log.ComponentBackend)

	switch cfg.Type {
	case SQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite backend: %w", err)
		}
		logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return &Result{Store: repo, Ready: repo.Ping, Cleanup: repo.Close}, nil

	case Memory:
		logger.WarnContext(ctx, "Initialized memory backend; records are lost on exit")
		return &Result{Store: memory.New()}, nil

	default:
		store := csvstore.New(cfg.DataDir, f.logger)
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("initialize csv backend: %w", err)
		}
		logger.InfoContext(ctx, "Initialized CSV backend", "data_dir", cfg.DataDir)
		return &Result{Store: store, Ready: store.Ping}, nil
	}
}
