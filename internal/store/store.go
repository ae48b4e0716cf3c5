// Package store persists the pause decisions of the preemptive scheduler.
//
// A Store holds at most one PauseRecord per orchestration instance. Pausing an
// already-paused instance is a no-op, and Resume hands back the most recently
// paused instances first.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/me/dicomfn/internal/config"
	"github.com/me/dicomfn/pkg/model"
)

// ErrInvalidRef is returned when a ref has an empty name or instance id.
var ErrInvalidRef = errors.New("store: invalid instance ref")

// Store defines the persistence layer for paused orchestration instances.
type Store interface {
	// Pause records ref as paused at the given time. It reports false, without
	// error, when ref is already paused.
	Pause(ctx context.Context, ref model.InstanceRef, at time.Time) (bool, error)

	// Resume removes and returns up to count refs, most recently paused first.
	Resume(ctx context.Context, count int) ([]model.InstanceRef, error)

	// ListPaused returns a copy of the set of paused refs.
	ListPaused(ctx context.Context) (map[model.InstanceRef]struct{}, error)

	// Records returns every pause record, most recently paused first.
	Records(ctx context.Context) ([]model.PauseRecord, error)

	Close() error
}

// Open builds the store selected by cfg. SQLite stores are migrated before
// they are returned.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case config.StoreBackendMemory, "":
		return NewMemoryStore(), nil
	case config.StoreBackendSQLite:
		path, err := resolvePath(cfg.Path)
		if err != nil {
			return nil, err
		}
		st, err := NewSQLiteStore(path, logger)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate %s: %w", path, err)
		}
		logger.Info("preemption store ready", "backend", cfg.Backend, "path", path)
		return st, nil
	}
	return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
}

// resolvePath defaults the database to ~/.dicomfn/preemption.db and expands
// a leading "~/".
func resolvePath(path string) (string, error) {
	if path != "" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	if path != "" {
		path = filepath.Join(home, path[2:])
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("cannot create %s: %w", filepath.Dir(path), err)
		}
		return path, nil
	}
	dir := filepath.Join(home, ".dicomfn")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	return filepath.Join(dir, "preemption.db"), nil
}

func validateRef(ref model.InstanceRef) error {
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}
	return nil
}
