// Package storage selects the snapshot backend the application persists to.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"tasktracker/internal/models"
	"tasktracker/internal/storage/csvfile"
	"tasktracker/internal/storage/sqlite"
)

// Supported drivers.
const (
	DriverCSV    = "csv"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Store loads and saves full snapshots.
type Store interface {
	Load(ctx context.Context) (models.Snapshot, error)
	Save(ctx context.Context, snap models.Snapshot) error
	Close() error
}

// Open returns the store for driver. The memory driver keeps nothing and
// ignores path.
func Open(driver, path string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch driver {
	case DriverCSV:
		if path == "" {
			return nil, fmt.Errorf("%w: csv storage needs a file path", models.ErrValidation)
		}
		logger.Info("using csv snapshot file", slog.String("path", path))
		return csvfile.New(afero.NewOsFs(), path, logger), nil
	case DriverSQLite:
		return sqlite.Open(path, logger)
	case DriverMemory:
		logger.Warn("memory storage selected, state is lost on exit")
		return memory{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", models.ErrValidation, driver)
	}
}

type memory struct{}

func (memory) Load(context.Context) (models.Snapshot, error) { return models.Snapshot{}, nil }
func (memory) Save(context.Context, models.Snapshot) error { return nil }
func (memory) Close() error { return nil }
