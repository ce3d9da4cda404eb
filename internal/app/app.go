// Package app wires configuration, storage, the manager and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"tasktracker/internal/config"
	"tasktracker/internal/manager"
	"tasktracker/internal/server"
	"tasktracker/internal/storage"
)

// App owns the storage, the manager and the HTTP server of one process.
type App struct {
	logger  *slog.Logger
	store   storage.Store
	manager *manager.Manager
	server  *server.Server
}

// New opens the configured storage and restores the last snapshot.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	m := manager.New(
		manager.WithSnapshotter(store),
		manager.WithHistoryLimit(cfg.History.Limit),
		manager.WithLogger(logger),
	)
	if err := m.Restore(snap); err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Info("snapshot restored",
		slog.String("driver", cfg.Storage.Driver),
		slog.Int("entities", len(snap.Entities)),
		slog.Int("history", len(snap.History)),
	)

	return &App{
		logger:  logger,
		store:   store,
		manager: m,
		server:  server.New(m, logger, cfg.HTTP.CORSOrigins),
	}, nil
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.server.Engine()
}

// Manager exposes the task manager.
func (a *App) Manager() *manager.Manager {
	return a.manager
}

// Close saves a final snapshot, so history from reads since the last
// mutation is kept, and releases the storage.
func (a *App) Close(ctx context.Context) error {
	saveErr := a.store.Save(ctx, a.manager.Snapshot())
	if saveErr != nil {
		a.logger.Error("final snapshot save failed", slog.String("error", saveErr.Error()))
	}
	return errors.Join(saveErr, a.store.Close())
}
