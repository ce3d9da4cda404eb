package manager

import (
	"context"
	"fmt"
	"log/slog"

	"tasktracker/internal/models"
)

// Snapshot returns the full state: tasks, epics and subtasks ordered by id,
// followed by the access history.
func (m *Manager) Snapshot() models.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Manager) snapshot() models.Snapshot {
	snap := models.Snapshot{History: m.history.List()}
	for _, k := range models.Kinds {
		snap.Entities = append(snap.Entities, m.store.list(k)...)
	}
	return snap
}

// Restore loads snap into an empty manager. Entities are replayed through
// the same rules as Create with their ids kept, so the schedule and epic
// fields are rebuilt rather than trusted. On error the manager stays empty.
func (m *Manager) Restore(snap models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store.len() > 0 {
		return fmt.Errorf("%w: restore into a non-empty manager", models.ErrValidation)
	}
	if err := m.replay(snap); err != nil {
		m.reset()
		return fmt.Errorf("restore snapshot: %w", err)
	}
	return nil
}

func (m *Manager) replay(snap models.Snapshot) error {
	// epics must exist before their subtasks
	ordered := make([]models.Entity, 0, len(snap.Entities))
	for _, e := range snap.Entities {
		if e.Kind != models.KindSubtask {
			ordered = append(ordered, e)
		}
	}
	for _, e := range snap.Entities {
		if e.Kind == models.KindSubtask {
			ordered = append(ordered, e)
		}
	}

	for _, raw := range ordered {
		if raw.ID <= 0 {
			return fmt.Errorf("%w: %s without id", models.ErrValidation, raw.Kind)
		}
		if _, dup := m.store.find(raw.ID); dup {
			return fmt.Errorf("%w: duplicate id %d", models.ErrValidation, raw.ID)
		}
		e, err := normalize(raw)
		if err != nil {
			return fmt.Errorf("entity %d: %w", raw.ID, err)
		}
		if _, err := m.insert(e); err != nil {
			return fmt.Errorf("entity %d: %w", raw.ID, err)
		}
		m.ids.observe(e.ID)
	}

	for _, id := range snap.History {
		if _, ok := m.store.find(id); !ok {
			return fmt.Errorf("history references %d: %w", id, models.ErrNotFound)
		}
		m.history.Record(id)
	}
	return nil
}

func (m *Manager) reset() {
	for _, k := range models.Kinds {
		m.store.reset(k)
	}
	m.index.Reset()
	m.history.Reset()
	m.ids = allocator{}
}

func (m *Manager) persist(ctx context.Context) error {
	if m.snapshots == nil {
		return nil
	}
	if err := m.snapshots.Save(ctx, m.snapshot()); err != nil {
		m.logger.Error("snapshot save failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: save snapshot: %w", models.ErrStorage, err)
	}
	return nil
}
