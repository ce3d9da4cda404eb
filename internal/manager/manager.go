// Package manager composes the task store, scheduling index, epic
// aggregation and access history into one consistent unit.
//
// Every exported method runs under a single mutex: a mutation touches the
// store, the index, the epics and the history together and no caller may
// observe it half applied.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tasktracker/internal/history"
	"tasktracker/internal/models"
	"tasktracker/internal/schedule"
)

// Snapshotter persists the full state after each successful mutation.
type Snapshotter interface {
	Save(ctx context.Context, snap models.Snapshot) error
}

// Manager owns all task state. The zero value is not usable; call New.
type Manager struct {
	mu           sync.Mutex
	ids          allocator
	store        *store
	index        *schedule.Index
	history      *history.Tracker
	historyLimit int
	snapshots    Snapshotter
	logger       *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithSnapshotter saves a snapshot after every mutation.
func WithSnapshotter(s Snapshotter) Option {
	return func(m *Manager) { m.snapshots = s }
}

// WithHistoryLimit bounds the access history to the n most recent entries.
func WithHistoryLimit(n int) Option {
	return func(m *Manager) { m.historyLimit = n }
}

// WithLogger sets the logger used for storage diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New returns an empty manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		store:  newStore(),
		index:  schedule.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.history = history.New(history.WithLimit(m.historyLimit))
	return m
}

// Create stores e under a freshly allocated id and returns the stored copy.
// Any id supplied by the caller is ignored. If only the snapshot save fails,
// the entity is still created: both the stored copy and an error wrapping
// models.ErrStorage are returned.
func (m *Manager) Create(ctx context.Context, e models.Entity) (models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := normalize(e)
	if err != nil {
		return models.Entity{}, err
	}
	e.ID = m.ids.peek()

	stored, err := m.insert(e)
	if err != nil {
		return models.Entity{}, err
	}
	m.ids.take()
	return stored.Clone(), m.persist(ctx)
}

// insert applies the create rules for e, whose id is already set.
func (m *Manager) insert(e models.Entity) (*models.Entity, error) {
	switch e.Kind {
	case models.KindEpic:
		e.SubtaskIDs = nil
		aggregate(&e, nil)
		return m.store.put(e), nil
	case models.KindSubtask:
		if _, ok := m.store.get(models.KindEpic, e.EpicID); !ok {
			return nil, fmt.Errorf("subtask references epic %d: %w", e.EpicID, models.ErrEpicNotFound)
		}
	}

	if err := m.index.Insert(e); err != nil {
		return nil, err
	}
	stored := m.store.put(e)
	if e.Kind == models.KindSubtask {
		m.attachSubtask(e.EpicID, e.ID)
		m.refreshEpic(e.EpicID)
	}
	return stored, nil
}

// Get returns the entity of the given kind and records the access.
func (m *Manager) Get(kind models.Kind, id int64) (models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.store.get(kind, id)
	if !ok {
		return models.Entity{}, notFound(kind, id)
	}
	m.history.Record(id)
	return e.Clone(), nil
}

// Update replaces the stored entity with the same id and kind. The id and a
// subtask's epic can not change. Epics only take a new name and description.
// As with Create, a failed snapshot save returns the applied entity together
// with an error wrapping models.ErrStorage.
func (m *Manager) Update(ctx context.Context, e models.Entity) (models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := normalize(e)
	if err != nil {
		return models.Entity{}, err
	}
	old, ok := m.store.get(e.Kind, e.ID)
	if !ok {
		return models.Entity{}, notFound(e.Kind, e.ID)
	}

	var stored *models.Entity
	switch e.Kind {
	case models.KindEpic:
		old.Name = e.Name
		old.Description = e.Description
		stored = old
	case models.KindSubtask:
		if e.EpicID != 0 && e.EpicID != old.EpicID {
			return models.Entity{}, fmt.Errorf("%w: subtask %d can not move from epic %d to %d",
				models.ErrValidation, e.ID, old.EpicID, e.EpicID)
		}
		e.EpicID = old.EpicID
		if err := m.index.Replace(*old, e); err != nil {
			return models.Entity{}, err
		}
		stored = m.store.put(e)
		m.refreshEpic(e.EpicID)
	default:
		if err := m.index.Replace(*old, e); err != nil {
			return models.Entity{}, err
		}
		stored = m.store.put(e)
	}
	return stored.Clone(), m.persist(ctx)
}

// Delete removes the entity; deleting an epic removes its subtasks too.
func (m *Manager) Delete(ctx context.Context, kind models.Kind, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.store.get(kind, id)
	if !ok {
		return notFound(kind, id)
	}

	switch kind {
	case models.KindEpic:
		for _, sid := range e.SubtaskIDs {
			m.drop(models.KindSubtask, sid)
		}
		m.drop(kind, id)
	case models.KindSubtask:
		epicID := e.EpicID
		m.drop(kind, id)
		m.detachSubtask(epicID, id)
		m.refreshEpic(epicID)
	default:
		m.drop(kind, id)
	}
	return m.persist(ctx)
}

// drop removes id from the store, the index and the history.
func (m *Manager) drop(kind models.Kind, id int64) {
	m.store.remove(kind, id)
	m.index.Remove(id)
	m.history.Evict(id)
}

// Clear removes every entity of kind. Clearing epics clears all subtasks;
// clearing subtasks leaves epics empty and recomputed.
func (m *Manager) Clear(ctx context.Context, kind models.Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !kind.Valid() {
		return fmt.Errorf("%w: unknown type %q", models.ErrValidation, kind)
	}

	switch kind {
	case models.KindEpic:
		m.clearKind(models.KindSubtask)
		m.clearKind(models.KindEpic)
	case models.KindSubtask:
		m.clearKind(models.KindSubtask)
		for _, id := range m.store.ids(models.KindEpic) {
			epic, _ := m.store.get(models.KindEpic, id)
			epic.SubtaskIDs = nil
			aggregate(epic, nil)
		}
	default:
		m.clearKind(kind)
	}
	return m.persist(ctx)
}

func (m *Manager) clearKind(kind models.Kind) {
	for _, id := range m.store.ids(kind) {
		m.index.Remove(id)
		m.history.Evict(id)
	}
	m.store.reset(kind)
}

// List returns copies of every entity of kind ordered by id.
func (m *Manager) List(kind models.Kind) []models.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.list(kind)
}

// EpicSubtasks returns the subtasks of an epic in the order they were added.
func (m *Manager) EpicSubtasks(epicID int64) ([]models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	epic, ok := m.store.get(models.KindEpic, epicID)
	if !ok {
		return nil, notFound(models.KindEpic, epicID)
	}
	subtasks := m.subtasksOf(epic)
	for i := range subtasks {
		subtasks[i] = subtasks[i].Clone()
	}
	return subtasks, nil
}

// History returns accessed entities from least to most recent.
func (m *Manager) History() []models.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolve(m.history.List())
}

// Prioritized returns scheduled tasks and subtasks by start time, then id.
func (m *Manager) Prioritized() []models.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolve(m.index.Prioritized())
}

func (m *Manager) resolve(ids []int64) []models.Entity {
	out := make([]models.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := m.store.find(id); ok {
			out = append(out, e.Clone())
		}
	}
	return out
}

func notFound(kind models.Kind, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, models.ErrNotFound)
}
