package manager

import (
	"maps"
	"slices"

	"tasktracker/internal/models"
)

// store holds the canonical copy of every entity, partitioned by kind.
type store struct {
	byKind map[models.Kind]map[int64]*models.Entity
}

func newStore() *store {
	s := &store{byKind: make(map[models.Kind]map[int64]*models.Entity, len(models.Kinds))}
	for _, k := range models.Kinds {
		s.byKind[k] = make(map[int64]*models.Entity)
	}
	return s
}

func (s *store) get(kind models.Kind, id int64) (*models.Entity, bool) {
	e, ok := s.byKind[kind][id]
	return e, ok
}

// find looks an id up regardless of kind.
func (s *store) find(id int64) (*models.Entity, bool) {
	for _, k := range models.Kinds {
		if e, ok := s.byKind[k][id]; ok {
			return e, true
		}
	}
	return nil, false
}

func (s *store) put(e models.Entity) *models.Entity {
	stored := e.Clone()
	s.byKind[e.Kind][e.ID] = &stored
	return &stored
}

func (s *store) remove(kind models.Kind, id int64) {
	delete(s.byKind[kind], id)
}

func (s *store) ids(kind models.Kind) []int64 {
	return slices.Sorted(maps.Keys(s.byKind[kind]))
}

// list returns copies ordered by id.
func (s *store) list(kind models.Kind) []models.Entity {
	ids := s.ids(kind)
	out := make([]models.Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byKind[kind][id].Clone())
	}
	return out
}

func (s *store) reset(kind models.Kind) {
	clear(s.byKind[kind])
}

func (s *store) len() int {
	n := 0
	for _, m := range s.byKind {
		n += len(m)
	}
	return n
}
