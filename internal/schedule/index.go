// Package schedule keeps time-bearing entities ordered by start time and
// rejects overlapping windows.
package schedule

import (
	"fmt"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"

	"tasktracker/internal/models"
)

// key orders slots by start time, then id, so the order is total.
type key struct {
	start time.Time
	id    int64
}

// slot is the interval remembered for one entity.
type slot struct {
	id       int64
	start    time.Time
	duration *time.Duration
}

func (s slot) nonEmpty() bool {
	return s.duration != nil && *s.duration > 0
}

func (s slot) window() (time.Time, time.Time, bool) {
	if s.duration == nil {
		return time.Time{}, time.Time{}, false
	}
	return s.start, s.start.Add(*s.duration), true
}

var byStartThenID utils.Comparator = func(a, b interface{}) int {
	ka, kb := a.(key), b.(key)
	if c := ka.start.Compare(kb.start); c != 0 {
		return c
	}
	switch {
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	}
	return 0
}

// Index is the prioritized set of scheduled tasks and subtasks.
// It is not safe for concurrent use.
type Index struct {
	tree *redblacktree.Tree
	keys map[int64]key
}

// New returns an empty index.
func New() *Index {
	return &Index{
		tree: redblacktree.NewWith(byStartThenID),
		keys: make(map[int64]key),
	}
}

// Insert adds e when it has a start time. Scheduled non-empty windows are
// pairwise disjoint, so their ends follow their starts: the nearest non-empty
// predecessor is the only earlier window that can reach the candidate, and
// later windows matter only while they start before the candidate ends.
func (x *Index) Insert(e models.Entity) error {
	if e.Kind == models.KindEpic {
		return fmt.Errorf("%w: epics are not scheduled directly", models.ErrValidation)
	}
	if !e.Scheduled() {
		return nil
	}
	if _, ok := x.keys[e.ID]; ok {
		return fmt.Errorf("%w: entity %d is already scheduled", models.ErrValidation, e.ID)
	}

	k := key{start: *e.StartTime, id: e.ID}
	candidate := slot{id: e.ID, start: *e.StartTime, duration: e.Duration}
	if conflict, ok := x.conflict(k, candidate); ok {
		return &models.OverlapError{ID: e.ID, ConflictID: conflict}
	}

	x.tree.Put(k, candidate)
	x.keys[e.ID] = k
	return nil
}

func (x *Index) conflict(k key, candidate slot) (int64, bool) {
	_, end, ok := candidate.window()
	if !ok {
		return 0, false
	}

	for below := (key{start: k.start, id: k.id - 1}); ; {
		node, found := x.tree.Floor(below)
		if !found {
			break
		}
		other := node.Value.(slot)
		if other.nonEmpty() {
			if overlaps(other, candidate) {
				return other.id, true
			}
			break
		}
		below = key{start: other.start, id: other.id - 1}
	}

	for above := (key{start: k.start, id: k.id + 1}); ; {
		node, found := x.tree.Ceiling(above)
		if !found {
			break
		}
		other := node.Value.(slot)
		if !other.start.Before(end) {
			break
		}
		if overlaps(candidate, other) {
			return other.id, true
		}
		above = key{start: other.start, id: other.id + 1}
	}
	return 0, false
}

// Remove drops the entity with the given id. Unknown ids are ignored.
func (x *Index) Remove(id int64) {
	k, ok := x.keys[id]
	if !ok {
		return
	}
	x.tree.Remove(k)
	delete(x.keys, id)
}

// Replace swaps the window of old for that of updated. If updated does not
// fit, old is put back and the index is left as it was.
func (x *Index) Replace(old, updated models.Entity) error {
	x.Remove(old.ID)
	if err := x.Insert(updated); err != nil {
		if old.Scheduled() {
			x.tree.Put(key{start: *old.StartTime, id: old.ID}, slot{id: old.ID, start: *old.StartTime, duration: old.Duration})
			x.keys[old.ID] = key{start: *old.StartTime, id: old.ID}
		}
		return err
	}
	return nil
}

// Prioritized returns the ids of scheduled entities by ascending (start, id).
func (x *Index) Prioritized() []int64 {
	out := make([]int64, 0, x.tree.Size())
	it := x.tree.Iterator()
	for it.Next() {
		out = append(out, it.Value().(slot).id)
	}
	return out
}

// Contains reports whether id is scheduled.
func (x *Index) Contains(id int64) bool {
	_, ok := x.keys[id]
	return ok
}

// Len returns the number of scheduled entities.
func (x *Index) Len() int {
	return x.tree.Size()
}

// Reset empties the index.
func (x *Index) Reset() {
	x.tree.Clear()
	clear(x.keys)
}

// Overlaps reports whether the half-open windows of a and b intersect.
// Entities without both a start time and a duration overlap nothing.
func Overlaps(a, b models.Entity) bool {
	if a.StartTime == nil || b.StartTime == nil {
		return false
	}
	return overlaps(
		slot{id: a.ID, start: *a.StartTime, duration: a.Duration},
		slot{id: b.ID, start: *b.StartTime, duration: b.Duration},
	)
}

func overlaps(a, b slot) bool {
	aStart, aEnd, ok := a.window()
	if !ok {
		return false
	}
	bStart, bEnd, ok := b.window()
	if !ok {
		return false
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
