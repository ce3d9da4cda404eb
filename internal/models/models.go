package models

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Kind tags the variant of an Entity.
type Kind string

const (
	KindTask    Kind = "TASK"
	KindEpic    Kind = "EPIC"
	KindSubtask Kind = "SUBTASK"
)

// Kinds lists every entity kind in snapshot order.
var Kinds = []Kind{KindTask, KindEpic, KindSubtask}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindTask || k == KindEpic || k == KindSubtask
}

// Status is the progress state shared by every entity kind.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// ValidStatuses enumerates the statuses an entity may carry.
var ValidStatuses = map[Status]struct{}{
	StatusNew:        {},
	StatusInProgress: {},
	StatusDone:       {},
}

// MaxMinutes is the largest minute count that fits in a time.Duration.
const MaxMinutes = math.MaxInt64 / int64(time.Minute)

// Minutes converts a whole-minute count to a duration. Negative counts and
// counts beyond MaxMinutes are rejected.
func Minutes(n int64) (time.Duration, error) {
	if n < 0 || n > MaxMinutes {
		return 0, fmt.Errorf("duration %d minutes is out of range [0, %d]", n, MaxMinutes)
	}
	return time.Duration(n) * time.Minute, nil
}

// TimeLayout is the local date-time layout used on the wire and in snapshots.
const TimeLayout = "2006-01-02T15:04:05"

// Entity is a task, an epic or a subtask.
//
// SubtaskIDs is only meaningful for epics and EpicID only for subtasks.
// For epics Status, StartTime, Duration and End are derived from the
// subtasks and are overwritten on every change.
type Entity struct {
	ID          int64
	Kind        Kind
	Name        string
	Description string
	Status      Status
	StartTime   *time.Time
	Duration    *time.Duration
	End         *time.Time
	EpicID      int64
	SubtaskIDs  []int64
}

// EndTime returns the end of the entity's time window, or nil when it has none.
func (e Entity) EndTime() *time.Time {
	if e.Kind == KindEpic {
		return e.End
	}
	if e.StartTime == nil || e.Duration == nil {
		return nil
	}
	end := e.StartTime.Add(*e.Duration)
	return &end
}

// Scheduled reports whether the entity has a start time.
func (e Entity) Scheduled() bool {
	return e.StartTime != nil
}

// Clone returns a deep copy so callers never share state with the store.
func (e Entity) Clone() Entity {
	out := e
	if e.StartTime != nil {
		start := *e.StartTime
		out.StartTime = &start
	}
	if e.Duration != nil {
		d := *e.Duration
		out.Duration = &d
	}
	if e.End != nil {
		end := *e.End
		out.End = &end
	}
	out.SubtaskIDs = slices.Clone(e.SubtaskIDs)
	return out
}

// Snapshot is the full persisted state: every entity plus access history.
type Snapshot struct {
	Entities []Entity
	History  []int64
}

// Empty reports whether the snapshot holds nothing.
func (s Snapshot) Empty() bool {
	return len(s.Entities) == 0 && len(s.History) == 0
}
