package models

import (
	"errors"
	"fmt"
)

// Domain errors.
var (
	ErrNotFound     = errors.New("entity not found")
	ErrEpicNotFound = errors.New("epic not found")
	ErrOverlap      = errors.New("time window overlaps another entity")
	ErrValidation   = errors.New("invalid entity")
	ErrStorage      = errors.New("storage failure")
)

// OverlapError reports the scheduled entity a candidate collided with.
type OverlapError struct {
	ID         int64
	ConflictID int64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("entity %d overlaps entity %d", e.ID, e.ConflictID)
}

// Is makes errors.Is(err, ErrOverlap) hold for every OverlapError.
func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlap
}
