package server

import (
	"fmt"
	"strings"
	"time"

	"tasktracker/internal/models"
)

// entityJSON is the wire form of every entity kind. Durations are whole
// minutes and times use models.TimeLayout in UTC.
type entityJSON struct {
	ID          int64   `json:"id"`
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Duration    *int64  `json:"duration"`
	StartTime   *string `json:"startTime"`
	EndTime     *string `json:"endTime"`
	EpicID      *int64  `json:"epicId,omitempty"`
	SubtaskIDs  []int64 `json:"subtaskIds,omitempty"`
}

func toJSON(e models.Entity) entityJSON {
	out := entityJSON{
		ID:          e.ID,
		Type:        string(e.Kind),
		Name:        e.Name,
		Description: e.Description,
		Status:      string(e.Status),
		StartTime:   formatTime(e.StartTime),
		EndTime:     formatTime(e.EndTime()),
	}
	if e.Duration != nil {
		m := int64(*e.Duration / time.Minute)
		out.Duration = &m
	}
	switch e.Kind {
	case models.KindSubtask:
		id := e.EpicID
		out.EpicID = &id
	case models.KindEpic:
		out.SubtaskIDs = e.SubtaskIDs
	}
	return out
}

func toJSONList(entities []models.Entity) []entityJSON {
	out := make([]entityJSON, 0, len(entities))
	for _, e := range entities {
		out = append(out, toJSON(e))
	}
	return out
}

// toEntity converts a request body for the collection of kind. Derived
// fields (endTime, subtaskIds) are ignored.
func (in entityJSON) toEntity(kind models.Kind) (models.Entity, error) {
	if in.Type != "" && models.Kind(strings.ToUpper(in.Type)) != kind {
		return models.Entity{}, fmt.Errorf("%w: type %q sent to the %s collection", models.ErrValidation, in.Type, kind)
	}
	if in.ID < 0 {
		return models.Entity{}, fmt.Errorf("%w: negative id %d", models.ErrValidation, in.ID)
	}

	e := models.Entity{
		ID:          in.ID,
		Kind:        kind,
		Name:        in.Name,
		Description: in.Description,
		Status:      models.Status(strings.ToUpper(in.Status)),
	}
	if in.Duration != nil {
		d, err := models.Minutes(*in.Duration)
		if err != nil {
			return models.Entity{}, fmt.Errorf("%w: %w", models.ErrValidation, err)
		}
		e.Duration = &d
	}
	if in.StartTime != nil && *in.StartTime != "" {
		start, err := time.ParseInLocation(models.TimeLayout, *in.StartTime, time.UTC)
		if err != nil {
			return models.Entity{}, fmt.Errorf("%w: startTime %q must look like %s", models.ErrValidation, *in.StartTime, models.TimeLayout)
		}
		e.StartTime = &start
	}
	if in.EpicID != nil {
		e.EpicID = *in.EpicID
	}
	return e, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(models.TimeLayout)
	return &s
}
