package manager

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"tasktracker/internal/models"
)

// normalize checks caller input and returns a cleaned copy.
func normalize(e models.Entity) (models.Entity, error) {
	out := e.Clone()
	if !out.Kind.Valid() {
		return models.Entity{}, fmt.Errorf("%w: unknown type %q", models.ErrValidation, out.Kind)
	}

	out.Name = cleanText(out.Name)
	out.Description = cleanText(out.Description)
	if out.Name == "" {
		return models.Entity{}, fmt.Errorf("%w: name must not be empty", models.ErrValidation)
	}

	switch out.Kind {
	case models.KindEpic:
		// derived from subtasks
		out.Status = models.StatusNew
		out.StartTime, out.Duration, out.End = nil, nil, nil
		out.EpicID = 0
		return out, nil
	case models.KindTask:
		out.EpicID = 0
	}
	out.SubtaskIDs = nil
	out.End = nil

	if out.Status == "" {
		out.Status = models.StatusNew
	}
	if _, ok := models.ValidStatuses[out.Status]; !ok {
		return models.Entity{}, fmt.Errorf("%w: unknown status %q", models.ErrValidation, out.Status)
	}
	if out.Duration != nil && *out.Duration < 0 {
		return models.Entity{}, fmt.Errorf("%w: duration must not be negative", models.ErrValidation)
	}
	return out, nil
}

func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
