package manager

import (
	"slices"
	"time"

	"tasktracker/internal/models"
)

// aggregate derives the epic's status and time window from its subtasks.
// It is a pure function of subtasks and safe to call repeatedly.
func aggregate(epic *models.Entity, subtasks []models.Entity) {
	epic.Status = epicStatus(subtasks)

	var (
		start, end *time.Time
		total      time.Duration
	)
	for _, s := range subtasks {
		if !s.Scheduled() {
			continue
		}
		if start == nil || s.StartTime.Before(*start) {
			v := *s.StartTime
			start = &v
		}
		if e := s.EndTime(); e != nil && (end == nil || e.After(*end)) {
			end = e
		}
		if s.Duration != nil {
			total += *s.Duration
		}
	}

	epic.StartTime = start
	epic.End = end
	epic.Duration = &total
}

func epicStatus(subtasks []models.Entity) models.Status {
	if len(subtasks) == 0 {
		return models.StatusNew
	}
	allNew, allDone := true, true
	for _, s := range subtasks {
		allNew = allNew && s.Status == models.StatusNew
		allDone = allDone && s.Status == models.StatusDone
	}
	switch {
	case allNew:
		return models.StatusNew
	case allDone:
		return models.StatusDone
	default:
		return models.StatusInProgress
	}
}

// subtasksOf resolves an epic's subtask ids in insertion order.
func (m *Manager) subtasksOf(epic *models.Entity) []models.Entity {
	out := make([]models.Entity, 0, len(epic.SubtaskIDs))
	for _, id := range epic.SubtaskIDs {
		if s, ok := m.store.get(models.KindSubtask, id); ok {
			out = append(out, *s)
		}
	}
	return out
}

// refreshEpic recomputes the derived fields of epic id in place.
func (m *Manager) refreshEpic(id int64) {
	epic, ok := m.store.get(models.KindEpic, id)
	if !ok {
		return
	}
	aggregate(epic, m.subtasksOf(epic))
}

func (m *Manager) attachSubtask(epicID, subtaskID int64) {
	epic, ok := m.store.get(models.KindEpic, epicID)
	if !ok || slices.Contains(epic.SubtaskIDs, subtaskID) {
		return
	}
	epic.SubtaskIDs = append(epic.SubtaskIDs, subtaskID)
}

func (m *Manager) detachSubtask(epicID, subtaskID int64) {
	epic, ok := m.store.get(models.KindEpic, epicID)
	if !ok {
		return
	}
	epic.SubtaskIDs = slices.DeleteFunc(epic.SubtaskIDs, func(id int64) bool { return id == subtaskID })
}
