package manager

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktracker/internal/models"
)

type recordingSnapshotter struct {
	saved []models.Snapshot
	err   error
}

func (r *recordingSnapshotter) Save(_ context.Context, snap models.Snapshot) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, snap)
	return nil
}

func populated(t *testing.T) *Manager {
	t.Helper()
	m := New()
	a := mustCreate(t, m, newTask("a", models.StatusInProgress, at(10, 0), minutes(30)))
	mustCreate(t, m, newTask("b", models.StatusNew, nil, nil))
	e := mustCreate(t, m, newEpic("e"))
	s1 := mustCreate(t, m, newSubtask("s1", e.ID, models.StatusDone, at(8, 0), minutes(60)))
	mustCreate(t, m, newSubtask("s2", e.ID, models.StatusNew, at(12, 0), minutes(15)))
	mustCreate(t, m, newEpic("empty"))

	for _, step := range []struct {
		k  models.Kind
		id int64
	}{{models.KindSubtask, s1.ID}, {models.KindTask, a.ID}, {models.KindEpic, e.ID}} {
		_, err := m.Get(step.k, step.id)
		require.NoError(t, err)
	}
	return m
}

func TestManager_SnapshotRoundTrip(t *testing.T) {
	src := populated(t)
	snap := src.Snapshot()

	dst := New()
	require.NoError(t, dst.Restore(snap))

	for _, k := range models.Kinds {
		assert.Equal(t, src.List(k), dst.List(k), "kind %s", k)
	}
	assert.Equal(t, ids(src.Prioritized()), ids(dst.Prioritized()))
	assert.Equal(t, ids(src.History()), ids(dst.History()))

	next := mustCreate(t, dst, newTask("next", models.StatusNew, nil, nil))
	assert.Equal(t, int64(7), next.ID, "allocator resumes after the highest id")
}

func TestManager_RestoreRederivesEpics(t *testing.T) {
	snap := models.Snapshot{Entities: []models.Entity{
		{ID: 5, Kind: models.KindSubtask, Name: "s", EpicID: 2, Status: models.StatusDone},
		{ID: 2, Kind: models.KindEpic, Name: "e", Status: models.StatusNew, SubtaskIDs: []int64{99}},
	}}

	m := New()
	require.NoError(t, m.Restore(snap))

	epics := m.List(models.KindEpic)
	require.Len(t, epics, 1)
	assert.Equal(t, models.StatusDone, epics[0].Status)
	assert.Equal(t, []int64{5}, epics[0].SubtaskIDs)
}

func TestManager_RestoreFailures(t *testing.T) {
	tests := []struct {
		name string
		snap models.Snapshot
		want error
	}{
		{
			name: "overlap",
			snap: models.Snapshot{Entities: []models.Entity{
				{ID: 1, Kind: models.KindTask, Name: "a", Status: models.StatusNew, StartTime: at(10, 0), Duration: minutes(30)},
				{ID: 2, Kind: models.KindTask, Name: "b", Status: models.StatusNew, StartTime: at(10, 10), Duration: minutes(30)},
			}},
			want: models.ErrOverlap,
		},
		{
			name: "dangling subtask",
			snap: models.Snapshot{Entities: []models.Entity{
				{ID: 3, Kind: models.KindSubtask, Name: "s", EpicID: 9, Status: models.StatusNew},
			}},
			want: models.ErrEpicNotFound,
		},
		{
			name: "duplicate id",
			snap: models.Snapshot{Entities: []models.Entity{
				{ID: 1, Kind: models.KindTask, Name: "a", Status: models.StatusNew},
				{ID: 1, Kind: models.KindEpic, Name: "e"},
			}},
			want: models.ErrValidation,
		},
		{
			name: "missing id",
			snap: models.Snapshot{Entities: []models.Entity{{Kind: models.KindTask, Name: "a"}}},
			want: models.ErrValidation,
		},
		{
			name: "dangling history",
			snap: models.Snapshot{
				Entities: []models.Entity{{ID: 1, Kind: models.KindTask, Name: "a", Status: models.StatusNew}},
				History:  []int64{1, 4},
			},
			want: models.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			err := m.Restore(tt.snap)
			require.ErrorIs(t, err, tt.want)

			assert.Zero(t, m.store.len(), "failed restore leaves the manager empty")
			assert.Zero(t, m.index.Len())
			assert.Empty(t, m.History())
			first := mustCreate(t, m, newTask("x", models.StatusNew, nil, nil))
			assert.Equal(t, int64(1), first.ID)
		})
	}
}

func TestManager_RestoreEmpty(t *testing.T) {
	m := New()
	require.NoError(t, m.Restore(models.Snapshot{}))
	assert.True(t, m.Snapshot().Empty())
}

func TestManager_RestoreRequiresEmptyManager(t *testing.T) {
	m := populated(t)
	err := m.Restore(models.Snapshot{})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.NotEmpty(t, m.List(models.KindTask))
}

func TestManager_SavesAfterMutations(t *testing.T) {
	rec := &recordingSnapshotter{}
	m := New(WithSnapshotter(rec))
	ctx := context.Background()

	a := mustCreate(t, m, newTask("a", models.StatusNew, nil, nil))
	_, err := m.Get(models.KindTask, a.ID)
	require.NoError(t, err)
	require.Len(t, rec.saved, 1, "reads do not save")

	a.Name = "renamed"
	_, err = m.Update(ctx, a)
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, models.KindTask, a.ID))
	require.NoError(t, m.Clear(ctx, models.KindEpic))
	require.Len(t, rec.saved, 4)

	assert.Equal(t, "renamed", rec.saved[1].Entities[0].Name)
	assert.Equal(t, []int64{a.ID}, rec.saved[1].History)
	assert.True(t, rec.saved[2].Empty())

	_, err = m.Create(ctx, newTask("bad", "nope", nil, nil))
	require.Error(t, err)
	assert.Len(t, rec.saved, 4, "rejected mutations do not save")
}

func TestManager_SaveFailureIsStorageError(t *testing.T) {
	rec := &recordingSnapshotter{err: errors.New("disk full")}
	m := New(WithSnapshotter(rec))

	created, err := m.Create(context.Background(), newTask("a", models.StatusNew, nil, nil))
	require.ErrorIs(t, err, models.ErrStorage)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, int64(1), created.ID)
	assert.Len(t, m.List(models.KindTask), 1, "the in-memory mutation stays committed")
}

func TestManager_HistoryLimit(t *testing.T) {
	m := New(WithHistoryLimit(2))
	for i := 0; i < 3; i++ {
		e := mustCreate(t, m, newTask("t", models.StatusNew, nil, nil))
		_, err := m.Get(models.KindTask, e.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{2, 3}, ids(m.History()))
}
