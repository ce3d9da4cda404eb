package csvfile

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktracker/internal/manager"
	"tasktracker/internal/models"
)

func at(hour, minute int) *time.Time {
	t := time.Date(2025, 3, 1, hour, minute, 0, 0, time.UTC)
	return &t
}

func minutes(n int) *time.Duration {
	d := time.Duration(n) * time.Minute
	return &d
}

func ids(entities []models.Entity) []int64 {
	out := make([]int64, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.ID)
	}
	return out
}

func populate(t *testing.T, m *manager.Manager) {
	t.Helper()
	ctx := context.Background()
	create := func(e models.Entity) models.Entity {
		created, err := m.Create(ctx, e)
		require.NoError(t, err)
		return created
	}

	a := create(models.Entity{Kind: models.KindTask, Name: "Write, report", Description: "with \"quotes\"", Status: models.StatusInProgress, StartTime: at(10, 0), Duration: minutes(30)})
	create(models.Entity{Kind: models.KindTask, Name: "Unscheduled", Status: models.StatusNew})
	e := create(models.Entity{Kind: models.KindEpic, Name: "Release"})
	s := create(models.Entity{Kind: models.KindSubtask, Name: "Tag", EpicID: e.ID, Status: models.StatusDone, StartTime: at(8, 0), Duration: minutes(45)})
	create(models.Entity{Kind: models.KindSubtask, Name: "Announce", EpicID: e.ID, Status: models.StatusNew, StartTime: at(11, 0)})

	for _, step := range []struct {
		k  models.Kind
		id int64
	}{{models.KindSubtask, s.ID}, {models.KindEpic, e.ID}, {models.KindTask, a.ID}} {
		_, err := m.Get(step.k, step.id)
		require.NoError(t, err)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := New(fsys, "data/tasks.csv", nil)
	ctx := context.Background()

	src := manager.New(manager.WithSnapshotter(store))
	populate(t, src)

	// reads only move history; flush it the way shutdown does
	require.NoError(t, store.Save(ctx, src.Snapshot()))

	snap, err := store.Load(ctx)
	require.NoError(t, err)

	dst := manager.New()
	require.NoError(t, dst.Restore(snap))

	for _, k := range models.Kinds {
		assert.Equal(t, src.List(k), dst.List(k), "kind %s", k)
	}
	assert.Equal(t, ids(src.Prioritized()), ids(dst.Prioritized()))
	assert.Equal(t, ids(src.History()), ids(dst.History()))
}

func TestStore_FileLayout(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := New(fsys, "data/tasks.csv", nil)

	snap := models.Snapshot{
		Entities: []models.Entity{
			{ID: 1, Kind: models.KindTask, Name: "a", Status: models.StatusNew, StartTime: at(9, 0), Duration: minutes(15)},
			{ID: 2, Kind: models.KindEpic, Name: "e", Status: models.StatusNew},
			{ID: 3, Kind: models.KindSubtask, Name: "s", Status: models.StatusDone, EpicID: 2},
		},
		History: []int64{3, 1},
	}
	require.NoError(t, store.Save(context.Background(), snap))

	data, err := afero.ReadFile(fsys, "data/tasks.csv")
	require.NoError(t, err)
	want := strings.Join([]string{
		"id,type,name,status,description,duration,startTime,endTime,epic",
		"1,TASK,a,NEW,,15,2025-03-01T09:00:00,2025-03-01T09:15:00,",
		"2,EPIC,e,NEW,,,,,",
		"3,SUBTASK,s,DONE,,,,,2",
		"3,HISTORY,,,,,,,",
		"1,HISTORY,,,,,,,",
	}, "\n") + "\n"
	assert.Equal(t, want, string(data))

	entries, err := afero.ReadDir(fsys, "data")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file is cleaned up")
}

func TestStore_LoadMissingOrEmpty(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := New(fsys, "missing.csv", nil)

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Empty())

	require.NoError(t, afero.WriteFile(fsys, "empty.csv", nil, 0o644))
	snap, err = New(fsys, "empty.csv", nil).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Empty())

	require.NoError(t, afero.WriteFile(fsys, "header.csv", []byte(strings.Join(header, ",")+"\n"), 0o644))
	snap, err = New(fsys, "header.csv", nil).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Empty())
}

func TestStore_LoadMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "short row", body: "id,type\n1,TASK\n"},
		{name: "bad id", body: "x,TASK,a,NEW,,,,,\n"},
		{name: "bad type", body: "1,STORY,a,NEW,,,,,\n"},
		{name: "bad duration", body: "1,TASK,a,NEW,,ten,,,\n"},
		{name: "duration overflow", body: "1,TASK,a,NEW,,307445735,2025-03-01T10:00:00,,\n"},
		{name: "negative duration", body: "1,TASK,a,NEW,,-5,,,\n"},
		{name: "bad start", body: "1,TASK,a,NEW,,,yesterday,,\n"},
		{name: "bad epic", body: "1,SUBTASK,a,NEW,,,,,\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fsys, "tasks.csv", []byte(tt.body), 0o644))

			_, err := New(fsys, "tasks.csv", nil).Load(context.Background())
			assert.ErrorIs(t, err, models.ErrStorage)
		})
	}
}

func TestStore_LoadUnreadable(t *testing.T) {
	dir := t.TempDir()
	store := New(afero.NewOsFs(), dir, nil)

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, models.ErrStorage)
}

func TestStore_SaveFailure(t *testing.T) {
	store := New(afero.NewReadOnlyFs(afero.NewMemMapFs()), "tasks.csv", nil)
	err := store.Save(context.Background(), models.Snapshot{})
	assert.ErrorIs(t, err, models.ErrStorage)
}
