package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktracker/internal/models"
	"tasktracker/internal/storage/csvfile"
	"tasktracker/internal/storage/sqlite"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	snap := models.Snapshot{
		Entities: []models.Entity{{ID: 1, Kind: models.KindTask, Name: "a", Status: models.StatusNew}},
		History:  []int64{1},
	}

	tests := []struct {
		driver string
		path   string
		want   any
		keeps  bool
	}{
		{driver: DriverCSV, path: filepath.Join(dir, "tasks.csv"), want: &csvfile.Store{}, keeps: true},
		{driver: DriverSQLite, path: filepath.Join(dir, "tasks.db"), want: &sqlite.Store{}, keeps: true},
		{driver: DriverMemory, want: memory{}},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			ctx := context.Background()
			store, err := Open(tt.driver, tt.path, nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			assert.IsType(t, tt.want, store)

			require.NoError(t, store.Save(ctx, snap))
			got, err := store.Load(ctx)
			require.NoError(t, err)
			if tt.keeps {
				assert.Equal(t, snap, got)
			} else {
				assert.True(t, got.Empty())
			}
		})
	}
}

func TestOpen_Invalid(t *testing.T) {
	_, err := Open("redis", "x", nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = Open(DriverCSV, "", nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}
