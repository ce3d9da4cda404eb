// Package csvfile persists snapshots as a single CSV file.
//
// Layout: a header row, one row per entity (tasks, epics, subtasks), then one
// HISTORY row per history entry from least to most recent.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"

	"tasktracker/internal/models"
)

const kindHistory = "HISTORY"

var header = []string{"id", "type", "name", "status", "description", "duration", "startTime", "endTime", "epic"}

const (
	colID = iota
	colType
	colName
	colStatus
	colDescription
	colDuration
	colStart
	colEnd
	colEpic
)

// Store reads and writes snapshots at path on fs.
type Store struct {
	fs     afero.Fs
	path   string
	logger *slog.Logger
}

// New returns a store for path. A nil logger falls back to slog.Default.
func New(fsys afero.Fs, path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{fs: fsys, path: path, logger: logger}
}

// Load reads the snapshot. A missing or empty file yields an empty snapshot.
func (s *Store) Load(_ context.Context) (models.Snapshot, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("snapshot file not found, starting empty", slog.String("path", s.path))
		return models.Snapshot{}, nil
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: read %s: %w", models.ErrStorage, s.path, err)
	}

	snap, err := decode(bytes.NewReader(data))
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: parse %s: %w", models.ErrStorage, s.path, err)
	}
	return snap, nil
}

// Save replaces the file contents atomically.
func (s *Store) Save(_ context.Context, snap models.Snapshot) error {
	var buf bytes.Buffer
	if err := encode(&buf, snap); err != nil {
		return fmt.Errorf("%w: encode snapshot: %w", models.ErrStorage, err)
	}
	if err := writeFileAtomic(s.fs, s.path, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %w", models.ErrStorage, err)
	}
	return nil
}

// Close is a no-op; the file is only open during Load and Save.
func (s *Store) Close() error {
	return nil
}

func encode(w io.Writer, snap models.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, e := range snap.Entities {
		if err := cw.Write(toRecord(e)); err != nil {
			return err
		}
	}
	for _, id := range snap.History {
		row := make([]string, len(header))
		row[colID] = strconv.FormatInt(id, 10)
		row[colType] = kindHistory
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func toRecord(e models.Entity) []string {
	row := make([]string, len(header))
	row[colID] = strconv.FormatInt(e.ID, 10)
	row[colType] = string(e.Kind)
	row[colName] = e.Name
	row[colStatus] = string(e.Status)
	row[colDescription] = e.Description
	if e.Duration != nil {
		row[colDuration] = strconv.FormatInt(int64(*e.Duration/time.Minute), 10)
	}
	if e.StartTime != nil {
		row[colStart] = e.StartTime.Format(models.TimeLayout)
	}
	if end := e.EndTime(); end != nil {
		row[colEnd] = end.Format(models.TimeLayout)
	}
	if e.Kind == models.KindSubtask {
		row[colEpic] = strconv.FormatInt(e.EpicID, 10)
	}
	return row
}

func decode(r io.Reader) (models.Snapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	var snap models.Snapshot
	first := true
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return snap, nil
		}
		if err != nil {
			return models.Snapshot{}, err
		}
		if first {
			first = false
			if row[colID] == header[colID] {
				continue
			}
		}

		id, err := strconv.ParseInt(row[colID], 10, 64)
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("bad id %q: %w", row[colID], err)
		}
		if row[colType] == kindHistory {
			snap.History = append(snap.History, id)
			continue
		}

		e, err := fromRecord(id, row)
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("row %d: %w", id, err)
		}
		snap.Entities = append(snap.Entities, e)
	}
}

// fromRecord ignores the endTime column; end times are recomputed on restore.
func fromRecord(id int64, row []string) (models.Entity, error) {
	e := models.Entity{
		ID:          id,
		Kind:        models.Kind(row[colType]),
		Name:        row[colName],
		Status:      models.Status(row[colStatus]),
		Description: row[colDescription],
	}
	if !e.Kind.Valid() {
		return models.Entity{}, fmt.Errorf("unknown type %q", row[colType])
	}
	if v := row[colDuration]; v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return models.Entity{}, fmt.Errorf("bad duration %q: %w", v, err)
		}
		d, err := models.Minutes(n)
		if err != nil {
			return models.Entity{}, err
		}
		e.Duration = &d
	}
	if v := row[colStart]; v != "" {
		start, err := time.ParseInLocation(models.TimeLayout, v, time.UTC)
		if err != nil {
			return models.Entity{}, fmt.Errorf("bad start time %q: %w", v, err)
		}
		e.StartTime = &start
	}
	if e.Kind == models.KindSubtask {
		epicID, err := strconv.ParseInt(row[colEpic], 10, 64)
		if err != nil {
			return models.Entity{}, fmt.Errorf("bad epic id %q: %w", row[colEpic], err)
		}
		e.EpicID = epicID
	}
	return e, nil
}

// writeFileAtomic writes data to a temp file next to path and renames it
// into place, so readers see either the old or the new snapshot.
func writeFileAtomic(fsys afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(fsys, dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = fsys.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fsys.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}
