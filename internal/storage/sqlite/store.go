package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tasktracker/internal/models"
)

// Store keeps task snapshots in a SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%w: empty database path", models.ErrStorage)
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStorage, err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", models.ErrStorage, err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %w", models.ErrStorage, err)
	}

	logger.Info("sqlite snapshot store ready", slog.String("path", dbPath))
	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entities (
            id INTEGER PRIMARY KEY,
            position INTEGER NOT NULL,
            kind TEXT NOT NULL CHECK (kind IN ('TASK', 'EPIC', 'SUBTASK')),
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL,
            duration_minutes INTEGER,
            start_time TEXT,
            end_time TEXT,
            epic_id INTEGER
        );`,
		`CREATE TABLE IF NOT EXISTS history (
            position INTEGER PRIMARY KEY,
            entity_id INTEGER NOT NULL UNIQUE,
            FOREIGN KEY(entity_id) REFERENCES entities(id) ON DELETE CASCADE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_entities_position ON entities(position);`,
		`CREATE INDEX IF NOT EXISTS idx_entities_epic ON entities(epic_id);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Save replaces the stored snapshot in a single transaction.
func (s *Store) Save(ctx context.Context, snap models.Snapshot) error {
	if err := s.save(ctx, snap); err != nil {
		return fmt.Errorf("%w: %w", models.ErrStorage, err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, snap models.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entities`); err != nil {
		return fmt.Errorf("clear entities: %w", err)
	}

	insertEntity, err := tx.PrepareContext(ctx, `INSERT INTO entities(id, position, kind, name, description, status, duration_minutes, start_time, end_time, epic_id)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare entity insert: %w", err)
	}
	defer insertEntity.Close()

	for pos, e := range snap.Entities {
		if _, err := insertEntity.ExecContext(ctx, e.ID, pos, string(e.Kind), e.Name, e.Description, string(e.Status),
			durationMinutes(e.Duration), formatTime(e.StartTime), formatTime(e.EndTime()), epicID(e)); err != nil {
			return fmt.Errorf("insert entity %d: %w", e.ID, err)
		}
	}

	insertHistory, err := tx.PrepareContext(ctx, `INSERT INTO history(position, entity_id) VALUES(?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare history insert: %w", err)
	}
	defer insertHistory.Close()

	for pos, id := range snap.History {
		if _, err := insertHistory.ExecContext(ctx, pos, id); err != nil {
			return fmt.Errorf("insert history %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. A fresh database yields an empty snapshot.
func (s *Store) Load(ctx context.Context) (models.Snapshot, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%w: %w", models.ErrStorage, err)
	}
	return snap, nil
}

func (s *Store) load(ctx context.Context) (models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, name, description, status, duration_minutes, start_time, epic_id
        FROM entities ORDER BY position`)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var snap models.Snapshot
	for rows.Next() {
		var (
			e        models.Entity
			kind     string
			status   string
			duration sql.NullInt64
			start    sql.NullString
			epic     sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &kind, &e.Name, &e.Description, &status, &duration, &start, &epic); err != nil {
			return models.Snapshot{}, fmt.Errorf("scan entity: %w", err)
		}
		e.Kind = models.Kind(kind)
		e.Status = models.Status(status)
		if duration.Valid {
			d, err := models.Minutes(duration.Int64)
			if err != nil {
				return models.Snapshot{}, fmt.Errorf("entity %d: %w", e.ID, err)
			}
			e.Duration = &d
		}
		if start.Valid {
			t, err := time.ParseInLocation(models.TimeLayout, start.String, time.UTC)
			if err != nil {
				return models.Snapshot{}, fmt.Errorf("entity %d start time: %w", e.ID, err)
			}
			e.StartTime = &t
		}
		if epic.Valid {
			e.EpicID = epic.Int64
		}
		snap.Entities = append(snap.Entities, e)
	}
	if err := rows.Err(); err != nil {
		return models.Snapshot{}, err
	}

	hrows, err := s.db.QueryContext(ctx, `SELECT entity_id FROM history ORDER BY position`)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("list history: %w", err)
	}
	defer hrows.Close()

	for hrows.Next() {
		var id int64
		if err := hrows.Scan(&id); err != nil {
			return models.Snapshot{}, fmt.Errorf("scan history: %w", err)
		}
		snap.History = append(snap.History, id)
	}
	return snap, hrows.Err()
}

func durationMinutes(d *time.Duration) any {
	if d == nil {
		return nil
	}
	return int64(*d / time.Minute)
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(models.TimeLayout)
}

func epicID(e models.Entity) any {
	if e.Kind != models.KindSubtask {
		return nil
	}
	return e.EpicID
}
