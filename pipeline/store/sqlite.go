package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed CheckpointStore, suited to single-process
// deployments and local development where a file-based store is enough.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) a SQLite database at path and
// ensures the checkpoint table exists. Pass ":memory:" for an ephemeral
// database useful in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy timeout: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS checkpoints (
			pipeline_name TEXT NOT NULL,
			executor_id   TEXT NOT NULL,
			watermark     TIMESTAMP NOT NULL,
			updated_at    TIMESTAMP NOT NULL,
			PRIMARY KEY (pipeline_name, executor_id)
		)
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create checkpoints table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadWatermark(ctx context.Context, pipelineName, executorID string) (time.Time, bool, error) {
	var wm time.Time
	row := s.db.QueryRowContext(ctx,
		`SELECT watermark FROM checkpoints WHERE pipeline_name = ? AND executor_id = ?`,
		pipelineName, executorID)
	if err := row.Scan(&wm); err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("store: load watermark: %w", err)
	}
	return wm, true, nil
}

func (s *SQLiteStore) SaveWatermark(ctx context.Context, pipelineName, executorID string, watermark time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (pipeline_name, executor_id, watermark, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (pipeline_name, executor_id)
		DO UPDATE SET watermark = excluded.watermark, updated_at = excluded.updated_at
	`, pipelineName, executorID, watermark, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: save watermark: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
