package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB-backed CheckpointStore for production
// deployments where the watermark needs to survive process restarts and be
// shared across workers.
//
// dsn follows the go-sql-driver/mysql DSN format, e.g.:
//
//	user:password@tcp(127.0.0.1:3306)/contentflow?parseTime=true
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a MySQL connection pool and ensures the checkpoint
// table exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	const schema = `
		CREATE TABLE IF NOT EXISTS checkpoints (
			pipeline_name VARCHAR(255) NOT NULL,
			executor_id   VARCHAR(255) NOT NULL,
			watermark     DATETIME(6) NOT NULL,
			updated_at    DATETIME(6) NOT NULL,
			PRIMARY KEY (pipeline_name, executor_id)
		)
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create checkpoints table: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) LoadWatermark(ctx context.Context, pipelineName, executorID string) (time.Time, bool, error) {
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

func (s *MySQLStore) SaveWatermark(ctx context.Context, pipelineName, executorID string, watermark time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (pipeline_name, executor_id, watermark, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE watermark = VALUES(watermark), updated_at = VALUES(updated_at)
	`, pipelineName, executorID, watermark, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: save watermark: %w", err)
	}
	return nil
}

func (s *MySQLStore) Close() error { return s.db.Close() }
