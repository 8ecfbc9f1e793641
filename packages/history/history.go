// Package history records suite runs in a local SQLite database so past
// results can be inspected after the console output is gone.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	suite       TEXT NOT NULL,
	tests       INTEGER NOT NULL,
	fails       INTEGER NOT NULL,
	skips       INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	started_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_suite ON runs(suite, started_at);
`

const queryTimeout = 5 * time.Second

// Record is one suite run.
type Record struct {
	ID        string
	Suite     string
	Tests     int
	Fails     int
	Skips     int
	Duration  time.Duration
	StartedAt time.Time
}

// Failed reports whether the run had at least one failing test.
func (r *Record) Failed() bool {
	return r.Fails > 0
}

// DB is a handle on the run-history database.
type DB struct {
	db *sql.DB
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Add stores one run record, assigning a run id if the record has none.
func (d *DB) Add(rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO runs (id, suite, tests, fails, skips, duration_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Suite, rec.Tests, rec.Fails, rec.Skips,
		rec.Duration.Milliseconds(), rec.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting run record: %w", err)
	}
	return nil
}

// Recent returns the most recent runs for a suite, newest first. An empty
// suite name returns runs across all suites.
func (d *DB) Recent(suite string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query := `SELECT id, suite, tests, fails, skips, duration_ms, started_at
		 FROM runs WHERE (? = '' OR suite = ?)
		 ORDER BY started_at DESC LIMIT ?`
	rows, err := d.db.QueryContext(ctx, query, suite, suite, limit)
	if err != nil {
		return nil, fmt.Errorf("querying run history: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		var durationMs int64
		if err := rows.Scan(&rec.ID, &rec.Suite, &rec.Tests, &rec.Fails,
			&rec.Skips, &durationMs, &rec.StartedAt); err != nil {
			return nil, fmt.Errorf("scanning run record: %w", err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &rec)
	}
	return records, rows.Err()
}
