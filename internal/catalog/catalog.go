// Package catalog is an optional SQLite journal of batch outcomes. It
// records what each run did with each input path. The output directory
// alone decides what gets skipped; the journal is only history.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome names stored in the journal.
const (
	OutcomeWritten = "written"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("catalog: not found")

// Record is one processed input.
type Record struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Path      string    `json:"path"`
	Digest    string    `json:"digest"`
	Outcome   string    `json:"outcome"`
	Candidate string    `json:"candidate,omitempty"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats holds journal totals.
type Stats struct {
	Written int       `json:"written"`
	Skipped int       `json:"skipped"`
	Failed  int       `json:"failed"`
	Runs    int       `json:"runs"`
	LastRun time.Time `json:"last_run"`
}

// DB wraps a SQLite database for journal operations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the journal database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}
	// Workers record concurrently; one connection serializes the writes.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: migrate: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS outcomes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			path TEXT NOT NULL,
			digest TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			candidate TEXT NOT NULL DEFAULT '',
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_outcomes_digest ON outcomes(digest);
		CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
	`)
	return err
}

// Record appends r to the journal and sets its ID and CreatedAt.
func (d *DB) Record(ctx context.Context, r *Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	result, err := d.db.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, path, digest, outcome, candidate, width, height, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Path, r.Digest, r.Outcome, r.Candidate, r.Width, r.Height, r.Error, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("catalog: record: %w", err)
	}
	r.ID, err = result.LastInsertId()
	return err
}

// Latest returns the most recent record for digest.
func (d *DB) Latest(ctx context.Context, digest string) (*Record, error) {
	r := &Record{}
	err := d.db.QueryRowContext(ctx,
		`SELECT id, run_id, path, digest, outcome, candidate, width, height, error, created_at
		 FROM outcomes WHERE digest = ? ORDER BY id DESC LIMIT 1`,
		digest,
	).Scan(&r.ID, &r.RunID, &r.Path, &r.Digest, &r.Outcome, &r.Candidate,
		&r.Width, &r.Height, &r.Error, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: latest: %w", err)
	}
	return r, nil
}

// Stats returns totals for runID, or for every run when runID is empty.
func (d *DB) Stats(ctx context.Context, runID string) (*Stats, error) {
	s := &Stats{}

	rows, err := d.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM outcomes WHERE (? = '' OR run_id = ?) GROUP BY outcome`,
		runID, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("catalog: stats: %w", err)
		}
		switch outcome {
		case OutcomeWritten:
			s.Written = n
		case OutcomeSkipped:
			s.Skipped = n
		case OutcomeFailed:
			s.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: stats: %w", err)
	}

	err = d.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT run_id) FROM outcomes WHERE (? = '' OR run_id = ?)`,
		runID, runID,
	).Scan(&s.Runs)
	if err != nil {
		return nil, fmt.Errorf("catalog: stats: %w", err)
	}

	err = d.db.QueryRowContext(ctx,
		`SELECT created_at FROM outcomes WHERE (? = '' OR run_id = ?) ORDER BY id DESC LIMIT 1`,
		runID, runID,
	).Scan(&s.LastRun)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: stats: %w", err)
	}

	return s, nil
}

// Count returns the total number of records.
func (d *DB) Count(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outcomes").Scan(&count)
	return count, err
}
