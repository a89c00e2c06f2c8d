// Package history keeps a local index of completed runs in SQLite, so past
// run summaries can be queried without trawling artifact directories. The
// index is advisory: losing it loses nothing but the query convenience.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/justinrayshort/os-sub001/internal/manifest"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema (runs table + started_at index)
const currentSchemaVersion = 1

// Store is the run-history database handle.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at the given path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//
// Safe to call repeatedly; schema application is idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: connect: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Entry is one indexed run.
type Entry struct {
	RunID        string
	Profile      string
	Mode         string
	Status       string
	StartedAt    string
	FinishedAt   string
	SliceCount   int
	Passed       int
	Failed       int
	ManifestPath string
}

// RecordRun indexes a finished run. Re-recording the same run id is a no-op,
// so a retried CLI invocation cannot duplicate rows.
func (s *Store) RecordRun(ctx context.Context, m *manifest.RunManifest, manifestPath string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, profile, mode, status, started_at, finished_at, slice_count, passed, failed, manifest_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		m.RunID,
		m.Profile,
		m.Mode,
		m.Status,
		m.StartedAt,
		m.FinishedAt,
		m.Summary.SliceCount,
		m.Summary.Passed,
		m.Summary.Failed,
		manifestPath,
	)
	if err != nil {
		return fmt.Errorf("history: record run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, profile, mode, status, started_at, finished_at,
		       slice_count, passed, failed, manifest_path
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RunID, &e.Profile, &e.Mode, &e.Status,
			&e.StartedAt, &e.FinishedAt, &e.SliceCount, &e.Passed, &e.Failed,
			&e.ManifestPath); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate runs: %w", err)
	}
	return out, nil
}

// Prune deletes runs older than the cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE started_at < ?`,
		olderThan.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: prune count: %w", err)
	}
	return n, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("history: execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if needed and runs migrations. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("history: execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("history: get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("history: set user_version: %w", err)
		}
	}
	return nil
}
