// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/figexport/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for export history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS export_runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			base_url TEXT NOT NULL,
			search TEXT NOT NULL,
			courses TEXT NOT NULL,
			ordering TEXT NOT NULL,
			page_size INTEGER NOT NULL,
			pages INTEGER NOT NULL,
			learners INTEGER NOT NULL,
			column_count INTEGER NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL,
			location TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_export_runs_started_at ON export_runs(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun stores one export run.
func (s *Store) InsertRun(ctx context.Context, run model.ExportRun) error {
	courses := make([]string, len(run.Query.CourseIDs))
	for i, id := range run.Query.CourseIDs {
		courses[i] = id.String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO export_runs (id, started_at, ended_at, base_url, search, courses, ordering, page_size, pages, learners, column_count, status, error, location)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(timeLayout),
		run.EndedAt.UTC().Format(timeLayout),
		run.BaseURL,
		run.Query.Search,
		strings.Join(courses, "\n"),
		run.Query.Ordering,
		run.PageSize,
		run.Pages,
		run.Learners,
		run.Columns,
		string(run.Status),
		run.Error,
		run.Location,
	)
	return err
}

// ListRuns returns the most recent runs, newest first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.ExportRun, error) {
	query := `SELECT id, started_at, ended_at, base_url, search, courses, ordering, page_size, pages, learners, column_count, status, error, location
		FROM export_runs
		ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.ExportRun
	for rows.Next() {
		var run model.ExportRun
		var startedAt, endedAt, courses, status string
		if err := rows.Scan(&run.ID, &startedAt, &endedAt, &run.BaseURL, &run.Query.Search, &courses, &run.Query.Ordering,
			&run.PageSize, &run.Pages, &run.Learners, &run.Columns, &status, &run.Error, &run.Location); err != nil {
			return nil, err
		}
		if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, err
		}
		if run.EndedAt, err = time.Parse(timeLayout, endedAt); err != nil {
			return nil, err
		}
		if courses != "" {
			for _, id := range strings.Split(courses, "\n") {
				run.Query.CourseIDs = append(run.Query.CourseIDs, model.ID(id))
			}
		}
		run.Status = model.RunStatus(status)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}
