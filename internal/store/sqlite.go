package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cyber-trackr/cyber-trackr/internal/compliance"
	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	// Foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		title       TEXT NOT NULL,
		version     TEXT NOT NULL,
		rel         TEXT NOT NULL,
		doc_title   TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT '',
		published   TEXT NOT NULL DEFAULT '',
		total       INTEGER NOT NULL DEFAULT 0,
		high        INTEGER NOT NULL DEFAULT 0,
		medium      INTEGER NOT NULL DEFAULT 0,
		low         INTEGER NOT NULL DEFAULT 0,
		unknown     INTEGER NOT NULL DEFAULT 0,
		incomplete  INTEGER NOT NULL DEFAULT 0,
		fetched_at  TEXT NOT NULL,
		body        TEXT NOT NULL,
		PRIMARY KEY (title, version, rel)
	);

	CREATE TABLE IF NOT EXISTS export_runs (
		id          TEXT PRIMARY KEY,
		target      TEXT NOT NULL DEFAULT '',
		started_at  TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS export_items (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id    TEXT NOT NULL REFERENCES export_runs(id) ON DELETE CASCADE,
		title     TEXT NOT NULL,
		version   TEXT NOT NULL,
		rel       TEXT NOT NULL,
		status    TEXT NOT NULL,
		location  TEXT NOT NULL DEFAULT '',
		error     TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_items_run ON export_items(run_id, id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON export_runs(started_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveDocument inserts or replaces a completed document.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *compliance.CompleteDocument) error {
	if err := doc.Key.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	sum := compliance.Summarize(doc)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (title, version, rel, doc_title, status, published, total, high, medium, low, unknown, incomplete, fetched_at, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.Key.Title, doc.Key.Version, doc.Key.Release,
		doc.Title, doc.Status, doc.Published,
		sum.Total,
		sum.BySeverity[compliance.SeverityHigh],
		sum.BySeverity[compliance.SeverityMedium],
		sum.BySeverity[compliance.SeverityLow],
		sum.BySeverity[compliance.SeverityUnknown],
		sum.Incomplete,
		doc.FetchedAt.UTC().Format(time.RFC3339),
		string(body),
	)
	return err
}

// GetDocument retrieves a document by key.
func (s *SQLiteStore) GetDocument(ctx context.Context, key trackr.DocumentKey) (*compliance.CompleteDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE title = ? AND version = ? AND rel = ?`,
		key.Title, key.Version, key.Release).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var doc compliance.CompleteDocument
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", key, err)
	}
	return &doc, nil
}

// ListDocuments returns stored documents matching the filter, ordered by
// title, then version and release descending.
func (s *SQLiteStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT title, version, rel, doc_title, status, published, total, high, medium, low, unknown, incomplete, fetched_at FROM documents WHERE 1=1"
	var args []interface{}

	if filter.Title != "" {
		query += " AND LOWER(title) LIKE ?"
		args = append(args, "%"+strings.ToLower(filter.Title)+"%")
	}
	if filter.Incomplete {
		query += " AND incomplete > 0"
	}
	query += " ORDER BY title ASC, CAST(version AS INTEGER) DESC, CAST(rel AS REAL) DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []DocumentInfo
	for rows.Next() {
		var d DocumentInfo
		var high, medium, low, unknown int
		var fetchedAt string
		if err := rows.Scan(&d.Key.Title, &d.Key.Version, &d.Key.Release,
			&d.Title, &d.Status, &d.Published,
			&d.Summary.Total, &high, &medium, &low, &unknown, &d.Summary.Incomplete,
			&fetchedAt); err != nil {
			return nil, err
		}
		d.Summary.BySeverity = map[compliance.Severity]int{
			compliance.SeverityHigh:   high,
			compliance.SeverityMedium: medium,
			compliance.SeverityLow:    low,
		}
		if unknown > 0 {
			d.Summary.BySeverity[compliance.SeverityUnknown] = unknown
		}
		d.FetchedAt, _ = time.Parse(time.RFC3339, fetchedAt)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, key trackr.DocumentKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE title = ? AND version = ? AND rel = ?`,
		key.Title, key.Version, key.Release)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", key, ErrNotFound)
	}
	return nil
}

// CreateRun starts a new export run writing to target.
func (s *SQLiteStore) CreateRun(ctx context.Context, target string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Target:    target,
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO export_runs (id, target, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Target, run.StartedAt.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return run, nil
}

// AddRunItem records the outcome of one document in a run.
func (s *SQLiteStore) AddRunItem(ctx context.Context, runID string, item RunItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO export_items (run_id, title, version, rel, status, location, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, item.Key.Title, item.Key.Version, item.Key.Release,
		string(item.Status), item.Location, item.Error)
	return err
}

// FinishRun stamps the run's completion time.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE export_runs SET finished_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// GetRun retrieves a run with its items and outcome counts.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, target, started_at, finished_at FROM export_runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT title, version, rel, status, location, error
		 FROM export_items WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item RunItem
		var status string
		if err := rows.Scan(&item.Key.Title, &item.Key.Version, &item.Key.Release,
			&status, &item.Location, &item.Error); err != nil {
			return nil, err
		}
		item.Status = RunStatus(status)
		run.count(item.Status)
		run.Items = append(run.Items, item)
	}
	return run, rows.Err()
}

// ListRuns returns the most recent runs without their items.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.target, r.started_at, r.finished_at,
		        COALESCE(SUM(CASE WHEN i.status = 'ok' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN i.status = 'failed' THEN 1 ELSE 0 END), 0)
		 FROM export_runs r LEFT JOIN export_items i ON i.run_id = r.id
		 GROUP BY r.id ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt, finishedAt string
		if err := rows.Scan(&run.ID, &run.Target, &startedAt, &finishedAt, &run.Succeeded, &run.Failed); err != nil {
			return nil, err
		}
		populateRunTimes(&run, startedAt, finishedAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *Run) count(status RunStatus) {
	switch status {
	case RunItemOK:
		r.Succeeded++
	case RunItemFailed:
		r.Failed++
	}
}

// populateRunTimes parses the stored timestamps; an empty finished_at
// means the run is still open.
func populateRunTimes(run *Run, startedAt, finishedAt string) {
	run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if finishedAt != "" {
		if t, err := time.Parse(time.RFC3339, finishedAt); err == nil {
			run.FinishedAt = &t
		}
	}
}

// scanRun scans a single run from a *sql.Row.
func scanRun(row *sql.Row) (*Run, error) {
	var run Run
	var startedAt, finishedAt string
	if err := row.Scan(&run.ID, &run.Target, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	populateRunTimes(&run, startedAt, finishedAt)
	return &run, nil
}
