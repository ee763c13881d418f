// Package history records fix runs and their per-finding outcomes in
// a local SQLite database.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"sonarfix/internal/fix"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Run summarizes one fix batch.
type Run struct {
	ID         string
	ProjectKey string
	StartedAt  time.Time
	FinishedAt time.Time
	CommitHash string
	Total      int
	Fixed      int
	Unfixed    int
}

// OutcomeRecord is the stored form of a fix outcome.
type OutcomeRecord struct {
	RunID  string
	Rule   string
	Path   string
	Line   int
	Status string
	Method string
	Reason string
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// RecordRun stores a run and its outcomes in one transaction and
// returns the generated run id.
func (s *Store) RecordRun(projectKey, commitHash string, startedAt, finishedAt time.Time, outcomes []fix.Outcome) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectKey = strings.TrimSpace(projectKey)
	if projectKey == "" {
		projectKey = "default"
	}
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	if finishedAt.IsZero() {
		finishedAt = time.Now().UTC()
	}

	runID := uuid.NewString()
	fixed := 0
	for _, o := range outcomes {
		if o.Status == fix.StatusFixed {
			fixed++
		}
	}

	err := s.withRetry("record run", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`
INSERT INTO runs (id, project_key, started_at_utc, finished_at_utc, commit_hash, total, fixed, unfixed)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID,
			projectKey,
			startedAt.UTC().Format(time.RFC3339Nano),
			finishedAt.UTC().Format(time.RFC3339Nano),
			commitHash,
			len(outcomes),
			fixed,
			len(outcomes)-fixed,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
		for _, o := range outcomes {
			if _, err := tx.Exec(`
INSERT INTO outcomes (run_id, rule, path, line, status, method, reason)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
				runID,
				o.Finding.Rule,
				o.Finding.Path,
				o.Finding.Line,
				o.Status.String(),
				string(o.Method),
				o.Reason,
			); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return "", err
	}
	return runID, nil
}

// RecentRuns returns the newest runs first, up to limit.
func (s *Store) RecentRuns(projectKey string, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectKey = strings.TrimSpace(projectKey)
	if projectKey == "" {
		projectKey = "default"
	}
	if limit <= 0 {
		limit = 20
	}

	var rows *sql.Rows
	err := s.withRetry("load runs", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT id, project_key, started_at_utc, finished_at_utc, commit_hash, total, fixed, unfixed
FROM runs
WHERE project_key = ?
ORDER BY started_at_utc DESC
LIMIT ?`, projectKey, limit)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var (
			run         Run
			startedRaw  string
			finishedRaw string
		)
		if err := rows.Scan(
			&run.ID,
			&run.ProjectKey,
			&startedRaw,
			&finishedRaw,
			&run.CommitHash,
			&run.Total,
			&run.Fixed,
			&run.Unfixed,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if run.StartedAt, err = parseTimestamp(startedRaw); err != nil {
			return nil, err
		}
		if run.FinishedAt, err = parseTimestamp(finishedRaw); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// Outcomes returns the stored outcomes of a run in insertion order.
func (s *Store) Outcomes(runID string) ([]OutcomeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("load outcomes", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT run_id, rule, path, line, status, method, reason
FROM outcomes
WHERE run_id = ?
ORDER BY rowid ASC`, runID)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]OutcomeRecord, 0)
	for rows.Next() {
		var rec OutcomeRecord
		if err := rows.Scan(&rec.RunID, &rec.Rule, &rec.Path, &rec.Line, &rec.Status, &rec.Method, &rec.Reason); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome rows: %w", err)
	}
	return records, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse run timestamp %q: %w", raw, err)
	}
	return ts.UTC(), nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
