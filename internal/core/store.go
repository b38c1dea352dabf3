package core

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meridianlab/sweepctl/pkg/api"
)

// Store is the SQLite-backed submission ledger: one row per run, one row per
// artifact hand-off.
type Store struct{ db *sql.DB }

//go:embed migrations/*.sql
var migrationFS embed.FS

func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("db not initialized")
	}
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateRun inserts the run header before the loop starts.
func (s *Store) CreateRun(ctx context.Context, run api.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, table_path, backend, rows) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.Table, run.Backend, run.Rows)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records the loop outcome.
func (s *Store) FinishRun(ctx context.Context, run api.Run) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, rows = ?, submitted = ?, failed = ?, merged = ?, merge_error = ? WHERE id = ?`,
		time.Now().UTC(), run.Rows, run.Submitted, run.Failed, boolToInt(run.Merged), run.MergeError, run.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordSubmission appends one hand-off result to the ledger.
func (s *Store) RecordSubmission(ctx context.Context, sub api.Submission) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (run_id, job_name, artifact, scheduler_id, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.RunID, sub.JobName, sub.Artifact, sub.SchedulerID, string(sub.Status), sub.Error, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// RecentRuns lists the newest runs first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]api.Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, table_path, backend, rows, submitted, failed, merged, merge_error
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []api.Run
	for rows.Next() {
		var r api.Run
		var finished sql.NullTime
		var merged int
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Table, &r.Backend,
			&r.Rows, &r.Submitted, &r.Failed, &merged, &r.MergeError); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		r.Merged = merged != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunSubmissions lists the hand-offs of one run in submission order.
func (s *Store) RunSubmissions(ctx context.Context, runID string) ([]api.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, job_name, artifact, scheduler_id, status, error
		 FROM submissions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []api.Submission
	for rows.Next() {
		var sub api.Submission
		var status string
		if err := rows.Scan(&sub.RunID, &sub.JobName, &sub.Artifact, &sub.SchedulerID, &status, &sub.Error); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub.Status = api.SubmitStatus(status)
		out = append(out, sub)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
