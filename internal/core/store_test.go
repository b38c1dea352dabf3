package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/meridianlab/sweepctl/pkg/api"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "state", "ledger.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	run := api.Run{
		ID:        "run-20260825-120000-abcd1234",
		StartedAt: time.Now().UTC(),
		Table:     "scenarios.csv",
		Backend:   "slurm",
		Rows:      2,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	subs := []api.Submission{
		{RunID: run.ID, JobName: "job_90mt_winter_mk1_flat", Artifact: "jobs/job_90mt_winter_mk1_flat.sbatch", SchedulerID: "1001", Status: api.SubmitSucceeded},
		{RunID: run.ID, JobName: "job_120mt_winter_mk2_flat", Artifact: "jobs/job_120mt_winter_mk2_flat.sbatch", Status: api.SubmitFailed, Error: "sbatch: queue full"},
	}
	for _, sub := range subs {
		if err := store.RecordSubmission(ctx, sub); err != nil {
			t.Fatalf("RecordSubmission failed: %v", err)
		}
	}

	run.Submitted = 1
	run.Failed = 1
	run.Merged = true
	if err := store.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	runs, err := store.RecentRuns(ctx, 0)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.ID != run.ID || got.Table != "scenarios.csv" || got.Backend != "slurm" {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.Rows != 2 || got.Submitted != 1 || got.Failed != 1 {
		t.Errorf("unexpected counts: %+v", got)
	}
	if !got.Merged {
		t.Error("merged flag lost")
	}
	if got.FinishedAt == nil {
		t.Error("finished_at not set")
	}

	stored, err := store.RunSubmissions(ctx, run.ID)
	if err != nil {
		t.Fatalf("RunSubmissions failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(stored))
	}
	if stored[0].JobName != subs[0].JobName || stored[0].Status != api.SubmitSucceeded || stored[0].SchedulerID != "1001" {
		t.Errorf("unexpected first submission: %+v", stored[0])
	}
	if stored[1].Status != api.SubmitFailed || stored[1].Error != "sbatch: queue full" {
		t.Errorf("unexpected second submission: %+v", stored[1])
	}
}

func TestStoreRecentRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := api.Run{ID: "run-a", StartedAt: time.Now().UTC().Add(-time.Hour), Table: "a.csv", Backend: "slurm"}
	newer := api.Run{ID: "run-b", StartedAt: time.Now().UTC(), Table: "b.csv", Backend: "local"}
	for _, run := range []api.Run{older, newer} {
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-b" || runs[1].ID != "run-a" {
		t.Errorf("runs not newest first: %s, %s", runs[0].ID, runs[1].ID)
	}

	limited, err := store.RecentRuns(ctx, 1)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "run-b" {
		t.Errorf("limit not applied: %+v", limited)
	}
}

func TestStoreEmptyLedger(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runs, err := store.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected empty ledger, got %d runs", len(runs))
	}

	subs, err := store.RunSubmissions(ctx, "run-unknown")
	if err != nil {
		t.Fatalf("RunSubmissions failed: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("expected no submissions, got %d", len(subs))
	}
}

func TestStoreUnfinishedRunHasNoFinishTime(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := api.Run{ID: "run-open", StartedAt: time.Now().UTC(), Table: "t.csv", Backend: "slurm", Rows: 4}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	runs, err := store.RecentRuns(ctx, 1)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].FinishedAt != nil {
		t.Errorf("open run has finished_at %v", runs[0].FinishedAt)
	}
	if runs[0].Merged {
		t.Error("open run marked merged")
	}
}
