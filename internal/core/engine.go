package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/meridianlab/sweepctl/internal/jobfile"
	"github.com/meridianlab/sweepctl/internal/scenario"
	"github.com/meridianlab/sweepctl/internal/scheduler"
	"github.com/meridianlab/sweepctl/internal/telemetry"
	"github.com/meridianlab/sweepctl/pkg/api"
)

// Engine drives a sweep: read the scenario table, render one job script per
// row, hand each to the backend and trigger the merge script once at the end.
type Engine struct {
	cfg      Config
	renderer *jobfile.Renderer
	backend  scheduler.Backend
	store    *Store
}

// NewEngine assembles an engine. The store may be nil, which disables the
// ledger; the backend may be nil for generate-only use.
func NewEngine(cfg Config, renderer *jobfile.Renderer, backend scheduler.Backend, store *Store) *Engine {
	return &Engine{cfg: cfg, renderer: renderer, backend: backend, store: store}
}

// RunOptions selects which stages of the sweep run.
type RunOptions struct {
	Table      string
	SubmitJobs bool // false renders artifacts without touching the scheduler
	FailFast   bool // stop at the first failed submission, skipping the merge
}

// RunReport summarizes one Run invocation.
type RunReport struct {
	RunID      string
	Rows       int
	Artifacts  int
	Submitted  int
	Failed     int
	Merged     bool
	MergeError string
	Elapsed    time.Duration
}

// NewRunID returns a sortable unique run identifier.
func NewRunID() string {
	return fmt.Sprintf("run-%s-%s", time.Now().UTC().Format("20060102-150405"), uuid.New().String()[:8])
}

// Run executes the sweep. The merge script runs exactly once on the default
// path, even when the table has zero data rows; a fail-fast abort is the one
// exception. The returned report is valid even when err is non-nil.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	start := time.Now()

	table := opts.Table
	if table == "" {
		table = e.cfg.Paths.Table
	}
	scenarios, err := scenario.ReadTable(table, e.cfg.TableComma())
	if err != nil {
		return nil, err
	}

	report := &RunReport{RunID: NewRunID(), Rows: len(scenarios)}
	backendName := "none"
	if e.backend != nil {
		backendName = e.backend.Name()
	}
	log.Info().
		Str("run", report.RunID).
		Str("table", table).
		Str("backend", backendName).
		Int("rows", len(scenarios)).
		Msg("starting sweep")

	if e.store != nil {
		run := api.Run{ID: report.RunID, StartedAt: start.UTC(), Table: table, Backend: backendName, Rows: report.Rows}
		if err := e.store.CreateRun(ctx, run); err != nil {
			return report, err
		}
	}

	artifacts, err := e.generate(scenarios)
	if err != nil {
		return report, err
	}
	report.Artifacts = len(artifacts)
	telemetry.CountGlobal("jobs_generated", float64(len(artifacts)), nil)

	if opts.SubmitJobs && e.backend != nil {
		if err := e.submit(ctx, report, artifacts, opts.FailFast); err != nil {
			e.finish(ctx, report, table, backendName)
			return report, err
		}
	}

	// The merge trigger does not depend on how many rows there were.
	if opts.SubmitJobs && e.cfg.Merge.Script != "" {
		if err := RunMergeScript(ctx, e.cfg.Merge.Script); err != nil {
			report.MergeError = err.Error()
			telemetry.CountGlobal("merge_failed", 1, nil)
			e.finish(ctx, report, table, backendName)
			return report, err
		}
		report.Merged = true
		telemetry.CountGlobal("merge_succeeded", 1, nil)
	}

	report.Elapsed = time.Since(start)
	e.finish(ctx, report, table, backendName)

	log.Info().
		Str("run", report.RunID).
		Int("artifacts", report.Artifacts).
		Int("submitted", report.Submitted).
		Int("failed", report.Failed).
		Bool("merged", report.Merged).
		Dur("elapsed", report.Elapsed).
		Msg("sweep finished")

	if report.Failed > 0 {
		return report, fmt.Errorf("%d of %d submissions failed", report.Failed, report.Artifacts)
	}
	return report, nil
}

// generate renders one artifact per scenario row. Duplicate rows collapse to
// the same job name; the later row wins and a warning is logged.
func (e *Engine) generate(scenarios []scenario.Scenario) ([]Artifact, error) {
	seen := make(map[string]bool, len(scenarios))
	artifacts := make([]Artifact, 0, len(scenarios))
	for _, s := range scenarios {
		name := s.JobName()
		if seen[name] {
			log.Warn().Str("job", name).Msg("duplicate scenario, artifact overwritten")
		}

		content, err := e.renderer.RenderJob(e.jobParams(s, name))
		if err != nil {
			return nil, err
		}
		path, err := jobfile.WriteArtifact(e.cfg.Paths.OutputDir, name, e.cfg.Paths.ArtifactExt, content)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("artifact", path).Msg("rendered job script")

		if !seen[name] {
			artifacts = append(artifacts, Artifact{Name: name, Path: path})
			seen[name] = true
		}
	}
	return artifacts, nil
}

func (e *Engine) submit(ctx context.Context, report *RunReport, artifacts []Artifact, failFast bool) error {
	pause := time.Duration(e.cfg.Submit.BatchPause) * time.Second
	done := 0
	for i, batch := range ChunkArtifacts(artifacts, e.cfg.Submit.BatchSize) {
		if i > 0 && pause > 0 {
			log.Info().Dur("pause", pause).Msg("pausing between submission batches")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}
		}

		for _, a := range batch {
			jobID, err := e.backend.Submit(ctx, a.Path)
			sub := api.Submission{RunID: report.RunID, JobName: a.Name, Artifact: a.Path, SchedulerID: jobID}
			if err != nil {
				report.Failed++
				sub.Status = api.SubmitFailed
				sub.Error = err.Error()
				telemetry.CountGlobal("jobs_failed", 1, nil)
				log.Error().Err(err).Str("job", a.Name).Msg("submission failed")
			} else {
				report.Submitted++
				sub.Status = api.SubmitSucceeded
				telemetry.CountGlobal("jobs_submitted", 1, nil)
				log.Info().Str("job", a.Name).Str("job_id", jobID).Msg("submitted")
			}
			if e.store != nil {
				if serr := e.store.RecordSubmission(ctx, sub); serr != nil {
					log.Warn().Err(serr).Str("job", a.Name).Msg("ledger write failed")
				}
			}
			done++
			if err != nil && failFast {
				e.recordSkipped(ctx, report.RunID, artifacts[done:])
				return fmt.Errorf("submission failed for %s: %w", a.Name, err)
			}
		}
	}
	return nil
}

// recordSkipped marks the artifacts a fail-fast abort never handed to the
// scheduler, so the ledger accounts for every rendered script.
func (e *Engine) recordSkipped(ctx context.Context, runID string, rest []Artifact) {
	if e.store == nil {
		return
	}
	for _, a := range rest {
		sub := api.Submission{RunID: runID, JobName: a.Name, Artifact: a.Path, Status: api.SubmitSkipped}
		if err := e.store.RecordSubmission(ctx, sub); err != nil {
			log.Warn().Err(err).Str("job", a.Name).Msg("ledger write failed")
		}
	}
}

func (e *Engine) finish(ctx context.Context, report *RunReport, table, backendName string) {
	if e.store == nil {
		return
	}
	run := api.Run{
		ID:         report.RunID,
		Table:      table,
		Backend:    backendName,
		Rows:       report.Rows,
		Submitted:  report.Submitted,
		Failed:     report.Failed,
		Merged:     report.Merged,
		MergeError: report.MergeError,
	}
	if err := e.store.FinishRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("run", report.RunID).Msg("ledger update failed")
	}
}

func (e *Engine) jobParams(s scenario.Scenario, name string) jobfile.Params {
	p := e.cfg.BaseParams()
	p.Name = name
	p.Target = s.Target
	p.Profile = s.Profile
	p.Vessel = s.Vessel
	p.Tariff = s.Tariff
	return p
}
