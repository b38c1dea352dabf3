// Package api holds the public types shared by the sweepctl commands and the
// sweep agent.
package api

import "time"

// SweepSpec declares the parameter axes of a sweep. The scenario table is the
// cartesian product of the four lists, one row per combination.
type SweepSpec struct {
	Name     string   `json:"name" yaml:"name"`
	Targets  []string `json:"targets" yaml:"targets"`
	Profiles []string `json:"profiles" yaml:"profiles"`
	Vessels  []string `json:"vessels" yaml:"vessels"`
	Tariffs  []string `json:"tariffs" yaml:"tariffs"`
}

type SubmitStatus string

const (
	SubmitSucceeded SubmitStatus = "submitted"
	SubmitFailed    SubmitStatus = "failed"
	SubmitSkipped   SubmitStatus = "skipped"
)

// Submission records one artifact hand-off to the scheduler.
type Submission struct {
	RunID       string       `json:"run_id"`
	JobName     string       `json:"job_name"`
	Artifact    string       `json:"artifact"`
	SchedulerID string       `json:"scheduler_id"`
	Status      SubmitStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
}

// Run summarizes one invocation of the submit loop.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Table      string     `json:"table"`
	Backend    string     `json:"backend"`
	Rows       int        `json:"rows"`
	Submitted  int        `json:"submitted"`
	Failed     int        `json:"failed"`
	Merged     bool       `json:"merged"`
	MergeError string     `json:"merge_error,omitempty"`
}
