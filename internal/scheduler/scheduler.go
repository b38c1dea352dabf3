// Package scheduler defines the submission backends that hand generated job
// scripts to a batch system.
package scheduler

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Backend submits one artifact to a batch scheduler and reports the job ID
// the scheduler assigned. Submission is fire-and-forget: a backend never
// waits for the job itself to run.
type Backend interface {
	Name() string
	Submit(ctx context.Context, artifactPath string) (jobID string, err error)
}

// Reply format of sbatch, e.g. "Submitted batch job 49229449".
var submitReplyRE = regexp.MustCompile(`Submitted batch job (\d+)`)

// ParseJobID extracts the scheduler job ID from a submission reply.
func ParseJobID(reply string) (string, error) {
	m := submitReplyRE.FindStringSubmatch(reply)
	if m == nil {
		return "", fmt.Errorf("no job id in scheduler reply %q", strings.TrimSpace(reply))
	}
	return m[1], nil
}
