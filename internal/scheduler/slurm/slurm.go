// Package slurm submits job scripts through the local scheduler submission
// command.
package slurm

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/meridianlab/sweepctl/internal/scheduler"
)

type Backend struct {
	Command string   // submission command, e.g. sbatch
	Args    []string // extra arguments placed before the artifact path
}

func New(command string, args ...string) *Backend {
	if command == "" {
		command = "sbatch"
	}
	return &Backend{Command: command, Args: args}
}

func (b *Backend) Name() string { return "slurm" }

func (b *Backend) Submit(ctx context.Context, artifactPath string) (string, error) {
	args := append(append([]string{}, b.Args...), artifactPath)
	cmd := exec.CommandContext(ctx, b.Command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %s: %w", b.Command, msg, err)
		}
		return "", fmt.Errorf("%s: %w", b.Command, err)
	}
	return scheduler.ParseJobID(stdout.String())
}
