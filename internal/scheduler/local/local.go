// Package local executes job scripts directly instead of submitting them,
// for development machines without a scheduler.
package local

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

type Backend struct {
	Shell  string // interpreter for the artifact, default /bin/sh
	LogDir string // where to write the captured output, empty discards it
}

func New(shell, logDir string) *Backend {
	if shell == "" {
		shell = "/bin/sh"
	}
	return &Backend{Shell: shell, LogDir: logDir}
}

func (b *Backend) Name() string { return "local" }

func (b *Backend) Submit(ctx context.Context, artifactPath string) (string, error) {
	cmd := exec.CommandContext(ctx, b.Shell, artifactPath)

	name := strings.TrimSuffix(filepath.Base(artifactPath), filepath.Ext(artifactPath))
	if b.LogDir != "" {
		if err := os.MkdirAll(b.LogDir, 0o755); err != nil {
			return "", fmt.Errorf("create log dir: %w", err)
		}
		// The _local suffix stands in for the job ID a scheduler would
		// append, so harvested results keep the same stem layout.
		logFile, err := os.Create(filepath.Join(b.LogDir, name+"_local.log"))
		if err != nil {
			return "", fmt.Errorf("create run log: %w", err)
		}
		defer logFile.Close()
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run %s: %w", name, err)
	}
	return fmt.Sprintf("local-%d", cmd.Process.Pid), nil
}
