package core

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// RunMergeScript makes the aggregation script executable and invokes it once
// with no arguments. The caller guarantees it runs exactly once per sweep.
func RunMergeScript(ctx context.Context, script string) error {
	if _, err := os.Stat(script); err != nil {
		return fmt.Errorf("merge script: %w", err)
	}
	if err := os.Chmod(script, 0o755); err != nil {
		return fmt.Errorf("chmod merge script: %w", err)
	}

	cmd := exec.CommandContext(ctx, script)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if msg := strings.TrimSpace(out.String()); msg != "" {
		log.Debug().Str("script", script).Str("output", msg).Msg("merge script output")
	}
	if err != nil {
		return fmt.Errorf("merge script %s: %w", script, err)
	}
	log.Info().Str("script", script).Msg("results merged")
	return nil
}
