package jobfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateFollowups(t *testing.T) {
	solutions := t.TempDir()
	for _, name := range []string{"job_90mt_winter_mk1_flat.sol", "job_120mt_winter_mk2_flat.sol"} {
		if err := os.WriteFile(filepath.Join(solutions, name), []byte("solution"), 0o644); err != nil {
			t.Fatalf("write solution: %v", err)
		}
	}
	// Subdirectories must be skipped.
	if err := os.Mkdir(filepath.Join(solutions, "archive"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	r, err := NewRenderer("")
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}
	out := filepath.Join(t.TempDir(), "refine")
	count, err := GenerateFollowups(r, testParams(), solutions, out, "sbatch")
	if err != nil {
		t.Fatalf("GenerateFollowups failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 scripts, got %d", count)
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(entries))
	}
	// os.ReadDir sorts by name, so the 120mt job comes first.
	if entries[0].Name() != "refine_job_120mt_winter_mk2_flat.sbatch" {
		t.Errorf("unexpected artifact name %q", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(out, entries[0].Name()))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	wantWarm := filepath.Join(solutions, "job_120mt_winter_mk2_flat.sol")
	if !strings.Contains(string(data), "--warm-start "+wantWarm) {
		t.Errorf("warm-start path missing from script:\n%s", data)
	}
}

func TestGenerateFollowupsMissingDir(t *testing.T) {
	r, err := NewRenderer("")
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}
	_, err = GenerateFollowups(r, testParams(), filepath.Join(t.TempDir(), "missing"), t.TempDir(), "sbatch")
	if err == nil {
		t.Fatal("expected error for missing solutions dir")
	}
}

func TestGenerateFollowupsEmptyDir(t *testing.T) {
	r, err := NewRenderer("")
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}
	count, err := GenerateFollowups(r, testParams(), t.TempDir(), t.TempDir(), "sbatch")
	if err != nil {
		t.Fatalf("GenerateFollowups failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 scripts, got %d", count)
	}
}
