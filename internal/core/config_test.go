package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Paths.Table != "scenarios.csv" {
		t.Errorf("table default = %q", cfg.Paths.Table)
	}
	if cfg.Paths.ArtifactExt != "sbatch" {
		t.Errorf("artifact_ext default = %q", cfg.Paths.ArtifactExt)
	}
	if cfg.Slurm.Partition != "compute" || cfg.Slurm.NTasks != 4 {
		t.Errorf("unexpected slurm defaults: %+v", cfg.Slurm)
	}
	if cfg.Submit.Backend != "slurm" || cfg.Submit.Command != "sbatch" {
		t.Errorf("unexpected submit defaults: %+v", cfg.Submit)
	}
	if cfg.License.Env != "GRB_LICENSE_FILE" {
		t.Errorf("license env default = %q", cfg.License.Env)
	}
	if cfg.TableComma() != ',' {
		t.Errorf("TableComma = %q", cfg.TableComma())
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
paths:
  table: winter_sweep.tsv
  delimiter: "\t"
slurm:
  partition: bigmem
  mem: 64G
submit:
  backend: local
  fail_fast: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Paths.Table != "winter_sweep.tsv" {
		t.Errorf("table = %q", cfg.Paths.Table)
	}
	if cfg.TableComma() != '\t' {
		t.Errorf("TableComma = %q", cfg.TableComma())
	}
	if cfg.Slurm.Partition != "bigmem" || cfg.Slurm.Mem != "64G" {
		t.Errorf("unexpected slurm: %+v", cfg.Slurm)
	}
	if cfg.Submit.Backend != "local" || !cfg.Submit.FailFast {
		t.Errorf("unexpected submit: %+v", cfg.Submit)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Slurm.NTasks != 4 {
		t.Errorf("ntasks = %d", cfg.Slurm.NTasks)
	}
	if cfg.Merge.Script != "merge_results.sh" {
		t.Errorf("merge script = %q", cfg.Merge.Script)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("SWEEP_SUBMIT_BACKEND", "agent")
	t.Setenv("SWEEP_SLURM_PARTITION", "gpu")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Submit.Backend != "agent" {
		t.Errorf("backend = %q, want env override", cfg.Submit.Backend)
	}
	if cfg.Slurm.Partition != "gpu" {
		t.Errorf("partition = %q, want env override", cfg.Slurm.Partition)
	}
}

func TestTableComma(t *testing.T) {
	cfg := Config{}
	if cfg.TableComma() != 0 {
		t.Errorf("empty delimiter should map to zero rune")
	}
	cfg.Paths.Delimiter = ";"
	if cfg.TableComma() != ';' {
		t.Errorf("TableComma = %q", cfg.TableComma())
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")

	created, err := WriteDefaultConfig(path)
	if err != nil {
		t.Fatalf("WriteDefaultConfig failed: %v", err)
	}
	if !created {
		t.Fatal("expected file to be created")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "backend: slurm") {
		t.Error("default config missing submit backend")
	}

	// The written template must itself parse.
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("default config does not load: %v", err)
	}
	if cfg.Submit.Backend != "slurm" {
		t.Errorf("backend = %q", cfg.Submit.Backend)
	}

	// A second call must not clobber local edits.
	if err := os.WriteFile(path, []byte("slurm:\n  partition: edited\n"), 0o600); err != nil {
		t.Fatalf("edit config: %v", err)
	}
	created, err = WriteDefaultConfig(path)
	if err != nil {
		t.Fatalf("WriteDefaultConfig failed: %v", err)
	}
	if created {
		t.Error("existing config reported as created")
	}
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), "edited") {
		t.Error("existing config was overwritten")
	}
}
