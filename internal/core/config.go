package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/meridianlab/sweepctl/internal/jobfile"
)

// Config is the full sweepctl configuration, loaded from YAML with SWEEP_*
// environment overrides.
type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Slurm     SlurmConfig     `mapstructure:"slurm"`
	Model     ModelConfig     `mapstructure:"model"`
	License   LicenseConfig   `mapstructure:"license"`
	Merge     MergeConfig     `mapstructure:"merge"`
	Submit    SubmitConfig    `mapstructure:"submit"`
	SSH       SSHConfig       `mapstructure:"ssh"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type PathsConfig struct {
	Table        string `mapstructure:"table"`
	Delimiter    string `mapstructure:"delimiter"`
	OutputDir    string `mapstructure:"output_dir"`
	LogDir       string `mapstructure:"log_dir"`
	SolutionsDir string `mapstructure:"solutions_dir"`
	Summary      string `mapstructure:"summary"`
	Database     string `mapstructure:"database"`
	Template     string `mapstructure:"template"`
	ArtifactExt  string `mapstructure:"artifact_ext"`
}

// SlurmConfig holds the resource directives written into every job script.
// They are fixed per sweep, never derived from a scenario row.
type SlurmConfig struct {
	Partition string `mapstructure:"partition"`
	NTasks    int    `mapstructure:"ntasks"`
	TimeLimit string `mapstructure:"time_limit"`
	Mem       string `mapstructure:"mem"`
}

type ModelConfig struct {
	Interpreter string   `mapstructure:"interpreter"`
	Script      string   `mapstructure:"script"`
	Setup       []string `mapstructure:"setup"`
}

type LicenseConfig struct {
	Env  string `mapstructure:"env"`
	File string `mapstructure:"file"`
}

type MergeConfig struct {
	Script string `mapstructure:"script"`
}

type SubmitConfig struct {
	Backend    string `mapstructure:"backend"`
	Command    string `mapstructure:"command"`
	FailFast   bool   `mapstructure:"fail_fast"`
	BatchSize  int    `mapstructure:"batch_size"`
	BatchPause int    `mapstructure:"batch_pause_seconds"`
}

type SSHConfig struct {
	Addr           string `mapstructure:"addr"`
	User           string `mapstructure:"user"`
	KeyPath        string `mapstructure:"key_path"`
	KnownHosts     string `mapstructure:"known_hosts"`
	SpoolDir       string `mapstructure:"spool_dir"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Retries        int    `mapstructure:"retries"`
}

type AgentConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// BaseParams builds the template parameters every generated script shares:
// resource directives, environment setup and the model invocation. Callers
// fill in the per-scenario fields.
func (c Config) BaseParams() jobfile.Params {
	return jobfile.Params{
		Partition:   c.Slurm.Partition,
		NTasks:      c.Slurm.NTasks,
		TimeLimit:   c.Slurm.TimeLimit,
		Mem:         c.Slurm.Mem,
		LogDir:      c.Paths.LogDir,
		Setup:       c.Model.Setup,
		LicenseEnv:  c.License.Env,
		LicenseFile: c.License.File,
		Interpreter: c.Model.Interpreter,
		Script:      c.Model.Script,
	}
}

// TableComma returns the configured delimiter as a rune, zero meaning the
// reader's default.
func (c Config) TableComma() rune {
	if c.Paths.Delimiter == "" {
		return 0
	}
	return []rune(c.Paths.Delimiter)[0]
}

// DefaultConfigDir resolves $XDG_CONFIG_HOME/sweepctl or ~/.config/sweepctl.
func DefaultConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "sweepctl")
}

// DefaultConfigPath is the config file LoadConfig falls back to.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// LoadConfig reads the YAML configuration. If path is empty the default
// location is used; a missing file is fine and leaves the defaults in place.
// Every key can be overridden through SWEEP_* environment variables, e.g.
// SWEEP_SUBMIT_BACKEND=agent.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigFile(DefaultConfigPath())
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("SWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// An explicitly named config must exist; the default one may not.
		if path != "" || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.table", "scenarios.csv")
	v.SetDefault("paths.delimiter", ",")
	v.SetDefault("paths.output_dir", "jobs")
	v.SetDefault("paths.log_dir", "logs")
	v.SetDefault("paths.solutions_dir", "solutions")
	v.SetDefault("paths.summary", "results/summary.csv")
	v.SetDefault("paths.database", filepath.Join(DefaultConfigDir(), "sweepctl.db"))
	v.SetDefault("paths.template", "")
	v.SetDefault("paths.artifact_ext", "sbatch")

	v.SetDefault("slurm.partition", "compute")
	v.SetDefault("slurm.ntasks", 4)
	v.SetDefault("slurm.time_limit", "24:00:00")
	v.SetDefault("slurm.mem", "16G")

	v.SetDefault("model.interpreter", "python3")
	v.SetDefault("model.script", "run_model.py")
	v.SetDefault("model.setup", []string{})

	v.SetDefault("license.env", "GRB_LICENSE_FILE")
	v.SetDefault("license.file", "/opt/gurobi/gurobi.lic")

	v.SetDefault("merge.script", "merge_results.sh")

	v.SetDefault("submit.backend", "slurm")
	v.SetDefault("submit.command", "sbatch")
	v.SetDefault("submit.fail_fast", false)
	v.SetDefault("submit.batch_size", 0)
	v.SetDefault("submit.batch_pause_seconds", 30)

	v.SetDefault("ssh.addr", "")
	v.SetDefault("ssh.user", "")
	v.SetDefault("ssh.key_path", filepath.Join(DefaultConfigDir(), "id_ed25519"))
	v.SetDefault("ssh.known_hosts", filepath.Join(DefaultConfigDir(), "known_hosts"))
	v.SetDefault("ssh.spool_dir", "sweep_spool")
	v.SetDefault("ssh.timeout_seconds", 30)
	v.SetDefault("ssh.retries", 2)

	v.SetDefault("agent.url", "")
	v.SetDefault("agent.token", "")

	v.SetDefault("telemetry.enabled", false)
}

const defaultConfigYAML = `# sweepctl configuration
paths:
  table: scenarios.csv
  delimiter: ","
  output_dir: jobs
  log_dir: logs
  solutions_dir: solutions
  summary: results/summary.csv
  # database: ~/.config/sweepctl/sweepctl.db
  # template: site_job.tmpl
  artifact_ext: sbatch

slurm:
  partition: compute
  ntasks: 4
  time_limit: "24:00:00"
  mem: 16G

model:
  interpreter: python3
  script: run_model.py
  setup:
    - module load gurobi/10.0

license:
  env: GRB_LICENSE_FILE
  file: /opt/gurobi/gurobi.lic

merge:
  script: merge_results.sh

submit:
  backend: slurm # slurm | local | remote | agent
  command: sbatch
  fail_fast: false
  batch_size: 0 # 0 submits everything in one go
  batch_pause_seconds: 30

ssh:
  addr: login.cluster.example.com:22
  user: sweep
  spool_dir: sweep_spool
  timeout_seconds: 30
  retries: 2

agent:
  url: ""
  token: ""

telemetry:
  enabled: false
`

// WriteDefaultConfig writes the commented default configuration to path
// unless the file already exists.
func WriteDefaultConfig(path string) (created bool, err error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o600); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
