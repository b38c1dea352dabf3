package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/meridianlab/sweepctl/internal/collect"
	core "github.com/meridianlab/sweepctl/internal/core"
	"github.com/meridianlab/sweepctl/internal/jobfile"
	"github.com/meridianlab/sweepctl/internal/scenario"
	sched "github.com/meridianlab/sweepctl/internal/scheduler"
	agentbe "github.com/meridianlab/sweepctl/internal/scheduler/agent"
	"github.com/meridianlab/sweepctl/internal/scheduler/local"
	"github.com/meridianlab/sweepctl/internal/scheduler/remote"
	"github.com/meridianlab/sweepctl/internal/scheduler/slurm"
	sshx "github.com/meridianlab/sweepctl/internal/ssh"
	"github.com/meridianlab/sweepctl/internal/telemetry"
)

// Load the configuration for a subcommand
func resolveConfig(cmd *cobra.Command) (core.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := core.LoadConfig(cfgPath)
	if err != nil {
		return core.Config{}, err
	}
	telemetry.InitGlobal(cfg.Telemetry.Enabled)
	return cfg, nil
}

// Build the scheduler registry and pick the configured backend
func resolveBackend(cmd *cobra.Command, cfg core.Config) (sched.Backend, error) {
	reg := sched.NewRegistry()
	reg.Register(slurm.New(cfg.Submit.Command))
	reg.Register(local.New("", cfg.Paths.LogDir))
	reg.Register(remote.New(remote.Config{
		Addr:       cfg.SSH.Addr,
		User:       cfg.SSH.User,
		KeyPath:    cfg.SSH.KeyPath,
		KnownHosts: cfg.SSH.KnownHosts,
		SpoolDir:   cfg.SSH.SpoolDir,
		Command:    cfg.Submit.Command,
		Timeout:    time.Duration(cfg.SSH.TimeoutSeconds) * time.Second,
		Retries:    cfg.SSH.Retries,
	}))
	reg.Register(agentbe.New(cfg.Agent.URL, cfg.Agent.Token, 0))

	name := cfg.Submit.Backend
	if override, _ := cmd.Flags().GetString("backend"); override != "" {
		name = override
	}
	return reg.Get(name)
}

// Expand a sweep spec into the scenario table
func newExpandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Expand a sweep spec into the scenario table",
		RunE: func(cmd *cobra.Command, args []string) error {
			specPath, _ := cmd.Flags().GetString("spec")
			out, _ := cmd.Flags().GetString("out")
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			spec, err := scenario.LoadSpec(specPath)
			if err != nil {
				return err
			}
			rows, err := scenario.Expand(spec)
			if err != nil {
				return err
			}
			if out == "" {
				out = cfg.Paths.Table
			}
			if err := scenario.WriteTable(out, rows, cfg.TableComma()); err != nil {
				return err
			}
			fmt.Printf("wrote %d scenarios to %s\n", len(rows), out)
			return nil
		},
	}
	cmd.Flags().String("spec", "", "sweep spec YAML file")
	cmd.Flags().String("out", "", "scenario table to write (defaults to the configured table)")
	_ = cmd.MarkFlagRequired("spec")
	return cmd
}

// Render job scripts without submitting
func newGenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Render job scripts from the scenario table without submitting",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, _ := cmd.Flags().GetString("table")
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			renderer, err := jobfile.NewRenderer(cfg.Paths.Template)
			if err != nil {
				return err
			}
			eng := core.NewEngine(cfg, renderer, nil, nil)
			report, err := eng.Run(cmd.Context(), core.RunOptions{Table: table, SubmitJobs: false})
			if err != nil {
				return err
			}
			fmt.Printf("rendered %d scripts into %s\n", report.Artifacts, cfg.Paths.OutputDir)
			return nil
		},
	}
	cmd.Flags().String("table", "", "scenario table (defaults to the configured table)")
	return cmd
}

// Render, submit and merge
func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Render the sweep, submit every script and trigger the merge",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, _ := cmd.Flags().GetString("table")
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			backend, err := resolveBackend(cmd, cfg)
			if err != nil {
				return err
			}
			renderer, err := jobfile.NewRenderer(cfg.Paths.Template)
			if err != nil {
				return err
			}

			// A broken ledger must not block the sweep.
			store, err := core.NewStore(cfg.Paths.Database)
			if err != nil {
				log.Warn().Err(err).Msg("ledger unavailable, continuing without it")
				store = nil
			} else {
				defer store.Close()
			}

			failFast := cfg.Submit.FailFast
			if cmd.Flags().Changed("fail-fast") {
				failFast, _ = cmd.Flags().GetBool("fail-fast")
			}

			eng := core.NewEngine(cfg, renderer, backend, store)
			report, runErr := eng.Run(cmd.Context(), core.RunOptions{
				Table:      table,
				SubmitJobs: true,
				FailFast:   failFast,
			})
			if report != nil {
				fmt.Printf("run %s: %d rows, %d scripts, %d submitted, %d failed\n",
					report.RunID, report.Rows, report.Artifacts, report.Submitted, report.Failed)
				if report.Merged {
					fmt.Println("merge script completed")
				}
			}
			return runErr
		},
	}
	cmd.Flags().String("table", "", "scenario table (defaults to the configured table)")
	cmd.Flags().String("backend", "", "scheduler backend: slurm, local, remote or agent")
	cmd.Flags().Bool("fail-fast", false, "stop at the first failed submission")
	return cmd
}

// Generate refinement scripts from solution files
func newFollowupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "followup",
		Short: "Generate refinement scripts warm-started from solution files",
		RunE: func(cmd *cobra.Command, args []string) error {
			solutions, _ := cmd.Flags().GetString("solutions")
			outDir, _ := cmd.Flags().GetString("out-dir")
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if solutions == "" {
				solutions = cfg.Paths.SolutionsDir
			}
			if outDir == "" {
				outDir = cfg.Paths.OutputDir
			}
			renderer, err := jobfile.NewRenderer(cfg.Paths.Template)
			if err != nil {
				return err
			}
			n, err := jobfile.GenerateFollowups(renderer, cfg.BaseParams(), solutions, outDir, cfg.Paths.ArtifactExt)
			if err != nil {
				return err
			}
			fmt.Printf("generated %d refinement scripts into %s\n", n, outDir)
			return nil
		},
	}
	cmd.Flags().String("solutions", "", "directory of solution files (defaults to the configured one)")
	cmd.Flags().String("out-dir", "", "directory for generated scripts (defaults to the configured one)")
	return cmd
}

// Scrape job logs into the summary table
func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Scrape job logs into the summary table",
		RunE: func(cmd *cobra.Command, args []string) error {
			logs, _ := cmd.Flags().GetString("logs")
			ext, _ := cmd.Flags().GetString("ext")
			out, _ := cmd.Flags().GetString("out")
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if logs == "" {
				logs = cfg.Paths.LogDir
			}
			if out == "" {
				out = cfg.Paths.Summary
			}
			rows, err := collect.Scan(logs, ext)
			if err != nil {
				return err
			}
			if err := collect.WriteSummary(out, rows); err != nil {
				return err
			}
			fmt.Printf("collected %d rows into %s\n", len(rows), out)
			return nil
		},
	}
	cmd.Flags().String("logs", "", "log directory (defaults to the configured one)")
	cmd.Flags().String("ext", ".log", "log file extension")
	cmd.Flags().String("out", "", "summary CSV to write (defaults to the configured one)")
	return cmd
}

// Show recent runs from the ledger
func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent sweep runs recorded in the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			runID, _ := cmd.Flags().GetString("run")
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			store, err := core.NewStore(cfg.Paths.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			if runID != "" {
				subs, err := store.RunSubmissions(cmd.Context(), runID)
				if err != nil {
					return err
				}
				for _, s := range subs {
					fmt.Printf("%s\t%s\t%s\t%s\n", s.JobName, s.Status, s.SchedulerID, s.Error)
				}
				return nil
			}

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, r := range runs {
				state := "running"
				if r.FinishedAt != nil {
					state = "finished"
					if r.MergeError != "" {
						state = "merge-failed"
					}
				}
				fmt.Printf("%s\t%s\t%s\trows=%d submitted=%d failed=%d\t%s\n",
					r.ID, r.StartedAt.Format(time.RFC3339), r.Backend, r.Rows, r.Submitted, r.Failed, state)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 10, "number of runs to show")
	cmd.Flags().String("run", "", "show the submissions of one run")
	return cmd
}

// Initialize configuration and SSH material
func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "sweepctl initialization command. Run this the first time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if cfgPath == "" {
				cfgPath = core.DefaultConfigPath()
			}
			created, err := core.WriteDefaultConfig(cfgPath)
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("created default config at %s\n", cfgPath)
			} else {
				fmt.Printf("config already exists at %s\n", cfgPath)
			}

			cfg, err := core.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.SSH.KeyPath); errors.Is(err, fs.ErrNotExist) {
				if err := os.MkdirAll(filepath.Dir(cfg.SSH.KeyPath), 0o700); err != nil {
					return err
				}
				pub, err := sshx.GenerateKeypair(cfg.SSH.KeyPath)
				if err != nil {
					return err
				}
				fmt.Printf("generated SSH key %s\n", cfg.SSH.KeyPath)
				fmt.Printf("public key: %s", pub)
			}
			if err := sshx.EnsureKnownHostsFile(cfg.SSH.KnownHosts); err != nil {
				return err
			}

			trustHost, _ := cmd.Flags().GetString("trust-host")
			trustKey, _ := cmd.Flags().GetString("trust-key")
			if (trustHost == "") != (trustKey == "") {
				return errors.New("--trust-host and --trust-key must be given together")
			}
			if trustHost != "" {
				if err := sshx.AppendKnownHost(cfg.SSH.KnownHosts, trustHost, trustKey); err != nil {
					return err
				}
				fmt.Printf("trusted host %s\n", trustHost)
			}

			fmt.Println("init complete")
			return nil
		},
	}
	cmd.Flags().String("trust-host", "", "login node to add to known_hosts")
	cmd.Flags().String("trust-key", "", "host public key in authorized_keys form")
	return cmd
}

// Generate shell completion scripts
func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate a shell completion script",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
		},
	}
}
