package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/meridianlab/sweepctl/internal/agent"
	"github.com/meridianlab/sweepctl/internal/scheduler/slurm"
)

var version = "1.0.0"

// envConfig is the daemon configuration, read from SWEEP_AGENT_* variables.
type envConfig struct {
	Addr              string `envconfig:"ADDR" default:":8080"`
	Token             string `envconfig:"TOKEN"`
	SpoolDir          string `envconfig:"SPOOL_DIR" default:"sweep_spool"`
	SubmitCommand     string `envconfig:"SUBMIT_COMMAND" default:"sbatch"`
	TLSCert           string `envconfig:"TLS_CERT"`
	TLSKey            string `envconfig:"TLS_KEY"`
	TLSClientCA       string `envconfig:"TLS_CLIENT_CA"`
	RequireClientCert bool   `envconfig:"TLS_REQUIRE_CLIENT_CERT"`
}

func main() {
	_ = godotenv.Load()

	var cfg envConfig
	if err := envconfig.Process("SWEEP_AGENT", &cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	backend := slurm.New(cfg.SubmitCommand)
	srv := &agent.Server{
		Version:  version,
		Token:    cfg.Token,
		SpoolDir: cfg.SpoolDir,
		Submit:   backend.Submit,
	}
	tlsCfg := agent.TLSConfig{
		ServerCert:        cfg.TLSCert,
		ServerKey:         cfg.TLSKey,
		ClientCACert:      cfg.TLSClientCA,
		RequireClientCert: cfg.RequireClientCert,
	}

	go func() {
		var err error
		if tlsCfg.Enabled() {
			err = srv.ListenAndServeTLS(cfg.Addr, tlsCfg)
		} else {
			err = srv.ListenAndServe(cfg.Addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}()
	fmt.Fprintf(os.Stdout, "sweep-agent listening on %s\n", cfg.Addr)
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	fmt.Fprintln(os.Stdout, "sweep-agent shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
