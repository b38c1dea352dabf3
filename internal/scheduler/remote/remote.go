// Package remote submits job scripts to a cluster login node over SSH:
// the artifact is pushed via SFTP and the submission command runs remotely.
package remote

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/meridianlab/sweepctl/internal/scheduler"
	sshx "github.com/meridianlab/sweepctl/internal/ssh"
)

// Config carries the connection settings. Key material is loaded per
// submission, so a Backend can be registered before any key exists.
type Config struct {
	Addr       string
	User       string
	KeyPath    string
	KnownHosts string
	SpoolDir   string // remote directory artifacts are uploaded into
	Command    string // submission command on the login node
	Timeout    time.Duration
	Retries    int
}

type Backend struct {
	cfg Config
}

func New(cfg Config) *Backend {
	if cfg.Command == "" {
		cfg.Command = "sbatch"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Backend{cfg: cfg}
}

func (b *Backend) Name() string { return "remote" }

func (b *Backend) client() (*sshx.Client, error) {
	signer, err := sshx.LoadPrivateKeySigner(b.cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load ssh key: %w", err)
	}
	kh, err := sshx.LoadKnownHostsCallback(b.cfg.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("load known hosts: %w", err)
	}
	return &sshx.Client{
		Addr:       b.cfg.Addr,
		User:       b.cfg.User,
		Signer:     signer,
		KnownHosts: kh,
		Timeout:    b.cfg.Timeout,
		Retries:    b.cfg.Retries,
		Backoff:    500 * time.Millisecond,
	}, nil
}

func (b *Backend) Submit(ctx context.Context, artifactPath string) (string, error) {
	client, err := b.client()
	if err != nil {
		return "", fmt.Errorf("remote submit: %w", err)
	}
	remotePath := path.Join(b.cfg.SpoolDir, filepath.Base(artifactPath))

	cli, err := sshx.Dial(ctx, client)
	if err != nil {
		return "", fmt.Errorf("remote submit: %w", err)
	}
	pushErr := sshx.PushFile(ctx, cli, artifactPath, remotePath)
	cli.Close()
	if pushErr != nil {
		return "", fmt.Errorf("remote submit: %w", pushErr)
	}

	// Artifact names come from allow-list validated fields, so the remote
	// path is safe to splice into the command line.
	stdout, stderr, err := client.RunCommand(ctx, b.cfg.Command+" "+remotePath)
	if err != nil {
		if msg := strings.TrimSpace(stderr); msg != "" {
			return "", fmt.Errorf("remote submit: %s: %w", msg, err)
		}
		return "", fmt.Errorf("remote submit: %w", err)
	}
	return scheduler.ParseJobID(stdout)
}
