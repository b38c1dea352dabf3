// Package agent submits job scripts to a sweep-agent daemon over HTTP,
// for clusters where direct SSH from the workstation is not possible.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	agentapi "github.com/meridianlab/sweepctl/internal/agent"
	"github.com/meridianlab/sweepctl/internal/scheduler"
)

type Backend struct {
	BaseURL string
	Token   string
	HTTP    *scheduler.RetryableHTTPClient
}

func New(baseURL, token string, timeout time.Duration) *Backend {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Backend{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    scheduler.NewRetryableHTTPClient(timeout, 5),
	}
}

func (b *Backend) Name() string { return "agent" }

func (b *Backend) Submit(ctx context.Context, artifactPath string) (string, error) {
	content, err := os.ReadFile(artifactPath)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}
	body, err := json.Marshal(agentapi.SubmitRequest{
		Name:    filepath.Base(artifactPath),
		Content: content,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL+"/v0/submit", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.Token != "" {
		req.Header.Set("Authorization", "Bearer "+b.Token)
	}

	resp, err := b.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("agent submit: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read agent reply: %w", err)
	}
	var sr agentapi.SubmitResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		// Auth and routing failures come back as plain text.
		return "", fmt.Errorf("agent submit: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if sr.Error != "" {
		return "", fmt.Errorf("agent submit: %s", sr.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("agent submit: %s", resp.Status)
	}
	if sr.JobID == "" {
		return "", fmt.Errorf("agent reply missing job id")
	}
	return sr.JobID, nil
}

// Heartbeat checks that the agent is reachable and returns its version.
func (b *Backend) Heartbeat(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.BaseURL+"/v0/heartbeat", nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := b.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("agent heartbeat: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("agent heartbeat: %s", resp.Status)
	}
	var hb agentapi.HeartbeatResponse
	if err := json.NewDecoder(resp.Body).Decode(&hb); err != nil {
		return "", fmt.Errorf("agent heartbeat: %w", err)
	}
	return hb.Version, nil
}
