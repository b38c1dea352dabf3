// Package agent implements the submission daemon that runs on a cluster
// login node when direct SSH from the workstation is not possible. It
// accepts rendered job scripts over HTTP, spools them to disk and hands
// them to the local submission command.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/meridianlab/sweepctl/internal/telemetry"
)

// SubmitFunc hands a spooled script to the scheduler and returns the job ID.
type SubmitFunc func(ctx context.Context, artifactPath string) (string, error)

type Server struct {
	Version  string
	Token    string // empty disables auth
	SpoolDir string
	Submit   SubmitFunc
	srv      *http.Server
}

func (s *Server) authorized(r *http.Request) bool {
	if s.Token == "" {
		return true
	}
	if r.Header.Get("Authorization") == "Bearer "+s.Token {
		return true
	}
	return r.Header.Get("X-Auth-Token") == s.Token
}

// Handler returns the agent's route table. Exposed so tests and TLS setup
// share the same wiring.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)
	return mux
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("/v0/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		_ = r.Body.Close()

		telemetry.CountGlobal("agent_heartbeats", 1, map[string]string{
			"endpoint": "heartbeat",
		})

		h := HeartbeatResponse{Time: time.Now(), Host: r.Host, Version: s.Version}
		_ = json.NewEncoder(w).Encode(h)
	})

	mux.HandleFunc("/v0/submit", func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		start := time.Now()
		defer r.Body.Close()

		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			telemetry.CountGlobal("agent_submit_errors", 1, map[string]string{
				"endpoint": "submit",
				"error":    "decode_request",
			})
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// The spool path is built from the client-supplied name, so the
		// name must be a bare filename.
		if req.Name == "" || req.Name != filepath.Base(req.Name) || strings.HasPrefix(req.Name, ".") {
			http.Error(w, "invalid script name", http.StatusBadRequest)
			return
		}
		if len(req.Content) == 0 {
			http.Error(w, "empty script", http.StatusBadRequest)
			return
		}

		telemetry.CountGlobal("agent_submit_requests", 1, map[string]string{
			"endpoint": "submit",
		})

		if err := os.MkdirAll(s.SpoolDir, 0o755); err != nil {
			s.submitError(w, fmt.Errorf("create spool dir: %w", err))
			return
		}
		spooled := filepath.Join(s.SpoolDir, req.Name)
		if err := os.WriteFile(spooled, req.Content, 0o644); err != nil {
			s.submitError(w, fmt.Errorf("spool script: %w", err))
			return
		}

		jobID, err := s.Submit(r.Context(), spooled)
		labels := map[string]string{"endpoint": "submit"}
		telemetry.TimeGlobal("agent_submit_duration", time.Since(start), labels)
		if err != nil {
			telemetry.CountGlobal("agent_submit_failed", 1, labels)
			s.submitError(w, err)
			return
		}

		telemetry.CountGlobal("agent_submit_succeeded", 1, labels)
		_ = json.NewEncoder(w).Encode(SubmitResponse{JobID: jobID})
	})

	mux.HandleFunc("/v0/metrics", func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_ = r.Body.Close()
		_ = json.NewEncoder(w).Encode(MetricsResponse{
			Counters: telemetry.GetGlobal().Snapshot(),
		})
	})
}

// submitError reports a failed submission as a structured response so the
// client can record the scheduler's message.
func (s *Server) submitError(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(SubmitResponse{Error: err.Error()})
}

// ListenAndServe starts the server
func (s *Server) ListenAndServe(addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.Handler()}
	return s.srv.ListenAndServe()
}

// Shutdown the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return fmt.Errorf("server not running")
	}
	return s.srv.Shutdown(ctx)
}
