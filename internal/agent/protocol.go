package agent

import "time"

// HeartbeatResponse reports agent liveness.
type HeartbeatResponse struct {
	Time    time.Time `json:"time"`
	Host    string    `json:"host"`
	Version string    `json:"version"`
}

// SubmitRequest carries one rendered job script to spool and submit.
// Content travels base64-encoded on the wire.
type SubmitRequest struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// SubmitResponse returns the scheduler job ID for a spooled script.
type SubmitResponse struct {
	JobID string `json:"job_id"`
	Error string `json:"error,omitempty"`
}

// MetricsResponse exposes the agent's accumulated counters.
type MetricsResponse struct {
	Counters map[string]float64 `json:"counters"`
}
