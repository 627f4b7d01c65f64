package store

import (
	"encoding/json"
	"time"

	"github.com/atelier-studio/atelier/pkg/schema"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one execution of a graph. Graph documents themselves are never
// persisted; a run records only identity, shape counts and outcome.
type Run struct {
	ID          string     `json:"id"`
	Label       string     `json:"label,omitempty"`
	Status      string     `json:"status"`
	NodeCount   int        `json:"node_count"`
	EdgeCount   int        `json:"edge_count"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Event is an immutable entry in the execution event log. Sequence is
// assigned per run on append and is contiguous from 1.
type Event struct {
	ID        int64           `json:"id"`
	RunID     string          `json:"run_id"`
	NodeID    string          `json:"node_id,omitempty"`
	Type      string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
}

// NodeState is a node's execution state as reconstructed from the event log.
type NodeState struct {
	RunID       string            `json:"run_id"`
	NodeID      string            `json:"node_id"`
	Status      schema.NodeStatus `json:"status"`
	Result      json.RawMessage   `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	DurationMs  int64             `json:"duration_ms,omitempty"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status string     `json:"status,omitempty"`
	Label  string     `json:"label,omitempty"`
	Since  *time.Time `json:"since,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}
