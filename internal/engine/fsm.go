package engine

import (
	"context"

	"github.com/atelier-studio/atelier/internal/store"
	"github.com/atelier-studio/atelier/pkg/schema"
)

// EventAppender is satisfied by store.EventLog; used to record node status
// transitions in the execution event log.
type EventAppender interface {
	AppendEvent(ctx context.Context, event *store.Event) error
}

// NoopAppender discards events. Used for macro sub-executions, whose
// internal transitions are not surfaced, and when no store is configured.
type NoopAppender struct{}

func (NoopAppender) AppendEvent(context.Context, *store.Event) error { return nil }

// RunRecorder records run lifecycle rows; satisfied by store.LibSQLStore.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *store.Run) error
	CompleteRun(ctx context.Context, id string, status string, errMsg string) error
}

// NoopRecorder discards run records.
type NoopRecorder struct{}

func (NoopRecorder) CreateRun(context.Context, *store.Run) error { return nil }
func (NoopRecorder) CompleteRun(context.Context, string, string, string) error {
	return nil
}

// ValidNodeTransitions defines the allowed status transitions for nodes.
// A node never regresses from completed/error back to idle on its own; the
// caller forces re-evaluation by marking it dirty. pending_changes is set
// by external collaborators only.
var ValidNodeTransitions = map[schema.NodeStatus][]schema.NodeStatus{
	schema.StatusIdle:           {schema.StatusProcessing},
	schema.StatusProcessing:     {schema.StatusCompleted, schema.StatusError},
	schema.StatusCompleted:      {schema.StatusDirty},
	schema.StatusError:          {schema.StatusDirty, schema.StatusProcessing},
	schema.StatusDirty:          {schema.StatusProcessing, schema.StatusIdle},
	schema.StatusPendingChanges: {schema.StatusProcessing, schema.StatusIdle},
}

// IsValidNodeTransition reports whether from → to is an allowed transition.
// The empty status is treated as idle (a node the editor just created).
func IsValidNodeTransition(from, to schema.NodeStatus) bool {
	if from == "" {
		from = schema.StatusIdle
	}
	allowed, ok := ValidNodeTransitions[from]
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == to {
			return true
		}
	}
	return false
}

// transition validates a node status change and emits the corresponding
// event. Same-status writes are no-ops. An invalid transition is a defect
// in the dispatch logic, reported as INVALID_TRANSITION.
func transition(ctx context.Context, appender EventAppender, runID, nodeID string, from, to schema.NodeStatus) error {
	if from == to {
		return nil
	}
	if !IsValidNodeTransition(from, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid node transition: %s -> %s", from, to).
			WithNode(nodeID).
			WithDetails(map[string]any{"run_id": runID, "from": string(from), "to": string(to)})
	}

	eventType := nodeEventType(to)
	if eventType == "" {
		return nil
	}
	event := &store.Event{
		RunID:  runID,
		NodeID: nodeID,
		Type:   eventType,
	}
	if err := appender.AppendEvent(ctx, event); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "emit node event: %s", err.Error()).
			WithNode(nodeID).WithCause(err)
	}
	return nil
}

func nodeEventType(to schema.NodeStatus) string {
	switch to {
	case schema.StatusProcessing:
		return schema.EventNodeProcessing
	case schema.StatusCompleted:
		return schema.EventNodeCompleted
	case schema.StatusError:
		return schema.EventNodeFailed
	case schema.StatusIdle:
		return schema.EventNodeIdle
	case schema.StatusDirty:
		return schema.EventNodeDirtied
	default:
		return ""
	}
}
