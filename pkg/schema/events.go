package schema

// Event type constants for the execution event log.
const (
	EventRunStarted   = "run_started"
	EventRunCompleted = "run_completed"

	EventNodeProcessing = "node_processing"
	EventNodeCompleted  = "node_completed"
	EventNodeFailed     = "node_failed"
	EventNodeIdle       = "node_idle"
	EventNodeDirtied    = "node_dirtied"
)
