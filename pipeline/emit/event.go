package emit

import "time"

// Event represents an observability event emitted during pipeline execution:
// an executor starting, completing, skipping, or failing on a content item,
// plus run-level start/complete/error events.
type Event struct {
	// RunID identifies the pipeline execution that emitted this event.
	RunID string

	// PipelineName identifies the pipeline definition being run.
	PipelineName string

	// ExecutorID identifies which executor emitted this event. Empty for
	// run-level events (run_start, run_complete, run_error).
	ExecutorID string

	// EventType is a short machine-readable event name, e.g.
	// "executor_start", "executor_complete", "executor_skipped",
	// "executor_failed", "run_start", "run_complete", "run_error".
	EventType string

	// ContentID is the canonical ID of the content item the event concerns,
	// empty for run-level events.
	ContentID string

	// Data carries event-specific structured detail.
	Data map[string]any

	// AdditionalInfo carries free-form supplementary context, kept distinct
	// from Data so emitters can choose to surface it differently (e.g. only
	// at debug verbosity).
	AdditionalInfo map[string]any

	// Err is set for failure events.
	Err error

	// Timestamp is when the event occurred.
	Timestamp time.Time
}
