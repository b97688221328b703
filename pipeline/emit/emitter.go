// Package emit provides event emission and observability for pipeline
// execution. It is the engine's sole observability surface: executor
// invocation, skip, and failure are only visible through the Emitter an
// Engine is configured with.
package emit

import "context"

// Emitter receives observability events from pipeline execution.
//
// Implementations should be non-blocking and safe for concurrent use, since
// executors within a parallel fan-out may emit from multiple goroutines at
// once.
type Emitter interface {
	// Emit sends a single event to the configured backend. Emit must not
	// panic or block pipeline execution.
	Emit(event Event)

	// EmitBatch sends multiple events in one operation, preserving order.
	// Returns an error only for catastrophic failures; individual event
	// delivery failures should be logged internally, not returned.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until any buffered events have been delivered, or ctx is
	// done. Safe to call multiple times.
	Flush(ctx context.Context) error
}
