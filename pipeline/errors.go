package pipeline

import (
	"context"
	"errors"
)

// ErrCancelled is returned when a run's context is cancelled before the
// pipeline reaches completion.
var ErrCancelled = context.Canceled

// ConfigError reports a problem with a pipeline or executor configuration:
// an unknown executor type, a missing required setting, a malformed graph
// definition. ConfigErrors are always detected before any content flows.
type ConfigError struct {
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Message != "" {
		return "config: " + e.Message
	}
	return "config error"
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// ConditionError reports a problem parsing or evaluating a routing or
// executor-enable condition expression.
type ConditionError struct {
	Expression string
	Message    string
	Cause      error
}

func (e *ConditionError) Error() string {
	if e.Expression != "" {
		return "condition " + quoteForError(e.Expression) + ": " + e.Message
	}
	return "condition: " + e.Message
}

func (e *ConditionError) Unwrap() error { return e.Cause }

// ExecutorError reports a failure raised by an executor's ProcessInput
// call. FailPipeline records whether the executor was configured with
// fail_pipeline_on_error=true, so callers can decide between aborting the
// run and continuing with a failed-log entry.
type ExecutorError struct {
	ExecutorID   string
	ContentID    string
	Message      string
	FailPipeline bool
	Cause        error
}

func (e *ExecutorError) Error() string {
	if e.ExecutorID != "" {
		return "executor " + e.ExecutorID + ": " + e.Message
	}
	return e.Message
}

func (e *ExecutorError) Unwrap() error { return e.Cause }

// Cancelled reports that a run was cancelled mid-flight, naming the
// executor whose mailbox was being drained when cancellation was observed.
type Cancelled struct {
	ExecutorID string
	Cause      error
}

func (e *Cancelled) Error() string {
	if e.ExecutorID != "" {
		return "pipeline cancelled at executor " + e.ExecutorID
	}
	return "pipeline cancelled"
}

func (e *Cancelled) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return context.Canceled
}

// IterationLimitExceeded reports that a run's scheduling loop performed
// MaxIterations iterations without draining every mailbox, indicating a
// cycle or runaway fan-out in the pipeline graph.
type IterationLimitExceeded struct {
	MaxIterations int
}

func (e *IterationLimitExceeded) Error() string {
	return "pipeline exceeded maximum iteration limit"
}

var errEmptyCondition = errors.New("condition string cannot be empty")

func quoteForError(s string) string {
	return "\"" + s + "\""
}
