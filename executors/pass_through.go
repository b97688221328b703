// Package executors provides the concrete leaf executor types referenced by
// an executor catalog: building blocks a pipeline definition wires together
// by type name. Every type registers itself with the pipeline package's
// registry from an init() function, so a program need only blank-import this
// package to make its types available for catalog-driven instantiation.
package executors

import (
	"context"
	"time"

	"github.com/contentflow-dev/contentflow/pipeline"
)

func init() {
	pipeline.RegisterExecutorType("pass_through", func(id string, settings map[string]any) (pipeline.Executor, error) {
		return NewPassThroughExecutor(id, settings), nil
	})
}

// PassThroughExecutor passes its input through unchanged, recording a
// completed log entry on every item. Useful as a no-op placeholder while
// wiring up a pipeline definition, and as a lightweight fixture for tests.
type PassThroughExecutor struct {
	*pipeline.BaseExecutor
}

// NewPassThroughExecutor constructs a PassThroughExecutor. It accepts no
// settings of its own beyond the common BaseExecutor ones.
func NewPassThroughExecutor(id string, settings map[string]any) *PassThroughExecutor {
	return &PassThroughExecutor{BaseExecutor: pipeline.NewBaseExecutor(id, settings)}
}

// ProcessInput appends a completed log entry to every item and returns them
// unchanged, preserving whatever shape (single or list) it was given.
func (p *PassThroughExecutor) ProcessInput(ctx context.Context, input any) (any, error) {
	items, wasList := pipeline.Items(input)
	if len(items) == 0 {
		return input, nil
	}

	for _, item := range items {
		start := time.Now()
		item.AppendLog(pipeline.ExecutorLogEntry{
			ExecutorID: p.ID(),
			StartTime:  start,
			EndTime:    time.Now(),
			Status:     pipeline.LogCompleted,
		})
	}
	return pipeline.SingleOrList(items, wasList), nil
}
