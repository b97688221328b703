package pipeline

import "context"

// SubPipelineRunner executes a nested Graph to completion and returns its
// output, the same shape ProcessInput would. It is supplied by whatever
// owns the run engine, since SubPipeline itself only wraps a graph
// reference — it does not know how to schedule one.
type SubPipelineRunner func(ctx context.Context, graph *Graph, input any) (any, error)

// SubPipeline embeds a fully-built nested Graph as a single executor, so a
// parent pipeline can treat a reusable pipeline definition as one node.
// AllowDirectOutput holds the allow_direct_output setting (default false).
// ProcessInput does not consult it: the nested graph's events go to
// whatever emitter the Runner's engine uses, whichever value it has, and
// the value the Runner returns is what the parent receives.
type SubPipeline struct {
	*BaseExecutor
	Graph             *Graph
	AllowDirectOutput bool
	Runner            SubPipelineRunner
}

// NewSubPipeline builds a SubPipeline wrapping graph. runner performs the
// actual execution and is usually the owning engine's run method.
func NewSubPipeline(id string, settings map[string]any, graph *Graph, runner SubPipelineRunner) *SubPipeline {
	base := NewBaseExecutor(id, settings)
	return &SubPipeline{
		BaseExecutor:      base,
		Graph:             graph,
		AllowDirectOutput: boolSettingFrom(base, "allow_direct_output", false),
		Runner:            runner,
	}
}

// ProcessInput implements Executor by delegating to Runner.
func (s *SubPipeline) ProcessInput(ctx context.Context, input any) (any, error) {
	if s.Runner == nil {
		return nil, &ConfigError{Message: "sub-pipeline " + s.ID() + " has no runner configured"}
	}
	return s.Runner(ctx, s.Graph, input)
}
