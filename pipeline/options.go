package pipeline

// EngineOption configures an Engine at construction time. Options are
// applied in the order passed to NewEngine, so a later option overrides an
// earlier one setting the same field.
//
// Example:
//
//	engine := pipeline.NewEngine(runID, "doc_processing", emitter,
//	    pipeline.WithMetrics(metrics),
//	    pipeline.WithMaxIterationsOverride(500),
//	)
type EngineOption func(*Engine)

// WithMetrics attaches a Metrics recorder to the engine. Every Metrics
// method tolerates a nil receiver, so a Run with no metrics configured is
// simply a no-op write to a discarded recorder.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.Metrics = m }
}

// WithMaxIterationsOverride caps every Run on this engine at n dispatch
// iterations regardless of what the graph itself specifies, useful for
// tests or for a stricter operator-imposed ceiling. n <= 0 leaves the
// graph's own MaxIterations (or the package default) in effect.
func WithMaxIterationsOverride(n int) EngineOption {
	return func(e *Engine) { e.maxIterationsOverride = n }
}
