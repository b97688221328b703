package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/contentflow-dev/contentflow/pipeline/emit"
)

// PipelineStatus is the terminal (or current, if reported mid-run) state of
// one pipeline run.
type PipelineStatus string

const (
	StatusPending   PipelineStatus = "pending"
	StatusRunning   PipelineStatus = "running"
	StatusCompleted PipelineStatus = "completed"
	StatusFailed    PipelineStatus = "failed"
	StatusCancelled PipelineStatus = "cancelled"
)

// PipelineResult is the terminal payload of one PipelineExecutor.Run call.
type PipelineResult struct {
	RunID           string
	PipelineName    string
	Status          PipelineStatus
	Events          []emit.Event
	Documents       any // *Content or []*Content
	StartTime       time.Time
	EndTime         time.Time
	DurationSeconds float64
	Error           error
}

// PipelineExecutor wraps a PipelineFactory and Engine behind a single
// load-then-run lifecycle: the graph for a named pipeline is built lazily,
// on the first Run or RunStream call, and reused for every call after that.
//
// A PipelineExecutor is a scoped resource: call Acquire before first use (it
// is also safe to skip — Run calls it implicitly) and Release when done.
// Release runs regardless of whether Run ever succeeded, mirroring the
// original's context-manager semantics.
type PipelineExecutor struct {
	PipelineName string
	Factory      *PipelineFactory
	Emitter      emit.Emitter
	Metrics      *Metrics

	mu          sync.Mutex
	initialized bool
	graph       *Graph
}

// NewPipelineExecutor returns a PipelineExecutor for pipelineName, backed by
// factory. emitter may be nil (defaults to a no-op emitter).
func NewPipelineExecutor(pipelineName string, factory *PipelineFactory, emitter emit.Emitter) *PipelineExecutor {
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	return &PipelineExecutor{
		PipelineName: pipelineName,
		Factory:      factory,
		Emitter:      emitter,
	}
}

// Acquire ensures the pipeline's graph is built, building it on first call
// and reusing it afterward. Safe to call concurrently and repeatedly.
func (p *PipelineExecutor) Acquire() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}
	graph, err := p.Factory.Build(p.PipelineName)
	if err != nil {
		return err
	}
	p.graph = graph
	p.initialized = true
	return nil
}

// Release marks the executor as uninitialized, forcing the next Acquire (or
// Run) to rebuild the graph. Executors own their own resource cleanup (per
// the concurrency model's resource-ownership rule); Release's job is only to
// drop this executor's cached graph, not to reach into executor internals.
func (p *PipelineExecutor) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialized = false
	p.graph = nil
}

// Run drives one pipeline execution to completion and returns its terminal
// PipelineResult. It ensures the graph is built (Acquire), runs it through a
// fresh Engine tagged with a new run ID, and collects every event the run
// emits alongside whatever emitter the caller configured.
func (p *PipelineExecutor) Run(ctx context.Context, input any) (PipelineResult, error) {
	start := time.Now()
	result := PipelineResult{PipelineName: p.PipelineName, Status: StatusPending, StartTime: start}

	if err := p.Acquire(); err != nil {
		result.Status = StatusFailed
		result.Error = err
		result.EndTime = time.Now()
		result.DurationSeconds = result.EndTime.Sub(start).Seconds()
		return result, err
	}

	collector := &collectingEmitter{inner: p.Emitter}
	runID := uuid.NewString()
	result.RunID = runID
	engine := NewEngine(runID, p.PipelineName, collector, WithMetrics(p.Metrics))

	result.Status = StatusRunning
	runResult, err := engine.Run(ctx, p.graph, input)

	result.Events = collector.events()
	result.EndTime = time.Now()
	result.DurationSeconds = result.EndTime.Sub(start).Seconds()

	if err != nil {
		result.Error = err
		if _, ok := err.(*Cancelled); ok {
			result.Status = StatusCancelled
		} else {
			result.Status = StatusFailed
		}
		return result, err
	}

	result.Status = StatusCompleted
	result.Documents = SingleOrList(runResult.Items, true)
	return result, nil
}

// RunStream drives one pipeline execution to completion, delivering every
// event to sink as it is emitted rather than collecting them for the final
// PipelineResult. If the graph cannot be built, RunStream returns that
// error without delivering any event; otherwise the final event delivered
// is either a "run_complete" or "run_error" event. The PipelineResult is returned
// once the run quiesces, with Events left empty (the caller already
// consumed them through sink).
func (p *PipelineExecutor) RunStream(ctx context.Context, input any, sink func(emit.Event)) (PipelineResult, error) {
	start := time.Now()
	result := PipelineResult{PipelineName: p.PipelineName, Status: StatusPending, StartTime: start}

	if err := p.Acquire(); err != nil {
		result.Status = StatusFailed
		result.Error = err
		result.EndTime = time.Now()
		result.DurationSeconds = result.EndTime.Sub(start).Seconds()
		return result, err
	}

	streaming := &streamingEmitter{inner: p.Emitter, sink: sink}
	runID := uuid.NewString()
	result.RunID = runID
	engine := NewEngine(runID, p.PipelineName, streaming, WithMetrics(p.Metrics))

	result.Status = StatusRunning
	sink(emit.Event{RunID: runID, PipelineName: p.PipelineName, EventType: "run_start", Timestamp: start})

	runResult, err := engine.Run(ctx, p.graph, input)

	result.EndTime = time.Now()
	result.DurationSeconds = result.EndTime.Sub(start).Seconds()

	if err != nil {
		result.Error = err
		if _, ok := err.(*Cancelled); ok {
			result.Status = StatusCancelled
		} else {
			result.Status = StatusFailed
		}
		sink(emit.Event{RunID: runID, PipelineName: p.PipelineName, EventType: "run_error", Err: err, Timestamp: result.EndTime})
		return result, err
	}

	result.Status = StatusCompleted
	result.Documents = SingleOrList(runResult.Items, true)
	sink(emit.Event{RunID: runID, PipelineName: p.PipelineName, EventType: "run_complete", Timestamp: result.EndTime})
	return result, nil
}

// collectingEmitter buffers every event it receives (in addition to
// forwarding to inner) so Run can attach the full event list to its
// PipelineResult.
type collectingEmitter struct {
	inner emit.Emitter
	mu    sync.Mutex
	buf   []emit.Event
}

func (c *collectingEmitter) Emit(event emit.Event) {
	c.mu.Lock()
	c.buf = append(c.buf, event)
	c.mu.Unlock()
	c.inner.Emit(event)
}

func (c *collectingEmitter) EmitBatch(ctx context.Context, events []emit.Event) error {
	c.mu.Lock()
	c.buf = append(c.buf, events...)
	c.mu.Unlock()
	return c.inner.EmitBatch(ctx, events)
}

func (c *collectingEmitter) Flush(ctx context.Context) error { return c.inner.Flush(ctx) }

func (c *collectingEmitter) events() []emit.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]emit.Event(nil), c.buf...)
}

// streamingEmitter forwards every event to both inner and a caller-supplied
// sink, used by RunStream to deliver events as they occur.
type streamingEmitter struct {
	inner emit.Emitter
	sink  func(emit.Event)
}

func (s *streamingEmitter) Emit(event emit.Event) {
	s.sink(event)
	s.inner.Emit(event)
}

func (s *streamingEmitter) EmitBatch(ctx context.Context, events []emit.Event) error {
	for _, e := range events {
		s.sink(e)
	}
	return s.inner.EmitBatch(ctx, events)
}

func (s *streamingEmitter) Flush(ctx context.Context) error { return s.inner.Flush(ctx) }
