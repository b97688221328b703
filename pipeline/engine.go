package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/contentflow-dev/contentflow/pipeline/condition"
	"github.com/contentflow-dev/contentflow/pipeline/emit"
)

// RunResult is the terminal output of a pipeline run: the content items
// that reached an executor with no outgoing edge, in the order they
// arrived there.
type RunResult struct {
	Items []*Content
}

// Engine drives a Graph to completion. Starting from the single message
// delivered to the graph's start executor, it repeatedly invokes whichever
// executor has a non-empty mailbox (in a stable, deterministic order), and
// routes each invocation's output along its outgoing edges:
//
//   - sequential and parallel edges forward the output as-is to the
//     target's mailbox;
//   - join edges buffer the output per source edge and only deliver a
//     combined [][]*Content to the target once every source in the join
//     group has produced at least one item, pairing items across sources
//     by arrival order;
//   - conditional edges evaluate their condition against each output item
//     and forward only the items that match. An item matching none of a
//     node's conditional edges is dropped — there is no default route.
//
// A run stops when every mailbox has drained, the context is cancelled, or
// MaxIterations executor invocations have happened without draining.
type Engine struct {
	RunID        string
	PipelineName string
	Emitter      emit.Emitter
	Metrics      *Metrics

	evaluator             *condition.Evaluator
	maxIterationsOverride int
}

// NewEngine returns an Engine that tags every emitted event with runID and
// pipelineName.
func NewEngine(runID, pipelineName string, emitter emit.Emitter, opts ...EngineOption) *Engine {
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	e := &Engine{
		RunID:        runID,
		PipelineName: pipelineName,
		Emitter:      emitter,
		evaluator:    condition.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunGraph drives graph to completion starting with input delivered to
// graph.StartID. It has the SubPipelineRunner shape, so an Engine can run
// nested sub-pipelines directly.
func (e *Engine) RunGraph(ctx context.Context, graph *Graph, input any) (any, error) {
	result, err := e.Run(ctx, graph, input)
	if err != nil {
		return nil, err
	}
	return SingleOrList(result.Items, false), nil
}

// Run drives graph to completion starting with input delivered to
// graph.StartID, returning every item that reached a sink executor.
func (e *Engine) Run(ctx context.Context, graph *Graph, input any) (RunResult, error) {
	outEdges := make(map[string][]Edge, len(graph.Executors))
	joinSources := make(map[string][]string)
	for _, edge := range graph.Edges {
		outEdges[edge.From] = append(outEdges[edge.From], edge)
		if edge.Kind == EdgeJoin {
			joinSources[edge.To] = appendUnique(joinSources[edge.To], edge.From)
		}
	}

	order := make([]string, 0, len(graph.Executors))
	for id := range graph.Executors {
		order = append(order, id)
	}
	sort.Strings(order)

	mailboxes := make(map[string]*mailbox, len(graph.Executors))
	for id := range graph.Executors {
		mailboxes[id] = &mailbox{}
	}
	joinBuffers := make(map[string]*joinBuffer)

	mailboxes[graph.StartID].push(Message{To: graph.StartID, Payload: input})

	maxIterations := graph.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	if e.maxIterationsOverride > 0 {
		maxIterations = e.maxIterationsOverride
	}

	var results []*Content
	iterations := 0

	for {
		if err := ctx.Err(); err != nil {
			return RunResult{}, &Cancelled{Cause: err}
		}

		id, ok := nextReadyExecutor(order, mailboxes)
		if !ok {
			break
		}

		if iterations >= maxIterations {
			return RunResult{}, &IterationLimitExceeded{MaxIterations: maxIterations}
		}
		iterations++
		e.Metrics.IncrementIterations(e.PipelineName)

		msg, _ := mailboxes[id].pop()
		e.Metrics.SetMailboxDepth(e.PipelineName, id, len(mailboxes[id].queue))
		ex := graph.Executors[id]

		invokeStart := time.Now()
		output, err := Invoke(ctx, ex, msg.Payload, InvokeParams{
			RunID: e.RunID, PipelineName: e.PipelineName, Emitter: e.Emitter,
		})
		if err != nil {
			e.Metrics.RecordInvocation(e.PipelineName, id, "error", time.Since(invokeStart))
			if ctx.Err() != nil {
				return RunResult{}, &Cancelled{ExecutorID: id, Cause: ctx.Err()}
			}
			return RunResult{}, err
		}
		e.Metrics.RecordInvocation(e.PipelineName, id, "success", time.Since(invokeStart))

		edges := outEdges[id]
		if len(edges) == 0 {
			items, _ := Items(output)
			results = append(results, items...)
			continue
		}

		for _, edge := range edges {
			switch edge.Kind {
			case EdgeJoin:
				e.deliverJoin(mailboxes, joinBuffers, joinSources, edge, output)
			case EdgeConditional:
				e.deliverConditional(mailboxes, edge, output)
			default: // EdgeSequential, EdgeParallel
				mailboxes[edge.To].push(Message{From: id, To: edge.To, Kind: edge.Kind, Payload: output})
			}
		}
	}

	return RunResult{Items: results}, nil
}

// nextReadyExecutor scans order (a fixed, sorted traversal) for the first
// executor with a non-empty mailbox, so dispatch order is deterministic
// across runs of the same graph.
func nextReadyExecutor(order []string, mailboxes map[string]*mailbox) (string, bool) {
	for _, id := range order {
		if !mailboxes[id].empty() {
			return id, true
		}
	}
	return "", false
}

func (e *Engine) deliverJoin(mailboxes map[string]*mailbox, joinBuffers map[string]*joinBuffer, joinSources map[string][]string, edge Edge, output any) {
	buf, ok := joinBuffers[edge.To]
	if !ok {
		buf = newJoinBuffer()
		joinBuffers[edge.To] = buf
	}
	buf.bySource[edge.From] = append(buf.bySource[edge.From], output)

	sources := joinSources[edge.To]
	if !buf.ready(sources) {
		return
	}

	fronts := buf.popFronts(sources)
	combined := make([][]*Content, 0, len(fronts))
	for _, payload := range fronts {
		items, _ := Items(payload)
		combined = append(combined, items)
	}
	mailboxes[edge.To].push(Message{To: edge.To, Kind: EdgeJoin, Payload: combined})
}

func (e *Engine) deliverConditional(mailboxes map[string]*mailbox, edge Edge, output any) {
	items, wasList := Items(output)
	if items == nil {
		return
	}

	if edge.Condition == "" {
		mailboxes[edge.To].push(Message{To: edge.To, Kind: EdgeConditional, Payload: output})
		return
	}

	var matched []*Content
	for _, item := range items {
		data, err := contentToEvalData(item)
		if err != nil {
			continue
		}
		ok, err := e.evaluator.EvaluateString(edge.Condition, data)
		if err != nil || !ok {
			continue
		}
		matched = append(matched, item)
	}

	if len(matched) == 0 {
		return
	}
	mailboxes[edge.To].push(Message{To: edge.To, Kind: EdgeConditional, Payload: SingleOrList(matched, wasList)})
}
