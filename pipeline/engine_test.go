package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newEngineTestGraph(name, start string, executors map[string]Executor, edges []Edge, maxIter int) *Graph {
	return &Graph{Name: name, Executors: executors, Edges: edges, StartID: start, MaxIterations: maxIter}
}

func TestEngineRunsSequentialChain(t *testing.T) {
	registerStubType(t, "seq_stub")
	reg := LoadCatalog([]CatalogEntry{{ID: "pass_through", Type: "seq_stub"}})

	a, _ := reg.CreateInstance("pass_through", "a", nil)
	b, _ := reg.CreateInstance("pass_through", "b", nil)
	c, _ := reg.CreateInstance("pass_through", "c", nil)

	graph := newEngineTestGraph("seq", "a", map[string]Executor{"a": a, "b": b, "c": c}, []Edge{
		{From: "a", To: "b", Kind: EdgeSequential},
		{From: "b", To: "c", Kind: EdgeSequential},
	}, 0)

	e := NewEngine("run1", "seq", nil)
	result, err := e.Run(context.Background(), graph, makeContent("x1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].ID.CanonicalID != "x1" {
		t.Fatalf("unexpected result: %+v", result.Items)
	}
}

func TestEngineFansOutAndJoinsPairingByArrivalOrder(t *testing.T) {
	registerStubType(t, "fanout_stub")
	reg := LoadCatalog([]CatalogEntry{{ID: "pass_through", Type: "fanout_stub"}})

	split, _ := reg.CreateInstance("pass_through", "split", nil)
	branch1, _ := reg.CreateInstance("pass_through", "branch1", nil)
	branch2, _ := reg.CreateInstance("pass_through", "branch2", nil)
	merge := NewFanInAggregator("merge", nil)

	graph := newEngineTestGraph("fanout", "split", map[string]Executor{
		"split": split, "branch1": branch1, "branch2": branch2, "merge": merge,
	}, []Edge{
		{From: "split", To: "branch1", Kind: EdgeParallel},
		{From: "split", To: "branch2", Kind: EdgeParallel},
		{From: "branch1", To: "merge", Kind: EdgeJoin},
		{From: "branch2", To: "merge", Kind: EdgeJoin},
	}, 0)

	e := NewEngine("run2", "fanout", nil)
	result, err := e.Run(context.Background(), graph, makeContent("x1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].ID.CanonicalID != "x1" {
		t.Fatalf("expected single merged item for x1, got %+v", result.Items)
	}
}

func TestEngineConditionalRoutingDropsNonMatchingItems(t *testing.T) {
	registerStubType(t, "cond_stub")
	reg := LoadCatalog([]CatalogEntry{{ID: "pass_through", Type: "cond_stub"}})

	classify, _ := reg.CreateInstance("pass_through", "classify", nil)
	pdfPath, _ := reg.CreateInstance("pass_through", "pdf_path", nil)
	otherPath, _ := reg.CreateInstance("pass_through", "other_path", nil)

	graph := newEngineTestGraph("route", "classify", map[string]Executor{
		"classify": classify, "pdf_path": pdfPath, "other_path": otherPath,
	}, []Edge{
		{From: "classify", To: "pdf_path", Kind: EdgeConditional, Condition: `type == "pdf"`},
		{From: "classify", To: "other_path", Kind: EdgeConditional, Condition: `type == "html"`},
	}, 0)

	e := NewEngine("run3", "route", nil)
	c := makeContent("doc1")
	c.Data = map[string]any{"type": "pdf"}

	result, err := e.Run(context.Background(), graph, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].ID.CanonicalID != "doc1" {
		t.Fatalf("expected doc1 to reach pdf_path, got %+v", result.Items)
	}
}

func TestEngineConditionalRoutingWithNoMatchDropsItem(t *testing.T) {
	registerStubType(t, "cond_drop_stub")
	reg := LoadCatalog([]CatalogEntry{{ID: "pass_through", Type: "cond_drop_stub"}})

	classify, _ := reg.CreateInstance("pass_through", "classify", nil)
	pdfPath, _ := reg.CreateInstance("pass_through", "pdf_path", nil)

	graph := newEngineTestGraph("route2", "classify", map[string]Executor{
		"classify": classify, "pdf_path": pdfPath,
	}, []Edge{
		{From: "classify", To: "pdf_path", Kind: EdgeConditional, Condition: `type == "pdf"`},
	}, 0)

	e := NewEngine("run4", "route2", nil)
	c := makeContent("doc2")
	c.Data = map[string]any{"type": "csv"}

	result, err := e.Run(context.Background(), graph, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Items) != 0 {
		t.Fatalf("expected no items to reach a sink, got %+v", result.Items)
	}
}

func TestEngineIterationLimitExceeded(t *testing.T) {
	registerStubType(t, "loop_stub")
	reg := LoadCatalog([]CatalogEntry{{ID: "pass_through", Type: "loop_stub"}})

	a, _ := reg.CreateInstance("pass_through", "a", nil)
	b, _ := reg.CreateInstance("pass_through", "b", nil)

	graph := newEngineTestGraph("loop", "a", map[string]Executor{"a": a, "b": b}, []Edge{
		{From: "a", To: "b", Kind: EdgeSequential},
		{From: "b", To: "a", Kind: EdgeSequential},
	}, 5)

	e := NewEngine("run5", "loop", nil)
	_, err := e.Run(context.Background(), graph, makeContent("x1"))
	var limitErr *IterationLimitExceeded
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected IterationLimitExceeded, got %v", err)
	}
	if limitErr.MaxIterations != 5 {
		t.Fatalf("expected max iterations 5, got %d", limitErr.MaxIterations)
	}
}

func TestEngineRunCancelledByContext(t *testing.T) {
	registerStubType(t, "cancel_stub")
	reg := LoadCatalog([]CatalogEntry{{ID: "pass_through", Type: "cancel_stub"}})
	a, _ := reg.CreateInstance("pass_through", "a", nil)

	graph := newEngineTestGraph("cancelled", "a", map[string]Executor{"a": a}, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine("run6", "cancelled", nil)
	_, err := e.Run(ctx, graph, makeContent("x1"))
	var cancelled *Cancelled
	if !errors.As(err, &cancelled) {
		t.Fatalf("expected Cancelled, got %v", err)
	}
}

func TestEngineEmptyGraphReturnsInputUnchanged(t *testing.T) {
	registerStubType(t, "solo_stub")
	reg := LoadCatalog([]CatalogEntry{{ID: "pass_through", Type: "solo_stub"}})
	a, _ := reg.CreateInstance("pass_through", "a", nil)

	graph := newEngineTestGraph("solo", "a", map[string]Executor{"a": a}, nil, 0)

	e := NewEngine("run7", "solo", nil)
	result, err := e.Run(context.Background(), graph, makeContent("solo1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].ID.CanonicalID != "solo1" {
		t.Fatalf("expected single result item solo1, got %+v", result.Items)
	}
}

func TestEngineMaxIterationsOverrideTakesPrecedence(t *testing.T) {
	registerStubType(t, "override_stub")
	reg := LoadCatalog([]CatalogEntry{{ID: "pass_through", Type: "override_stub"}})

	a, _ := reg.CreateInstance("pass_through", "a", nil)
	b, _ := reg.CreateInstance("pass_through", "b", nil)

	graph := newEngineTestGraph("loop2", "a", map[string]Executor{"a": a, "b": b}, []Edge{
		{From: "a", To: "b", Kind: EdgeSequential},
		{From: "b", To: "a", Kind: EdgeSequential},
	}, 5000)

	e := NewEngine("run8", "loop2", nil, WithMaxIterationsOverride(3))
	_, err := e.Run(context.Background(), graph, makeContent("x1"))
	var limitErr *IterationLimitExceeded
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected IterationLimitExceeded, got %v", err)
	}
	if limitErr.MaxIterations != 3 {
		t.Fatalf("expected override of 3 to win over graph's 5000, got %d", limitErr.MaxIterations)
	}
}

func TestEngineWithMetricsRecordsInvocations(t *testing.T) {
	registerStubType(t, "metrics_stub")
	reg := LoadCatalog([]CatalogEntry{{ID: "pass_through", Type: "metrics_stub"}})
	a, _ := reg.CreateInstance("pass_through", "a", nil)

	graph := newEngineTestGraph("metered", "a", map[string]Executor{"a": a}, nil, 0)

	promReg := prometheus.NewRegistry()
	metrics := NewMetrics(promReg)
	e := NewEngine("run9", "metered", nil, WithMetrics(metrics))
	if _, err := e.Run(context.Background(), graph, makeContent("m1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	families, err := promReg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if !hasMetricFamily(families, "contentflow_executor_invocations_total") {
		t.Fatal("expected the run to record contentflow_executor_invocations_total")
	}
}
