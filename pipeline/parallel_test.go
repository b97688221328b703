package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

type fakeItemProcessor struct {
	fn func(ctx context.Context, content *Content) (*Content, error)
}

func (f *fakeItemProcessor) ProcessContentItem(ctx context.Context, content *Content) (*Content, error) {
	return f.fn(ctx, content)
}

func TestParallelExecutorProcessesListConcurrentlyInOrder(t *testing.T) {
	p := NewParallelExecutor("par1", map[string]any{"max_concurrent": 4})
	proc := &fakeItemProcessor{fn: func(ctx context.Context, c *Content) (*Content, error) {
		c.Data["seen"] = true
		return c, nil
	}}

	items := make([]*Content, 5)
	for i := range items {
		items[i] = makeContent(fmt.Sprintf("c%d", i))
	}

	out, err := p.Process(context.Background(), items, proc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	results := out.([]*Content)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i, r := range results {
		if r.ID.CanonicalID != fmt.Sprintf("c%d", i) {
			t.Fatalf("expected order preserved, got %s at %d", r.ID.CanonicalID, i)
		}
		if r.Data["seen"] != true {
			t.Fatalf("expected item %d to be processed", i)
		}
		if r.Status() != LogCompleted {
			t.Fatalf("expected completed status, got %s", r.Status())
		}
	}
}

func TestParallelExecutorSequentialWhenMaxConcurrentOne(t *testing.T) {
	p := NewParallelExecutor("par1", map[string]any{"max_concurrent": 1})
	var active int32
	var maxActive int32
	proc := &fakeItemProcessor{fn: func(ctx context.Context, c *Content) (*Content, error) {
		n := atomic.AddInt32(&active, 1)
		if n > atomic.LoadInt32(&maxActive) {
			atomic.StoreInt32(&maxActive, n)
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return c, nil
	}}

	items := []*Content{makeContent("a"), makeContent("b"), makeContent("c")}
	_, err := p.Process(context.Background(), items, proc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if maxActive > 1 {
		t.Fatalf("expected sequential processing, saw %d concurrent", maxActive)
	}
}

func TestParallelExecutorContinueOnErrorKeepsOriginalAndLogsFailure(t *testing.T) {
	p := NewParallelExecutor("par1", map[string]any{"max_concurrent": 2, "continue_on_error": true})
	proc := &fakeItemProcessor{fn: func(ctx context.Context, c *Content) (*Content, error) {
		if c.ID.CanonicalID == "bad" {
			return nil, errors.New("boom")
		}
		c.Data["ok"] = true
		return c, nil
	}}

	items := []*Content{makeContent("good"), makeContent("bad")}
	out, err := p.Process(context.Background(), items, proc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	results := out.([]*Content)
	if results[0].Data["ok"] != true {
		t.Fatal("expected good item processed")
	}
	if results[1].Status() != LogFailed {
		t.Fatalf("expected bad item logged as failed, got %s", results[1].Status())
	}
}

func TestParallelExecutorStopsBatchWhenContinueOnErrorFalse(t *testing.T) {
	p := NewParallelExecutor("par1", map[string]any{"max_concurrent": 1, "continue_on_error": false})
	proc := &fakeItemProcessor{fn: func(ctx context.Context, c *Content) (*Content, error) {
		if c.ID.CanonicalID == "bad" {
			return nil, errors.New("boom")
		}
		return c, nil
	}}

	items := []*Content{makeContent("bad"), makeContent("good")}
	_, err := p.Process(context.Background(), items, proc)
	if err == nil {
		t.Fatal("expected error to propagate when continue_on_error is false")
	}
}

func TestParallelExecutorFailPipelineOnErrorWrapsExecutorError(t *testing.T) {
	p := NewParallelExecutor("par1", map[string]any{"fail_pipeline_on_error": true})
	proc := &fakeItemProcessor{fn: func(ctx context.Context, c *Content) (*Content, error) {
		return nil, errors.New("boom")
	}}

	_, err := p.Process(context.Background(), makeContent("c1"), proc)
	var execErr *ExecutorError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutorError, got %v", err)
	}
	if !execErr.FailPipeline {
		t.Fatal("expected FailPipeline to be set")
	}
}

func TestParallelExecutorPerItemTimeout(t *testing.T) {
	p := NewParallelExecutor("par1", map[string]any{"timeout_secs": 1})
	proc := &fakeItemProcessor{fn: func(ctx context.Context, c *Content) (*Content, error) {
		select {
		case <-time.After(2 * time.Second):
			return c, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}

	out, err := p.Process(context.Background(), makeContent("slow"), proc)
	if err != nil {
		t.Fatalf("expected swallowed timeout error, got %v", err)
	}
	if out.(*Content).Status() != LogFailed {
		t.Fatal("expected timeout to be logged as failed")
	}
}

func TestParallelExecutorSingleItemDirect(t *testing.T) {
	p := NewParallelExecutor("par1", nil)
	proc := &fakeItemProcessor{fn: func(ctx context.Context, c *Content) (*Content, error) {
		c.Data["single"] = true
		return c, nil
	}}
	out, err := p.Process(context.Background(), makeContent("only"), proc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.(*Content).Data["single"] != true {
		t.Fatal("expected single item processed directly")
	}
}

