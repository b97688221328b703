package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// ItemProcessor processes a single content item. Concrete executors that
// want ParallelExecutor's bounded-concurrency fan-out implement this and
// pass themselves to ParallelExecutor.Process from their ProcessInput
// method.
type ItemProcessor interface {
	ProcessContentItem(ctx context.Context, content *Content) (*Content, error)
}

// ParallelExecutor processes a batch of content items with bounded
// concurrency, per-item timeouts, and a choice between stopping the whole
// batch on the first item failure or continuing with the rest.
type ParallelExecutor struct {
	*BaseExecutor

	MaxConcurrent   int
	TimeoutSecs     int
	ContinueOnError bool
}

// NewParallelExecutor reads max_concurrent (default 5), timeout_secs
// (default 300), and continue_on_error (default true) from settings.
func NewParallelExecutor(id string, settings map[string]any) *ParallelExecutor {
	base := NewBaseExecutor(id, settings)
	return &ParallelExecutor{
		BaseExecutor:    base,
		MaxConcurrent:   intSettingFrom(base, "max_concurrent", 5),
		TimeoutSecs:     intSettingFrom(base, "timeout_secs", 300),
		ContinueOnError: boolSettingFrom(base, "continue_on_error", true),
	}
}

func intSettingFrom(b *BaseExecutor, key string, def int) int {
	v := b.GetSetting(key, def)
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}

func boolSettingFrom(b *BaseExecutor, key string, def bool) bool {
	v := b.GetSetting(key, def)
	if bv, ok := v.(bool); ok {
		return bv
	}
	return def
}

// Process runs proc over input's items, respecting MaxConcurrent,
// TimeoutSecs, and ContinueOnError, and preserves input order in the
// returned slice (or single item). A per-item failure always produces a
// "failed" ExecutorLogEntry on that item; when ContinueOnError is false,
// the first failure stops further items and Process returns that error.
func (p *ParallelExecutor) Process(ctx context.Context, input any, proc ItemProcessor) (any, error) {
	items, wasList := Items(input)
	if len(items) == 0 {
		return input, nil
	}

	if !wasList {
		result, err := p.processOne(ctx, items[0], proc)
		if err != nil {
			if p.FailPipelineOnError || !p.ContinueOnError {
				return nil, err
			}
			return result, nil
		}
		return result, nil
	}

	results := make([]*Content, len(items))
	limit := p.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			result, err := p.processOne(gctx, item, proc)
			if err != nil {
				if !p.ContinueOnError {
					return err
				}
				results[i] = item
				return nil
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (p *ParallelExecutor) processOne(ctx context.Context, content *Content, proc ItemProcessor) (*Content, error) {
	start := time.Now()

	timeout := time.Duration(p.TimeoutSecs) * time.Second
	itemCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		itemCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := proc.ProcessContentItem(itemCtx, content)
	if err != nil {
		content.AppendLog(ExecutorLogEntry{
			ExecutorID: p.ID(),
			StartTime:  start,
			EndTime:    time.Now(),
			Status:     LogFailed,
			Errors:     []string{err.Error()},
		})
		if p.FailPipelineOnError {
			return nil, &ExecutorError{ExecutorID: p.ID(), ContentID: content.ID.CanonicalID, Message: err.Error(), FailPipeline: true, Cause: err}
		}
		return content, fmt.Errorf("%s: content %s: %w", p.ID(), content.ID.CanonicalID, err)
	}

	result.AppendLog(ExecutorLogEntry{
		ExecutorID: p.ID(),
		StartTime:  start,
		EndTime:    time.Now(),
		Status:     LogCompleted,
	})
	return result, nil
}
