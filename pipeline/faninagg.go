package pipeline

import (
	"context"
	"fmt"
)

// FanInAggregator merges content items arriving from multiple parallel or
// batch branches into one item per canonical ID. It is the executor a join
// edge's target naturally uses: its ProcessInput accepts either
// []*Content (one value per branch) or [][]*Content (one batch per
// branch) and returns the merged []*Content.
type FanInAggregator struct {
	*BaseExecutor
}

// NewFanInAggregator builds a FanInAggregator. It takes no settings beyond
// the ones every executor understands (enabled, condition, and so on).
func NewFanInAggregator(id string, settings map[string]any) *FanInAggregator {
	return &FanInAggregator{BaseExecutor: NewBaseExecutor(id, settings)}
}

// ProcessInput implements Executor.
func (f *FanInAggregator) ProcessInput(ctx context.Context, input any) (any, error) {
	items, err := flattenContentBatches(input)
	if err != nil {
		return nil, err
	}
	return mergeByCanonicalID(items), nil
}

// flattenContentBatches accepts []*Content or [][]*Content and returns a
// single flat slice, preserving arrival order.
func flattenContentBatches(input any) ([]*Content, error) {
	switch v := input.(type) {
	case []*Content:
		return v, nil
	case [][]*Content:
		var flat []*Content
		for _, batch := range v {
			flat = append(flat, batch...)
		}
		return flat, nil
	case *Content:
		return []*Content{v}, nil
	default:
		return nil, fmt.Errorf("fan_in_aggregator: expected []*Content or [][]*Content, got %T", input)
	}
}

// mergeByCanonicalID groups items by their canonical ID, in first-seen
// order. For each group, summary_data and data fields are merged
// first-occurrence-wins (a later item never overwrites a field already
// set by an earlier one), and executor_logs from every item in the group
// are concatenated in arrival order so the merged item carries the full
// processing history of every branch that produced it.
func mergeByCanonicalID(items []*Content) []*Content {
	merged := make(map[string]*Content, len(items))
	var order []string

	for _, item := range items {
		id := item.ID.CanonicalID
		existing, ok := merged[id]
		if !ok {
			merged[id] = item.Clone()
			order = append(order, id)
			continue
		}

		for field, value := range item.SummaryData {
			if _, present := existing.SummaryData[field]; !present {
				existing.SummaryData[field] = value
			}
		}
		for field, value := range item.Data {
			if _, present := existing.Data[field]; !present {
				existing.Data[field] = value
			}
		}
		existing.ExecutorLogs = append(existing.ExecutorLogs, item.ExecutorLogs...)
	}

	result := make([]*Content, len(order))
	for i, id := range order {
		result[i] = merged[id]
	}
	return result
}
