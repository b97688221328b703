// Package store provides checkpoint persistence for input executors: a
// durable watermark per (pipeline, executor) pair so an incremental crawl
// can resume from where the previous run left off.
package store

import (
	"context"
	"time"
)

// CheckpointStore persists and retrieves a single watermark timestamp per
// (pipelineName, executorID) pair. It is the only durable state the engine
// itself depends on; everything else about a run lives in memory.
type CheckpointStore interface {
	// LoadWatermark returns the last saved watermark for the given pipeline
	// and executor. ok is false when no watermark has been saved yet.
	LoadWatermark(ctx context.Context, pipelineName, executorID string) (watermark time.Time, ok bool, err error)

	// SaveWatermark persists watermark for the given pipeline and executor,
	// overwriting any previously saved value.
	SaveWatermark(ctx context.Context, pipelineName, executorID string, watermark time.Time) error

	// Close releases any resources (database connections) held by the store.
	Close() error
}
