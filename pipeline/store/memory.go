package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process CheckpointStore. Watermarks live only for the
// lifetime of the process; this is the default store used when a pipeline
// has no durable backend configured.
type MemoryStore struct {
	mu         sync.RWMutex
	watermarks map[string]time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{watermarks: make(map[string]time.Time)}
}

func (m *MemoryStore) LoadWatermark(ctx context.Context, pipelineName, executorID string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wm, ok := m.watermarks[key(pipelineName, executorID)]
	return wm, ok, nil
}

func (m *MemoryStore) SaveWatermark(ctx context.Context, pipelineName, executorID string, watermark time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watermarks[key(pipelineName, executorID)] = watermark
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func key(pipelineName, executorID string) string {
	return pipelineName + "\x00" + executorID
}
