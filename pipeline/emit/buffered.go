package emit

import (
	"context"
	"sync"
)

// BufferedEmitter wraps another Emitter, batching individual Emit calls and
// flushing them to the underlying emitter either when the buffer reaches
// size or on an explicit Flush.
type BufferedEmitter struct {
	mu     sync.Mutex
	inner  Emitter
	size   int
	buffer []Event
}

// NewBufferedEmitter returns a BufferedEmitter flushing to inner every size
// events. size <= 0 disables automatic flushing; the caller must call
// Flush.
func NewBufferedEmitter(inner Emitter, size int) *BufferedEmitter {
	return &BufferedEmitter{inner: inner, size: size}
}

func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	b.buffer = append(b.buffer, event)
	shouldFlush := b.size > 0 && len(b.buffer) >= b.size
	var toFlush []Event
	if shouldFlush {
		toFlush = b.buffer
		b.buffer = nil
	}
	b.mu.Unlock()

	if toFlush != nil {
		_ = b.inner.EmitBatch(context.Background(), toFlush)
	}
}

func (b *BufferedEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		b.Emit(e)
	}
	return nil
}

func (b *BufferedEmitter) Flush(ctx context.Context) error {
	b.mu.Lock()
	toFlush := b.buffer
	b.buffer = nil
	b.mu.Unlock()

	if len(toFlush) == 0 {
		return b.inner.Flush(ctx)
	}
	if err := b.inner.EmitBatch(ctx, toFlush); err != nil {
		return err
	}
	return b.inner.Flush(ctx)
}
