package emit

import (
	"context"
	"sync"
	"testing"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingEmitter) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) EmitBatch(ctx context.Context, events []Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recordingEmitter) Flush(ctx context.Context) error { return nil }

func (r *recordingEmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestBufferedEmitterFlushesAtSize(t *testing.T) {
	inner := &recordingEmitter{}
	b := NewBufferedEmitter(inner, 3)

	b.Emit(Event{EventType: "a"})
	b.Emit(Event{EventType: "b"})
	if inner.count() != 0 {
		t.Fatalf("expected no flush yet, got %d events", inner.count())
	}
	b.Emit(Event{EventType: "c"})
	if inner.count() != 3 {
		t.Fatalf("expected flush at size 3, got %d events", inner.count())
	}
}

func TestBufferedEmitterExplicitFlush(t *testing.T) {
	inner := &recordingEmitter{}
	b := NewBufferedEmitter(inner, 0)

	b.Emit(Event{EventType: "a"})
	b.Emit(Event{EventType: "b"})
	if inner.count() != 0 {
		t.Fatalf("expected no auto flush, got %d events", inner.count())
	}
	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.count() != 2 {
		t.Fatalf("expected 2 events after flush, got %d", inner.count())
	}
}
