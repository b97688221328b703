package store

import (
	"context"
	"testing"
	"time"
)

func testCheckpointStore(t *testing.T, s CheckpointStore) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.LoadWatermark(ctx, "p1", "e1"); err != nil || ok {
		t.Fatalf("expected no watermark yet, got ok=%v err=%v", ok, err)
	}

	wm := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := s.SaveWatermark(ctx, "p1", "e1", wm); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := s.LoadWatermark(ctx, "p1", "e1")
	if err != nil || !ok {
		t.Fatalf("expected watermark, got ok=%v err=%v", ok, err)
	}
	if !got.Equal(wm) {
		t.Fatalf("got %v, want %v", got, wm)
	}

	if _, ok, _ := s.LoadWatermark(ctx, "p1", "other"); ok {
		t.Fatal("watermark should be scoped per executor")
	}
	if _, ok, _ := s.LoadWatermark(ctx, "other", "e1"); ok {
		t.Fatal("watermark should be scoped per pipeline")
	}

	wm2 := wm.Add(time.Hour)
	if err := s.SaveWatermark(ctx, "p1", "e1", wm2); err != nil {
		t.Fatalf("overwrite save: %v", err)
	}
	got2, _, _ := s.LoadWatermark(ctx, "p1", "e1")
	if !got2.Equal(wm2) {
		t.Fatalf("got %v, want updated %v", got2, wm2)
	}
}

func TestMemoryStore(t *testing.T) {
	testCheckpointStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	defer s.Close()
	testCheckpointStore(t, s)
}
