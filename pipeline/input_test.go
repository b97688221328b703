package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contentflow-dev/contentflow/pipeline/store"
)

type fakeCrawler struct {
	pages      [][]*Content
	hasMore    []bool
	calls      int
	checkpoint time.Time
}

func (f *fakeCrawler) Crawl(ctx context.Context, checkpoint time.Time) ([]*Content, bool, error) {
	f.checkpoint = checkpoint
	if f.calls >= len(f.pages) {
		return nil, false, nil
	}
	page := f.pages[f.calls]
	more := f.hasMore[f.calls]
	f.calls++
	return page, more, nil
}

func contentPage(ids ...string) []*Content {
	items := make([]*Content, len(ids))
	for i, id := range ids {
		items[i] = makeContent(id)
	}
	return items
}

func TestCrawlAllPaginatesUntilNoMorePages(t *testing.T) {
	e := NewInputExecutor("in1", nil, store.NewMemoryStore())
	e.PipelineName = "p1"
	crawler := &fakeCrawler{
		pages:   [][]*Content{contentPage("a", "b"), contentPage("c")},
		hasMore: []bool{true, false},
	}

	items, err := e.CrawlAll(context.Background(), crawler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items across pages, got %d", len(items))
	}
	if crawler.calls != 2 {
		t.Fatalf("expected 2 crawl calls, got %d", crawler.calls)
	}
}

func TestCrawlAllRespectsMaxResults(t *testing.T) {
	e := NewInputExecutor("in1", map[string]any{"max_results": 2}, store.NewMemoryStore())
	e.PipelineName = "p1"
	crawler := &fakeCrawler{
		pages:   [][]*Content{contentPage("a", "b", "c")},
		hasMore: []bool{true},
	}

	items, err := e.CrawlAll(context.Background(), crawler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected max_results to cap at 2, got %d", len(items))
	}
}

func TestCrawlAllSavesAndResumesCheckpoint(t *testing.T) {
	s := store.NewMemoryStore()
	e := NewInputExecutor("in1", nil, s)
	e.PipelineName = "p1"

	crawler := &fakeCrawler{pages: [][]*Content{contentPage("a")}, hasMore: []bool{false}}
	if _, err := e.CrawlAll(context.Background(), crawler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !crawler.checkpoint.IsZero() {
		t.Fatal("expected first crawl to see a zero checkpoint")
	}

	watermark, ok, err := s.LoadWatermark(context.Background(), "p1", "in1")
	if err != nil || !ok {
		t.Fatalf("expected watermark saved, ok=%v err=%v", ok, err)
	}

	crawler2 := &fakeCrawler{pages: [][]*Content{contentPage("b")}, hasMore: []bool{false}}
	if _, err := e.CrawlAll(context.Background(), crawler2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !crawler2.checkpoint.Equal(watermark) {
		t.Fatal("expected second crawl to resume from saved watermark")
	}
}

// modTimeCrawler simulates a real source: it filters its full item set down
// to those modified strictly after the checkpoint it's given, then paginates
// the remainder by batchSize, mirroring spec scenario 5.
type modTimeCrawler struct {
	items     []*Content
	batchSize int
	offset    int
}

func (m *modTimeCrawler) Crawl(ctx context.Context, checkpoint time.Time) ([]*Content, bool, error) {
	if m.offset == 0 {
		var filtered []*Content
		for _, it := range m.items {
			if it.ModifiedAt.After(checkpoint) {
				filtered = append(filtered, it)
			}
		}
		m.items = filtered
	}
	end := m.offset + m.batchSize
	if end > len(m.items) {
		end = len(m.items)
	}
	batch := m.items[m.offset:end]
	m.offset = end
	return batch, m.offset < len(m.items), nil
}

func withModTime(c *Content, t time.Time) *Content {
	c.ModifiedAt = t
	return c
}

func TestCrawlAllWatermarkTracksMaxModifiedTimeNotWallClock(t *testing.T) {
	s := store.NewMemoryStore()
	e := NewInputExecutor("in1", map[string]any{"batch_size": 2}, s)
	e.PipelineName = "p1"

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	t3 := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)

	allItems := []*Content{
		withModTime(makeContent("a"), t1),
		withModTime(makeContent("b"), t2),
		withModTime(makeContent("c"), t3),
	}

	first := &modTimeCrawler{items: append([]*Content(nil), allItems...), batchSize: 2}
	items, err := e.CrawlAll(context.Background(), first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected all 3 items on first crawl, got %d", len(items))
	}

	watermark, ok, err := s.LoadWatermark(context.Background(), "p1", "in1")
	if err != nil || !ok {
		t.Fatalf("expected watermark saved, ok=%v err=%v", ok, err)
	}
	if !watermark.Equal(t3) {
		t.Fatalf("expected watermark to equal max observed modified time %v, got %v", t3, watermark)
	}

	second := &modTimeCrawler{items: append([]*Content(nil), allItems...), batchSize: 2}
	items, err = e.CrawlAll(context.Background(), second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected resuming from t3 watermark to return no further items, got %d", len(items))
	}
}

func TestCrawlAllResumesFromCheckpointReturnsOnlyNewerItems(t *testing.T) {
	s := store.NewMemoryStore()
	e := NewInputExecutor("in1", map[string]any{"batch_size": 2}, s)
	e.PipelineName = "p1"

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	t3 := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)

	if err := s.SaveWatermark(context.Background(), "p1", "in1", t2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	crawler := &modTimeCrawler{
		items: []*Content{
			withModTime(makeContent("a"), t1),
			withModTime(makeContent("b"), t2),
			withModTime(makeContent("c"), t3),
		},
		batchSize: 2,
	}

	items, err := e.CrawlAll(context.Background(), crawler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID.CanonicalID != "c" {
		t.Fatalf("expected only the item newer than checkpoint t2, got %+v", items)
	}
}

func TestCrawlAllPropagatesCrawlerError(t *testing.T) {
	e := NewInputExecutor("in1", nil, store.NewMemoryStore())
	crawler := erroringCrawler{}
	if _, err := e.CrawlAll(context.Background(), crawler); err == nil {
		t.Fatal("expected error to propagate")
	}
}

type erroringCrawler struct{}

func (erroringCrawler) Crawl(ctx context.Context, checkpoint time.Time) ([]*Content, bool, error) {
	return nil, false, errors.New("source unreachable")
}

func TestComputeContentHashIsDeterministic(t *testing.T) {
	e := NewInputExecutor("in1", nil, nil)
	c := makeContent("doc-1")
	if e.ComputeContentHash(c) != e.ComputeContentHash(c) {
		t.Fatal("expected stable hash for the same content")
	}
}
