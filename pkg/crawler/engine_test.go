package crawler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"serpharvest/pkg/checkpoint"
	"serpharvest/pkg/config"
	errs "serpharvest/pkg/errors"
	"serpharvest/pkg/logger"
	"serpharvest/pkg/ratelimit"
	"serpharvest/pkg/serp"
)

// fakeSearcher serves canned pages keyed by start offset
type fakeSearcher struct {
	pages map[int][]serp.Result
	total interface{}
	errAt map[int]error
	calls []int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, start, pageSize int) (*serp.Response, error) {
	f.calls = append(f.calls, start)
	if err := f.errAt[start]; err != nil {
		return nil, err
	}
	return &serp.Response{
		Results: []serp.ResultPage{
			{
				Content: serp.PageContent{
					Results: serp.PageResults{
						Organic:           f.pages[start],
						SearchInformation: serp.SearchInformation{TotalResultsCount: f.total},
					},
				},
			},
		},
	}, nil
}

func listing(id string) serp.Result {
	return serp.Result{URL: "https://www.catawiki.com/en/l/" + id}
}

func testCrawlConfig() config.CrawlConfig {
	return config.CrawlConfig{
		ResultsPerPage:      10,
		DefaultMaxStart:     3000,
		MaxRetries:          2,
		RetryBaseDelay:      time.Microsecond,
		MaxConsecutiveEmpty: 2,
		SiteMarker:          "catawiki.com/en/l/",
	}
}

func newTestEngine(t *testing.T, search serp.Searcher, store *fakeStore, cfg config.CrawlConfig) (*Engine, *checkpoint.Manager) {
	t.Helper()
	ckpt := checkpoint.NewManager(filepath.Join(t.TempDir(), "checkpoint.json"))
	dedup := NewDeduplicator(store, logger.NewNopLogger())
	pacer := ratelimit.NewRandomPacer(0, 0, 0, 0)
	return NewEngine(search, dedup, ckpt, pacer, cfg, logger.NewNopLogger()), ckpt
}

func TestRunCeilingFromProbe(t *testing.T) {
	search := &fakeSearcher{
		total: "25", // 3 pages of 10
		pages: map[int][]serp.Result{
			0:  {listing("1")},
			10: {listing("2")},
			20: {listing("3")},
			30: {listing("4")}, // beyond the ceiling, must not be fetched
		},
	}
	store := newFakeStore()
	engine, _ := newTestEngine(t, search, store, testCrawlConfig())

	res, err := engine.Run(context.Background(), testUnit, &checkpoint.Checkpoint{}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Pages != 3 || res.URLs != 3 {
		t.Errorf("Expected 3 pages / 3 urls, got %d / %d", res.Pages, res.URLs)
	}
	// Probe at 0, then pages 0, 10, 20; never 30
	expected := []int{0, 0, 10, 20}
	if len(search.calls) != len(expected) {
		t.Fatalf("Expected calls %v, got %v", expected, search.calls)
	}
	for i, start := range expected {
		if search.calls[i] != start {
			t.Errorf("Call %d: expected start %d, got %d", i, start, search.calls[i])
		}
	}
}

func TestRunStopsOnConsecutiveEmptyPages(t *testing.T) {
	search := &fakeSearcher{
		pages: map[int][]serp.Result{
			0: {listing("1"), listing("2")},
			// 10 and 20 yield nothing
			30: {listing("3")}, // never reached
		},
	}
	store := newFakeStore()
	engine, _ := newTestEngine(t, search, store, testCrawlConfig())

	res, err := engine.Run(context.Background(), testUnit, &checkpoint.Checkpoint{}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Pages != 3 {
		t.Errorf("Expected 3 pages before the empty streak stop, got %d", res.Pages)
	}
	if res.URLs != 2 {
		t.Errorf("Expected 2 urls, got %d", res.URLs)
	}
	last := search.calls[len(search.calls)-1]
	if last != 20 {
		t.Errorf("Expected pagination to stop after offset 20, last call was %d", last)
	}
}

func TestRunResumeSkipsProbeAndKeepsOffset(t *testing.T) {
	search := &fakeSearcher{
		total: "5000",
		pages: map[int][]serp.Result{
			0:  {listing("stale")}, // must not be fetched again
			20: {listing("1")},
		},
	}
	store := newFakeStore()
	engine, ckpt := newTestEngine(t, search, store, testCrawlConfig())

	cp := &checkpoint.Checkpoint{Sheet: "Fashion", Category: "Fashion"}
	res, err := engine.Run(context.Background(), testUnit, cp, &Resumption{Start: 20, PageNum: 2})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if search.calls[0] != 20 {
		t.Errorf("Expected first fetch at the checkpointed offset 20, got %d", search.calls[0])
	}
	for _, start := range search.calls {
		if start == 0 {
			t.Error("Resumed unit must not probe offset 0")
		}
	}
	// Page numbering continues from the checkpoint
	if res.Pages != 5 || res.URLs != 1 {
		t.Errorf("Expected 5 pages / 1 url, got %d / %d", res.Pages, res.URLs)
	}

	// The checkpoint on disk tracks the last offset fetched
	saved, err := ckpt.Load()
	if err != nil || saved == nil {
		t.Fatalf("Failed to load checkpoint: %v", err)
	}
	if saved.Start != 40 {
		t.Errorf("Expected last checkpointed offset 40, got %d", saved.Start)
	}
	if saved.Brand != "Nike" {
		t.Errorf("Expected checkpoint brand Nike, got %q", saved.Brand)
	}
}

func TestRunFiltersForeignLinks(t *testing.T) {
	search := &fakeSearcher{
		total: "5",
		pages: map[int][]serp.Result{
			0: {
				listing("1"),
				{URL: "https://www.google.com/aclk?sa=x"},
				{URL: "https://www.catawiki.com/en/c/425-shoes"}, // category page, not a listing
			},
		},
	}
	store := newFakeStore()
	engine, _ := newTestEngine(t, search, store, testCrawlConfig())

	res, err := engine.Run(context.Background(), testUnit, &checkpoint.Checkpoint{}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.URLs != 1 {
		t.Errorf("Expected only the listing url to be kept, got %d", res.URLs)
	}
}

func TestRunDeduplicatesAcrossPages(t *testing.T) {
	search := &fakeSearcher{
		total: "15",
		pages: map[int][]serp.Result{
			0:  {listing("1")},
			10: {listing("1")}, // same listing surfaces again
		},
	}
	store := newFakeStore()
	engine, _ := newTestEngine(t, search, store, testCrawlConfig())

	res, err := engine.Run(context.Background(), testUnit, &checkpoint.Checkpoint{}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.URLs != 1 {
		t.Errorf("Expected the duplicate to be dropped, got %d urls", res.URLs)
	}
	if len(store.order) != 1 {
		t.Errorf("Expected 1 stored url, got %d", len(store.order))
	}
}

func TestRunDegradesFailedFetchesToEmptyPages(t *testing.T) {
	netErr := &errs.Error{Type: errs.ErrorTypeNetwork, Message: "connection refused"}
	search := &fakeSearcher{
		errAt: map[int]error{0: netErr, 10: netErr},
	}
	store := newFakeStore()

	cfg := testCrawlConfig()
	cfg.DefaultMaxStart = 10 // offsets 0 and 10 only
	engine, _ := newTestEngine(t, search, store, cfg)

	res, err := engine.Run(context.Background(), testUnit, &checkpoint.Checkpoint{}, nil)
	if err != nil {
		t.Fatalf("Exhausted retries must not fail the unit, got %v", err)
	}
	if res.Pages != 0 || res.URLs != 0 {
		t.Errorf("Expected 0 pages / 0 urls, got %d / %d", res.Pages, res.URLs)
	}
	// One probe attempt plus MaxRetries fetch attempts per offset
	if len(search.calls) != 5 {
		t.Errorf("Expected 5 provider calls, got %d (%v)", len(search.calls), search.calls)
	}
}

// cancelAfterSearcher cancels the crawl's context once the given number of
// provider calls have been served
type cancelAfterSearcher struct {
	inner  *fakeSearcher
	cancel context.CancelFunc
	after  int
}

func (c *cancelAfterSearcher) Search(ctx context.Context, query string, start, pageSize int) (*serp.Response, error) {
	resp, err := c.inner.Search(ctx, query, start, pageSize)
	if len(c.inner.calls) >= c.after {
		c.cancel()
	}
	return resp, err
}

func TestRunInterruptedMidUnitReportsPagesCrawled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := &fakeSearcher{
		total: "5000",
		pages: map[int][]serp.Result{
			0:  {listing("1")},
			10: {listing("2")},
			20: {listing("3")},
		},
	}
	// Probe plus three page fetches, then the context dies
	search := &cancelAfterSearcher{inner: inner, cancel: cancel, after: 4}
	store := newFakeStore()
	engine, _ := newTestEngine(t, search, store, testCrawlConfig())

	res, err := engine.Run(ctx, testUnit, &checkpoint.Checkpoint{}, nil)
	if err == nil {
		t.Fatal("Expected cancellation error")
	}
	if res.Pages != 3 {
		t.Errorf("Expected 3 pages reported for the interrupted unit, got %d", res.Pages)
	}
	if res.URLs != 3 {
		t.Errorf("Expected 3 urls, got %d", res.URLs)
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	search := &fakeSearcher{
		pages: map[int][]serp.Result{0: {listing("1")}},
	}
	store := newFakeStore()
	engine, _ := newTestEngine(t, search, store, testCrawlConfig())

	_, err := engine.Run(ctx, testUnit, &checkpoint.Checkpoint{}, nil)
	if err == nil {
		t.Fatal("Expected cancellation error")
	}
	if len(store.order) != 0 {
		t.Errorf("Expected no urls stored after immediate cancellation, got %d", len(store.order))
	}
}
