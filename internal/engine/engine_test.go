package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/NewsHarvest/internal/config"
	"github.com/IshaanNene/NewsHarvest/internal/observability"
	"github.com/IshaanNene/NewsHarvest/internal/parser"
	"github.com/IshaanNene/NewsHarvest/internal/pipeline"
	"github.com/IshaanNene/NewsHarvest/internal/source"
	"github.com/IshaanNene/NewsHarvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var articleBody = `<html><body><div class="article-content">` +
	strings.Repeat("山西文旅市场在国庆假期迎来客流高峰。", 10) +
	`2025年10月3日发布</div></body></html>`

// fakeFetcher serves canned bodies; unknown URLs fail like three timeouts.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  map[string]int
}

func newFakeFetcher(bodies map[string]string) *fakeFetcher {
	return &fakeFetcher{bodies: bodies, calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(_ context.Context, req *types.Request) (*types.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.URL]++
	body, ok := f.bodies[req.URL]
	if !ok {
		return nil, &types.FetchFailure{URL: req.URL, Class: types.FailureTimeout, Attempts: 3, Err: context.DeadlineExceeded}
	}
	return types.NewRenderedResponse(req.URL, body, 0), nil
}

func (f *fakeFetcher) Close() error { return nil }

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type fakeRenderer struct {
	startErr error
	starts   atomic.Int32
	renders  atomic.Int32
	closes   atomic.Int32
}

func (r *fakeRenderer) Start() error {
	r.starts.Add(1)
	return r.startErr
}

func (r *fakeRenderer) Render(_ context.Context, rawURL string) (*types.Response, error) {
	r.renders.Add(1)
	return types.NewRenderedResponse(rawURL, "<html><body>rendered</body></html>", 0), nil
}

func (r *fakeRenderer) Close() error {
	r.closes.Add(1)
	return nil
}

// fakeAdapter fetches one listing page and then emits fixed candidates.
type fakeAdapter struct {
	name       string
	rendering  bool
	listing    string
	candidates []source.Candidate
	panics     bool
	onCollect  func(n int)
}

func (a *fakeAdapter) Name() string                    { return a.name }
func (a *fakeAdapter) Rendering() bool                 { return a.rendering }
func (a *fakeAdapter) Accepts(c source.Candidate) bool { return !strings.Contains(c.Title, "无关") }

func (a *fakeAdapter) Discover(ctx context.Context, env source.Env, collect source.Collector) error {
	if a.listing != "" {
		if _, err := env.Pages.Page(ctx, source.PageRequest{URL: a.listing, Render: a.rendering}); err != nil {
			env.Logger.Warn("listing failed", "error", err)
		}
	}
	if a.panics {
		panic("adapter exploded")
	}
	for i, c := range a.candidates {
		if a.onCollect != nil {
			a.onCollect(i)
		}
		if collect(ctx, c) == source.Halt {
			return ctx.Err()
		}
	}
	return nil
}

type nopPacer struct{}

func (nopPacer) Pause(ctx context.Context, _ config.DelayRange) error { return ctx.Err() }

func newTestEngine(t *testing.T, f Fetcher) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	e, err := New(cfg, testLogger, f)
	require.NoError(t, err)
	e.SetPacer(nopPacer{})
	e.SetPipeline(pipeline.Default(cfg, e.Window(), testLogger))
	return e
}

func candidate(i int) source.Candidate {
	return source.Candidate{
		Title:  fmt.Sprintf("山西国庆旅游新闻 %d", i),
		URL:    fmt.Sprintf("https://news.example.com/%d.html", i),
		Source: "新华网",
	}
}

// --- Engine Tests ---

func TestRunRecordsCandidates(t *testing.T) {
	f := newFakeFetcher(map[string]string{
		candidate(0).URL: articleBody,
		candidate(1).URL: "<html><body>短</body></html>",
	})
	e := newTestEngine(t, f)
	m := observability.NewMetrics(testLogger)
	e.SetMetrics(m)

	a := &fakeAdapter{name: "news", candidates: []source.Candidate{candidate(0), candidate(1)}}
	records, err := e.Run(context.Background(), []source.Adapter{a})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "2025-10-03", records[0].Date)
	assert.Equal(t, "新华网", records[0].Source)
	assert.Greater(t, parser.RuneLen(records[0].Content), 100)

	assert.Equal(t, parser.FailedContent, records[1].Content)
	assert.Equal(t, "2025-10", records[1].Date)

	assert.Equal(t, int64(2), e.Stats().Records.Load())
	assert.Equal(t, map[string]int64{"新华网": 2}, e.Stats().BySource())
	assert.Equal(t, StateStopped, e.GetState())
}

func TestRunSkipsDuplicateURLs(t *testing.T) {
	c := candidate(0)
	dup := c
	dup.URL = strings.Replace(c.URL, "https://news.example.com", "https://NEWS.example.com:443", 1) + "#comments"
	f := newFakeFetcher(map[string]string{c.URL: articleBody})
	e := newTestEngine(t, f)

	first := &fakeAdapter{name: "news", candidates: []source.Candidate{c}}
	second := &fakeAdapter{name: "search", candidates: []source.Candidate{c, dup}}
	records, err := e.Run(context.Background(), []source.Adapter{first, second})
	require.NoError(t, err)

	assert.Len(t, records, 1)
	assert.Equal(t, 1, f.count(c.URL))
	assert.Equal(t, int64(2), e.Stats().Duplicates.Load())
}

func TestRunContinuesAfterFetchFailure(t *testing.T) {
	f := newFakeFetcher(map[string]string{candidate(1).URL: articleBody})
	e := newTestEngine(t, f)

	a := &fakeAdapter{name: "news", candidates: []source.Candidate{candidate(0), candidate(1)}}
	records, err := e.Run(context.Background(), []source.Adapter{a})
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, candidate(1).URL, records[0].URL)
	assert.Equal(t, int64(1), e.Stats().FetchFailed.Load())
}

func TestRunFiltersCandidates(t *testing.T) {
	f := newFakeFetcher(map[string]string{})
	e := newTestEngine(t, f)

	a := &fakeAdapter{name: "news", candidates: []source.Candidate{
		{Title: "   ", URL: "https://x.example.com/1", Source: "新华网"},
		{Title: "无关新闻标题", URL: "https://x.example.com/2", Source: "新华网"},
	}}
	records, err := e.Run(context.Background(), []source.Adapter{a})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int64(2), e.Stats().Filtered.Load())
	assert.Zero(t, f.count("https://x.example.com/1"))
}

func TestRunSnippetFallback(t *testing.T) {
	c := candidate(0)
	c.Snippet = "10月2日，五台山景区接待游客创新高"
	f := newFakeFetcher(map[string]string{c.URL: "<html><body></body></html>"})
	e := newTestEngine(t, f)

	records, err := e.Run(context.Background(), []source.Adapter{&fakeAdapter{name: "social", candidates: []source.Candidate{c}}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, c.Snippet, records[0].Content)
	assert.Equal(t, "2025-10-02", records[0].Date)
}

func TestRunDegradesWithoutBrowser(t *testing.T) {
	listing := "https://search.example.com/s?wd=x"
	f := newFakeFetcher(map[string]string{listing: "<html></html>", candidate(0).URL: articleBody})
	e := newTestEngine(t, f)
	r := &fakeRenderer{startErr: types.ErrBrowserUnavailable}
	e.SetRenderer(r)

	a := &fakeAdapter{name: "search", rendering: true, listing: listing, candidates: []source.Candidate{candidate(0)}}
	b := &fakeAdapter{name: "social", rendering: true, listing: listing}
	records, err := e.Run(context.Background(), []source.Adapter{a, b})
	require.NoError(t, err)

	assert.Len(t, records, 1)
	assert.True(t, e.Degraded())
	assert.Equal(t, int32(1), r.starts.Load(), "start attempted once")
	assert.Zero(t, r.renders.Load())
	assert.Equal(t, 2, f.count(listing), "listings fetched over HTTP")
}

func TestRunRendersWhenBrowserUp(t *testing.T) {
	listing := "https://search.example.com/s?wd=x"
	f := newFakeFetcher(map[string]string{})
	e := newTestEngine(t, f)
	r := &fakeRenderer{}
	e.SetRenderer(r)

	portal := &fakeAdapter{name: "news", listing: "https://portal.example.com/"}
	search := &fakeAdapter{name: "search", rendering: true, listing: listing}
	_, err := e.Run(context.Background(), []source.Adapter{portal, search})
	require.NoError(t, err)

	assert.Equal(t, int32(1), r.renders.Load())
	assert.Zero(t, f.count(listing))
	assert.Equal(t, 1, f.count("https://portal.example.com/"))
	assert.Equal(t, int32(1), r.closes.Load())
	assert.False(t, e.Degraded())
}

func TestRunNeverStartsBrowserForPlainAdapters(t *testing.T) {
	e := newTestEngine(t, newFakeFetcher(nil))
	r := &fakeRenderer{}
	e.SetRenderer(r)

	_, err := e.Run(context.Background(), []source.Adapter{&fakeAdapter{name: "news"}})
	require.NoError(t, err)
	assert.Zero(t, r.starts.Load())
	assert.Zero(t, r.closes.Load())
}

func TestRunInterruptedKeepsPartialResults(t *testing.T) {
	bodies := make(map[string]string)
	var cands []source.Candidate
	for i := range 5 {
		bodies[candidate(i).URL] = articleBody
		cands = append(cands, candidate(i))
	}
	e := newTestEngine(t, newFakeFetcher(bodies))
	r := &fakeRenderer{}
	e.SetRenderer(r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := &fakeAdapter{name: "search", rendering: true, candidates: cands, onCollect: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	later := &fakeAdapter{name: "social", candidates: []source.Candidate{candidate(9)}}

	records, err := e.Run(ctx, []source.Adapter{a, later})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, records, 2)
	assert.Equal(t, int32(1), r.closes.Load(), "browser closed exactly once")
	assert.Equal(t, StateStopped, e.GetState())
}

func TestRunRecoversAdapterPanic(t *testing.T) {
	f := newFakeFetcher(map[string]string{candidate(0).URL: articleBody})
	e := newTestEngine(t, f)

	records, err := e.Run(context.Background(), []source.Adapter{
		&fakeAdapter{name: "broken", panics: true},
		&fakeAdapter{name: "news", candidates: []source.Candidate{candidate(0)}},
	})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRunTwiceFails(t *testing.T) {
	e := newTestEngine(t, newFakeFetcher(nil))
	_, err := e.Run(context.Background(), nil)
	require.NoError(t, err)
	_, err = e.Run(context.Background(), nil)
	assert.True(t, errors.Is(err, types.ErrEngineRunning))
}

func TestRunDatesAlwaysInWindowOrFallback(t *testing.T) {
	filler := strings.Repeat("山西文旅市场在国庆假期迎来客流高峰。", 7)
	stamps := []string{"2024年10月5日", "2025-10-11", "10月7日", "2025.10.1"}
	bodies := make(map[string]string)
	var cands []source.Candidate
	for i, stamp := range stamps {
		bodies[candidate(i).URL] = `<html><body><div class="content">` + filler + stamp + `</div></body></html>`
		cands = append(cands, candidate(i))
	}
	e := newTestEngine(t, newFakeFetcher(bodies))

	records, err := e.Run(context.Background(), []source.Adapter{&fakeAdapter{name: "news", candidates: cands}})
	require.NoError(t, err)
	require.Len(t, records, 4)

	got := make([]string, 0, len(records))
	for _, r := range records {
		got = append(got, r.Date)
	}
	assert.Equal(t, []string{"2025-10", "2025-10", "2025-10-07", "2025-10-01"}, got)
}

// --- Ledger Tests ---

func TestLedgerAdd(t *testing.T) {
	l := NewLedger(10)
	assert.True(t, l.Add("https://example.com/a"))
	assert.False(t, l.Add("https://example.com/a"))
	assert.False(t, l.Add("HTTPS://EXAMPLE.COM:443/a#frag"))
	assert.False(t, l.Add("https://example.com/a/"))
	assert.True(t, l.Add("https://example.com/b"))
	assert.Equal(t, 2, l.Len())
}

func TestLedgerKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://Example.COM/path/", "example.com/path"},
		{"http://example.com:80/", "example.com/"},
		{"https://example.com?b=2&a=1", "example.com/?a=1&b=2"},
		{"https://example.com/p#section", "example.com/p"},
		{"https://example.com:8443/p", "example.com:8443/p"},
		{"http://www.news.cn/travel/index.html", "www.news.cn/travel"},
		{"http://sx.people.com.cn/n2/2025/1003/c189130-1.html?spm=a.b&from=groupmessage", "sx.people.com.cn/n2/2025/1003/c189130-1.html"},
		{"https://news.163.com/25/1003/a.html?utm_source=wx&id=7", "news.163.com/25/1003/a.html?id=7"},
		{"https://weixin.sogou.com/link?url=abc&type=2&k=12&h=Q", "weixin.sogou.com/link?type=2&url=abc"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		if got := LedgerKey(tt.input); got != tt.expected {
			t.Errorf("LedgerKey(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLedgerFoldsRepeatSightings(t *testing.T) {
	l := NewLedger(4)
	assert.True(t, l.Add("http://www.news.cn/travel/20251003/a.html"))
	assert.False(t, l.Add("https://www.news.cn/travel/20251003/a.html"), "scheme change is the same article")
	assert.True(t, l.Add("https://weixin.sogou.com/link?url=abc&k=1&h=x"))
	assert.False(t, l.Add("https://weixin.sogou.com/link?url=abc&k=9&h=y"), "fresh sogou tokens are the same result")
	assert.True(t, l.Add("https://weixin.sogou.com/link?url=def&k=1&h=x"))
	assert.Equal(t, 3, l.Len())
}

func TestLedgerConcurrentAdd(t *testing.T) {
	l := NewLedger(0)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Add("https://example.com/same") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

// --- Benchmarks ---

func BenchmarkLedgerKey(b *testing.B) {
	for i := 0; i < b.N; i++ {
		LedgerKey("https://Example.COM:443/news/2025/10/03/article.html?utm=x&id=42#top")
	}
}
