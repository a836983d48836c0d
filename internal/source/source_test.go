package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/NewsHarvest/internal/config"
	"github.com/IshaanNene/NewsHarvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// fakePages serves canned HTML keyed by URL.
type fakePages struct {
	mu       sync.Mutex
	pages    map[string]string
	requests []PageRequest
}

func (f *fakePages) Page(_ context.Context, req PageRequest) (*types.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	body, ok := f.pages[req.URL]
	if !ok {
		return nil, fmt.Errorf("no page for %s", req.URL)
	}
	return types.NewRenderedResponse(req.URL, body, 0), nil
}

type nopPacer struct{ pauses int }

func (p *nopPacer) Pause(ctx context.Context, _ config.DelayRange) error {
	p.pauses++
	return ctx.Err()
}

// recorder accepts candidates the adapter accepts, mimicking the engine.
type recorder struct {
	adapter Adapter
	seen    []Candidate
	kept    []Candidate
	haltAt  int
}

func (r *recorder) collect(_ context.Context, c Candidate) Verdict {
	r.seen = append(r.seen, c)
	if r.haltAt > 0 && len(r.seen) >= r.haltAt {
		return Halt
	}
	if !r.adapter.Accepts(c) {
		return Rejected
	}
	r.kept = append(r.kept, c)
	return Recorded
}

func envFor(pages *fakePages, pacer *nopPacer) Env {
	return Env{Pages: pages, Pacer: pacer, Logger: testLogger}
}

func anchors(n int, title string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := range n {
		fmt.Fprintf(&b, `<a href="/news/%d.html">%s %d</a>`, i, title, i)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// --- Portal Tests ---

func testPortalConfig(maxInspected, maxAccepted int) config.PortalConfig {
	return config.PortalConfig{
		Enabled: true,
		Sites: []config.SiteConfig{{
			Name:          "测试文旅厅",
			URLs:          []string{"http://gov.test/"},
			MaxInspected:  maxInspected,
			MaxAccepted:   maxAccepted,
			MinTitleRunes: 10,
			Keywords:      []string{"旅游", "国庆"},
		}},
	}
}

func TestPortalAcceptedCap(t *testing.T) {
	pages := &fakePages{pages: map[string]string{
		"http://gov.test/": anchors(20, "山西国庆假期旅游市场火爆"),
	}}
	a := NewGovernmentPortal(testPortalConfig(100, 5), config.PacingConfig{})
	rec := &recorder{adapter: a}
	pacer := &nopPacer{}

	require.NoError(t, a.Discover(context.Background(), envFor(pages, pacer), rec.collect))
	assert.Len(t, rec.kept, 5)
	assert.Len(t, rec.seen, 5)
	assert.Equal(t, "http://gov.test/news/0.html", rec.kept[0].URL)
	assert.Equal(t, "测试文旅厅", rec.kept[0].Source)
	assert.Equal(t, 1, pacer.pauses)
}

func TestPortalInspectedCap(t *testing.T) {
	pages := &fakePages{pages: map[string]string{
		"http://gov.test/": anchors(20, "无关内容标题足够长度的链接"),
	}}
	a := NewGovernmentPortal(testPortalConfig(7, 50), config.PacingConfig{})
	rec := &recorder{adapter: a}

	require.NoError(t, a.Discover(context.Background(), envFor(pages, &nopPacer{}), rec.collect))
	assert.Len(t, rec.seen, 7)
	assert.Empty(t, rec.kept)
}

func TestPortalAccepts(t *testing.T) {
	a := NewNewsPortal(testPortalConfig(100, 30), config.PacingConfig{})

	tests := []struct {
		name  string
		c     Candidate
		want  bool
	}{
		{"keyword and length", Candidate{Title: "国庆假期山西旅游人数创新高", Source: "测试文旅厅"}, true},
		{"exactly ten runes", Candidate{Title: "一二三四五六七八旅游", Source: "测试文旅厅"}, true},
		{"too short", Candidate{Title: "国庆旅游", Source: "测试文旅厅"}, false},
		{"no keyword", Candidate{Title: "这是一个没有关键词的长标题", Source: "测试文旅厅"}, false},
		{"unknown site", Candidate{Title: "国庆假期山西旅游人数创新高", Source: "其他"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Accepts(tt.c))
		})
	}
}

func TestPortalSkipsUnusableLinks(t *testing.T) {
	html := `<html><body>
		<a href="#top">国庆假期山西旅游市场火爆一</a>
		<a href="javascript:void(0)">国庆假期山西旅游市场火爆二</a>
		<a href="mailto:a@b.c">国庆假期山西旅游市场火爆三</a>
		<a href="https://other.test/x.html#frag">国庆假期山西旅游市场火爆四</a>
	</body></html>`
	pages := &fakePages{pages: map[string]string{"http://gov.test/": html}}
	a := NewGovernmentPortal(testPortalConfig(100, 50), config.PacingConfig{})
	rec := &recorder{adapter: a}

	require.NoError(t, a.Discover(context.Background(), envFor(pages, &nopPacer{}), rec.collect))
	require.Len(t, rec.seen, 1)
	assert.Equal(t, "https://other.test/x.html", rec.seen[0].URL)
}

func TestPortalUnavailableListing(t *testing.T) {
	pages := &fakePages{pages: map[string]string{}}
	a := NewGovernmentPortal(testPortalConfig(100, 50), config.PacingConfig{})
	rec := &recorder{adapter: a}

	require.NoError(t, a.Discover(context.Background(), envFor(pages, &nopPacer{}), rec.collect))
	assert.Empty(t, rec.seen)
}

func TestPortalPassesEncoding(t *testing.T) {
	cfg := testPortalConfig(100, 50)
	cfg.Sites[0].Encoding = "gb2312"
	pages := &fakePages{pages: map[string]string{"http://gov.test/": anchors(1, "x")}}
	a := NewNewsPortal(cfg, config.PacingConfig{})

	require.NoError(t, a.Discover(context.Background(), envFor(pages, &nopPacer{}), (&recorder{adapter: a}).collect))
	require.Len(t, pages.requests, 1)
	assert.Equal(t, "gb2312", pages.requests[0].Encoding)
	assert.False(t, pages.requests[0].Render)
}

func TestPortalHalt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pages := &fakePages{pages: map[string]string{"http://gov.test/": anchors(20, "山西国庆假期旅游市场火爆")}}
	a := NewGovernmentPortal(testPortalConfig(100, 50), config.PacingConfig{})
	rec := &recorder{adapter: a, haltAt: 3}

	collect := func(ctx context.Context, c Candidate) Verdict {
		v := rec.collect(ctx, c)
		if v == Halt {
			cancel()
		}
		return v
	}
	err := a.Discover(ctx, envFor(pages, &nopPacer{}), collect)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, rec.seen, 3)
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "rejected", Rejected.String())
	assert.Equal(t, "recorded", Recorded.String())
	assert.Equal(t, "halt", Halt.String())
	assert.Equal(t, "unknown", Verdict(9).String())
}

// --- Search Tests ---

func testSearchConfig() config.SearchConfig {
	cfg := config.DefaultConfig().Sources.Search
	cfg.Endpoint = "https://search.test/s?rn=10"
	cfg.OwnDomain = "search.test"
	cfg.Pages = 2
	cfg.KeywordCount = 1
	return cfg
}

func TestSearchPageURL(t *testing.T) {
	a, err := NewSearchAdapter(testSearchConfig(), []string{"山西文旅", "平遥古城"}, config.PacingConfig{})
	require.NoError(t, err)

	u := a.PageURL("山西文旅", 2)
	assert.Contains(t, u, "rn=10")
	assert.Contains(t, u, "pn=20")
	assert.Contains(t, u, "wd=%E5%B1%B1%E8%A5%BF%E6%96%87%E6%97%85+2025%E5%B9%B410%E6%9C%88+%E6%96%B0%E9%97%BB")
}

func TestSearchDiscover(t *testing.T) {
	a, err := NewSearchAdapter(testSearchConfig(), []string{"山西文旅", "平遥古城"}, config.PacingConfig{})
	require.NoError(t, err)

	page0 := `<html><body>
		<div class="result c-container" mu="https://news.example.com/a.html">
			<h3><a href="https://search.test/link?url=abc">山西文旅国庆报道</a></h3>
			<div class="c-result-inner"><a href="/x">inner</a></div>
		</div>
		<div class="result c-container">
			<h3><a href="https://search.test/link?url=def">国庆 景区 客流</a></h3>
		</div>
		<div class="result c-container">
			<h3><a href="https://travel.example.com/b.html">无关标题</a></h3>
		</div>
	</body></html>`
	pages := &fakePages{pages: map[string]string{
		a.PageURL("山西文旅", 0): page0,
	}}
	pacer := &nopPacer{}
	rec := &recorder{adapter: a}

	require.NoError(t, a.Discover(context.Background(), envFor(pages, pacer), rec.collect))

	require.Len(t, rec.seen, 3, "nested blocks count once")
	assert.Equal(t, "https://news.example.com/a.html", rec.seen[0].URL)
	assert.Equal(t, "山西文旅国庆报道", rec.seen[0].Title)
	assert.Equal(t, "百度搜索", rec.seen[0].Source)

	require.Len(t, rec.kept, 1)
	assert.Equal(t, "https://news.example.com/a.html", rec.kept[0].URL)

	assert.Equal(t, 2, pacer.pauses)
	require.Len(t, pages.requests, 2)
	assert.True(t, pages.requests[0].Render)
}

func TestSearchTemplateFallback(t *testing.T) {
	a, err := NewSearchAdapter(testSearchConfig(), []string{"山西文旅"}, config.PacingConfig{})
	require.NoError(t, err)

	page := `<html><body>
		<div tpl="www_normal"><h3><a href="https://a.example.com/1">山西旅游新闻</a></h3></div>
		<div tpl="news"><a href="https://b.example.com/2">国庆景区</a></div>
	</body></html>`
	pages := &fakePages{pages: map[string]string{a.PageURL("山西文旅", 0): page}}
	rec := &recorder{adapter: a}

	require.NoError(t, a.Discover(context.Background(), envFor(pages, &nopPacer{}), rec.collect))
	require.Len(t, rec.kept, 2)
	assert.Equal(t, "https://a.example.com/1", rec.kept[0].URL)
	assert.Equal(t, "https://b.example.com/2", rec.kept[1].URL)
}

func TestSearchMaxResults(t *testing.T) {
	cfg := testSearchConfig()
	cfg.MaxResults = 2
	cfg.Pages = 1
	a, err := NewSearchAdapter(cfg, []string{"山西文旅"}, config.PacingConfig{})
	require.NoError(t, err)

	var b strings.Builder
	for i := range 5 {
		fmt.Fprintf(&b, `<div class="result"><h3><a href="https://n.example.com/%d">山西旅游 %d</a></h3></div>`, i, i)
	}
	pages := &fakePages{pages: map[string]string{a.PageURL("山西文旅", 0): b.String()}}
	rec := &recorder{adapter: a}

	require.NoError(t, a.Discover(context.Background(), envFor(pages, &nopPacer{}), rec.collect))
	assert.Len(t, rec.seen, 2)
}

func TestSearchAcceptsRejectsOwnDomain(t *testing.T) {
	a, err := NewSearchAdapter(testSearchConfig(), nil, config.PacingConfig{})
	require.NoError(t, err)

	assert.False(t, a.Accepts(Candidate{Title: "山西旅游", URL: "https://search.test/link?url=1"}))
	assert.False(t, a.Accepts(Candidate{Title: "山西旅游", URL: "https://www.search.test/x"}))
	assert.True(t, a.Accepts(Candidate{Title: "山西旅游", URL: "https://mysearch.test.example.com/x"}))
	assert.False(t, a.Accepts(Candidate{Title: "体育新闻", URL: "https://news.example.com/x"}))
}

// --- Social Tests ---

func testSocialConfig() config.SocialConfig {
	cfg := config.DefaultConfig().Sources.Social
	cfg.Endpoint = "https://proxy.test/weixin?type=2"
	cfg.BaseURL = "https://proxy.test"
	cfg.KeywordCount = 2
	return cfg
}

func TestSocialDiscover(t *testing.T) {
	a, err := NewSocialAdapter(testSocialConfig(), []string{"山西文旅", "五台山", "晋祠"}, config.PacingConfig{})
	require.NoError(t, err)

	page := `<html><body>
		<div class="txt-box">
			<h3><a href="/link?url=abc">  五台山 国庆
				游客</a></h3>
			<p class="txt-info">十月一日五台山迎来客流高峰</p>
		</div>
		<div class="txt-box">
			<h3><a href="//mp.weixin.qq.com/s/xyz">山西文旅推介</a></h3>
		</div>
		<div class="txt-box"><h3>no link</h3></div>
	</body></html>`
	pages := &fakePages{pages: map[string]string{
		a.QueryURL("山西文旅"): page,
	}}
	pacer := &nopPacer{}
	rec := &recorder{adapter: a}

	require.NoError(t, a.Discover(context.Background(), envFor(pages, pacer), rec.collect))

	require.Len(t, rec.kept, 2)
	assert.Equal(t, "https://proxy.test/link?url=abc", rec.kept[0].URL)
	assert.Equal(t, "五台山 国庆 游客", rec.kept[0].Title)
	assert.Equal(t, "十月一日五台山迎来客流高峰", rec.kept[0].Snippet)
	assert.Equal(t, "微信公众号", rec.kept[0].Source)
	assert.Equal(t, "https://mp.weixin.qq.com/s/xyz", rec.kept[1].URL)
	assert.Empty(t, rec.kept[1].Snippet)

	assert.Equal(t, 2, pacer.pauses, "one pause per keyword")
	require.Len(t, pages.requests, 2)
	assert.Contains(t, pages.requests[0].URL, "query=%E5%B1%B1%E8%A5%BF%E6%96%87%E6%97%85+10%E6%9C%88")
}

func TestSocialAcceptsKeywords(t *testing.T) {
	cfg := testSocialConfig()
	a, err := NewSocialAdapter(cfg, nil, config.PacingConfig{})
	require.NoError(t, err)
	assert.True(t, a.Accepts(Candidate{Title: "任何标题"}))
	assert.False(t, a.Accepts(Candidate{}))

	cfg.Keywords = []string{"国庆"}
	a, err = NewSocialAdapter(cfg, nil, config.PacingConfig{})
	require.NoError(t, err)
	assert.False(t, a.Accepts(Candidate{Title: "任何标题"}))
	assert.True(t, a.Accepts(Candidate{Title: "标题", Snippet: "国庆出游"}))
}

func TestSocialCancelledBeforeStart(t *testing.T) {
	a, err := NewSocialAdapter(testSocialConfig(), []string{"山西文旅"}, config.PacingConfig{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pages := &fakePages{pages: map[string]string{}}
	err = a.Discover(ctx, envFor(pages, &nopPacer{}), (&recorder{adapter: a}).collect)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, pages.requests)
}

// --- Registry Tests ---

func TestDefaultRegistryOrder(t *testing.T) {
	r, err := DefaultRegistry(config.DefaultConfig())
	require.NoError(t, err)

	var names []string
	for _, a := range r.All() {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{"government", "news", "search", "social"}, names)

	got, ok := r.Get("search")
	require.True(t, ok)
	assert.True(t, got.Rendering())
}

func TestDefaultRegistryDisabledFamilies(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sources.News.Enabled = false
	cfg.Sources.Social.Enabled = false

	r, err := DefaultRegistry(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	_, ok := r.Get("news")
	assert.False(t, ok)
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewNewsPortal(config.PortalConfig{}, config.PacingConfig{})))
	assert.Error(t, r.Register(NewNewsPortal(config.PortalConfig{}, config.PacingConfig{})))
}
