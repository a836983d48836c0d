package source

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/NewsHarvest/internal/config"
	"github.com/IshaanNene/NewsHarvest/internal/parser"
)

var resultClassPattern = regexp.MustCompile(`result|c-container`)

// templateXPath is the fallback for result pages without result classes.
const templateXPath = "//div[@tpl]"

// SearchAdapter pages through a web search engine for each keyword.
type SearchAdapter struct {
	cfg      config.SearchConfig
	keywords []string
	endpoint *url.URL
	pause    config.DelayRange
}

// NewSearchAdapter uses the first cfg.KeywordCount topic keywords.
func NewSearchAdapter(cfg config.SearchConfig, keywords []string, pacing config.PacingConfig) (*SearchAdapter, error) {
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("search endpoint: %w", err)
	}
	return &SearchAdapter{
		cfg:      cfg,
		keywords: firstN(keywords, cfg.KeywordCount),
		endpoint: endpoint,
		pause:    pacing.SearchPage,
	}, nil
}

func (a *SearchAdapter) Name() string    { return "search" }
func (a *SearchAdapter) Rendering() bool { return a.cfg.Render }

// Accepts rejects links back into the engine itself and requires a
// relevance keyword in the title.
func (a *SearchAdapter) Accepts(c Candidate) bool {
	if a.isOwnDomain(c.URL) {
		return false
	}
	return containsAny(c.Title, a.cfg.Keywords)
}

func (a *SearchAdapter) isOwnDomain(rawURL string) bool {
	if a.cfg.OwnDomain == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := strings.ToLower(u.Hostname())
	own := strings.ToLower(a.cfg.OwnDomain)
	return host == own || strings.HasSuffix(host, "."+own)
}

// PageURL builds the result page URL for a keyword and zero-based page.
func (a *SearchAdapter) PageURL(keyword string, page int) string {
	u := *a.endpoint
	q := u.Query()
	q.Set(a.cfg.QueryParam, keyword+a.cfg.QuerySuffix)
	if a.cfg.PageParam != "" {
		q.Set(a.cfg.PageParam, strconv.Itoa(page*a.cfg.PageSize))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Discover requests every result page and pauses between them.
func (a *SearchAdapter) Discover(ctx context.Context, env Env, collect Collector) error {
	for _, kw := range a.keywords {
		for page := range a.cfg.Pages {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := a.harvest(ctx, env, collect, kw, page); err != nil {
				return err
			}
			if err := env.Pacer.Pause(ctx, a.pause); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *SearchAdapter) harvest(ctx context.Context, env Env, collect Collector, keyword string, page int) error {
	pageURL := a.PageURL(keyword, page)
	logger := env.Logger.With("keyword", keyword, "page", page+1)

	resp, err := env.Pages.Page(ctx, PageRequest{URL: pageURL, Render: a.cfg.Render})
	if err != nil {
		logger.Warn("result page unavailable", "error", err)
		return nil
	}
	doc, err := resp.Document()
	if err != nil {
		logger.Warn("result page unparsable", "error", err)
		return nil
	}
	base, _ := url.Parse(resp.FinalURL)

	blocks := a.resultBlocks(doc)
	if blocks.Length() > a.cfg.MaxResults {
		blocks = blocks.Slice(0, a.cfg.MaxResults)
	}

	found := 0
	for i := range blocks.Length() {
		title, link := a.titleAndLink(blocks.Eq(i), base)
		if link == "" {
			continue
		}
		found++
		if collect(ctx, Candidate{Title: title, URL: link, Source: a.cfg.Name}) == Halt {
			return ctx.Err()
		}
	}
	logger.Info("result page harvested", "blocks", blocks.Length(), "links", found)
	return nil
}

// resultBlocks returns the outermost result containers in document order.
func (a *SearchAdapter) resultBlocks(doc *goquery.Document) *goquery.Selection {
	matched := doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return parser.HasClassMatching(s, resultClassPattern)
	})
	if matched.Length() == 0 {
		nodes, err := parser.QueryAll(doc, templateXPath)
		if err != nil || len(nodes) == 0 {
			return matched
		}
		matched = doc.FindNodes(nodes...)
	}

	set := make(map[*html.Node]bool, matched.Length())
	for _, n := range matched.Nodes {
		set[n] = true
	}
	return matched.FilterFunction(func(_ int, s *goquery.Selection) bool {
		for p := s.Nodes[0].Parent; p != nil; p = p.Parent {
			if set[p] {
				return false
			}
		}
		return true
	})
}

// titleAndLink reads the heading and its link. The block's target
// attribute, when present, carries the real destination instead of the
// engine's redirect URL.
func (a *SearchAdapter) titleAndLink(block *goquery.Selection, base *url.URL) (string, string) {
	heading := block.Find("h3").First()
	anchor := heading.Find("a").First()
	if heading.Length() == 0 {
		heading = block.Find("a").First()
		anchor = heading
	}
	if heading.Length() == 0 {
		return "", ""
	}
	title := titleOf(heading.Text())

	if a.cfg.TargetAttr != "" {
		if target, ok := block.Attr(a.cfg.TargetAttr); ok {
			if link, ok := parser.ResolveLink(base, target); ok {
				return title, link
			}
		}
	}

	href, ok := anchor.Attr("href")
	if !ok {
		return title, ""
	}
	link, ok := parser.ResolveLink(base, href)
	if !ok {
		return title, ""
	}
	return title, link
}
