package source

import (
	"context"
	"fmt"
	"net/url"

	"github.com/IshaanNene/NewsHarvest/internal/config"
	"github.com/IshaanNene/NewsHarvest/internal/parser"
)

// SocialAdapter queries a search proxy that indexes social media articles
// (WeChat official accounts via Sogou). Result links are proxy-relative
// and are made absolute before they reach the collector.
type SocialAdapter struct {
	cfg      config.SocialConfig
	keywords []string
	endpoint *url.URL
	base     *url.URL
	pause    config.DelayRange
}

// NewSocialAdapter uses the first cfg.KeywordCount topic keywords.
func NewSocialAdapter(cfg config.SocialConfig, keywords []string, pacing config.PacingConfig) (*SocialAdapter, error) {
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("social endpoint: %w", err)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("social base url: %w", err)
	}
	return &SocialAdapter{
		cfg:      cfg,
		keywords: firstN(keywords, cfg.KeywordCount),
		endpoint: endpoint,
		base:     base,
		pause:    pacing.SearchPage,
	}, nil
}

func (a *SocialAdapter) Name() string    { return "social" }
func (a *SocialAdapter) Rendering() bool { return a.cfg.Render }

// Accepts every titled result unless relevance keywords are configured.
func (a *SocialAdapter) Accepts(c Candidate) bool {
	if c.Title == "" {
		return false
	}
	return len(a.cfg.Keywords) == 0 || containsAny(c.Title+c.Snippet, a.cfg.Keywords)
}

// QueryURL builds the proxy search URL for a keyword.
func (a *SocialAdapter) QueryURL(keyword string) string {
	u := *a.endpoint
	q := u.Query()
	q.Set(a.cfg.QueryParam, keyword+a.cfg.QuerySuffix)
	u.RawQuery = q.Encode()
	return u.String()
}

// Normalize resolves root-relative, relative and protocol-relative result
// links against the proxy's base URL.
func (a *SocialAdapter) Normalize(href string) (string, bool) {
	return parser.ResolveLink(a.base, href)
}

// Discover issues one search per keyword.
func (a *SocialAdapter) Discover(ctx context.Context, env Env, collect Collector) error {
	for _, kw := range a.keywords {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.harvest(ctx, env, collect, kw); err != nil {
			return err
		}
		if err := env.Pacer.Pause(ctx, a.pause); err != nil {
			return err
		}
	}
	return nil
}

func (a *SocialAdapter) harvest(ctx context.Context, env Env, collect Collector, keyword string) error {
	logger := env.Logger.With("keyword", keyword)

	resp, err := env.Pages.Page(ctx, PageRequest{URL: a.QueryURL(keyword), Render: a.cfg.Render})
	if err != nil {
		logger.Warn("search proxy unavailable", "error", err)
		return nil
	}
	doc, err := resp.Document()
	if err != nil {
		logger.Warn("search proxy page unparsable", "error", err)
		return nil
	}

	blocks := doc.Find("div.txt-box")
	if blocks.Length() > a.cfg.MaxResults {
		blocks = blocks.Slice(0, a.cfg.MaxResults)
	}

	found := 0
	for i := range blocks.Length() {
		block := blocks.Eq(i)
		heading := block.Find("h3").First()
		anchor := heading.Find("a").First()
		href, ok := anchor.Attr("href")
		if !ok {
			continue
		}
		link, ok := a.Normalize(href)
		if !ok {
			continue
		}
		found++

		c := Candidate{
			Title:   titleOf(heading.Text()),
			URL:     link,
			Snippet: titleOf(block.Find("p.txt-info").First().Text()),
			Source:  a.cfg.Name,
		}
		if collect(ctx, c) == Halt {
			return ctx.Err()
		}
	}
	logger.Info("search proxy harvested", "blocks", blocks.Length(), "links", found)
	return nil
}
