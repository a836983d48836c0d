package source

import (
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/NewsHarvest/internal/config"
	"github.com/IshaanNene/NewsHarvest/internal/parser"
)

// PortalAdapter harvests anchors from the front pages of government and
// news portals. Each entry URL has its own inspected/accepted caps.
type PortalAdapter struct {
	name    string
	sites   []config.SiteConfig
	byLabel map[string]config.SiteConfig
	pause   config.DelayRange
}

// NewGovernmentPortal creates the government site family.
func NewGovernmentPortal(cfg config.PortalConfig, pacing config.PacingConfig) *PortalAdapter {
	return newPortal("government", cfg, pacing)
}

// NewNewsPortal creates the news portal family.
func NewNewsPortal(cfg config.PortalConfig, pacing config.PacingConfig) *PortalAdapter {
	return newPortal("news", cfg, pacing)
}

func newPortal(name string, cfg config.PortalConfig, pacing config.PacingConfig) *PortalAdapter {
	a := &PortalAdapter{
		name:    name,
		sites:   cfg.Sites,
		byLabel: make(map[string]config.SiteConfig, len(cfg.Sites)),
		pause:   pacing.Listing,
	}
	for _, site := range cfg.Sites {
		a.byLabel[site.Name] = site
	}
	return a
}

func (a *PortalAdapter) Name() string    { return a.name }
func (a *PortalAdapter) Rendering() bool { return false }

// Accepts requires a long enough title that mentions a site keyword.
func (a *PortalAdapter) Accepts(c Candidate) bool {
	site, ok := a.byLabel[c.Source]
	if !ok {
		return false
	}
	return parser.RuneLen(c.Title) >= site.MinTitleRunes && containsAny(c.Title, site.Keywords)
}

// Discover visits every entry URL of every site in order.
func (a *PortalAdapter) Discover(ctx context.Context, env Env, collect Collector) error {
	for _, site := range a.sites {
		for _, entry := range site.URLs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := a.harvest(ctx, env, collect, site, entry); err != nil {
				return err
			}
			if err := env.Pacer.Pause(ctx, a.pause); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *PortalAdapter) harvest(ctx context.Context, env Env, collect Collector, site config.SiteConfig, entry string) error {
	logger := env.Logger.With("site", site.Name, "url", entry)
	logger.Info("fetching listing")

	resp, err := env.Pages.Page(ctx, PageRequest{URL: entry, Encoding: site.Encoding})
	if err != nil {
		logger.Warn("listing unavailable", "error", err)
		return nil
	}
	doc, err := resp.Document()
	if err != nil {
		logger.Warn("listing unparsable", "error", err)
		return nil
	}
	base, err := url.Parse(resp.FinalURL)
	if err != nil {
		base, _ = url.Parse(entry)
	}

	var inspected, accepted int
	halted := false
	verdicts := make(map[string]int, 3)
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if inspected >= site.MaxInspected {
			return false
		}
		inspected++

		href, _ := s.Attr("href")
		link, ok := parser.ResolveLink(base, href)
		if !ok {
			return true
		}

		v := collect(ctx, Candidate{Title: titleOf(s.Text()), URL: link, Source: site.Name})
		verdicts[v.String()]++
		switch v {
		case Recorded:
			accepted++
			return accepted < site.MaxAccepted
		case Halt:
			halted = true
			return false
		}
		return true
	})

	logger.Info("listing harvested", "inspected", inspected, "accepted", accepted, "verdicts", verdicts)
	if halted {
		return ctx.Err()
	}
	return nil
}
