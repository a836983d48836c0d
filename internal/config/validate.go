package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if len(cfg.Crawl.Keywords) == 0 {
		return fmt.Errorf("crawl.keywords must not be empty")
	}
	start, end, err := cfg.Crawl.Window.Bounds()
	if err != nil {
		return fmt.Errorf("crawl.window: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("crawl.window.end must not be before start, got %s..%s",
			cfg.Crawl.Window.Start, cfg.Crawl.Window.End)
	}

	if cfg.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be > 0")
	}
	if cfg.Fetcher.MaxAttempts < 1 {
		return fmt.Errorf("fetcher.max_attempts must be >= 1, got %d", cfg.Fetcher.MaxAttempts)
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if len(cfg.Fetcher.UserAgents) == 0 {
		return fmt.Errorf("fetcher.user_agents must not be empty")
	}
	if cfg.Fetcher.ProxyRotation != "round_robin" && cfg.Fetcher.ProxyRotation != "random" {
		return fmt.Errorf("fetcher.proxy_rotation must be 'round_robin' or 'random', got %q", cfg.Fetcher.ProxyRotation)
	}
	for _, p := range cfg.Fetcher.Proxies {
		u, err := url.Parse(p)
		if err != nil || u.Host == "" {
			return fmt.Errorf("fetcher.proxies: invalid proxy URL %q", p)
		}
	}

	if cfg.Browser.PageTimeout <= 0 {
		return fmt.Errorf("browser.page_timeout must be > 0")
	}

	delays := map[string]DelayRange{
		"browser.settle":      cfg.Browser.Settle,
		"pacing.candidate":    cfg.Pacing.Candidate,
		"pacing.listing":      cfg.Pacing.Listing,
		"pacing.search_page":  cfg.Pacing.SearchPage,
		"pacing.retry":        cfg.Pacing.Retry,
		"pacing.rate_limited": cfg.Pacing.RateLimited,
	}
	for name, d := range delays {
		if d.Min < 0 || d.Max < d.Min {
			return fmt.Errorf("%s must satisfy 0 <= min <= max, got %s..%s", name, d.Min, d.Max)
		}
	}

	for _, family := range []struct {
		name   string
		portal PortalConfig
	}{
		{"sources.government", cfg.Sources.Government},
		{"sources.news", cfg.Sources.News},
	} {
		names := make(map[string]bool, len(family.portal.Sites))
		for i, site := range family.portal.Sites {
			if err := validateSite(site); err != nil {
				return fmt.Errorf("%s.sites[%d]: %w", family.name, i, err)
			}
			if names[site.Name] {
				return fmt.Errorf("%s.sites[%d]: duplicate site name %q", family.name, i, site.Name)
			}
			names[site.Name] = true
		}
	}

	if s := cfg.Sources.Search; s.Enabled {
		if err := ValidateURL(s.Endpoint); err != nil {
			return fmt.Errorf("sources.search.endpoint: %w", err)
		}
		if s.Pages < 1 {
			return fmt.Errorf("sources.search.pages must be >= 1, got %d", s.Pages)
		}
		if s.KeywordCount < 1 {
			return fmt.Errorf("sources.search.keyword_count must be >= 1, got %d", s.KeywordCount)
		}
		if s.PageSize < 1 {
			return fmt.Errorf("sources.search.page_size must be >= 1, got %d", s.PageSize)
		}
		if s.MaxResults < 1 {
			return fmt.Errorf("sources.search.max_results must be >= 1, got %d", s.MaxResults)
		}
	}
	if s := cfg.Sources.Social; s.Enabled {
		if err := ValidateURL(s.Endpoint); err != nil {
			return fmt.Errorf("sources.social.endpoint: %w", err)
		}
		if err := ValidateURL(s.BaseURL); err != nil {
			return fmt.Errorf("sources.social.base_url: %w", err)
		}
		if s.KeywordCount < 1 {
			return fmt.Errorf("sources.social.keyword_count must be >= 1, got %d", s.KeywordCount)
		}
		if s.MaxResults < 1 {
			return fmt.Errorf("sources.social.max_results must be >= 1, got %d", s.MaxResults)
		}
	}

	if cfg.Extract.MinContentRunes < 0 {
		return fmt.Errorf("extract.min_content_runes must be >= 0, got %d", cfg.Extract.MinContentRunes)
	}
	if cfg.Extract.MaxContentRunes <= cfg.Extract.MinContentRunes {
		return fmt.Errorf("extract.max_content_runes must be > min_content_runes, got %d", cfg.Extract.MaxContentRunes)
	}

	validFormats := map[string]bool{"csv": true, "json": true, "jsonl": true}
	if !validFormats[cfg.Output.Format] {
		return fmt.Errorf("output.format %q is not supported (valid: csv, json, jsonl)", cfg.Output.Format)
	}
	if len(cfg.Output.Header) != 5 {
		return fmt.Errorf("output.header must have 5 labels, got %d", len(cfg.Output.Header))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

func validateSite(site SiteConfig) error {
	if site.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if len(site.URLs) == 0 {
		return fmt.Errorf("site %q must have at least one url", site.Name)
	}
	for _, u := range site.URLs {
		if err := ValidateURL(u); err != nil {
			return fmt.Errorf("site %q: %w", site.Name, err)
		}
	}
	if site.MaxInspected < 1 || site.MaxAccepted < 1 {
		return fmt.Errorf("site %q caps must be >= 1, got inspected=%d accepted=%d",
			site.Name, site.MaxInspected, site.MaxAccepted)
	}
	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
