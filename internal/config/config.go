package config

import (
	"fmt"
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// DateLayout is the canonical record date layout.
const DateLayout = "2006-01-02"

// Config is the root configuration for NewsHarvest. It is built once per
// run and treated as immutable afterwards.
type Config struct {
	Crawl   CrawlConfig   `mapstructure:"crawl"   yaml:"crawl"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Pacing  PacingConfig  `mapstructure:"pacing"  yaml:"pacing"`
	Sources SourcesConfig `mapstructure:"sources" yaml:"sources"`
	Extract ExtractConfig `mapstructure:"extract" yaml:"extract"`
	Output  OutputConfig  `mapstructure:"output"  yaml:"output"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// CrawlConfig holds the topic keywords and the target date window.
type CrawlConfig struct {
	Keywords []string `mapstructure:"keywords" yaml:"keywords"`
	Window   Window   `mapstructure:"window"   yaml:"window"`
}

// Window is the inclusive date range records must fall within to receive
// an exact date. Both ends use DateLayout.
type Window struct {
	Start string `mapstructure:"start" yaml:"start"`
	End   string `mapstructure:"end"   yaml:"end"`
}

// Bounds parses both ends of the window.
func (w Window) Bounds() (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, w.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("window start %q: %w", w.Start, err)
	}
	end, err := time.Parse(DateLayout, w.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("window end %q: %w", w.End, err)
	}
	return start, end, nil
}

// Fallback is the coarse date used when no exact day can be derived.
func (w Window) Fallback() string {
	if len(w.Start) >= 7 {
		return w.Start[:7]
	}
	return w.Start
}

// DelayRange is a uniform random pause in [Min, Max].
type DelayRange struct {
	Min time.Duration `mapstructure:"min" yaml:"min"`
	Max time.Duration `mapstructure:"max" yaml:"max"`
}

// FetcherConfig controls the HTTP fetch client.
type FetcherConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"       yaml:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"  yaml:"max_attempts"`
	MaxBodySize int64         `mapstructure:"max_body_size" yaml:"max_body_size"`
	TLSInsecure bool          `mapstructure:"tls_insecure"  yaml:"tls_insecure"`
	UserAgents  []string      `mapstructure:"user_agents"   yaml:"user_agents"`

	// Proxies are rotated per request; empty means direct or
	// HTTP_PROXY from the environment.
	Proxies       []string `mapstructure:"proxies"        yaml:"proxies,omitempty"`
	ProxyRotation string   `mapstructure:"proxy_rotation" yaml:"proxy_rotation"`
}

// BrowserConfig controls the headless browser used for rendering.
type BrowserConfig struct {
	Enabled     bool          `mapstructure:"enabled"      yaml:"enabled"`
	Bin         string        `mapstructure:"bin"          yaml:"bin"`
	Headless    bool          `mapstructure:"headless"     yaml:"headless"`
	PageTimeout time.Duration `mapstructure:"page_timeout" yaml:"page_timeout"`
	Settle      DelayRange    `mapstructure:"settle"       yaml:"settle"`
}

// PacingConfig holds the randomized pauses between network calls.
type PacingConfig struct {
	Candidate   DelayRange `mapstructure:"candidate"    yaml:"candidate"`
	Listing     DelayRange `mapstructure:"listing"      yaml:"listing"`
	SearchPage  DelayRange `mapstructure:"search_page"  yaml:"search_page"`
	Retry       DelayRange `mapstructure:"retry"        yaml:"retry"`
	RateLimited DelayRange `mapstructure:"rate_limited" yaml:"rate_limited"`
}

// SourcesConfig lists every source family in phase order.
type SourcesConfig struct {
	Government PortalConfig `mapstructure:"government" yaml:"government"`
	News       PortalConfig `mapstructure:"news"       yaml:"news"`
	Search     SearchConfig `mapstructure:"search"     yaml:"search"`
	Social     SocialConfig `mapstructure:"social"     yaml:"social"`
}

// PortalConfig is a family of listing-page sites.
type PortalConfig struct {
	Enabled bool         `mapstructure:"enabled" yaml:"enabled"`
	Sites   []SiteConfig `mapstructure:"sites"   yaml:"sites"`
}

// SiteConfig describes one crawl target.
type SiteConfig struct {
	Name          string   `mapstructure:"name"            yaml:"name"`
	URLs          []string `mapstructure:"urls"            yaml:"urls"`
	Encoding      string   `mapstructure:"encoding"        yaml:"encoding,omitempty"`
	MaxInspected  int      `mapstructure:"max_inspected"   yaml:"max_inspected"`
	MaxAccepted   int      `mapstructure:"max_accepted"    yaml:"max_accepted"`
	MinTitleRunes int      `mapstructure:"min_title_runes" yaml:"min_title_runes"`
	Keywords      []string `mapstructure:"keywords"        yaml:"keywords"`
}

// SearchConfig drives the paginated search engine source.
type SearchConfig struct {
	Enabled      bool     `mapstructure:"enabled"       yaml:"enabled"`
	Name         string   `mapstructure:"name"          yaml:"name"`
	Endpoint     string   `mapstructure:"endpoint"      yaml:"endpoint"`
	QueryParam   string   `mapstructure:"query_param"   yaml:"query_param"`
	QuerySuffix  string   `mapstructure:"query_suffix"  yaml:"query_suffix"`
	PageParam    string   `mapstructure:"page_param"    yaml:"page_param"`
	PageSize     int      `mapstructure:"page_size"     yaml:"page_size"`
	Pages        int      `mapstructure:"pages"         yaml:"pages"`
	KeywordCount int      `mapstructure:"keyword_count" yaml:"keyword_count"`
	MaxResults   int      `mapstructure:"max_results"   yaml:"max_results"`
	OwnDomain    string   `mapstructure:"own_domain"    yaml:"own_domain"`
	TargetAttr   string   `mapstructure:"target_attr"   yaml:"target_attr"`
	Keywords     []string `mapstructure:"keywords"      yaml:"keywords"`
	Render       bool     `mapstructure:"render"        yaml:"render"`
}

// SocialConfig drives the social search proxy source.
type SocialConfig struct {
	Enabled      bool     `mapstructure:"enabled"       yaml:"enabled"`
	Name         string   `mapstructure:"name"          yaml:"name"`
	Endpoint     string   `mapstructure:"endpoint"      yaml:"endpoint"`
	BaseURL      string   `mapstructure:"base_url"      yaml:"base_url"`
	QueryParam   string   `mapstructure:"query_param"   yaml:"query_param"`
	QuerySuffix  string   `mapstructure:"query_suffix"  yaml:"query_suffix"`
	KeywordCount int      `mapstructure:"keyword_count" yaml:"keyword_count"`
	MaxResults   int      `mapstructure:"max_results"   yaml:"max_results"`
	Keywords     []string `mapstructure:"keywords"      yaml:"keywords"`
	Render       bool     `mapstructure:"render"        yaml:"render"`
}

// ExtractConfig controls body extraction thresholds.
type ExtractConfig struct {
	MinContentRunes int `mapstructure:"min_content_runes" yaml:"min_content_runes"`
	MaxContentRunes int `mapstructure:"max_content_runes" yaml:"max_content_runes"`
}

// OutputConfig controls where and how records are written.
type OutputConfig struct {
	Dir    string   `mapstructure:"dir"    yaml:"dir"`
	File   string   `mapstructure:"file"   yaml:"file"`
	Format string   `mapstructure:"format" yaml:"format"`
	Header []string `mapstructure:"header" yaml:"header"`
	Report string   `mapstructure:"report" yaml:"report,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns the compiled-in crawl: Shanxi culture and tourism
// news for the 2025 National Day holiday.
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			Keywords: []string{
				"山西文旅", "山西旅游", "山西景区", "平遥古城", "五台山",
				"云冈石窟", "壶口瀑布", "晋祠", "山西文化", "山西国庆",
			},
			Window: Window{Start: "2025-10-01", End: "2025-10-10"},
		},
		Fetcher: FetcherConfig{
			Timeout:       15 * time.Second,
			MaxAttempts:   3,
			MaxBodySize:   10 * 1024 * 1024, // 10MB
			ProxyRotation: "round_robin",
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Browser: BrowserConfig{
			Enabled:     true,
			Headless:    true,
			PageTimeout: 30 * time.Second,
			Settle:      DelayRange{Min: 2 * time.Second, Max: 4 * time.Second},
		},
		Pacing: PacingConfig{
			Candidate:   DelayRange{Min: 1 * time.Second, Max: 2 * time.Second},
			Listing:     DelayRange{Min: 2 * time.Second, Max: 4 * time.Second},
			SearchPage:  DelayRange{Min: 3 * time.Second, Max: 5 * time.Second},
			Retry:       DelayRange{Min: 2 * time.Second, Max: 4 * time.Second},
			RateLimited: DelayRange{Min: 5 * time.Second, Max: 10 * time.Second},
		},
		Sources: SourcesConfig{
			Government: PortalConfig{
				Enabled: true,
				Sites: []SiteConfig{
					{
						Name:          "山西省文化和旅游厅",
						URLs:          []string{"http://wlt.shanxi.gov.cn/"},
						MaxInspected:  100,
						MaxAccepted:   50,
						MinTitleRunes: 10,
						Keywords:      []string{"旅游", "文旅", "景区", "国庆", "假期", "10月", "十月"},
					},
					{
						Name:          "太原市文化和旅游局",
						URLs:          []string{"http://wlj.taiyuan.gov.cn/"},
						MaxInspected:  100,
						MaxAccepted:   50,
						MinTitleRunes: 10,
						Keywords:      []string{"旅游", "文旅", "景区", "国庆", "假期", "10月", "十月"},
					},
				},
			},
			News: PortalConfig{
				Enabled: true,
				Sites: []SiteConfig{
					{
						Name:          "新华网",
						URLs:          []string{"http://www.sx.xinhuanet.com/", "http://www.news.cn/travel/"},
						MaxInspected:  100,
						MaxAccepted:   30,
						MinTitleRunes: 10,
						Keywords:      []string{"山西", "旅游", "文旅", "景区", "国庆", "10月"},
					},
					{
						Name:          "人民网山西",
						URLs:          []string{"http://sx.people.com.cn/"},
						Encoding:      "gb2312",
						MaxInspected:  100,
						MaxAccepted:   30,
						MinTitleRunes: 10,
						Keywords:      []string{"旅游", "文旅", "景区", "国庆", "山西"},
					},
					{
						Name:          "网易新闻",
						URLs:          []string{"https://news.163.com/travel/"},
						MaxInspected:  100,
						MaxAccepted:   30,
						MinTitleRunes: 10,
						Keywords:      []string{"山西", "旅游", "景区"},
					},
				},
			},
			Search: SearchConfig{
				Enabled:      true,
				Name:         "百度搜索",
				Endpoint:     "https://www.baidu.com/s?rn=10",
				QueryParam:   "wd",
				QuerySuffix:  " 2025年10月 新闻",
				PageParam:    "pn",
				PageSize:     10,
				Pages:        10,
				KeywordCount: 3,
				MaxResults:   10,
				OwnDomain:    "baidu.com",
				TargetAttr:   "mu",
				Keywords:     []string{"10月", "国庆", "十月", "文旅", "旅游", "景区", "山西"},
				Render:       true,
			},
			Social: SocialConfig{
				Enabled:      true,
				Name:         "微信公众号",
				Endpoint:     "https://weixin.sogou.com/weixin?type=2",
				BaseURL:      "https://weixin.sogou.com",
				QueryParam:   "query",
				QuerySuffix:  " 10月",
				KeywordCount: 8,
				MaxResults:   50,
				Render:       true,
			},
		},
		Extract: ExtractConfig{
			MinContentRunes: 100,
			MaxContentRunes: 1000,
		},
		Output: OutputConfig{
			Dir:    ".",
			File:   "山西文旅新闻_2025年10月1-10日.csv",
			Format: "csv",
			Header: []string{"标题", "日期", "链接", "内容", "来源"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
