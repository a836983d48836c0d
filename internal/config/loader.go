package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppName names the config file and the XDG config directory.
const AppName = "newsharvest"

// Load reads configuration from .env, environment, and an optional file.
// Priority (highest to lowest): env vars > config file > compiled-in defaults.
// CLI flags are applied by the caller on top of the result.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(AppName)
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// A list from the file replaces the default list outright instead of
	// being merged into it element by element.
	zeroFields := viper.DecoderConfigOption(func(dc *mapstructure.DecoderConfig) {
		dc.ZeroFields = true
	})
	if err := v.Unmarshal(cfg, zeroFields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers scalar defaults so env overrides resolve. Site lists
// stay on the struct; a config file that sets one replaces it whole.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("crawl.keywords", cfg.Crawl.Keywords)
	v.SetDefault("crawl.window.start", cfg.Crawl.Window.Start)
	v.SetDefault("crawl.window.end", cfg.Crawl.Window.End)

	v.SetDefault("fetcher.timeout", cfg.Fetcher.Timeout)
	v.SetDefault("fetcher.max_attempts", cfg.Fetcher.MaxAttempts)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)
	v.SetDefault("fetcher.proxies", cfg.Fetcher.Proxies)
	v.SetDefault("fetcher.proxy_rotation", cfg.Fetcher.ProxyRotation)

	v.SetDefault("browser.enabled", cfg.Browser.Enabled)
	v.SetDefault("browser.bin", cfg.Browser.Bin)
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.page_timeout", cfg.Browser.PageTimeout)
	setDelayDefaults(v, "browser.settle", cfg.Browser.Settle)

	setDelayDefaults(v, "pacing.candidate", cfg.Pacing.Candidate)
	setDelayDefaults(v, "pacing.listing", cfg.Pacing.Listing)
	setDelayDefaults(v, "pacing.search_page", cfg.Pacing.SearchPage)
	setDelayDefaults(v, "pacing.retry", cfg.Pacing.Retry)
	setDelayDefaults(v, "pacing.rate_limited", cfg.Pacing.RateLimited)

	v.SetDefault("sources.government.enabled", cfg.Sources.Government.Enabled)
	v.SetDefault("sources.news.enabled", cfg.Sources.News.Enabled)
	v.SetDefault("sources.search.enabled", cfg.Sources.Search.Enabled)
	v.SetDefault("sources.search.pages", cfg.Sources.Search.Pages)
	v.SetDefault("sources.search.keyword_count", cfg.Sources.Search.KeywordCount)
	v.SetDefault("sources.search.render", cfg.Sources.Search.Render)
	v.SetDefault("sources.social.enabled", cfg.Sources.Social.Enabled)
	v.SetDefault("sources.social.keyword_count", cfg.Sources.Social.KeywordCount)
	v.SetDefault("sources.social.render", cfg.Sources.Social.Render)

	v.SetDefault("extract.min_content_runes", cfg.Extract.MinContentRunes)
	v.SetDefault("extract.max_content_runes", cfg.Extract.MaxContentRunes)

	v.SetDefault("output.dir", cfg.Output.Dir)
	v.SetDefault("output.file", cfg.Output.File)
	v.SetDefault("output.format", cfg.Output.Format)
	v.SetDefault("output.header", cfg.Output.Header)
	v.SetDefault("output.report", cfg.Output.Report)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}

func setDelayDefaults(v *viper.Viper, key string, d DelayRange) {
	v.SetDefault(key+".min", d.Min)
	v.SetDefault(key+".max", d.Max)
}
