package remedy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/hazyhaar/a11yfix/provider"
	"github.com/hazyhaar/a11yfix/render"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates sections: A11YFIX_LLM__API_KEY sets llm.api_key.
const EnvPrefix = "A11YFIX_"

// Config is the full engine and service configuration.
type Config struct {
	// Locale selects the heuristic label table.
	Locale string `koanf:"locale"`
	// BaseURL makes relative references absolute and anchors image
	// references. A request may override it.
	BaseURL string `koanf:"base_url"`
	// BatchRules are rewritten whole-document instead of per fragment.
	BatchRules        []string      `koanf:"batch_rules"`
	ChunkSize         int           `koanf:"chunk_size"`
	MinLengthRatio    float64       `koanf:"min_length_ratio"`
	ProviderTimeout   time.Duration `koanf:"provider_timeout"`
	VisibilityTimeout time.Duration `koanf:"visibility_timeout"`
	// SkipDomains are never described.
	SkipDomains []string `koanf:"skip_domains"`
	// DisableSweep turns off labelling of unnamed buttons, links and
	// images the report did not list.
	DisableSweep bool `koanf:"disable_sweep"`

	// CachePath is the description cache: a .json file in the legacy
	// format, any other path an SQLite database. Empty keeps it in memory.
	CachePath string `koanf:"cache_path"`
	// AuditDB enables the run audit log when set.
	AuditDB string `koanf:"audit_db"`
	// SQLiteSynchronous is PRAGMA synchronous for the cache and audit
	// databases: OFF, NORMAL, FULL or EXTRA.
	SQLiteSynchronous string `koanf:"sqlite_synchronous"`

	Listen   string `koanf:"listen"`
	LogLevel string `koanf:"log_level"`

	LLM     provider.LLMConfig `koanf:"llm"`
	Browser BrowserConfig      `koanf:"browser"`
}

// BrowserConfig enables live visibility checks in a headless browser.
type BrowserConfig struct {
	Enabled        bool          `koanf:"enabled"`
	RemoteURL      string        `koanf:"remote_url"`
	Bin            string        `koanf:"bin"`
	Headful        bool          `koanf:"headful"`
	BlockResources []string      `koanf:"block_resources"`
	LoadTimeout    time.Duration `koanf:"load_timeout"`
}

func (c *Config) defaults() {
	if c.Locale == "" {
		c.Locale = "en"
	}
	if len(c.BatchRules) == 0 {
		c.BatchRules = []string{"color-contrast"}
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 5
	}
	if c.MinLengthRatio <= 0 {
		c.MinLengthRatio = 0.5
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 120 * time.Second
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 5 * time.Second
	}
	if c.SkipDomains == nil {
		c.SkipDomains = []string{"openstreetmap.org"}
	}
	if c.SQLiteSynchronous == "" {
		c.SQLiteSynchronous = "NORMAL"
	}
	c.SQLiteSynchronous = strings.ToUpper(c.SQLiteSynchronous)
	if c.Listen == "" {
		c.Listen = ":8087"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Browser.Enabled && len(c.Browser.BlockResources) == 0 {
		c.Browser.BlockResources = append([]string(nil), render.DefaultBlockResources...)
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.MinLengthRatio > 1 {
		return fmt.Errorf("remedy: min_length_ratio %.2f above 1", c.MinLengthRatio)
	}
	switch c.SQLiteSynchronous {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("remedy: sqlite_synchronous %q not one of OFF, NORMAL, FULL, EXTRA", c.SQLiteSynchronous)
	}
	if c.LLM.RequestsPerMinute < 0 {
		return errors.New("remedy: llm.requests_per_minute is negative")
	}
	if err := render.CheckBlockResources(c.Browser.BlockResources); err != nil {
		return fmt.Errorf("remedy: browser.block_resources: %w", err)
	}
	return nil
}

// IsBatchRule reports whether nodes of violationID go to the batch rewriter.
func (c *Config) IsBatchRule(violationID string) bool {
	for _, r := range c.BatchRules {
		if r == violationID {
			return true
		}
	}
	return false
}

// LoadConfig reads path (YAML, optional: a missing file is not an error),
// applies A11YFIX_ environment overrides, then defaults.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("remedy: read config: %w", err)
		default:
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("remedy: parse config %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("remedy: load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("remedy: unmarshal config: %w", err)
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps A11YFIX_LLM__API_KEY to llm.api_key. Values of list
// settings are split on commas.
func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	switch key {
	case "batch_rules", "skip_domains", "browser.block_resources":
		var parts []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		return key, parts
	}
	return key, value
}
