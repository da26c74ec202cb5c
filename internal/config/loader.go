package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/raine/resale-appraiser/internal/catalog"
	"github.com/raine/resale-appraiser/internal/common"
	"github.com/raine/resale-appraiser/internal/llm"
	"github.com/rs/zerolog"
)

const (
	// EnvPrefix prefixes configuration environment variables. A double
	// underscore separates nesting levels: APPRAISER_AI__PROVIDER.
	EnvPrefix = "APPRAISER_"

	// ConfigFileEnv names the variable holding an optional YAML file path.
	ConfigFileEnv = "APPRAISER_CONFIG"
)

// Conventional variable names honored when the prefixed ones are unset.
var fallbackEnv = []struct {
	name string
	set  func(c *Config, v string)
	get  func(c *Config) string
}{
	{"OPENAI_API_KEY", func(c *Config, v string) { c.AI.OpenAIKey = v }, func(c *Config) string { return c.AI.OpenAIKey }},
	{"GEMINI_API_KEY", func(c *Config, v string) { c.AI.GeminiKey = v }, func(c *Config) string { return c.AI.GeminiKey }},
	{"EBAY_CLIENT_ID", func(c *Config, v string) { c.Market.ClientID = v }, func(c *Config) string { return c.Market.ClientID }},
	{"EBAY_CLIENT_SECRET", func(c *Config, v string) { c.Market.ClientSecret = v }, func(c *Config) string { return c.Market.ClientSecret }},
}

// Load builds a Config by layering defaults, an optional YAML file and
// environment variables, lowest precedence first:
//  1. defaults (New)
//  2. file named by APPRAISER_CONFIG
//  3. env (prefix APPRAISER_)
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// APPRAISER_MARKET__CACHE_TTL -> market.cache_ttl
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		key = strings.ReplaceAll(key, "__", ".")
		if strings.HasPrefix(key, "catalog.") {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := New()
	defaults := cfg.Catalog
	// Slices decode index-wise over existing values, so the catalog starts
	// empty and unset lists are filled from defaults afterwards.
	cfg.Catalog = catalog.Catalog{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	cfg.Catalog = mergeCatalog(cfg.Catalog, defaults)

	for _, f := range fallbackEnv {
		if f.get(cfg) == "" {
			f.set(cfg, os.Getenv(f.name))
		}
	}

	if cfg.AI.Provider == ProviderGemini && cfg.AI.Models == llm.DefaultOpenAIModels {
		cfg.AI.Models = llm.DefaultGeminiModels
		if cfg.AI.Pricing == nil {
			cfg.AI.Pricing = llm.DefaultGeminiPricing
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work. Missing credentials are not
// an error here; the affected component reports them when used.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%w: unknown ai provider %q", common.ErrConfiguration, c.AI.Provider)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q", common.ErrConfiguration, c.LogLevel)
	}
	if c.AI.MaxAttempts < 1 {
		return fmt.Errorf("%w: ai.max_attempts must be at least 1", common.ErrConfiguration)
	}
	// Zero would be replaced by the default temperature downstream.
	if c.AI.Temperature <= 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("%w: ai.temperature must be above 0 and at most 2", common.ErrConfiguration)
	}
	if c.Market.Limit < 1 || c.Market.Limit > 200 {
		return fmt.Errorf("%w: market.limit must be within 1..200", common.ErrConfiguration)
	}
	if c.Market.CacheTTL < 0 || c.AI.BaseDelay < 0 || c.Market.BaseDelay < 0 {
		return fmt.Errorf("%w: durations must not be negative", common.ErrConfiguration)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mergeCatalog(c, defaults catalog.Catalog) catalog.Catalog {
	if c.LuxuryBrands == nil {
		c.LuxuryBrands = defaults.LuxuryBrands
	}
	if c.HypeBrands == nil {
		c.HypeBrands = defaults.HypeBrands
	}
	if c.CommonBrands == nil {
		c.CommonBrands = defaults.CommonBrands
	}
	if c.EasyCategories == nil {
		c.EasyCategories = defaults.EasyCategories
	}
	if c.Categories == nil {
		c.Categories = defaults.Categories
	}
	if c.Stopwords == nil {
		c.Stopwords = defaults.Stopwords
	}
	return c
}
