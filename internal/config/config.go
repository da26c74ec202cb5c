// Package config defines the appraiser configuration and how it is loaded.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/raine/resale-appraiser/internal/analysis"
	"github.com/raine/resale-appraiser/internal/catalog"
	"github.com/raine/resale-appraiser/internal/llm"
	"github.com/raine/resale-appraiser/internal/market"
)

const (
	AppName     = "resale-appraiser"
	EnvFileName = "config.env"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr is the HTTP listen address for serve.
	Addr string `koanf:"addr"`

	// DBPath is the SQLite cache database. Empty disables persistent caching.
	DBPath string `koanf:"db_path"`

	AI      AIConfig        `koanf:"ai"`
	Market  MarketConfig    `koanf:"market"`
	OCR     OCRConfig       `koanf:"ocr"`
	Catalog catalog.Catalog `koanf:"catalog"`
}

// AIConfig selects and tunes the inference provider.
type AIConfig struct {
	Provider      string           `koanf:"provider"` // openai or gemini
	OpenAIKey     string           `koanf:"openai_api_key"`
	OpenAIBaseURL string           `koanf:"openai_base_url"`
	GeminiKey     string           `koanf:"gemini_api_key"`
	Models        llm.ModelSet     `koanf:"models"`
	Pricing       llm.PricingTable `koanf:"pricing"`
	MaxAttempts   int              `koanf:"max_attempts"`
	BaseDelay     time.Duration    `koanf:"base_delay"`
	Temperature   float64          `koanf:"temperature"`
	MaxTokens     int              `koanf:"max_tokens"`
	Timeout       time.Duration    `koanf:"timeout"`
}

// MarketConfig configures the marketplace client.
type MarketConfig struct {
	BaseURL       string        `koanf:"base_url"`
	TokenURL      string        `koanf:"token_url"`
	ClientID      string        `koanf:"client_id"`
	ClientSecret  string        `koanf:"client_secret"`
	Scope         string        `koanf:"scope"`
	MarketplaceID string        `koanf:"marketplace_id"`
	Limit         int           `koanf:"limit"`
	MinInterval   time.Duration `koanf:"min_interval"`
	MaxAttempts   int           `koanf:"max_attempts"`
	BaseDelay     time.Duration `koanf:"base_delay"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`
	CacheCapacity int           `koanf:"cache_capacity"`
	Timeout       time.Duration `koanf:"timeout"`
}

// OCRConfig configures text recognition for image-only requests.
type OCRConfig struct {
	Enabled bool   `koanf:"enabled"`
	Model   string `koanf:"model"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel: "info",
		Addr:     ":8080",
		DBPath:   defaultDBPath(),
		AI: AIConfig{
			Provider:      ProviderOpenAI,
			OpenAIBaseURL: llm.DefaultOpenAIBaseURL,
			Models:        llm.DefaultOpenAIModels,
			MaxAttempts:   analysis.DefaultMaxAttempts,
			BaseDelay:     analysis.DefaultBaseDelay,
			Temperature:   llm.DefaultTemperature,
			MaxTokens:     llm.DefaultMaxTokens,
			Timeout:       llm.DefaultTimeout,
		},
		Market: MarketConfig{
			BaseURL:       market.DefaultBaseURL,
			TokenURL:      market.DefaultTokenURL,
			Scope:         market.DefaultScope,
			MarketplaceID: market.DefaultMarketplaceID,
			Limit:         50,
			MinInterval:   market.DefaultMinInterval,
			MaxAttempts:   3,
			BaseDelay:     500 * time.Millisecond,
			CacheTTL:      market.DefaultCacheTTL,
			CacheCapacity: market.DefaultCacheCapacity,
			Timeout:       15 * time.Second,
		},
		OCR: OCRConfig{
			Enabled: true,
		},
		Catalog: catalog.Default(),
	}
}

func defaultDBPath() string {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configBase, AppName, "cache.db")
}

// LoadEnvFiles loads environment variables from config.env in the user's
// config directory and from .env in the working directory. Variables that
// are already set win. Errors are ignored since the files may not exist.
func LoadEnvFiles() {
	if configBase, err := os.UserConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(configBase, AppName, EnvFileName))
	}
	_ = godotenv.Load(".env")
}

// MarketClientConfig converts to the market client's settings.
func (c *Config) MarketClientConfig() market.Config {
	m := c.Market
	cfg := market.Config{
		BaseURL:       m.BaseURL,
		TokenURL:      m.TokenURL,
		ClientID:      m.ClientID,
		ClientSecret:  m.ClientSecret,
		MarketplaceID: m.MarketplaceID,
		Limit:         m.Limit,
		Timeout:       m.Timeout,
		MinInterval:   m.MinInterval,
		MaxAttempts:   m.MaxAttempts,
		BaseDelay:     m.BaseDelay,
		CacheTTL:      m.CacheTTL,
		CacheCapacity: m.CacheCapacity,
	}
	if m.Scope != "" {
		cfg.Scopes = []string{m.Scope}
	}
	return cfg
}

// AnalysisConfig converts to the orchestrator's settings.
func (c *Config) AnalysisConfig() analysis.Config {
	return analysis.Config{
		Models:      c.AI.Models,
		Pricing:     c.AI.Pricing,
		MaxAttempts: c.AI.MaxAttempts,
		BaseDelay:   c.AI.BaseDelay,
		Temperature: c.AI.Temperature,
		MaxTokens:   c.AI.MaxTokens,
	}
}
