package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/raine/resale-appraiser/internal/analysis"
	"github.com/raine/resale-appraiser/internal/config"
	"github.com/raine/resale-appraiser/internal/llm"
	"github.com/raine/resale-appraiser/internal/market"
	"github.com/raine/resale-appraiser/internal/metrics"
	"github.com/raine/resale-appraiser/internal/query"
	"github.com/raine/resale-appraiser/internal/storage"
	"github.com/rs/zerolog/log"
)

// app holds the wired pipeline for one command invocation.
type app struct {
	metrics  *metrics.Manager
	store    *storage.SQLiteStore
	market   *market.Client
	analyzer analysis.Analyzer
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{metrics: metrics.NewManager()}

	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		store, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		a.store = store
		log.Debug().Str("dbPath", cfg.DBPath).Msg("cache store initialized")
	}

	marketOpts := []market.Option{
		market.WithMetrics(a.metrics),
		market.WithCategories(cfg.Catalog.Categories),
	}
	if a.store != nil {
		marketOpts = append(marketOpts, market.WithSnapshotStore(a.store))
	}
	a.market = market.NewClient(cfg.MarketClientConfig(), marketOpts...)
	if cfg.Market.ClientID == "" || cfg.Market.ClientSecret == "" {
		log.Warn().Msg("marketplace credentials not set, analyses run without market data")
	}

	transport, err := newTransport(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	orchOpts := []analysis.Option{
		analysis.WithMarket(a.market),
		analysis.WithMetrics(a.metrics),
	}
	if cfg.OCR.Enabled && cfg.AI.GeminiKey != "" {
		ocr, err := llm.NewGeminiOCR(ctx, geminiOpts(cfg), cfg.OCR.Model)
		if err != nil {
			a.Close()
			return nil, err
		}
		orchOpts = append(orchOpts, analysis.WithOCR(ocr))
	} else {
		log.Debug().Msg("ocr disabled, image-only requests carry no recognized text")
	}

	orch := analysis.New(
		cfg.AnalysisConfig(),
		transport,
		query.NewBuilder(cfg.Catalog),
		llm.NewSelector(cfg.Catalog),
		orchOpts...,
	)
	a.analyzer = orch
	if a.store != nil {
		a.analyzer = analysis.NewCachedAnalyzer(orch, a.store)
	}
	return a, nil
}

func newTransport(ctx context.Context, cfg *config.Config) (llm.Transport, error) {
	switch cfg.AI.Provider {
	case config.ProviderGemini:
		t, err := llm.NewGeminiTransport(ctx, geminiOpts(cfg))
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return llm.NewOpenAITransport(llm.OpenAIOpts{
			BaseURL: cfg.AI.OpenAIBaseURL,
			APIKey:  cfg.AI.OpenAIKey,
			Timeout: cfg.AI.Timeout,
		}), nil
	}
}

func geminiOpts(cfg *config.Config) llm.GeminiOpts {
	return llm.GeminiOpts{APIKey: cfg.AI.GeminiKey, Timeout: cfg.AI.Timeout}
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close cache store")
		}
	}
}
