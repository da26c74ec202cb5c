// Package analysis runs the appraisal pipeline: OCR text to market query,
// market data, model tier, prompt, inference and validated result, with
// retries and tier escalation.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/raine/resale-appraiser/internal/common"
	"github.com/raine/resale-appraiser/internal/llm"
	"github.com/raine/resale-appraiser/internal/market"
	"github.com/raine/resale-appraiser/internal/metrics"
	"github.com/raine/resale-appraiser/internal/query"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second

	// escalationAttempt is the first attempt that runs on the highest tier.
	escalationAttempt = 3
)

// Analyzer produces an appraisal from item photos.
type Analyzer interface {
	// Analyze uses ocrText as the recognized text of images.
	Analyze(ctx context.Context, images [][]byte, ocrText string) (*llm.ExpertAnalysisResult, error)
	// AnalyzeImages runs OCR over images first.
	AnalyzeImages(ctx context.Context, images [][]byte) (*llm.ExpertAnalysisResult, error)
}

// Config tunes the orchestrator. Zero values use the defaults.
type Config struct {
	Models      llm.ModelSet
	Pricing     llm.PricingTable
	MaxAttempts int
	BaseDelay   time.Duration
	Temperature float64 // Zero means llm.DefaultTemperature
	MaxTokens   int
}

func (c *Config) applyDefaults() {
	if c.Models == (llm.ModelSet{}) {
		c.Models = llm.DefaultOpenAIModels
	}
	if c.Pricing == nil {
		c.Pricing = llm.DefaultPricing
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.Temperature == 0 {
		c.Temperature = llm.DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = llm.DefaultMaxTokens
	}
}

// Orchestrator is safe for concurrent use. Requests share only the market
// client's cache and rate gate.
type Orchestrator struct {
	cfg       Config
	transport llm.Transport
	queries   *query.Builder
	selector  *llm.Selector
	market    market.Fetcher
	ocr       Provider
	metrics   *metrics.Manager
	observer  Observer
	sleep     common.Sleeper
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMarket sets the market data source. Without one, prompts carry no
// market data.
func WithMarket(f market.Fetcher) Option {
	return func(o *Orchestrator) { o.market = f }
}

// WithOCR sets the provider used by AnalyzeImages.
func WithOCR(p Provider) Option {
	return func(o *Orchestrator) { o.ocr = p }
}

func WithMetrics(m *metrics.Manager) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// WithSleeper replaces the backoff sleep.
func WithSleeper(s common.Sleeper) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

// New creates an orchestrator.
func New(cfg Config, transport llm.Transport, queries *query.Builder, selector *llm.Selector, opts ...Option) *Orchestrator {
	cfg.applyDefaults()
	o := &Orchestrator{
		cfg:       cfg,
		transport: transport,
		queries:   queries,
		selector:  selector,
		sleep:     common.Sleep,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run carries per-request state through the pipeline.
type run struct {
	o      *Orchestrator
	id     string
	logger zerolog.Logger
}

func (r *run) enter(phase Phase, tier llm.Tier, attempt int) {
	ev := r.logger.Debug().Str("phase", string(phase))
	if tier != "" {
		ev = ev.Str("tier", string(tier)).Int("attempt", attempt)
	}
	ev.Msg("analysis state")

	if r.o.observer != nil {
		r.o.observer(State{RequestID: r.id, Phase: phase, Tier: tier, Attempt: attempt})
	}
}

func (o *Orchestrator) newRun() *run {
	id := uuid.NewString()
	return &run{o: o, id: id, logger: log.With().Str("requestID", id).Logger()}
}

func (o *Orchestrator) checkInput(images [][]byte) error {
	if len(images) == 0 {
		return common.ErrEmptyInput
	}
	if o.transport == nil || !o.transport.Configured() {
		return fmt.Errorf("ai credential not set: %w", common.ErrConfiguration)
	}
	return nil
}

// Analyze appraises the item in images. On cancellation it returns
// ctx.Err() and no result. After the last failed attempt it returns an
// *AnalysisFailedError; it never returns a partial result.
func (o *Orchestrator) Analyze(ctx context.Context, images [][]byte, ocrText string) (*llm.ExpertAnalysisResult, error) {
	if err := o.checkInput(images); err != nil {
		o.metrics.ObserveAnalysis("rejected", 0)
		return nil, err
	}
	r := o.newRun()
	r.enter(PhaseIdle, "", 0)
	r.enter(PhaseExtractingText, "", 0)
	return r.analyze(ctx, images, ocrText)
}

func (r *run) analyze(ctx context.Context, images [][]byte, ocrText string) (*llm.ExpertAnalysisResult, error) {
	o := r.o

	r.enter(PhaseBuildingQuery, "", 0)
	q := o.queries.BuildQuery(ocrText)
	category, _ := o.queries.ExtractCategory(ocrText)

	r.enter(PhaseFetchingMarketData, "", 0)
	marketData, err := r.fetchMarketData(ctx, q, category)
	if err != nil {
		return nil, err
	}

	initialTier := o.selector.SelectModel(ocrText, len(images))
	prompt := llm.BuildPrompt(ocrText, marketData)
	images = llm.LimitImages(images)

	r.logger.Info().
		Str("query", q).
		Str("category", category).
		Str("tier", string(initialTier)).
		Int("imageCount", len(images)).
		Bool("marketData", marketData.HasListings()).
		Msg("starting analysis")

	tier := initialTier
	var (
		usage   llm.Usage
		lastErr error
		attempt int
	)
	for attempt = 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if attempt >= escalationAttempt && tier != llm.Highest {
				r.logger.Info().Str("from", string(tier)).Str("to", string(llm.Highest)).Msg("escalating model tier")
				tier = llm.Highest
			}
			r.enter(PhaseRetrying, tier, attempt)
			if err := o.sleep(ctx, common.BackoffDelay(o.cfg.BaseDelay, attempt-1)); err != nil {
				return nil, err
			}
		}

		result, callUsage, err := r.attempt(ctx, tier, attempt, prompt, images)
		usage = usage.Add(callUsage)
		if err == nil {
			result.Tier = tier
			result.Model = o.cfg.Models.Model(tier)
			result.Attempts = attempt
			result.Usage = usage
			result.MarketData = marketData
			result.EscalatedToGPT5 = tier == llm.Highest && initialTier != llm.Highest

			r.enter(PhaseSucceeded, tier, attempt)
			o.metrics.ObserveAnalysis("success", attempt)
			r.logger.Info().
				Str("tier", string(tier)).
				Int("attempts", attempt).
				Bool("escalated", result.EscalatedToGPT5).
				Float64("confidence", result.Confidence).
				Float64("costUSD", usage.CostUSD).
				Msg("analysis succeeded")
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		r.logger.Warn().Err(err).Str("tier", string(tier)).Int("attempt", attempt).Msg("analysis attempt failed")
		if !common.IsRetryable(err) {
			break
		}
	}
	if attempt > o.cfg.MaxAttempts {
		attempt = o.cfg.MaxAttempts
	}

	r.enter(PhaseFailed, tier, attempt)
	o.metrics.ObserveAnalysis("failed", attempt)
	return nil, &AnalysisFailedError{LastTier: tier, Attempts: attempt, Err: lastErr}
}

// fetchMarketData returns nil data, not an error, when the market client
// fails. Only cancellation is returned.
func (r *run) fetchMarketData(ctx context.Context, q, category string) (*market.Result, error) {
	if r.o.market == nil {
		return nil, nil
	}
	data, err := r.o.market.FetchSoldListings(ctx, q, category, "")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn().Err(err).Str("query", q).Msg("market data unavailable, continuing without it")
		return nil, nil
	}
	return data, nil
}

// attempt makes one inference call and parses it.
func (r *run) attempt(ctx context.Context, tier llm.Tier, attempt int, prompt string, images [][]byte) (*llm.ExpertAnalysisResult, llm.Usage, error) {
	o := r.o
	model := o.cfg.Models.Model(tier)

	r.enter(PhaseAnalyzing, tier, attempt)
	start := time.Now()
	resp, err := o.transport.Complete(ctx, &llm.ChatRequest{
		Model:       model,
		Prompt:      prompt,
		Images:      images,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	})
	elapsed := time.Since(start)
	if err != nil {
		o.metrics.ObserveAICall(string(tier), "error", elapsed)
		return nil, llm.Usage{}, err
	}

	usage := resp.Usage
	usage.CostUSD = o.cfg.Pricing.Cost(tier, usage.InputTokens, usage.OutputTokens)
	o.metrics.AddAIUsage(string(tier), usage.InputTokens, usage.OutputTokens, usage.CostUSD)

	r.logger.Info().
		Str("model", model).
		Str("tier", string(tier)).
		Int("attempt", attempt).
		Int("imageCount", len(images)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Dur("elapsed", elapsed).
		Msg("vision llm call")

	r.enter(PhaseParsingResponse, tier, attempt)
	result, err := llm.ParseResult(resp.Text)
	if err != nil {
		o.metrics.ObserveAICall(string(tier), "malformed", elapsed)
		return nil, usage, err
	}
	o.metrics.ObserveAICall(string(tier), "success", elapsed)
	return result, usage, nil
}
