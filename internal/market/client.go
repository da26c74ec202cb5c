package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raine/resale-appraiser/internal/catalog"
	"github.com/raine/resale-appraiser/internal/common"
	"github.com/raine/resale-appraiser/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL       = "https://api.ebay.com"
	DefaultTokenURL      = "https://api.ebay.com/identity/v1/oauth2/token"
	DefaultScope         = "https://api.ebay.com/oauth/api_scope"
	DefaultSoldPath      = "/buy/marketplace_insights/v1_beta/item_sales/search"
	DefaultActivePath    = "/buy/browse/v1/item_summary/search"
	DefaultMarketplaceID = "EBAY_US"

	defaultLimit       = 50
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultTimeout     = 15 * time.Second
)

// errEndpointUnavailable means the endpoint refused us (403/404, or 401 after
// a token refresh). The sold endpoint falls back to active listings on it.
var errEndpointUnavailable = errors.New("endpoint unavailable")

// Config holds marketplace API settings.
type Config struct {
	BaseURL       string
	TokenURL      string
	ClientID      string
	ClientSecret  string
	Scopes        []string
	MarketplaceID string
	SoldPath      string
	ActivePath    string
	Limit         int
	Timeout       time.Duration

	MinInterval time.Duration // Minimum spacing between search requests
	MaxAttempts int           // Attempts per endpoint for transient failures
	BaseDelay   time.Duration // First backoff delay, doubled per retry

	CacheTTL      time.Duration
	CacheCapacity int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if len(c.Scopes) == 0 {
		c.Scopes = []string{DefaultScope}
	}
	if c.MarketplaceID == "" {
		c.MarketplaceID = DefaultMarketplaceID
	}
	if c.SoldPath == "" {
		c.SoldPath = DefaultSoldPath
	}
	if c.ActivePath == "" {
		c.ActivePath = DefaultActivePath
	}
	if c.Limit <= 0 {
		c.Limit = defaultLimit
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MinInterval < 0 {
		c.MinInterval = 0
	} else if c.MinInterval == 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
}

// SnapshotStore persists results across process restarts. Get returns
// nil, nil on a miss.
type SnapshotStore interface {
	GetMarketSnapshot(key string) (*Result, error)
	SetMarketSnapshot(key string, result *Result) error
}

// Fetcher is the interface the orchestrator depends on.
type Fetcher interface {
	FetchSoldListings(ctx context.Context, query, category, condition string) (*Result, error)
}

// Client fetches comparable listings. One Client owns one cache and one rate
// gate; share the Client to share them.
type Client struct {
	cfg         Config
	http        *resty.Client
	tokens      *tokenSource
	cache       *Cache
	gate        *RateGate
	store       SnapshotStore
	metrics     *metrics.Manager
	categoryIDs map[string]string
	now         func() time.Time
	sleep       common.Sleeper
}

// Option configures a Client.
type Option func(*Client)

// WithClock replaces time.Now for the cache, the rate gate and timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSleeper replaces the sleep used for backoff and rate gating.
func WithSleeper(sleep common.Sleeper) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithSnapshotStore adds a persistent second-level cache.
func WithSnapshotStore(store SnapshotStore) Option {
	return func(c *Client) { c.store = store }
}

// WithMetrics records cache and request metrics.
func WithMetrics(m *metrics.Manager) Option {
	return func(c *Client) { c.metrics = m }
}

// WithCategories maps category names to marketplace category ids.
func WithCategories(categories []catalog.Category) Option {
	return func(c *Client) {
		for _, cat := range categories {
			if cat.ID != "" {
				c.categoryIDs[strings.ToLower(cat.Name)] = cat.ID
			}
		}
	}
}

// NewClient creates a marketplace client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.applyDefaults()

	c := &Client{
		cfg:         cfg,
		categoryIDs: make(map[string]string),
		now:         time.Now,
		sleep:       common.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.cache = NewCache(cfg.CacheTTL, cfg.CacheCapacity, c.now)
	c.gate = NewRateGate(cfg.MinInterval, c.now, c.sleep)
	c.http = resty.New().
		SetDebug(false).
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeaders(map[string]string{
			"Accept":                  "application/json",
			"X-EBAY-C-MARKETPLACE-ID": cfg.MarketplaceID,
		})
	// Every search request, retries included, passes through the gate. The
	// token source takes the same gate since its requests bypass resty.
	c.http.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		return c.gate.Wait(r.Context())
	})
	c.tokens = newTokenSource(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, cfg.Scopes, c.http.GetClient(), c.gate)

	return c
}

// Cache returns the client's in-memory cache.
func (c *Client) Cache() *Cache {
	return c.cache
}

// FetchSoldListings returns market data for the query, served from cache
// when possible. Transient failures degrade to an empty estimate with a nil
// error. Missing credentials, token failures and cancellation are returned
// as errors.
func (c *Client) FetchSoldListings(ctx context.Context, query, category, condition string) (*Result, error) {
	key := NewCacheKey(query, category, condition)

	if r, ok := c.cache.Get(key); ok {
		c.metrics.ObserveMarketCache(true)
		log.Debug().Str("query", key.Query).Msg("market cache hit")
		return r, nil
	}
	c.metrics.ObserveMarketCache(false)

	if r := c.loadSnapshot(key); r != nil {
		c.cache.Set(key, r, r.FetchedAt)
		return r, nil
	}

	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return nil, fmt.Errorf("marketplace client credentials not set: %w", common.ErrConfiguration)
	}

	params := c.searchParams(key)

	listings, err := c.search(ctx, "sold", c.cfg.SoldPath, params)
	source, estimate := SourceSold, false
	if errors.Is(err, errEndpointUnavailable) {
		log.Info().Str("query", key.Query).Msg("sold listings unavailable, falling back to active listings")
		listings, err = c.search(ctx, "active", c.cfg.ActivePath, params)
		source, estimate = SourceActive, true
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, common.ErrAuthFailed) {
			return nil, err
		}
		log.Warn().Err(err).Str("query", key.Query).Msg("market data unavailable, continuing without it")
		c.metrics.ObserveMarketDegraded(degradeReason(err))
		return emptyResult(c.now()), nil
	}

	result := newResult(listings, source, estimate, c.now())
	c.cache.Set(key, result, result.FetchedAt)
	c.saveSnapshot(key, result)

	log.Info().
		Str("query", key.Query).
		Str("source", source).
		Int("listings", len(listings)).
		Bool("estimate", result.IsEstimate).
		Msg("market data fetched")

	return result, nil
}

func (c *Client) loadSnapshot(key CacheKey) *Result {
	if c.store == nil {
		return nil
	}
	r, err := c.store.GetMarketSnapshot(key.String())
	if err != nil {
		log.Warn().Err(err).Msg("failed to read market snapshot")
		return nil
	}
	if r == nil || c.now().Sub(r.FetchedAt) >= c.cache.ttl {
		return nil
	}
	log.Debug().Str("query", key.Query).Msg("market snapshot hit")
	return r
}

func (c *Client) saveSnapshot(key CacheKey, r *Result) {
	if c.store == nil {
		return
	}
	if err := c.store.SetMarketSnapshot(key.String(), r); err != nil {
		log.Warn().Err(err).Msg("failed to save market snapshot")
	}
}

func (c *Client) searchParams(key CacheKey) map[string]string {
	params := map[string]string{
		"q":     key.Query,
		"limit": strconv.Itoa(c.cfg.Limit),
	}
	if id := c.categoryIDs[key.Category]; id != "" {
		params["category_ids"] = id
	}
	if key.Condition != "" {
		cond := strings.ToUpper(strings.ReplaceAll(key.Condition, " ", "_"))
		params["filter"] = "conditions:{" + cond + "}"
	}
	return params
}

// search runs one endpoint with backoff on transient failures. A 401 gets a
// single token refresh and an immediate retry that does not use up an
// attempt.
func (c *Client) search(ctx context.Context, endpoint, path string, params map[string]string) ([]SoldListing, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := common.BackoffDelay(c.cfg.BaseDelay, attempt-1)
			log.Debug().Str("endpoint", endpoint).Int("attempt", attempt).Dur("delay", delay).Msg("retrying market search")
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		listings, err := c.searchAuthorized(ctx, endpoint, path, params)
		if err == nil {
			return listings, nil
		}
		lastErr = err
		if !common.IsRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s search failed after %d attempts: %w", endpoint, c.cfg.MaxAttempts, lastErr)
}

func (c *Client) searchAuthorized(ctx context.Context, endpoint, path string, params map[string]string) ([]SoldListing, error) {
	listings, err := c.searchOnce(ctx, endpoint, path, params)
	if !errors.Is(err, common.ErrAuthExpired) {
		return listings, err
	}

	log.Info().Str("endpoint", endpoint).Msg("marketplace token rejected, refreshing")
	c.tokens.Invalidate()
	listings, err = c.searchOnce(ctx, endpoint, path, params)
	if errors.Is(err, common.ErrAuthExpired) {
		return nil, fmt.Errorf("%s: unauthorized after token refresh: %w", endpoint, errEndpointUnavailable)
	}
	return listings, err
}

func (c *Client) searchOnce(ctx context.Context, endpoint, path string, params map[string]string) ([]SoldListing, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.metrics.ObserveMarketRequest(endpoint, 0)
		return nil, fmt.Errorf("%s search: %w: %v", endpoint, common.ErrTransientNetwork, err)
	}
	c.metrics.ObserveMarketRequest(endpoint, res.StatusCode())

	switch status := res.StatusCode(); {
	case status == http.StatusOK:
		return decodeListings(res.Body())
	case status == http.StatusUnauthorized:
		return nil, fmt.Errorf("%s search: %w", endpoint, common.ErrAuthExpired)
	case status == http.StatusForbidden || status == http.StatusNotFound:
		return nil, fmt.Errorf("%s search (status %d): %w", endpoint, status, errEndpointUnavailable)
	case status == http.StatusTooManyRequests || status >= 500:
		return nil, fmt.Errorf("%s search (status %d): %w", endpoint, status, common.ErrTransientNetwork)
	default:
		return nil, fmt.Errorf("%s search failed (status %d): %s", endpoint, status, truncate(string(res.Body()), 200))
	}
}

type priceValue struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

type searchResponse struct {
	ItemSummaries []struct {
		Title       string      `json:"title"`
		Price       *priceValue `json:"price"`
		ItemEndDate string      `json:"itemEndDate"`
	} `json:"itemSummaries"`
	ItemSales []struct {
		Title         string      `json:"title"`
		LastSoldPrice *priceValue `json:"lastSoldPrice"`
		LastSoldDate  string      `json:"lastSoldDate"`
	} `json:"itemSales"`
}

// decodeListings accepts both the browse (itemSummaries) and the insights
// (itemSales) response shapes. Items without a usable price are skipped.
func decodeListings(body []byte) ([]SoldListing, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w: %v", common.ErrMalformedResponse, err)
	}

	listings := make([]SoldListing, 0, len(resp.ItemSales)+len(resp.ItemSummaries))
	for _, s := range resp.ItemSales {
		if s.LastSoldPrice == nil || s.LastSoldPrice.Value.IsNegative() {
			continue
		}
		listings = append(listings, SoldListing{
			Title:    s.Title,
			Price:    s.LastSoldPrice.Value,
			Currency: s.LastSoldPrice.Currency,
			SoldDate: parseDate(s.LastSoldDate),
		})
	}
	for _, s := range resp.ItemSummaries {
		if s.Price == nil || s.Price.Value.IsNegative() {
			continue
		}
		listings = append(listings, SoldListing{
			Title:    s.Title,
			Price:    s.Price.Value,
			Currency: s.Price.Currency,
			SoldDate: parseDate(s.ItemEndDate),
		})
	}
	return listings, nil
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func degradeReason(err error) string {
	switch {
	case errors.Is(err, common.ErrTransientNetwork):
		return "transient"
	case errors.Is(err, common.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, errEndpointUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
