// Package metrics provides Prometheus metrics for the appraisal pipeline.
//
// All methods are safe to call on a nil *Manager, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "appraiser"

// Manager owns the metric collectors and the registry they live on.
type Manager struct {
	registry *prometheus.Registry

	analyses        *prometheus.CounterVec
	analysisAttempt prometheus.Histogram
	aiCalls         *prometheus.CounterVec
	aiLatency       *prometheus.HistogramVec
	aiTokens        *prometheus.CounterVec
	aiCost          *prometheus.CounterVec
	ocrImages       *prometheus.CounterVec

	marketCache    *prometheus.CounterVec
	marketRequests *prometheus.CounterVec
	marketDegraded *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// Option configures a Manager.
type Option func(*Manager)

// WithRegistry registers metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(m *Manager) {
		m.registry = reg
	}
}

// NewManager creates a manager with all collectors registered.
func NewManager(opts ...Option) *Manager {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	auto := promauto.With(m.registry)

	m.analyses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "requests_total",
		Help:      "Analysis requests by outcome",
	}, []string{"outcome"})
	m.analysisAttempt = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "attempts",
		Help:      "AI attempts used per analysis request",
		Buckets:   []float64{1, 2, 3, 4, 5},
	})
	m.aiCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ai",
		Name:      "calls_total",
		Help:      "AI inference calls by tier and outcome",
	}, []string{"tier", "outcome"})
	m.aiLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ai",
		Name:      "call_duration_seconds",
		Help:      "AI inference call latency",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 90},
	}, []string{"tier"})
	m.aiTokens = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ai",
		Name:      "tokens_total",
		Help:      "Tokens consumed by tier and direction",
	}, []string{"tier", "direction"})
	m.aiCost = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ai",
		Name:      "cost_usd_total",
		Help:      "Estimated AI cost in USD by tier",
	}, []string{"tier"})
	m.ocrImages = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ocr",
		Name:      "images_total",
		Help:      "Images sent to the OCR provider by outcome",
	}, []string{"outcome"})
	m.marketCache = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "market",
		Name:      "cache_lookups_total",
		Help:      "Market data cache lookups by result",
	}, []string{"result"})
	m.marketRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "market",
		Name:      "requests_total",
		Help:      "Marketplace search requests by endpoint and status code",
	}, []string{"endpoint", "status"})
	m.marketDegraded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "market",
		Name:      "degraded_total",
		Help:      "Lookups that returned no market data, by reason",
	}, []string{"reason"})
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP API requests by route, method and status code",
	}, []string{"route", "method", "status"})
	m.httpLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP API request latency",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
	}, []string{"route"})

	return m
}

// Registry returns the registry metrics are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAnalysis records a finished analysis request.
func (m *Manager) ObserveAnalysis(outcome string, attempts int) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		m.analysisAttempt.Observe(float64(attempts))
	}
}

// ObserveAICall records one inference call.
func (m *Manager) ObserveAICall(tier, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.aiCalls.WithLabelValues(tier, outcome).Inc()
	m.aiLatency.WithLabelValues(tier).Observe(d.Seconds())
}

// AddAIUsage records token counts and estimated cost.
func (m *Manager) AddAIUsage(tier string, inputTokens, outputTokens int64, costUSD float64) {
	if m == nil {
		return
	}
	m.aiTokens.WithLabelValues(tier, "input").Add(float64(inputTokens))
	m.aiTokens.WithLabelValues(tier, "output").Add(float64(outputTokens))
	m.aiCost.WithLabelValues(tier).Add(costUSD)
}

// ObserveOCR records one OCR call.
func (m *Manager) ObserveOCR(outcome string) {
	if m == nil {
		return
	}
	m.ocrImages.WithLabelValues(outcome).Inc()
}

// ObserveMarketCache records a cache lookup.
func (m *Manager) ObserveMarketCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.marketCache.WithLabelValues(result).Inc()
}

// ObserveMarketRequest records a marketplace HTTP response. status 0 means
// no response was received.
func (m *Manager) ObserveMarketRequest(endpoint string, status int) {
	if m == nil {
		return
	}
	m.marketRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

// ObserveMarketDegraded records a lookup that fell back to no data.
func (m *Manager) ObserveMarketDegraded(reason string) {
	if m == nil {
		return
	}
	m.marketDegraded.WithLabelValues(reason).Inc()
}

// ObserveHTTPRequest records a served API request.
func (m *Manager) ObserveHTTPRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route).Observe(d.Seconds())
}
