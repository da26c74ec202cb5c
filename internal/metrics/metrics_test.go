package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewManager(WithRegistry(reg))

	m.ObserveMarketCache(true)
	m.ObserveMarketCache(false)
	m.ObserveMarketCache(false)
	m.ObserveMarketRequest("sold", 200)
	m.ObserveMarketDegraded("transient")
	m.ObserveAICall("full", "success", 2*time.Second)
	m.AddAIUsage("full", 1000, 200, 0.5)
	m.ObserveAnalysis("success", 2)
	m.ObserveOCR("success")
	m.ObserveHTTPRequest("comps", "GET", 200, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.marketCache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.marketCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.marketRequests.WithLabelValues("sold", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.marketDegraded.WithLabelValues("transient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.aiCalls.WithLabelValues("full", "success")))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.aiTokens.WithLabelValues("full", "input")))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.aiCost.WithLabelValues("full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analyses.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ocrImages.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("comps", "GET", "200")))
}

func TestManager_NilIsNoop(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() {
		m.ObserveMarketCache(true)
		m.ObserveMarketRequest("sold", 500)
		m.ObserveMarketDegraded("x")
		m.ObserveAICall("fast", "error", time.Second)
		m.AddAIUsage("fast", 1, 1, 0.1)
		m.ObserveAnalysis("failed", 3)
		m.ObserveOCR("error")
		m.ObserveHTTPRequest("analyze", "POST", 502, time.Second)
	})
	assert.Nil(t, m.Registry())
}

func TestManager_Handler(t *testing.T) {
	m := NewManager()
	m.ObserveMarketCache(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "appraiser_market_cache_lookups_total"))
}
