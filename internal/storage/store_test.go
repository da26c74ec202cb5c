package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/raine/resale-appraiser/internal/llm"
	"github.com/raine/resale-appraiser/internal/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMarketSnapshot_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetMarketSnapshot("missing||")
	require.NoError(t, err)
	assert.Nil(t, got)

	median := decimal.RequireFromString("170")
	fetched := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := &market.Result{
		SoldListings: []market.SoldListing{{Title: "Dunk", Price: decimal.RequireFromString("170.00"), Currency: "USD"}},
		MedianPrice:  &median,
		Source:       market.SourceSold,
		FetchedAt:    fetched,
	}
	require.NoError(t, store.SetMarketSnapshot("dunk||", r))

	got, err = store.GetMarketSnapshot("dunk||")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, market.SourceSold, got.Source)
	assert.True(t, got.FetchedAt.Equal(fetched))
	require.Len(t, got.SoldListings, 1)
	assert.True(t, got.SoldListings[0].Price.Equal(decimal.NewFromInt(170)))
	assert.True(t, got.MedianPrice.Equal(median))

	r.Source = market.SourceActive
	require.NoError(t, store.SetMarketSnapshot("dunk||", r))
	got, err = store.GetMarketSnapshot("dunk||")
	require.NoError(t, err)
	assert.Equal(t, market.SourceActive, got.Source, "upsert replaces the snapshot")
}

func TestPruneMarketSnapshots(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SetMarketSnapshot("old||", &market.Result{Source: market.SourceSold, FetchedAt: now.Add(-3 * time.Hour)}))
	require.NoError(t, store.SetMarketSnapshot("new||", &market.Result{Source: market.SourceSold, FetchedAt: now}))

	n, err := store.PruneMarketSnapshots(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.GetMarketSnapshot("old||")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = store.GetMarketSnapshot("new||")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestAnalysisCache_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetAnalysis("abc")
	require.NoError(t, err)
	assert.Nil(t, got)

	r := &llm.ExpertAnalysisResult{
		Attributes: llm.Attributes{Brand: "Nike", Model: "Dunk Low", Name: "Panda"},
		Confidence: 0.8,
		SuggestedPrice: llm.SuggestedPrice{
			QuickSale: decimal.RequireFromString("144.50"),
			Market:    decimal.RequireFromString("170"),
			Premium:   decimal.RequireFromString("195.50"),
		},
		ListingContent:  llm.ListingContent{Title: "Nike Dunk Low Panda"},
		Tier:            llm.TierFull,
		EscalatedToGPT5: true,
		Attempts:        3,
	}
	require.NoError(t, store.SetAnalysis("abc", r))

	got, err = store.GetAnalysis("abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Nike", got.Attributes.Brand)
	assert.Equal(t, llm.TierFull, got.Tier)
	assert.True(t, got.EscalatedToGPT5)
	assert.True(t, got.SuggestedPrice.Premium.Equal(decimal.RequireFromString("195.5")))
}

func TestNewSQLiteStore_Memory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SetAnalysis("k", &llm.ExpertAnalysisResult{Confidence: 0.5}))
	got, err := store.GetAnalysis("k")
	require.NoError(t, err)
	assert.NotNil(t, got)
}
