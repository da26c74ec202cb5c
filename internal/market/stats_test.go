package market

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func listingsFrom(prices ...string) []SoldListing {
	out := make([]SoldListing, 0, len(prices))
	for _, p := range prices {
		out = append(out, SoldListing{Title: "item", Price: decimal.RequireFromString(p), Currency: "USD"})
	}
	return out
}

func TestMedianAndTiers(t *testing.T) {
	prices := Prices(listingsFrom("150", "175", "160", "180", "170", "165", "185"))

	median := Median(prices)
	assert.True(t, median.Equal(decimal.NewFromInt(170)), "median %s", median)

	tiers := TiersFromMedian(median)
	assert.Equal(t, "144.5", tiers.QuickSell.String())
	assert.Equal(t, "170", tiers.Market.String())
	assert.Equal(t, "195.5", tiers.Premium.String())
}

func TestMedian_EvenCount(t *testing.T) {
	prices := Prices(listingsFrom("40", "10", "30", "20"))
	assert.Equal(t, "25", Median(prices).String())
}

func TestMedian_Empty(t *testing.T) {
	assert.True(t, Median(nil).IsZero())
	assert.True(t, Average(nil).IsZero())
	assert.True(t, Percentile(nil, 0.5).IsZero())
}

func TestAverage_RoundsToCents(t *testing.T) {
	prices := Prices(listingsFrom("10", "10", "10.01"))
	assert.Equal(t, "10", Average(prices).String())
}

func TestPercentile(t *testing.T) {
	prices := Prices(listingsFrom("150", "175", "160", "180", "170", "165", "185"))
	assert.Equal(t, "150", Percentile(prices, 0).String())
	assert.Equal(t, "160", Percentile(prices, 0.25).String())
	assert.Equal(t, "175", Percentile(prices, 0.75).String())
	assert.Equal(t, "185", Percentile(prices, 1).String())
	assert.Equal(t, "185", Percentile(prices, 3).String(), "p is clamped")
}

func TestResult_Tiers(t *testing.T) {
	var empty *Result
	_, ok := empty.Tiers()
	assert.False(t, ok)

	r := newResult(listingsFrom("100", "200", "300"), SourceSold, false, fixedTime)
	tiers, ok := r.Tiers()
	assert.True(t, ok)
	assert.Equal(t, "170", tiers.QuickSell.String())
	assert.Equal(t, "200", tiers.Market.String())
	assert.Equal(t, "230", tiers.Premium.String())
	assert.Equal(t, "200", r.MedianPrice.String())
	assert.False(t, r.IsEstimate)
}

func TestNewResult_EmptyIsEstimate(t *testing.T) {
	r := newResult(nil, SourceSold, false, fixedTime)
	assert.True(t, r.IsEstimate)
	assert.Nil(t, r.MedianPrice)
	assert.Nil(t, r.AveragePrice)
	assert.False(t, r.HasListings())
}
