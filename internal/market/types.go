// Package market fetches comparable listings from the marketplace API and
// derives price statistics from them.
package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Data provenance values for Result.Source.
const (
	SourceSold   = "sold"   // Completed sales
	SourceActive = "active" // Active listings, used as an estimate
	SourceNone   = "none"   // No data (degraded)
)

// SoldListing is a single comparable sale.
type SoldListing struct {
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency,omitempty"`
	SoldDate *time.Time      `json:"soldDate,omitempty"`
}

// Result is the market data for one query. It is shared read-only once
// cached, so callers must not modify it.
type Result struct {
	SoldListings []SoldListing    `json:"soldListings"`
	IsEstimate   bool             `json:"isEstimate"`
	MedianPrice  *decimal.Decimal `json:"medianPrice,omitempty"`
	AveragePrice *decimal.Decimal `json:"averagePrice,omitempty"`
	Source       string           `json:"source"`
	FetchedAt    time.Time        `json:"fetchedAt"`
}

// PriceTiers are the quick-sale, market and premium price points.
type PriceTiers struct {
	QuickSell decimal.Decimal `json:"quickSell"`
	Market    decimal.Decimal `json:"market"`
	Premium   decimal.Decimal `json:"premium"`
}

// newResult builds a Result with statistics computed from listings.
func newResult(listings []SoldListing, source string, estimate bool, fetchedAt time.Time) *Result {
	r := &Result{
		SoldListings: listings,
		IsEstimate:   estimate,
		Source:       source,
		FetchedAt:    fetchedAt,
	}
	if len(listings) == 0 {
		r.IsEstimate = true
		return r
	}
	prices := Prices(listings)
	median := Median(prices)
	average := Average(prices)
	r.MedianPrice = &median
	r.AveragePrice = &average
	return r
}

// emptyResult is the degraded result used when no data could be fetched.
func emptyResult(fetchedAt time.Time) *Result {
	return newResult(nil, SourceNone, true, fetchedAt)
}

// HasListings reports whether r carries at least one listing.
func (r *Result) HasListings() bool {
	return r != nil && len(r.SoldListings) > 0
}

// Tiers returns the price tiers derived from r. The second return value is
// false when r has no listings.
func (r *Result) Tiers() (PriceTiers, bool) {
	if !r.HasListings() {
		return PriceTiers{}, false
	}
	return TiersFromMedian(Median(Prices(r.SoldListings))), true
}
