package llm

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/raine/resale-appraiser/internal/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func marketResult(source string, estimate bool, prices ...int64) *market.Result {
	listings := make([]market.SoldListing, 0, len(prices))
	for i, p := range prices {
		listings = append(listings, market.SoldListing{
			Title: fmt.Sprintf("Listing %d", i+1),
			Price: decimal.NewFromInt(p),
		})
	}
	median := market.Median(market.Prices(listings))
	return &market.Result{
		SoldListings: listings,
		IsEstimate:   estimate,
		MedianPrice:  &median,
		Source:       source,
		FetchedAt:    time.Now(),
	}
}

func TestBuildPrompt_WithMarketData(t *testing.T) {
	r := marketResult(market.SourceSold, false, 150, 175, 160, 180, 170, 165, 185)
	p := BuildPrompt("NIKE DZ5485-612", r)

	assert.Contains(t, p, "expert resale appraiser")
	assert.Contains(t, p, "NIKE DZ5485-612")
	assert.Contains(t, p, "Market data (completed sales)")
	assert.Contains(t, p, "Comparable listings: 7")
	assert.Contains(t, p, "Median price: $170.00")
	assert.Contains(t, p, "Quick sell price: $144.50")
	assert.Contains(t, p, "Premium price: $195.50")
	assert.Contains(t, p, "$160.00 - $175.00")
	assert.Contains(t, p, "Listing 5: $170.00")
	assert.NotContains(t, p, "Listing 6")
	assert.Contains(t, p, marketPricesInstruction)
	assert.NotContains(t, p, estimatePricesInstruction)
}

func TestBuildPrompt_ActiveEstimate(t *testing.T) {
	p := BuildPrompt("dunk", marketResult(market.SourceActive, true, 200, 220))
	assert.Contains(t, p, "active listings (estimate")
}

func TestBuildPrompt_NoMarketData(t *testing.T) {
	for _, r := range []*market.Result{nil, {Source: market.SourceNone, IsEstimate: true}} {
		p := BuildPrompt("", r)
		assert.NotContains(t, p, "Market data")
		assert.Contains(t, p, "(none)")
		assert.Contains(t, p, estimatePricesInstruction)
	}
}

func TestBuildPrompt_Schema(t *testing.T) {
	p := BuildPrompt("text", nil)
	for _, field := range []string{
		`"attributes"`, `"confidence"`, `"evidence"`, `"suggestedPrice"`,
		`"listingContent"`, `"marketAnalysis"`, `"styleCode"`, `"bulletPoints"`,
	} {
		assert.Contains(t, p, field)
	}
	assert.Contains(t, p, `"New" | "Like New" | "Good" | "Fair" | "Poor"`)
	assert.Contains(t, p, "integer 1-10")
	assert.Contains(t, p, `Use "Unknown"`)
	assert.Contains(t, p, "Output ONLY the JSON object")
	assert.False(t, strings.HasPrefix(p, "\t"), "prompt is dedented")
}
