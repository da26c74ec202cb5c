package market

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	quickSellMultiplier = decimal.RequireFromString("0.85")
	premiumMultiplier   = decimal.RequireFromString("1.15")
	two                 = decimal.NewFromInt(2)
)

// Prices returns the listing prices sorted ascending.
func Prices(listings []SoldListing) []decimal.Decimal {
	prices := make([]decimal.Decimal, 0, len(listings))
	for _, l := range listings {
		prices = append(prices, l.Price)
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })
	return prices
}

// Median returns the middle element of sorted, or the mean of the two
// central elements for even lengths. Zero for an empty slice.
func Median(sorted []decimal.Decimal) decimal.Decimal {
	n := len(sorted)
	if n == 0 {
		return decimal.Zero
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(two)
}

// Average returns the arithmetic mean rounded to cents.
func Average(prices []decimal.Decimal) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(prices[0], prices[1:]...).
		Div(decimal.NewFromInt(int64(len(prices)))).
		Round(2)
}

// Percentile returns the element at floor((n-1)*p) of sorted. p is clamped
// to [0, 1].
func Percentile(sorted []decimal.Decimal, p float64) decimal.Decimal {
	n := len(sorted)
	if n == 0 {
		return decimal.Zero
	}
	p = math.Max(0, math.Min(1, p))
	return sorted[int(math.Floor(float64(n-1)*p))]
}

// TiersFromMedian scales the median by 0.85 and 1.15 for the quick-sale and
// premium tiers. This is the canonical tier method; percentiles are only
// reported as the observed range.
func TiersFromMedian(median decimal.Decimal) PriceTiers {
	return PriceTiers{
		QuickSell: median.Mul(quickSellMultiplier).Round(2),
		Market:    median,
		Premium:   median.Mul(premiumMultiplier).Round(2),
	}
}
