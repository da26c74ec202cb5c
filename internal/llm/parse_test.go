package llm

import (
	"testing"

	"github.com/raine/resale-appraiser/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validResponse = `{
	"attributes": {
		"brand": "Nike",
		"model": "Air Jordan 1 Retro High OG",
		"name": "Chicago",
		"category": "sneakers",
		"size": 10.5,
		"color": "White/Red",
		"condition": {"grade": "like new", "score": 9, "details": "Light creasing"},
		"defects": ["light toe box creasing"],
		"identifiers": {"styleCode": "DZ5485-612"},
		"yearReleased": 2022
	},
	"confidence": 0.92,
	"evidence": ["style code on tag"],
	"suggestedPrice": {"quickSale": 144.50, "market": "170", "premium": 195.5, "reasoning": "median of 7 sales"},
	"listingContent": {"title": "Air Jordan 1 Chicago", "description": "Worn twice.", "keywords": ["jordan"], "bulletPoints": ["Size 10.5"]},
	"marketAnalysis": {"demandLevel": "High", "recentSales": 7}
}`

func TestParseResult(t *testing.T) {
	r, err := ParseResult(validResponse)
	require.NoError(t, err)

	assert.Equal(t, "Nike", r.Attributes.Brand)
	assert.Equal(t, "10.5", r.Attributes.Size)
	assert.Equal(t, "2022", r.Attributes.YearReleased)
	assert.Equal(t, "Like New", r.Attributes.Condition.Grade)
	assert.Equal(t, 9, r.Attributes.Condition.Score)
	assert.Equal(t, "DZ5485-612", r.Attributes.Identifiers.StyleCode)
	assert.Equal(t, 0.92, r.Confidence)
	assert.Equal(t, "144.5", r.SuggestedPrice.QuickSale.String())
	assert.Equal(t, "170", r.SuggestedPrice.Market.String())
	assert.Equal(t, "195.5", r.SuggestedPrice.Premium.String())
	assert.Equal(t, "Air Jordan 1 Chicago", r.ListingContent.Title)
	require.NotNil(t, r.MarketAnalysis)
	assert.Equal(t, 7, *r.MarketAnalysis.RecentSales)
	assert.Nil(t, r.MarketAnalysis.CompetitorCount)
}

func TestParseResult_SurroundingText(t *testing.T) {
	r, err := ParseResult("Here is the result: " + validResponse + " Thanks!")
	require.NoError(t, err)
	assert.Equal(t, "Nike", r.Attributes.Brand)

	r, err = ParseResult("```json\n" + validResponse + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "Air Jordan 1 Chicago", r.ListingContent.Title)
}

func TestParseResult_Defaults(t *testing.T) {
	r, err := ParseResult(`{
		"attributes": {"brand": "", "model": "unknown"},
		"confidence": 0.4,
		"suggestedPrice": {"market": 20},
		"listingContent": {"title": "Ceramic mug"}
	}`)
	require.NoError(t, err)
	assert.Equal(t, Unknown, r.Attributes.Brand)
	assert.Equal(t, Unknown, r.Attributes.Model)
	assert.Equal(t, Unknown, r.Attributes.Name)
	assert.Equal(t, "17", r.SuggestedPrice.QuickSale.String())
	assert.Equal(t, "23", r.SuggestedPrice.Premium.String())
	assert.NotNil(t, r.Evidence)
	assert.NotNil(t, r.Attributes.Defects)
	assert.NotNil(t, r.ListingContent.Keywords)
	assert.Nil(t, r.MarketAnalysis)
}

func TestParseResult_Malformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no json", "I could not identify this item."},
		{"invalid json", `{"attributes": {`},
		{"missing attributes", `{"confidence": 0.5, "suggestedPrice": {"market": 1}, "listingContent": {"title": "x"}}`},
		{"missing suggestedPrice", `{"attributes": {}, "confidence": 0.5, "listingContent": {"title": "x"}}`},
		{"missing listingContent", `{"attributes": {}, "confidence": 0.5, "suggestedPrice": {"market": 1}}`},
		{"empty title", `{"attributes": {}, "confidence": 0.5, "suggestedPrice": {"market": 1}, "listingContent": {"title": " "}}`},
		{"missing market price", `{"attributes": {}, "confidence": 0.5, "suggestedPrice": {"quickSale": 1}, "listingContent": {"title": "x"}}`},
		{"missing confidence", `{"attributes": {}, "suggestedPrice": {"market": 1}, "listingContent": {"title": "x"}}`},
		{"confidence out of range", `{"attributes": {}, "confidence": 1.5, "suggestedPrice": {"market": 1}, "listingContent": {"title": "x"}}`},
		{"bad grade", `{"attributes": {"condition": {"grade": "Mint"}}, "confidence": 0.5, "suggestedPrice": {"market": 1}, "listingContent": {"title": "x"}}`},
		{"bad score", `{"attributes": {"condition": {"score": 11}}, "confidence": 0.5, "suggestedPrice": {"market": 1}, "listingContent": {"title": "x"}}`},
		{"prices out of order", `{"attributes": {}, "confidence": 0.5, "suggestedPrice": {"quickSale": 50, "market": 40, "premium": 60}, "listingContent": {"title": "x"}}`},
		{"negative price", `{"attributes": {}, "confidence": 0.5, "suggestedPrice": {"quickSale": -1, "market": 0, "premium": 1}, "listingContent": {"title": "x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseResult(tt.text)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, common.ErrMalformedResponse)
		})
	}
}
