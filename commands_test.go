package main

import (
	"bytes"
	"testing"

	"github.com/raine/resale-appraiser/internal/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintComps(t *testing.T) {
	r := &market.Result{
		SoldListings: []market.SoldListing{
			{Title: "Air Jordan 1 Chicago", Price: decimal.RequireFromString("150")},
			{Title: "Air Jordan 1 Bred", Price: decimal.RequireFromString("170")},
			{Title: "Air Jordan 1 Royal", Price: decimal.RequireFromString("185")},
		},
		IsEstimate: true,
		Source:     market.SourceActive,
	}

	var buf bytes.Buffer
	require.NoError(t, printComps(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "source: active (3 listings)")
	assert.Contains(t, out, "not completed sales")
	assert.Contains(t, out, "quick sell: $144.50  market: $170.00  premium: $195.50")
	assert.Contains(t, out, "  $185.00  Air Jordan 1 Royal")
}

func TestPrintComps_NoData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printComps(&buf, &market.Result{IsEstimate: true, Source: market.SourceNone}))
	assert.Equal(t, "source: none (0 listings)\n", buf.String())
}

func TestRootCommands(t *testing.T) {
	cmd := rootCmd()
	names := make([]string, 0)
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"analyze", "comps", "serve"})

	analyze, _, err := cmd.Find([]string{"analyze"})
	require.NoError(t, err)
	assert.NotNil(t, analyze.Flags().Lookup("ocr-text"))
	assert.NotNil(t, analyze.Flags().Lookup("ocr-file"))

	comps, _, err := cmd.Find([]string{"comps"})
	require.NoError(t, err)
	category := comps.Flags().Lookup("category")
	require.NotNil(t, category)
	assert.Contains(t, category.Usage, "category name")
}
