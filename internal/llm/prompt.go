package llm

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/raine/resale-appraiser/internal/market"
)

const maxPromptExamples = 5

const rolePrompt = `
	You are an expert resale appraiser. You identify items from photos and
	the text printed on them, grade their condition, and price them for the
	secondhand market.`

const schemaPrompt = `
	Respond with a single JSON object using exactly this schema:

	{
	  "attributes": {
	    "brand": string,
	    "model": string,
	    "name": string,
	    "category": string,
	    "size": string,
	    "color": string,
	    "material": string,
	    "condition": {
	      "grade": "New" | "Like New" | "Good" | "Fair" | "Poor",
	      "score": integer 1-10,
	      "details": string
	    },
	    "defects": [string],
	    "identifiers": {
	      "styleCode": string,
	      "upc": string,
	      "sku": string,
	      "serialNumber": string
	    },
	    "yearReleased": string,
	    "collaboration": string,
	    "specialEdition": string
	  },
	  "confidence": number 0.0-1.0,
	  "evidence": [string],
	  "suggestedPrice": {
	    "quickSale": number,
	    "market": number,
	    "premium": number,
	    "reasoning": string
	  },
	  "listingContent": {
	    "title": string,
	    "description": string,
	    "keywords": [string],
	    "bulletPoints": [string]
	  },
	  "marketAnalysis": {
	    "demandLevel": "High" | "Medium" | "Low",
	    "competitorCount": integer,
	    "recentSales": integer,
	    "seasonalFactors": string
	  }
	}

	attributes, confidence, suggestedPrice and listingContent are required.
	Prices are in USD. quickSale <= market <= premium.`

const instructionsPrompt = `
	Instructions:
	- %s
	- Use "Unknown" for brand, model or name if you cannot verify them. Do not guess a brand.
	- List the visible details that support your identification in evidence.
	- Output ONLY the JSON object, with no markdown or other text.`

const (
	marketPricesInstruction   = "Use the market data prices above verbatim for suggestedPrice."
	estimatePricesInstruction = "No market data is available. Estimate prices from your knowledge of recent resale values."
)

func block(text string) string {
	return strings.TrimSpace(dedent.Dedent(text))
}

// BuildPrompt builds the instruction document for one analysis. The market
// section is included only when marketData has listings.
func BuildPrompt(ocrText string, marketData *market.Result) string {
	var b strings.Builder

	b.WriteString(block(rolePrompt))
	b.WriteString("\n\n")

	b.WriteString("Text recognized from the photos:\n")
	if text := strings.TrimSpace(ocrText); text != "" {
		b.WriteString(`"""` + "\n" + text + "\n" + `"""`)
	} else {
		b.WriteString("(none)")
	}
	b.WriteString("\n\n")

	instruction := estimatePricesInstruction
	if tiers, ok := marketData.Tiers(); ok {
		writeMarketSection(&b, marketData, tiers)
		b.WriteString("\n")
		instruction = marketPricesInstruction
	}

	b.WriteString(block(schemaPrompt))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf(block(instructionsPrompt), instruction))
	b.WriteString("\n")

	return b.String()
}

func writeMarketSection(b *strings.Builder, r *market.Result, tiers market.PriceTiers) {
	prices := market.Prices(r.SoldListings)

	provenance := "completed sales"
	if r.Source == market.SourceActive || r.IsEstimate {
		provenance = "active listings (estimate, not completed sales)"
	}

	fmt.Fprintf(b, "Market data (%s):\n", provenance)
	fmt.Fprintf(b, "- Comparable listings: %d\n", len(r.SoldListings))
	fmt.Fprintf(b, "- Median price: $%s\n", tiers.Market.StringFixed(2))
	fmt.Fprintf(b, "- Quick sell price: $%s\n", tiers.QuickSell.StringFixed(2))
	fmt.Fprintf(b, "- Premium price: $%s\n", tiers.Premium.StringFixed(2))
	fmt.Fprintf(b, "- Observed range (25th-75th percentile): $%s - $%s\n",
		market.Percentile(prices, 0.25).StringFixed(2),
		market.Percentile(prices, 0.75).StringFixed(2))

	b.WriteString("Examples:\n")
	for i, l := range r.SoldListings {
		if i == maxPromptExamples {
			break
		}
		fmt.Fprintf(b, "- %s: $%s\n", l.Title, l.Price.StringFixed(2))
	}
}
