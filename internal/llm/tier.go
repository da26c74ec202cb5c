package llm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/raine/resale-appraiser/internal/catalog"
)

// Tier is an AI model capability and cost level.
type Tier string

const (
	TierFast     Tier = "fast"
	TierStandard Tier = "standard"
	TierFull     Tier = "full"
)

// Highest is the most capable tier, used for escalation.
const Highest = TierFull

const (
	minSignalLength     = 20
	maxStandardImages   = 5
	minIdentifierLength = 10
)

var identifierMarkers = []string{"isbn", "upc", "ean"}

// Selector picks the initial tier for an analysis.
type Selector struct {
	catalog catalog.Catalog
}

// NewSelector creates a selector over the given brand and category lists.
func NewSelector(c catalog.Catalog) *Selector {
	return &Selector{catalog: c}
}

// SelectModel returns the tier for the given OCR text and image count.
// First match wins:
//  1. luxury or hype brand present: Full
//  2. easy category keyword, or an isbn/upc/ean marker in text longer than
//     10 characters with a digit: Fast
//  3. text shorter than 20 characters or more than 5 images: Full
//  4. Standard
func (s *Selector) SelectModel(ocrText string, imageCount int) Tier {
	lower := strings.ToLower(ocrText)

	if _, ok := catalog.ContainsAny(lower, s.catalog.LuxuryBrands); ok {
		return TierFull
	}
	if _, ok := catalog.ContainsAny(lower, s.catalog.HypeBrands); ok {
		return TierFull
	}

	if _, ok := catalog.ContainsAny(lower, s.catalog.EasyCategories); ok {
		return TierFast
	}
	if _, ok := catalog.ContainsAny(lower, identifierMarkers); ok &&
		utf8.RuneCountInString(ocrText) > minIdentifierLength && hasDigit(ocrText) {
		return TierFast
	}

	if utf8.RuneCountInString(ocrText) < minSignalLength || imageCount > maxStandardImages {
		return TierFull
	}

	return TierStandard
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

// ModelSet maps tiers to model names.
type ModelSet struct {
	Fast     string `koanf:"fast"`
	Standard string `koanf:"standard"`
	Full     string `koanf:"full"`
}

// DefaultOpenAIModels are the chat-completions models per tier.
var DefaultOpenAIModels = ModelSet{
	Fast:     "gpt-5-nano",
	Standard: "gpt-5-mini",
	Full:     "gpt-5",
}

// DefaultGeminiModels are used when the Gemini transport is selected.
var DefaultGeminiModels = ModelSet{
	Fast:     "gemini-2.5-flash-lite",
	Standard: "gemini-2.5-flash",
	Full:     "gemini-2.5-pro",
}

// Model returns the model name for t, falling back to Full for unknown tiers.
func (m ModelSet) Model(t Tier) string {
	switch t {
	case TierFast:
		return m.Fast
	case TierStandard:
		return m.Standard
	default:
		return m.Full
	}
}

// Price is the cost per million tokens in USD.
type Price struct {
	InputPerMillion  float64 `koanf:"input"`
	OutputPerMillion float64 `koanf:"output"`
}

// PricingTable holds per-tier prices. Used for cost estimation and logging.
type PricingTable map[Tier]Price

// DefaultPricing matches the default OpenAI model set.
var DefaultPricing = PricingTable{
	TierFast:     {InputPerMillion: 0.05, OutputPerMillion: 0.40},
	TierStandard: {InputPerMillion: 0.25, OutputPerMillion: 2.00},
	TierFull:     {InputPerMillion: 1.25, OutputPerMillion: 10.00},
}

// DefaultGeminiPricing matches the default Gemini model set.
var DefaultGeminiPricing = PricingTable{
	TierFast:     {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	TierStandard: {InputPerMillion: 0.30, OutputPerMillion: 2.50},
	TierFull:     {InputPerMillion: 1.25, OutputPerMillion: 10.00},
}

// Cost estimates the USD cost of a call. Unknown tiers cost zero.
func (p PricingTable) Cost(t Tier, inputTokens, outputTokens int64) float64 {
	price, ok := p[t]
	if !ok {
		return 0
	}
	inputCost := float64(inputTokens) / 1_000_000 * price.InputPerMillion
	outputCost := float64(outputTokens) / 1_000_000 * price.OutputPerMillion
	return inputCost + outputCost
}
