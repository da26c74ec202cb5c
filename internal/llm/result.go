package llm

import (
	"github.com/raine/resale-appraiser/internal/market"
	"github.com/shopspring/decimal"
)

// Unknown is the value used for brand, model and name when the model could
// not determine them.
const Unknown = "Unknown"

// Condition grades accepted in a response.
var ConditionGrades = []string{"New", "Like New", "Good", "Fair", "Poor"}

// Condition describes the physical state of the item.
type Condition struct {
	Grade   string `json:"grade,omitempty"`
	Score   int    `json:"score,omitempty"` // 1..10, 0 when not given
	Details string `json:"details,omitempty"`
}

// Identifiers are codes printed on the item or its tags.
type Identifiers struct {
	StyleCode    string `json:"styleCode,omitempty"`
	UPC          string `json:"upc,omitempty"`
	SKU          string `json:"sku,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`
}

// Attributes are the structured product attributes.
type Attributes struct {
	Brand          string      `json:"brand"`
	Model          string      `json:"model"`
	Name           string      `json:"name"`
	Category       string      `json:"category,omitempty"`
	Size           string      `json:"size,omitempty"`
	Color          string      `json:"color,omitempty"`
	Material       string      `json:"material,omitempty"`
	Condition      Condition   `json:"condition"`
	Defects        []string    `json:"defects"`
	Identifiers    Identifiers `json:"identifiers"`
	YearReleased   string      `json:"yearReleased,omitempty"`
	Collaboration  string      `json:"collaboration,omitempty"`
	SpecialEdition string      `json:"specialEdition,omitempty"`
}

// SuggestedPrice is the model's pricing recommendation.
type SuggestedPrice struct {
	QuickSale decimal.Decimal `json:"quickSale"`
	Market    decimal.Decimal `json:"market"`
	Premium   decimal.Decimal `json:"premium"`
	Reasoning string          `json:"reasoning,omitempty"`
}

// ListingContent is ready-to-post listing copy.
type ListingContent struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Keywords     []string `json:"keywords"`
	BulletPoints []string `json:"bulletPoints"`
}

// MarketAnalysis is the model's optional read on demand.
type MarketAnalysis struct {
	DemandLevel     string `json:"demandLevel"`
	CompetitorCount *int   `json:"competitorCount,omitempty"`
	RecentSales     *int   `json:"recentSales,omitempty"`
	SeasonalFactors string `json:"seasonalFactors,omitempty"`
}

// ExpertAnalysisResult is a complete, validated analysis.
type ExpertAnalysisResult struct {
	Attributes     Attributes      `json:"attributes"`
	Confidence     float64         `json:"confidence"`
	Evidence       []string        `json:"evidence"`
	SuggestedPrice SuggestedPrice  `json:"suggestedPrice"`
	ListingContent ListingContent  `json:"listingContent"`
	MarketAnalysis *MarketAnalysis `json:"marketAnalysis,omitempty"`

	// EscalatedToGPT5 is true when the result came from the Full tier after
	// the selector chose a lower one.
	EscalatedToGPT5 bool `json:"escalatedToGPT5"`

	Tier       Tier           `json:"tier"`
	Model      string         `json:"model"`
	Attempts   int            `json:"attempts"`
	Usage      Usage          `json:"usage"`
	MarketData *market.Result `json:"marketData,omitempty"`
}

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	TotalTokens  int64   `json:"totalTokens"`
	CostUSD      float64 `json:"costUSD"`
}

// Add returns the sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
		TotalTokens:  u.TotalTokens + o.TotalTokens,
		CostUSD:      u.CostUSD + o.CostUSD,
	}
}
