package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raine/resale-appraiser/internal/common"
	"github.com/shopspring/decimal"
)

var (
	quickSaleFactor = decimal.RequireFromString("0.85")
	premiumFactor   = decimal.RequireFromString("1.15")
)

// extractJSONObject extracts a JSON object from text that may contain markdown
// code blocks or other formatting. Returns the extracted JSON string or an error.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %w", common.ErrMalformedResponse)
	}
	return text[start : end+1], nil
}

// Wire shapes. Pointers distinguish missing fields from zero values.
type wireResult struct {
	Attributes     *wireAttributes     `json:"attributes"`
	Confidence     *float64            `json:"confidence"`
	Evidence       []string            `json:"evidence"`
	SuggestedPrice *wireSuggestedPrice `json:"suggestedPrice"`
	ListingContent *ListingContent     `json:"listingContent"`
	MarketAnalysis *MarketAnalysis     `json:"marketAnalysis"`
}

type wireAttributes struct {
	Brand          string          `json:"brand"`
	Model          string          `json:"model"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Size           json.RawMessage `json:"size"`
	Color          string          `json:"color"`
	Material       string          `json:"material"`
	Condition      *Condition      `json:"condition"`
	Defects        []string        `json:"defects"`
	Identifiers    *Identifiers    `json:"identifiers"`
	YearReleased   json.RawMessage `json:"yearReleased"`
	Collaboration  string          `json:"collaboration"`
	SpecialEdition json.RawMessage `json:"specialEdition"`
}

type wireSuggestedPrice struct {
	QuickSale *decimal.Decimal `json:"quickSale"`
	Market    *decimal.Decimal `json:"market"`
	Premium   *decimal.Decimal `json:"premium"`
	Reasoning string           `json:"reasoning"`
}

// ParseResult extracts the outermost JSON object from a model response and
// validates it into an ExpertAnalysisResult. Every failure wraps
// common.ErrMalformedResponse.
//
// Default policy: empty brand, model and name become Unknown; missing
// quickSale and premium are derived from market with the 0.85 and 1.15
// factors. Nothing else is defaulted.
func ParseResult(text string) (*ExpertAnalysisResult, error) {
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var w wireResult
	if err := json.Unmarshal([]byte(jsonStr), &w); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w: %v", common.ErrMalformedResponse, err)
	}

	if w.Attributes == nil {
		return nil, malformed("missing attributes")
	}
	if w.SuggestedPrice == nil {
		return nil, malformed("missing suggestedPrice")
	}
	if w.ListingContent == nil {
		return nil, malformed("missing listingContent")
	}
	if strings.TrimSpace(w.ListingContent.Title) == "" {
		return nil, malformed("empty listingContent.title")
	}
	if w.Confidence == nil {
		return nil, malformed("missing confidence")
	}
	if *w.Confidence < 0 || *w.Confidence > 1 {
		return nil, malformed(fmt.Sprintf("confidence %v out of range", *w.Confidence))
	}

	attrs, err := w.Attributes.validate()
	if err != nil {
		return nil, err
	}
	price, err := w.SuggestedPrice.validate()
	if err != nil {
		return nil, err
	}

	listing := *w.ListingContent
	if listing.Keywords == nil {
		listing.Keywords = []string{}
	}
	if listing.BulletPoints == nil {
		listing.BulletPoints = []string{}
	}
	evidence := w.Evidence
	if evidence == nil {
		evidence = []string{}
	}

	return &ExpertAnalysisResult{
		Attributes:     attrs,
		Confidence:     *w.Confidence,
		Evidence:       evidence,
		SuggestedPrice: price,
		ListingContent: listing,
		MarketAnalysis: w.MarketAnalysis,
	}, nil
}

func (w *wireAttributes) validate() (Attributes, error) {
	a := Attributes{
		Brand:          orUnknown(w.Brand),
		Model:          orUnknown(w.Model),
		Name:           orUnknown(w.Name),
		Category:       strings.TrimSpace(w.Category),
		Size:           rawText(w.Size),
		Color:          strings.TrimSpace(w.Color),
		Material:       strings.TrimSpace(w.Material),
		Defects:        w.Defects,
		YearReleased:   rawText(w.YearReleased),
		Collaboration:  strings.TrimSpace(w.Collaboration),
		SpecialEdition: rawText(w.SpecialEdition),
	}
	if a.Defects == nil {
		a.Defects = []string{}
	}
	if w.Identifiers != nil {
		a.Identifiers = *w.Identifiers
	}
	if w.Condition != nil {
		c := *w.Condition
		if c.Grade != "" {
			grade, ok := canonicalGrade(c.Grade)
			if !ok {
				return Attributes{}, malformed(fmt.Sprintf("unknown condition grade %q", c.Grade))
			}
			c.Grade = grade
		}
		if c.Score != 0 && (c.Score < 1 || c.Score > 10) {
			return Attributes{}, malformed(fmt.Sprintf("condition score %d out of range", c.Score))
		}
		a.Condition = c
	}
	return a, nil
}

func (w *wireSuggestedPrice) validate() (SuggestedPrice, error) {
	if w.Market == nil {
		return SuggestedPrice{}, malformed("missing suggestedPrice.market")
	}
	p := SuggestedPrice{Market: *w.Market, Reasoning: strings.TrimSpace(w.Reasoning)}
	if w.QuickSale != nil {
		p.QuickSale = *w.QuickSale
	} else {
		p.QuickSale = p.Market.Mul(quickSaleFactor).Round(2)
	}
	if w.Premium != nil {
		p.Premium = *w.Premium
	} else {
		p.Premium = p.Market.Mul(premiumFactor).Round(2)
	}

	if p.QuickSale.IsNegative() || p.Market.IsNegative() || p.Premium.IsNegative() {
		return SuggestedPrice{}, malformed("negative suggested price")
	}
	if p.QuickSale.GreaterThan(p.Market) || p.Market.GreaterThan(p.Premium) {
		return SuggestedPrice{}, malformed(fmt.Sprintf("suggested prices out of order: %s / %s / %s", p.QuickSale, p.Market, p.Premium))
	}
	return p, nil
}

func canonicalGrade(s string) (string, bool) {
	for _, g := range ConditionGrades {
		if strings.EqualFold(strings.TrimSpace(s), g) {
			return g, true
		}
	}
	return "", false
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "unknown") {
		return Unknown
	}
	return s
}

// rawText renders a JSON string, number or bool as plain text. Null and
// objects become empty.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	switch raw[0] {
	case '{', '[', 'n':
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func malformed(reason string) error {
	return fmt.Errorf("%s: %w", reason, common.ErrMalformedResponse)
}
