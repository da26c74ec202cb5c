// Package catalog holds the static keyword configuration used to build
// marketplace queries and pick a model tier: brand lists, easy categories,
// marketplace categories and stopwords.
//
// The lists are plain configuration. Default returns the built-in set; the
// YAML config file can replace any of them (see internal/config).
package catalog

import "strings"

// Category is a marketplace category the OCR text can be matched against.
type Category struct {
	Name string `koanf:"name"` // Matched as a lowercase substring of OCR text
	ID   string `koanf:"id"`   // Marketplace category id sent as category_ids
}

// Catalog is the keyword configuration.
type Catalog struct {
	// LuxuryBrands and HypeBrands force the Full tier and are the first
	// brands considered when building a query.
	LuxuryBrands []string `koanf:"luxury_brands"`
	HypeBrands   []string `koanf:"hype_brands"`

	// CommonBrands only feed query building. They carry no tier risk.
	CommonBrands []string `koanf:"common_brands"`

	// EasyCategories are keywords for items with clear identifiers where the
	// cheapest tier is enough.
	EasyCategories []string `koanf:"easy_categories"`

	Categories []Category `koanf:"categories"`
	Stopwords  []string   `koanf:"stopwords"`
}

// Default returns the built-in catalog.
func Default() Catalog {
	return Catalog{
		LuxuryBrands: []string{
			"louis vuitton", "gucci", "chanel", "hermes", "hermès", "prada",
			"rolex", "omega", "cartier", "dior", "balenciaga", "burberry",
			"fendi", "saint laurent", "bottega veneta", "givenchy", "versace",
			"tiffany", "celine", "patek philippe", "audemars piguet",
		},
		HypeBrands: []string{
			"supreme", "off-white", "bape", "a bathing ape", "yeezy", "stussy",
			"palace", "fear of god", "chrome hearts", "travis scott", "kith",
			"sp5der", "gallery dept",
		},
		CommonBrands: []string{
			"nike", "jordan", "adidas", "new balance", "asics", "converse",
			"vans", "puma", "reebok", "apple", "samsung", "sony", "nintendo",
			"playstation", "xbox", "lego", "levi's", "levis", "patagonia",
			"north face", "arc'teryx", "carhartt", "ralph lauren", "coach",
			"michael kors", "canon", "nikon", "bose", "dyson", "pokemon",
		},
		EasyCategories: []string{
			"book", "paperback", "hardcover", "textbook", "novel", "dvd",
			"blu-ray", "compact disc", "vinyl", "cassette", "video game",
			"magazine", "comic",
		},
		Categories: []Category{
			{Name: "sneakers", ID: "15709"},
			{Name: "handbag", ID: "169291"},
			{Name: "watch", ID: "31387"},
			{Name: "video game", ID: "139973"},
			{Name: "book", ID: "267"},
			{Name: "vinyl", ID: "176985"},
			{Name: "jacket", ID: "57988"},
			{Name: "hoodie", ID: "155183"},
			{Name: "t-shirt", ID: "15687"},
			{Name: "jeans", ID: "11483"},
			{Name: "camera", ID: "31388"},
			{Name: "headphones", ID: "112529"},
			{Name: "trading card", ID: "183454"},
		},
		Stopwords: []string{
			"the", "and", "with", "from", "size", "color", "colour", "new",
			"used", "for", "this", "that", "item", "brand", "authentic",
			"genuine", "original", "condition", "mens", "womens", "men",
			"women", "unisex", "sale", "price", "made", "very", "good",
		},
	}
}

// Brands returns luxury, hype and common brands in scan order.
func (c Catalog) Brands() []string {
	out := make([]string, 0, len(c.LuxuryBrands)+len(c.HypeBrands)+len(c.CommonBrands))
	out = append(out, c.LuxuryBrands...)
	out = append(out, c.HypeBrands...)
	out = append(out, c.CommonBrands...)
	return out
}

// StopwordSet returns the stopwords as a lowercase lookup set.
func (c Catalog) StopwordSet() map[string]bool {
	set := make(map[string]bool, len(c.Stopwords))
	for _, w := range c.Stopwords {
		set[strings.ToLower(w)] = true
	}
	return set
}

// ContainsAny reports whether lowered contains any of the keywords,
// compared case-insensitively.
func ContainsAny(lowered string, keywords []string) (string, bool) {
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if strings.Contains(lowered, k) {
			return k, true
		}
	}
	return "", false
}
