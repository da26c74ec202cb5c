// Package query turns raw OCR text into a short marketplace search string.
package query

import (
	"sort"
	"strings"
	"unicode"

	"github.com/raine/resale-appraiser/internal/catalog"
)

const (
	// FallbackQuery is returned when nothing usable is left in the text.
	FallbackQuery = "item"

	maxTerms         = 4
	maxFallbackTerms = 2
	minTokenLen      = 3
	maxTokenLen      = 15
)

// edgePunctuation is trimmed from both ends of each token.
const edgePunctuation = ".,;:!?()[]{}\"'`*#|<>"

// Builder builds queries from a catalog. It is safe for concurrent use.
type Builder struct {
	brands     []string
	categories []catalog.Category
	stopwords  map[string]bool
}

// NewBuilder creates a query builder for the given catalog.
func NewBuilder(c catalog.Catalog) *Builder {
	brands := make([]string, 0, len(c.Brands()))
	for _, b := range c.Brands() {
		if b = strings.ToLower(strings.TrimSpace(b)); b != "" {
			brands = append(brands, b)
		}
	}
	return &Builder{
		brands:     brands,
		categories: c.Categories,
		stopwords:  c.StopwordSet(),
	}
}

// BuildQuery derives a search query from OCR text. The result is never empty
// and the same input always yields the same output.
func (b *Builder) BuildQuery(ocrText string) string {
	text := strings.ToLower(ocrText)

	var terms []string
	seen := make(map[string]bool)
	add := func(term string) {
		if !seen[term] && len(terms) < maxTerms {
			seen[term] = true
			terms = append(terms, term)
		}
	}

	for _, brand := range b.brands {
		if strings.Contains(text, brand) {
			// Stopwords inside a brand ("new balance") are dropped like
			// anywhere else.
			var kept []string
			for _, part := range strings.Fields(brand) {
				seen[part] = true
				if !b.stopwords[part] {
					kept = append(kept, part)
				}
			}
			if len(kept) > 0 {
				add(strings.Join(kept, " "))
			}
			text = strings.ReplaceAll(text, brand, " ")
			break
		}
	}

	tokens := b.tokenize(text)

	identifiers := 0
	for _, tok := range tokens {
		if isIdentifier(tok) {
			before := len(terms)
			add(tok)
			if len(terms) > before {
				identifiers++
			}
		}
	}

	if identifiers == 0 {
		for _, tok := range longestWords(tokens, seen, maxFallbackTerms) {
			add(tok)
		}
	}

	if len(terms) == 0 {
		return FallbackQuery
	}
	return strings.Join(terms, " ")
}

// ExtractCategory returns the first configured category whose name appears
// in the OCR text.
func (b *Builder) ExtractCategory(ocrText string) (string, bool) {
	text := strings.ToLower(ocrText)
	for _, c := range b.categories {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name != "" && strings.Contains(text, name) {
			return c.Name, true
		}
	}
	return "", false
}

// tokenize splits on whitespace, trims edge punctuation and drops stopwords
// and tokens outside the allowed length.
func (b *Builder) tokenize(text string) []string {
	var out []string
	for _, raw := range strings.Fields(text) {
		tok := strings.Trim(raw, edgePunctuation)
		n := len([]rune(tok))
		if n < minTokenLen || n > maxTokenLen {
			continue
		}
		if b.stopwords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// isIdentifier reports whether tok looks like a style code or SKU: either
// alphanumeric with at least one digit, or alphanumeric segments joined by
// hyphens or slashes.
func isIdentifier(tok string) bool {
	hasDigit, hasSeparator := false, false
	for _, r := range tok {
		switch {
		case r == '-' || r == '/':
			hasSeparator = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
		default:
			return false
		}
	}
	if hasSeparator {
		return strings.Trim(tok, "-/") == tok
	}
	return hasDigit
}

func isAlphanumeric(tok string) bool {
	for _, r := range tok {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// longestWords returns up to n of the longest alphanumeric tokens not already
// in seen. Ties keep the earlier token.
func longestWords(tokens []string, seen map[string]bool, n int) []string {
	var candidates []string
	dup := make(map[string]bool)
	for _, tok := range tokens {
		if seen[tok] || dup[tok] || !isAlphanumeric(tok) {
			continue
		}
		dup[tok] = true
		candidates = append(candidates, tok)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len([]rune(candidates[i])) > len([]rune(candidates[j]))
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}
