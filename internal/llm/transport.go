package llm

import (
	"context"
	"time"
)

const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 2000
	DefaultTimeout     = 60 * time.Second

	// MaxImages is the number of images sent per request. Extra images are
	// dropped, keeping the earliest.
	MaxImages = 5
)

// ChatRequest is one vision inference call.
type ChatRequest struct {
	Model       string
	Prompt      string
	Images      [][]byte // JPEG bytes, sent after the prompt
	Temperature float64
	MaxTokens   int
}

// ChatResponse is the raw text answer and token counts. CostUSD is left for
// the caller, which knows the tier.
type ChatResponse struct {
	Text  string
	Usage Usage
}

// Transport sends inference requests to an AI provider.
//
// Errors wrap common.ErrConfiguration for rejected credentials,
// common.ErrTransientNetwork for retryable failures and
// common.ErrMalformedResponse for responses without usable text.
type Transport interface {
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// Configured reports whether a credential is set.
	Configured() bool
}

// LimitImages returns at most MaxImages images, keeping the earliest.
func LimitImages(images [][]byte) [][]byte {
	if len(images) > MaxImages {
		return images[:MaxImages]
	}
	return images
}
