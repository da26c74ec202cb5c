package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/raine/resale-appraiser/internal/common"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const geminiOCRModel = "gemini-2.5-flash-lite"

const ocrPrompt = `Transcribe all text visible in this image exactly as printed: labels, tags, barcodes digits, style codes, book covers and spines.
Output one line per text fragment, in reading order. Do not describe the image or add commentary.
If there is no readable text, output nothing.`

// GeminiOpts configures the Gemini transport and OCR provider.
type GeminiOpts struct {
	APIKey  string
	BaseURL string        // Empty uses the public endpoint
	Timeout time.Duration // Per call, DefaultTimeout when zero
}

// GeminiTransport sends inference requests through the Gemini API.
type GeminiTransport struct {
	client  *genai.Client
	timeout time.Duration
}

// NewGeminiTransport creates a Gemini transport. An empty API key yields a
// transport that reports Configured() == false without creating a client.
func NewGeminiTransport(ctx context.Context, opts GeminiOpts) (*GeminiTransport, error) {
	if opts.APIKey == "" {
		return &GeminiTransport{}, nil
	}
	client, err := newGeminiClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &GeminiTransport{client: client, timeout: callTimeout(opts.Timeout)}, nil
}

func newGeminiClient(ctx context.Context, opts GeminiOpts) (*genai.Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

func callTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}

func (g *GeminiTransport) Configured() bool {
	return g.client != nil
}

// Complete sends the prompt followed by the images as one user turn.
func (g *GeminiTransport) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if !g.Configured() {
		return nil, fmt.Errorf("gemini api key not set: %w", common.ErrConfiguration)
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, img := range LimitImages(req.Images) {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{Data: img, MIMEType: "image/jpeg"},
		})
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens:  int32(req.MaxTokens),
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	result, err := g.client.Models.GenerateContent(callCtx, req.Model, []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}, config)
	if err != nil {
		return nil, classifyGeminiError(ctx, err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini: %w", common.ErrMalformedResponse)
	}

	return &ChatResponse{Text: result.Text(), Usage: geminiUsage(result)}, nil
}

func geminiUsage(result *genai.GenerateContentResponse) Usage {
	if result.UsageMetadata == nil {
		return Usage{}
	}
	return Usage{
		InputTokens:  int64(result.UsageMetadata.PromptTokenCount),
		OutputTokens: int64(result.UsageMetadata.CandidatesTokenCount),
		TotalTokens:  int64(result.UsageMetadata.TotalTokenCount),
	}
}

func classifyGeminiError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return fmt.Errorf("gemini rejected credentials: %w: %v", common.ErrConfiguration, err)
		case apiErr.Code == http.StatusBadRequest || apiErr.Code == http.StatusNotFound:
			return fmt.Errorf("gemini request failed: %w", err)
		}
	}
	return fmt.Errorf("failed to generate content: %w: %v", common.ErrTransientNetwork, err)
}

// GeminiOCR transcribes text in images with a Gemini vision model.
type GeminiOCR struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiOCR creates an OCR provider. An empty model uses the lite model.
func NewGeminiOCR(ctx context.Context, opts GeminiOpts, model string) (*GeminiOCR, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini api key not set: %w", common.ErrConfiguration)
	}
	client, err := newGeminiClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = geminiOCRModel
	}
	return &GeminiOCR{client: client, model: model, timeout: callTimeout(opts.Timeout)}, nil
}

// Recognize returns the text visible in image, or "" if there is none.
func (g *GeminiOCR) Recognize(ctx context.Context, image []byte) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(ocrPrompt),
		{InlineData: &genai.Blob{Data: image, MIMEType: "image/jpeg"}},
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	result, err := g.client.Models.GenerateContent(callCtx, g.model, []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}, nil)
	if err != nil {
		return "", classifyGeminiError(ctx, err)
	}

	text := strings.TrimSpace(result.Text())
	usage := geminiUsage(result)
	log.Debug().
		Str("model", g.model).
		Int("chars", len(text)).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Msg("ocr llm call")

	return text, nil
}
