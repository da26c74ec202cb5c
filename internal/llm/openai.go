package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raine/resale-appraiser/internal/common"
)

const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIOpts configures an OpenAITransport.
type OpenAIOpts struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// OpenAITransport calls an OpenAI-compatible chat completions endpoint.
type OpenAITransport struct {
	apiKey     string
	httpClient *resty.Client
}

// NewOpenAITransport creates a transport. An empty APIKey yields a
// transport that reports Configured() == false.
func NewOpenAITransport(opts OpenAIOpts) *OpenAITransport {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenAITransport{
		apiKey: opts.APIKey,
		httpClient: resty.New().
			SetDebug(false).
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeaders(map[string]string{
				"Accept":       "application/json",
				"Content-Type": "application/json",
			}),
	}
}

func (o *OpenAITransport) Configured() bool {
	return o.apiKey != ""
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string            `json:"role"`
	Content []chatContentPart `json:"content"`
}

type chatCompletionRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	OutputText string `json:"output_text"`
	Usage      struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends the prompt and images as one user message.
func (o *OpenAITransport) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if !o.Configured() {
		return nil, fmt.Errorf("openai api key not set: %w", common.ErrConfiguration)
	}

	body := chatCompletionRequest{
		Model:       req.Model,
		Messages:    []chatMessage{{Role: "user", Content: contentParts(req)}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	body.ResponseFormat.Type = "json_object"

	res, err := o.httpClient.R().
		SetContext(ctx).
		SetAuthToken(o.apiKey).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("chat completion request: %w: %v", common.ErrTransientNetwork, err)
	}

	switch status := res.StatusCode(); {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, fmt.Errorf("chat completion rejected credentials (status %d): %w", status, common.ErrConfiguration)
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return nil, fmt.Errorf("chat completion failed (status %d): %w", status, common.ErrTransientNetwork)
	case res.IsError():
		return nil, fmt.Errorf("chat completion failed (status %d): %s", status, truncate(string(res.Body()), 300))
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(res.Body(), &resp); err != nil {
		return nil, fmt.Errorf("decode chat completion: %w: %v", common.ErrMalformedResponse, err)
	}

	text := resp.OutputText
	if len(resp.Choices) > 0 {
		if content := messageText(resp.Choices[0].Message.Content); content != "" {
			text = content
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no content in chat completion: %w", common.ErrMalformedResponse)
	}

	return &ChatResponse{
		Text: text,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

func contentParts(req *ChatRequest) []chatContentPart {
	images := LimitImages(req.Images)
	parts := make([]chatContentPart, 0, len(images)+1)
	parts = append(parts, chatContentPart{Type: "text", Text: req.Prompt})
	for _, img := range images {
		parts = append(parts, chatContentPart{
			Type:     "image_url",
			ImageURL: &chatImageURL{URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img)},
		})
	}
	return parts
}

// messageText reads message content given either as a string or as a list
// of text parts.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
