package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/raine/resale-appraiser/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAIServer(t *testing.T, status int, body string, inspect func(r *http.Request, payload map[string]any)) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(raw, &payload)
		if inspect != nil {
			inspect(r, payload)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestOpenAITransport_Complete(t *testing.T) {
	ts := newOpenAIServer(t, http.StatusOK,
		`{"choices":[{"message":{"content":"{\"ok\":true}"}}],"usage":{"prompt_tokens":1200,"completion_tokens":300,"total_tokens":1500}}`,
		func(r *http.Request, payload map[string]any) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			assert.Equal(t, "gpt-5-mini", payload["model"])
			assert.Equal(t, 0.3, payload["temperature"])
			assert.Equal(t, 2000.0, payload["max_tokens"])
			assert.Equal(t, map[string]any{"type": "json_object"}, payload["response_format"])

			messages := payload["messages"].([]any)
			if !assert.Len(t, messages, 1) {
				return
			}
			msg := messages[0].(map[string]any)
			assert.Equal(t, "user", msg["role"])
			content := msg["content"].([]any)
			if !assert.Len(t, content, 1+MaxImages, "images beyond the cap are dropped") {
				return
			}
			assert.Equal(t, "text", content[0].(map[string]any)["type"])
			img := content[1].(map[string]any)
			assert.Equal(t, "image_url", img["type"])
			url := img["image_url"].(map[string]any)["url"].(string)
			assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))
		})

	tr := NewOpenAITransport(OpenAIOpts{BaseURL: ts.URL, APIKey: "sk-test"})
	images := make([][]byte, 7)
	for i := range images {
		images[i] = []byte{0xff, 0xd8, byte(i)}
	}

	res, err := tr.Complete(context.Background(), &ChatRequest{
		Model:       "gpt-5-mini",
		Prompt:      "describe",
		Images:      images,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, res.Text)
	assert.Equal(t, int64(1200), res.Usage.InputTokens)
	assert.Equal(t, int64(300), res.Usage.OutputTokens)
	assert.Equal(t, int64(1500), res.Usage.TotalTokens)
}

func TestOpenAITransport_OutputTextFallback(t *testing.T) {
	ts := newOpenAIServer(t, http.StatusOK, `{"output_text":"{\"a\":1}"}`, nil)
	tr := NewOpenAITransport(OpenAIOpts{BaseURL: ts.URL, APIKey: "k"})

	res, err := tr.Complete(context.Background(), &ChatRequest{Model: "m", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, res.Text)
}

func TestOpenAITransport_ContentParts(t *testing.T) {
	ts := newOpenAIServer(t, http.StatusOK, `{"choices":[{"message":{"content":[{"type":"text","text":"{\"a\":"},{"type":"text","text":"2}"}]}}]}`, nil)
	tr := NewOpenAITransport(OpenAIOpts{BaseURL: ts.URL, APIKey: "k"})

	res, err := tr.Complete(context.Background(), &ChatRequest{Model: "m", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, res.Text)
}

func TestOpenAITransport_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{}}`, common.ErrConfiguration},
		{"forbidden", http.StatusForbidden, `{}`, common.ErrConfiguration},
		{"rate limited", http.StatusTooManyRequests, `{}`, common.ErrTransientNetwork},
		{"server error", http.StatusBadGateway, `{}`, common.ErrTransientNetwork},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"content":""}}]}`, common.ErrMalformedResponse},
		{"not json", http.StatusOK, `<html>`, common.ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newOpenAIServer(t, tt.status, tt.body, nil)
			tr := NewOpenAITransport(OpenAIOpts{BaseURL: ts.URL, APIKey: "k"})
			_, err := tr.Complete(context.Background(), &ChatRequest{Model: "m", Prompt: "p"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenAITransport_BadRequestNotRetryable(t *testing.T) {
	ts := newOpenAIServer(t, http.StatusBadRequest, `{"error":{"message":"bad"}}`, nil)
	tr := NewOpenAITransport(OpenAIOpts{BaseURL: ts.URL, APIKey: "k"})

	_, err := tr.Complete(context.Background(), &ChatRequest{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.False(t, common.IsRetryable(err))
}

func TestOpenAITransport_NotConfigured(t *testing.T) {
	tr := NewOpenAITransport(OpenAIOpts{})
	assert.False(t, tr.Configured())

	_, err := tr.Complete(context.Background(), &ChatRequest{})
	assert.ErrorIs(t, err, common.ErrConfiguration)
}
