// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pdiddy/article-engine/internal/httputil"
)

// OpenAIBackend calls an OpenAI-compatible chat completions endpoint. A base
// URL selects compatible services such as DeepSeek or a local vLLM server.
type OpenAIBackend struct {
	client openai.Client
	model  string
}

// NewOpenAIBackend builds a backend. httpClient and baseURL are optional.
// The SDK's own retries are disabled; the generation Client owns retrying.
func NewOpenAIBackend(apiKey, baseURL, model string, httpClient *http.Client) *OpenAIBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &OpenAIBackend{client: openai.NewClient(opts...), model: model}
}

// Name identifies the backend in logs.
func (o *OpenAIBackend) Name() string { return "openai" }

// Generate sends the system and user messages and returns the first choice.
func (o *OpenAIBackend) Generate(ctx context.Context, spec PromptSpec) (string, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if spec.System != "" {
		msgs = append(msgs, openai.SystemMessage(spec.System))
	}
	msgs = append(msgs, openai.UserMessage(spec.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: msgs,
	}
	if spec.Temperature > 0 {
		params.Temperature = openai.Float(spec.Temperature)
	}
	if spec.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(spec.MaxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Available checks that the configured model can be retrieved.
func (o *OpenAIBackend) Available(ctx context.Context) error {
	if _, err := o.client.Models.Get(ctx, o.model); err != nil {
		return fmt.Errorf("checking model %q: %w", o.model, classifyOpenAI(err))
	}
	return nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("OpenAI returned %d: %w", apiErr.StatusCode, err)
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && !httputil.Throttled(apiErr.StatusCode) {
			return &PermanentError{Err: wrapped}
		}
		return wrapped
	}
	return fmt.Errorf("calling OpenAI: %w", err)
}
