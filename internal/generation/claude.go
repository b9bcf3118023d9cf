// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/article-engine/internal/httputil"
)

// claudeAPIURL is the Claude Messages endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

// claudeModelsURL is the Claude Models endpoint used by Available.
var claudeModelsURL = "https://api.anthropic.com/v1/models"

const (
	anthropicVersion      = "2023-06-01"
	defaultClaudeMaxToken = 4096
)

// ClaudeBackend calls the Anthropic Messages API.
type ClaudeBackend struct {
	APIKey string
	Model  string
	Client *http.Client
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Name identifies the backend in logs.
func (c *ClaudeBackend) Name() string { return "claude" }

func (c *ClaudeBackend) client() *http.Client {
	if c.Client == nil {
		return http.DefaultClient
	}
	return c.Client
}

func (c *ClaudeBackend) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}

// Generate sends one user message and concatenates the text blocks of the reply.
func (c *ClaudeBackend) Generate(ctx context.Context, spec PromptSpec) (string, error) {
	maxTokens := spec.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxToken
	}
	reqBody := claudeRequest{
		Model:     c.Model,
		MaxTokens: maxTokens,
		System:    spec.System,
		Messages:  []claudeMessage{{Role: "user", Content: spec.Prompt}},
	}
	if spec.Temperature > 0 {
		t := spec.Temperature
		reqBody.Temperature = &t
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := httputil.DoWithRetry(ctx, c.client(), req, 0)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("Claude API", resp)
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}

	var sb strings.Builder
	for _, block := range cResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// Available checks that the API key is accepted and the model exists.
func (c *ClaudeBackend) Available(ctx context.Context) error {
	if c.APIKey == "" {
		return fmt.Errorf("no Anthropic API key configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, claudeModelsURL+"/"+url.PathEscape(c.Model), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("contacting Claude API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError("Claude API", resp)
	}
	return nil
}
