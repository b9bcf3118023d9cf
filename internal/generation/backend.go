// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generation

import (
	"fmt"
	"net/http"

	"github.com/pdiddy/article-engine/pkg/types"
)

const defaultClaudeModel = "claude-sonnet-4-5-20250929"

// NewBackend builds the backend selected by cfg. httpClient may be nil.
func NewBackend(cfg types.GenerationConfig, httpClient *http.Client) (Backend, error) {
	switch cfg.Backend {
	case types.BackendOllama, "":
		return &OllamaBackend{BaseURL: cfg.BaseURL, Model: cfg.Model, Client: httpClient}, nil
	case types.BackendOpenAI:
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai backend needs an API key or a compatible base URL")
		}
		return NewOpenAIBackend(cfg.APIKey, cfg.BaseURL, cfg.Model, httpClient), nil
	case types.BackendClaude:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("claude backend needs an Anthropic API key")
		}
		model := cfg.Model
		if model == "" {
			model = defaultClaudeModel
		}
		return &ClaudeBackend{APIKey: cfg.APIKey, Model: model, Client: httpClient}, nil
	}
	return nil, fmt.Errorf("unknown generation backend %q", cfg.Backend)
}
