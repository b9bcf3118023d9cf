// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/article-engine/internal/httputil"
)

// DefaultOllamaURL is the local Ollama endpoint.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaBackend calls a local or remote Ollama server's generate API.
type OllamaBackend struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Name identifies the backend in logs.
func (o *OllamaBackend) Name() string { return "ollama" }

func (o *OllamaBackend) baseURL() string {
	if o.BaseURL == "" {
		return DefaultOllamaURL
	}
	return strings.TrimRight(o.BaseURL, "/")
}

func (o *OllamaBackend) client() *http.Client {
	if o.Client == nil {
		return http.DefaultClient
	}
	return o.Client
}

// Generate posts a non-streaming generate request.
func (o *OllamaBackend) Generate(ctx context.Context, spec PromptSpec) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:  o.Model,
		Prompt: spec.Prompt,
		System: spec.System,
		Options: ollamaOptions{
			Temperature: spec.Temperature,
			NumPredict:  spec.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL()+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, o.client(), req, 0)
	if err != nil {
		return "", fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("Ollama", resp)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding Ollama response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("Ollama error: %s", out.Error)
	}
	return out.Response, nil
}

// Available checks that the server answers and has the model pulled.
func (o *OllamaBackend) Available(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL()+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := o.client().Do(req)
	if err != nil {
		return fmt.Errorf("contacting Ollama at %s: %w", o.baseURL(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError("Ollama", resp)
	}

	var tags ollamaTags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decoding Ollama tags: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == o.Model || m.Name == o.Model+":latest" {
			return nil
		}
	}
	return fmt.Errorf("model %q is not available on %s", o.Model, o.baseURL())
}

// statusError converts a non-200 response into an error. Client errors other
// than throttling are permanent.
func statusError(service string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	err := fmt.Errorf("%s returned %d: %s", service, resp.StatusCode, strings.TrimSpace(string(body)))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && !httputil.Throttled(resp.StatusCode) {
		return &PermanentError{Err: err}
	}
	return err
}
