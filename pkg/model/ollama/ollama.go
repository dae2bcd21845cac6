// Package ollama provides a text-generation model provider backed by a local
// Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/capability"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model"
)

// Provider implements model.Provider for Ollama.
type Provider struct {
	model.Base
	baseURL string
	model   string
	client  *http.Client
}

// Option configures the Provider.
type Option func(*Provider)

// WithBaseURL sets the server address.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithModel sets the model name.
func WithModel(m string) Option {
	return func(p *Provider) {
		if m != "" {
			p.model = m
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

// New creates a new Ollama provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		Base:    model.NewBase("ollama", "Ollama", "Local models served by Ollama"),
		baseURL: "http://localhost:11434",
		model:   "llama3.2",
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.AddCapability(model.NewTextGeneration(p.generate))
	return p
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message message `json:"message"`
	Done    bool    `json:"done"`
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// CheckHealth verifies the server is up and has the configured model pulled.
func (p *Provider) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama server unreachable at %s: %w", p.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama api returned status: %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("failed to decode ollama tags: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == p.model || m.Model == p.model || strings.TrimSuffix(m.Name, ":latest") == p.model {
			return nil
		}
	}
	return fmt.Errorf("ollama model %s is not available, run: ollama pull %s", p.model, p.model)
}

func (p *Provider) generate(ctx context.Context, in model.TextGenerationInput, cfg capability.Config) (string, error) {
	oReq := chatRequest{Model: p.model}
	if in.System != "" {
		oReq.Messages = append(oReq.Messages, message{Role: "system", Content: in.System})
	}
	oReq.Messages = append(oReq.Messages, message{Role: "user", Content: in.Prompt})

	options := map[string]any{}
	if t, ok := cfg.Float("temperature"); ok {
		options["temperature"] = t
	}
	if n, ok := cfg.Int("max_tokens"); ok {
		options["num_predict"] = n
	}
	if len(options) > 0 {
		oReq.Options = options
	}

	body, err := json.Marshal(oReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ollama request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama api call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama api returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var oResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}
	return oResp.Message.Content, nil
}

var _ model.Provider = (*Provider)(nil)
