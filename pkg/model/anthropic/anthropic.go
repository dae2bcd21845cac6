// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

// Package anthropic provides an Anthropic Claude text-generation model provider.
package anthropic

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/capability"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model"
)

// Provider implements model.Provider for the Anthropic Messages API.
type Provider struct {
	model.Base
	client    anthropic.Client
	model     string
	apiKey    string
	baseURL   string
	maxTokens int64
}

// Option configures the Provider.
type Option func(*Provider)

// WithModel sets the default model.
func WithModel(m string) Option {
	return func(p *Provider) {
		if m != "" {
			p.model = m
		}
	}
}

// WithMaxTokens sets the maximum tokens for responses.
func WithMaxTokens(tokens int64) Option {
	return func(p *Provider) {
		if tokens > 0 {
			p.maxTokens = tokens
		}
	}
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithAPIKey sets the API key. ANTHROPIC_API_KEY is used when unset.
func WithAPIKey(apiKey string) Option {
	return func(p *Provider) {
		p.apiKey = apiKey
	}
}

// New creates a new Anthropic provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		Base:      model.NewBase("anthropic", "Anthropic", "Anthropic Claude models"),
		model:     string(anthropic.ModelClaude3_5Sonnet20241022),
		maxTokens: 4096,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.apiKey == "" {
		p.apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	var clientOpts []option.RequestOption
	if p.apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(p.apiKey))
	}
	if p.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(p.baseURL))
	}
	p.client = anthropic.NewClient(clientOpts...)
	p.AddCapability(model.NewTextGeneration(p.generate))
	return p
}

// Init implements model.Provider.
func (p *Provider) Init(context.Context) error {
	if p.apiKey == "" {
		return fmt.Errorf("anthropic: api key is not configured")
	}
	return nil
}

// CheckHealth sends a one-token request to confirm credentials and model.
func (p *Provider) CheckHealth(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
	})
	if err != nil {
		return fmt.Errorf("anthropic: model %s unavailable: %w", p.model, err)
	}
	return nil
}

func (p *Provider) generate(ctx context.Context, in model.TextGenerationInput, cfg capability.Config) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(in.Prompt))},
	}
	if in.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: in.System}}
	}
	if t, ok := cfg.Float("temperature"); ok {
		params.Temperature = anthropic.Float(t)
	}
	if n, ok := cfg.Int("max_tokens"); ok && n > 0 {
		params.MaxTokens = int64(n)
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic message failed: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	return text.String(), nil
}

var _ model.Provider = (*Provider)(nil)
