// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

// Package openai provides an OpenAI text-generation model provider.
package openai

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/capability"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model"
)

// Provider implements model.Provider for the OpenAI chat completions API.
type Provider struct {
	model.Base
	client    openai.Client
	model     string
	apiKey    string
	baseURL   string
	maxTokens int64
}

// Option configures the Provider.
type Option func(*Provider)

// WithModel sets the chat model.
func WithModel(m string) Option {
	return func(p *Provider) {
		if m != "" {
			p.model = m
		}
	}
}

// WithAPIKey sets the API key. OPENAI_API_KEY is used when unset.
func WithAPIKey(apiKey string) Option {
	return func(p *Provider) {
		p.apiKey = apiKey
	}
}

// WithBaseURL sets a custom base URL (for Azure OpenAI or proxies).
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithMaxTokens caps completion length.
func WithMaxTokens(n int64) Option {
	return func(p *Provider) {
		p.maxTokens = n
	}
}

// New creates a new OpenAI provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		Base:  model.NewBase("openai", "OpenAI", "OpenAI chat completion models"),
		model: "gpt-4o-mini",
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.apiKey == "" {
		p.apiKey = os.Getenv("OPENAI_API_KEY")
	}

	var clientOpts []option.RequestOption
	if p.apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(p.apiKey))
	}
	if p.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(p.baseURL))
	}
	p.client = openai.NewClient(clientOpts...)
	p.AddCapability(model.NewTextGeneration(p.generate))
	return p
}

// Init implements model.Provider.
func (p *Provider) Init(context.Context) error {
	if p.apiKey == "" {
		return fmt.Errorf("openai: api key is not configured")
	}
	return nil
}

// CheckHealth verifies the configured model is reachable.
func (p *Provider) CheckHealth(ctx context.Context) error {
	if _, err := p.client.Models.Get(ctx, p.model); err != nil {
		return fmt.Errorf("openai: model %s unavailable: %w", p.model, err)
	}
	return nil
}

func (p *Provider) generate(ctx context.Context, in model.TextGenerationInput, cfg capability.Config) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if in.System != "" {
		messages = append(messages, openai.SystemMessage(in.System))
	}
	messages = append(messages, openai.UserMessage(in.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: messages,
	}
	if t, ok := cfg.Float("temperature"); ok {
		params.Temperature = openai.Float(t)
	}
	maxTokens := p.maxTokens
	if n, ok := cfg.Int("max_tokens"); ok {
		maxTokens = int64(n)
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(maxTokens)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

var _ model.Provider = (*Provider)(nil)
