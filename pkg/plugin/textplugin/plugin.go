// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

// Package textplugin generates replies with the text-generation capability
// and hands them to the platform that produced the event.
package textplugin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/capability"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/plugin"
)

const (
	ID = plugin.IDPrefix + "text"

	ActionGenerate = "generate_text"
	ActionRespond  = "send_response"
)

const generatePrompt = `You are the voice of an agent. Write the reply to the user based on the
context chain below. The chain lists, in order, the user's message and the
results of every action taken so far. Use those results; do not invent facts.
Reply with the text of the message only.

Context chain:
%s`

// Plugin serves generate_text and send_response.
type Plugin struct {
	plugin.Base

	handle      plugin.Handle
	temperature float64
}

type Option func(*Plugin)

// WithTemperature sets the sampling temperature. Negative values leave the
// provider default.
func WithTemperature(t float64) Option {
	return func(p *Plugin) { p.temperature = t }
}

func New(opts ...Option) *Plugin {
	p := &Plugin{
		Base:        plugin.NewBase(ID, "Text", "Writes replies and sends them back to the platform"),
		temperature: -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.Require(model.TextGenerationCapability, false)
	p.AddExecutor(plugin.Executor{
		Name:        ActionGenerate,
		Description: "Writes a reply to the user from everything in the context chain",
		Fn:          p.generate,
	})
	p.AddExecutor(plugin.Executor{
		Name:        ActionRespond,
		Description: "Sends the most recently generated text back to the user's platform; run after " + ActionGenerate,
		Fn:          p.respond,
	})
	return p
}

func (p *Plugin) Init(_ context.Context, h plugin.Handle) error {
	p.handle = h
	return nil
}

func (p *Plugin) generate(ctx context.Context, agentCtx *core.AgentContext) (plugin.Result, error) {
	if p.handle == nil {
		return plugin.Fail("plugin %s is not initialized", ID), nil
	}
	chain, err := json.MarshalIndent(agentCtx.Chain(), "", "  ")
	if err != nil {
		return plugin.Result{}, err
	}
	cfg := capability.Config{}
	if p.temperature >= 0 {
		cfg["temperature"] = p.temperature
	}
	text, err := p.handle.Models().GenerateText(ctx, fmt.Sprintf(generatePrompt, chain), cfg)
	if err != nil {
		return plugin.Result{}, err
	}
	return plugin.OK(strings.TrimSpace(text)), nil
}

func (p *Plugin) respond(ctx context.Context, agentCtx *core.AgentContext) (plugin.Result, error) {
	text, ok := latestGenerated(agentCtx)
	if !ok {
		return plugin.Fail("no generated text to send; run %s first", ActionGenerate), nil
	}
	if agentCtx.Platform == nil || agentCtx.Platform.ResponseHandler == nil {
		return plugin.Fail("platform %q cannot receive responses", agentCtx.PlatformName()), nil
	}
	if err := agentCtx.Platform.ResponseHandler(ctx, text); err != nil {
		return plugin.Result{}, fmt.Errorf("deliver response: %w", err)
	}
	return plugin.OK(map[string]any{"sent": true, "message": text}), nil
}

func latestGenerated(agentCtx *core.AgentContext) (string, bool) {
	chain := agentCtx.Chain()
	for i := len(chain) - 1; i >= 0; i-- {
		item := chain[i]
		if item.PluginID == ID && item.Action == ActionGenerate && !item.IsError() {
			return item.Content, true
		}
	}
	return "", false
}
