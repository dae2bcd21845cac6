// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcpplugin exposes the tools of an MCP server as plugin actions.
// Tool arguments are derived from the context chain by the model.
package mcpplugin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/operation"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/plugin"
)

// ToolCaller lists and executes MCP tools. *Client implements it.
type ToolCaller interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// Plugin turns every tool of one MCP server into an action.
type Plugin struct {
	plugin.Base

	caller     ToolCaller
	handle     plugin.Handle
	logger     *slog.Logger
	maxRetries int
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Plugin) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMaxRetries sets the attempts used to derive tool arguments.
func WithMaxRetries(n int) Option {
	return func(p *Plugin) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

// New creates the plugin for the server called name. Actions are discovered
// when the runtime initializes the plugin.
func New(name string, caller ToolCaller, opts ...Option) *Plugin {
	p := &Plugin{
		Base: plugin.NewBase(plugin.IDPrefix+"mcp-"+name, "MCP "+name,
			fmt.Sprintf("Tools served by the %s MCP server", name)),
		caller:     caller,
		logger:     slog.Default(),
		maxRetries: operation.DefaultMaxRetries,
	}
	p.Require(model.TextGenerationCapability, false)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Init lists the server's tools and registers one action per tool.
func (p *Plugin) Init(ctx context.Context, h plugin.Handle) error {
	p.handle = h
	tools, err := p.caller.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	for _, tool := range tools {
		if tool.Name == "" {
			continue
		}
		p.AddExecutor(plugin.Executor{
			Name:        tool.Name,
			Description: tool.Description,
			Fn:          p.toolExecutor(tool),
		})
	}
	p.logger.InfoContext(ctx, "plugin.mcp.tools",
		slog.String("plugin_id", p.ID()),
		slog.Int("tools", len(tools)))
	return nil
}

// Close releases the connection when the caller holds one.
func (p *Plugin) Close() error {
	if c, ok := p.caller.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (p *Plugin) toolExecutor(tool mcp.Tool) plugin.ExecutorFunc {
	return func(ctx context.Context, agentCtx *core.AgentContext) (plugin.Result, error) {
		args := map[string]any{}
		if hasParameters(tool) {
			if p.handle == nil {
				return plugin.Fail("plugin %s is not initialized", p.ID()), nil
			}
			derived, err := operation.GetObject[map[string]any](ctx, p.handle.Models(), argumentsPrompt(tool, agentCtx),
				operation.WithMaxRetries(p.maxRetries),
				operation.WithLogger(p.logger))
			if err != nil {
				return plugin.Fail("derive arguments for %s: %v", tool.Name, err), nil
			}
			if derived != nil {
				args = derived
			}
		}
		if err := validateRequiredArgs(tool, args); err != nil {
			return plugin.Fail("%v", err), nil
		}

		result, err := p.caller.CallTool(ctx, tool.Name, args)
		if err != nil {
			return plugin.Result{}, err
		}
		out, err := toolResultToOutput(result)
		if err != nil {
			return plugin.Fail("%v", err), nil
		}
		return plugin.OK(out), nil
	}
}

func hasParameters(tool mcp.Tool) bool {
	return len(tool.RawInputSchema) > 0 || len(tool.InputSchema.Properties) > 0
}

func inputSchema(tool mcp.Tool) string {
	if len(tool.RawInputSchema) > 0 {
		return string(tool.RawInputSchema)
	}
	raw, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func argumentsPrompt(tool mcp.Tool, agentCtx *core.AgentContext) string {
	chain, _ := json.MarshalIndent(agentCtx.Chain(), "", "  ")
	var b strings.Builder
	fmt.Fprintf(&b, "Prepare the arguments for the tool %q.\n", tool.Name)
	if tool.Description != "" {
		fmt.Fprintf(&b, "Tool description: %s\n", tool.Description)
	}
	fmt.Fprintf(&b, "Argument JSON schema: %s\n\n", inputSchema(tool))
	b.WriteString("Context chain:\n")
	b.Write(chain)
	b.WriteString("\n\nReturn a JSON object with the arguments, using only information from the context chain.")
	return b.String()
}

func validateRequiredArgs(tool mcp.Tool, args map[string]any) error {
	schema := tool.InputSchema
	if schema.Type != "" && schema.Type != "object" {
		return nil
	}
	for _, key := range schema.Required {
		if _, ok := args[key]; !ok {
			return fmt.Errorf("mcp tool %s: missing required argument %q", tool.Name, key)
		}
	}
	return nil
}

func toolResultToOutput(result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, fmt.Errorf("mcp tool result is nil")
	}
	if result.IsError {
		return nil, fmt.Errorf("mcp tool returned error: %s", extractTextContent(result.Content))
	}
	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}
	return extractTextContent(result.Content), nil
}

func extractTextContent(items []mcp.Content) string {
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}
