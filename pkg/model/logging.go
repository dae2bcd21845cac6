package model

import (
	"context"
	"time"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/capability"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/monitor"
)

// LoggingProvider decorates a Provider so that every capability call is
// reported to a monitor. The capability set is the inner provider's.
type LoggingProvider struct {
	Provider
	caps []capability.Capability
}

// NewLoggingProvider wraps p.
func NewLoggingProvider(p Provider, m monitor.Publisher) *LoggingProvider {
	inner := p.Capabilities()
	caps := make([]capability.Capability, 0, len(inner))
	for _, c := range inner {
		caps = append(caps, &loggingCapability{Capability: c, modelID: p.ID(), monitor: m})
	}
	return &LoggingProvider{Provider: p, caps: caps}
}

// Capabilities returns the decorated capabilities.
func (l *LoggingProvider) Capabilities() []capability.Capability {
	out := make([]capability.Capability, len(l.caps))
	copy(out, l.caps)
	return out
}

// Unwrap returns the decorated provider.
func (l *LoggingProvider) Unwrap() Provider {
	return l.Provider
}

type loggingCapability struct {
	capability.Capability
	modelID string
	monitor monitor.Publisher
}

func (c *loggingCapability) Execute(ctx context.Context, input any, cfg capability.Config) (any, error) {
	meta := func(extra map[string]any) map[string]any {
		m := map[string]any{
			"modelId":      c.modelID,
			"capabilityId": c.ID(),
		}
		for k, v := range extra {
			m[k] = v
		}
		return m
	}

	c.monitor.Publish(ctx, monitor.NewEvent(monitor.EventModelRequest,
		"model "+c.modelID+" executing "+c.ID(),
		meta(map[string]any{"input": input, "config": map[string]any(cfg)}),
	))

	start := time.Now()
	out, err := c.Capability.Execute(ctx, input, cfg)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		c.monitor.Publish(ctx, monitor.NewEvent(monitor.EventModelError,
			"model "+c.modelID+" failed "+c.ID(),
			meta(map[string]any{"error": err.Error(), "durationMs": elapsed}),
		))
		return nil, err
	}
	c.monitor.Publish(ctx, monitor.NewEvent(monitor.EventModelResponse,
		"model "+c.modelID+" completed "+c.ID(),
		meta(map[string]any{"output": out, "durationMs": elapsed}),
	))
	return out, nil
}
