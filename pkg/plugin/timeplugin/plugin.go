// Package timeplugin reports the current time and can wake the agent on a
// fixed schedule.
package timeplugin

import (
	"context"
	"log/slog"
	"time"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/plugin"
)

const (
	// ID of the plugin.
	ID = plugin.IDPrefix + "time"

	ActionCurrentTime = "get_current_time"
	ActionScheduled   = "scheduled"
)

// Plugin serves get_current_time and, when an interval is set, a trigger
// that creates one event per tick.
type Plugin struct {
	plugin.Base

	interval time.Duration
	prompt   string
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Plugin)

// WithInterval enables the scheduled trigger. Zero disables it.
func WithInterval(d time.Duration) Option {
	return func(p *Plugin) { p.interval = d }
}

// WithPrompt sets the message carried by scheduled events.
func WithPrompt(prompt string) Option {
	return func(p *Plugin) {
		if prompt != "" {
			p.prompt = prompt
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Plugin) { p.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Plugin) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func New(opts ...Option) *Plugin {
	p := &Plugin{
		Base:   plugin.NewBase(ID, "Time", "Knows the current date and time and wakes the agent on a schedule"),
		prompt: "A scheduled moment has arrived. Decide whether anything should be done.",
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.AddExecutor(plugin.Executor{
		Name:        ActionCurrentTime,
		Description: "Returns the current date and time in RFC 3339 format",
		Fn: func(context.Context, *core.AgentContext) (plugin.Result, error) {
			return plugin.OK(p.now().Format(time.RFC3339)), nil
		},
	})
	if p.interval > 0 {
		p.AddTrigger(plugin.Trigger{ID: "periodic", Start: p.schedule})
	}
	return p
}

func (p *Plugin) schedule(ctx context.Context, h plugin.Handle) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			item := core.NewUserInput(ID, ActionScheduled, "scheduler", p.prompt)
			if err := h.CreateEvent(ctx, item, &core.PlatformContext{Platform: ID}); err != nil {
				p.logger.WarnContext(ctx, "plugin.time.schedule.error", slog.String("error", err.Error()))
			}
		}
	}
}
