package monitor

import (
	"context"
	"log/slog"
	"strings"
)

// ConsoleMonitor writes events to a slog logger. State events are logged at
// debug level since they are emitted after every chain mutation.
type ConsoleMonitor struct {
	logger *slog.Logger
}

// NewConsoleMonitor creates a console sink. A nil logger uses slog.Default().
func NewConsoleMonitor(logger *slog.Logger) *ConsoleMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleMonitor{logger: logger}
}

// ID implements Provider.
func (c *ConsoleMonitor) ID() string { return "console" }

// PublishEvent implements Provider.
func (c *ConsoleMonitor) PublishEvent(ctx context.Context, event Event) error {
	level := slog.LevelInfo
	switch {
	case event.Type == EventState:
		level = slog.LevelDebug
	case strings.HasSuffix(event.Type, ".error"), strings.HasSuffix(event.Type, ".rejected"):
		level = slog.LevelWarn
	case strings.HasPrefix(event.Type, "model."):
		level = slog.LevelDebug
	}
	c.logger.Log(ctx, level, "monitor.event",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
		slog.String("message", event.Message),
		slog.Any("metadata", event.Metadata),
	)
	return nil
}

// CheckHealth implements Provider.
func (c *ConsoleMonitor) CheckHealth(context.Context) error { return nil }
