// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
)

var logLevel = new(slog.LevelVar)

// ConfigureSlog sets the global slog logger. Records logged with a context
// carry trace_id and span_id of the active span and the run_id of the agent
// context being processed.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	SetLogLevel(level)
	logger := slog.New(newLeveledHandler(output, logLevel, format))
	slog.SetDefault(logger)
	return logger
}

// SetLogLevel changes the level of loggers created by ConfigureSlog,
// including ones already handed out.
func SetLogLevel(level string) {
	logLevel.Set(parseLogLevel(level))
}

func newSlogHandler(output io.Writer, level, format string) slog.Handler {
	return newLeveledHandler(output, parseLogLevel(level), format)
}

func newLeveledHandler(output io.Writer, level slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	var base slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		base = slog.NewJSONHandler(output, opts)
	case "none", "off":
		base = slog.NewTextHandler(io.Discard, opts)
	default:
		base = slog.NewTextHandler(output, opts)
	}
	return &traceHandler{next: base}
}

type traceHandler struct {
	next slog.Handler
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *traceHandler) Handle(ctx context.Context, record slog.Record) error {
	traceID, spanID := spanIDsFromContext(ctx)
	if traceID != "" && !recordHasAttr(record, "trace_id") {
		record.AddAttrs(slog.String("trace_id", traceID))
	}
	if spanID != "" && !recordHasAttr(record, "span_id") {
		record.AddAttrs(slog.String("span_id", spanID))
	}
	if ctx != nil {
		if runID, ok := core.RunID(ctx); ok && !recordHasAttr(record, "run_id") {
			record.AddAttrs(slog.String("run_id", runID))
		}
	}
	return h.next.Handle(ctx, record)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{next: h.next.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{next: h.next.WithGroup(name)}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func spanIDsFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	span := trace.SpanFromContext(ctx)
	if span == nil {
		return "", ""
	}
	sc := span.SpanContext()
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}

func recordHasAttr(record slog.Record, key string) bool {
	found := false
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			found = true
			return false
		}
		return true
	})
	return found
}
