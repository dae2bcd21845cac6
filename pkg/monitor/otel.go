// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// OTelMonitor records events as span events on the active span and counts
// them per type.
type OTelMonitor struct {
	counter metric.Int64Counter
}

// NewOTelMonitor creates a sink bound to the global meter provider.
func NewOTelMonitor() (*OTelMonitor, error) {
	counter, err := otel.Meter("maiar/monitor").Int64Counter(
		"maiar.monitor.events",
		metric.WithDescription("Runtime events by type"),
	)
	if err != nil {
		return nil, err
	}
	return &OTelMonitor{counter: counter}, nil
}

// ID implements Provider.
func (o *OTelMonitor) ID() string { return "otel" }

// PublishEvent implements Provider.
func (o *OTelMonitor) PublishEvent(ctx context.Context, event Event) error {
	o.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("maiar.event.type", event.Type)))

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return nil
	}
	attrs := []attribute.KeyValue{
		attribute.String("maiar.event.id", event.ID),
		attribute.String("maiar.event.message", event.Message),
	}
	if len(event.Metadata) > 0 {
		if raw, err := json.Marshal(event.Metadata); err == nil {
			attrs = append(attrs, attribute.String("maiar.event.metadata", string(raw)))
		}
	}
	span.AddEvent(event.Type, trace.WithAttributes(attrs...), trace.WithTimestamp(event.Timestamp))
	return nil
}

// CheckHealth implements Provider.
func (o *OTelMonitor) CheckHealth(context.Context) error { return nil }
