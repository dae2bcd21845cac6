// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/errors"
)

// RuntimeMetrics records orchestration counters. A nil *RuntimeMetrics is
// valid and records nothing.
type RuntimeMetrics struct {
	events           metric.Int64Counter
	steps            metric.Int64Counter
	stepErrors       metric.Int64Counter
	modifications    metric.Int64Counter
	planningFailures metric.Int64Counter
	errors           metric.Int64Counter
	queueLength      metric.Int64Gauge
}

// NewRuntimeMetrics creates the instruments on the global meter provider.
func NewRuntimeMetrics() (*RuntimeMetrics, error) {
	meter := otel.Meter("maiar/runtime")

	events, err := meter.Int64Counter("maiar.events.processed",
		metric.WithDescription("Agent contexts processed by the runtime"))
	if err != nil {
		return nil, err
	}
	steps, err := meter.Int64Counter("maiar.pipeline.steps",
		metric.WithDescription("Pipeline steps executed by plugin and outcome"))
	if err != nil {
		return nil, err
	}
	stepErrors, err := meter.Int64Counter("maiar.pipeline.step_errors",
		metric.WithDescription("Pipeline steps recorded as error items by reason"))
	if err != nil {
		return nil, err
	}
	modifications, err := meter.Int64Counter("maiar.pipeline.modifications",
		metric.WithDescription("Re-planning verdicts requesting a modification, by acceptance"))
	if err != nil {
		return nil, err
	}
	planningFailures, err := meter.Int64Counter("maiar.pipeline.planning_failures",
		metric.WithDescription("Pipeline generations that fell back after failing"))
	if err != nil {
		return nil, err
	}
	errCounter, err := meter.Int64Counter("maiar.errors.total",
		metric.WithDescription("Errors by code and component"))
	if err != nil {
		return nil, err
	}
	queueLength, err := meter.Int64Gauge("maiar.queue.length",
		metric.WithDescription("Agent contexts waiting in the event queue"))
	if err != nil {
		return nil, err
	}

	return &RuntimeMetrics{
		events:           events,
		steps:            steps,
		stepErrors:       stepErrors,
		modifications:    modifications,
		planningFailures: planningFailures,
		errors:           errCounter,
		queueLength:      queueLength,
	}, nil
}

// RecordEvent counts a processed agent context.
func (m *RuntimeMetrics) RecordEvent(ctx context.Context, platform string) {
	if m == nil {
		return
	}
	m.events.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrPlatform, platform)))
}

// RecordStep counts an executed step.
func (m *RuntimeMetrics) RecordStep(ctx context.Context, pluginID string, success bool) {
	if m == nil {
		return
	}
	m.steps.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrStepPluginID, pluginID),
		attribute.Bool(AttrStepSuccess, success),
	))
}

// RecordStepError counts a step that produced an error item.
func (m *RuntimeMetrics) RecordStepError(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.stepErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordModification counts a requested modification.
func (m *RuntimeMetrics) RecordModification(ctx context.Context, accepted bool) {
	if m == nil {
		return
	}
	m.modifications.Add(ctx, 1, metric.WithAttributes(attribute.Bool(AttrModificationAccepted, accepted)))
}

// RecordPlanningFailure counts a failed pipeline generation.
func (m *RuntimeMetrics) RecordPlanningFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.planningFailures.Add(ctx, 1)
}

// RecordError counts err under its code.
func (m *RuntimeMetrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	recoverable := "unknown"
	if me := errors.AsMaiarError(err); me != nil {
		recoverable = me.RecoverableString()
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", string(errors.CodeOf(err))),
		attribute.String("component", component),
		attribute.String("recoverable", recoverable),
	))
}

// RecordQueueLength records the current queue length.
func (m *RuntimeMetrics) RecordQueueLength(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.queueLength.Record(ctx, int64(n))
}
