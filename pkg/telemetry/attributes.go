// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry wires OpenTelemetry tracing and metrics, the slog handler
// and the attribute conventions used across the runtime.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys for runtime spans and metrics.
const (
	AttrRunID          = "maiar.run.id"
	AttrPlatform       = "maiar.platform"
	AttrUser           = "maiar.user"
	AttrConversationID = "maiar.conversation.id"
	AttrQueueLength    = "maiar.queue.length"
	AttrChainLength    = "maiar.context.chain_length"

	AttrPipelineLength = "maiar.pipeline.length"
	AttrPipelineSource = "maiar.pipeline.source" // "model", "fallback", "empty"

	AttrStepIndex    = "maiar.step.index"
	AttrStepPluginID = "maiar.step.plugin_id"
	AttrStepAction   = "maiar.step.action"
	AttrStepSuccess  = "maiar.step.success"
	AttrStepDuration = "maiar.step.duration_ms"

	AttrModificationAccepted = "maiar.modification.accepted"
	AttrModificationSteps    = "maiar.modification.steps"

	AttrModelProvider   = "gen_ai.system"
	AttrModelCapability = "maiar.model.capability"
)

// EventAttributes describe an agent context being processed.
func EventAttributes(runID, platform, user string, chainLength int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRunID, runID),
		attribute.Int(AttrChainLength, chainLength),
	}
	if platform != "" {
		attrs = append(attrs, attribute.String(AttrPlatform, platform))
	}
	if user != "" {
		attrs = append(attrs, attribute.String(AttrUser, user))
	}
	return attrs
}

// PipelineAttributes describe a generated pipeline.
func PipelineAttributes(length int, source string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrPipelineLength, length),
	}
	if source != "" {
		attrs = append(attrs, attribute.String(AttrPipelineSource, source))
	}
	return attrs
}

// StepAttributes describe one pipeline step.
func StepAttributes(index int, pluginID, action string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrStepIndex, index),
		attribute.String(AttrStepPluginID, pluginID),
		attribute.String(AttrStepAction, action),
	}
}

// StepResultAttributes describe how a step ended.
func StepResultAttributes(success bool, durationMs float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Bool(AttrStepSuccess, success),
	}
	if durationMs > 0 {
		attrs = append(attrs, attribute.Float64(AttrStepDuration, durationMs))
	}
	return attrs
}

// ModificationAttributes describe a re-planning verdict.
func ModificationAttributes(accepted bool, steps []string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Bool(AttrModificationAccepted, accepted),
	}
	if len(steps) > 0 {
		attrs = append(attrs, attribute.StringSlice(AttrModificationSteps, steps))
	}
	return attrs
}

// ModelAttributes describe a capability dispatch.
func ModelAttributes(providerID, capabilityID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrModelCapability, capabilityID),
	}
	if providerID != "" {
		attrs = append(attrs, attribute.String(AttrModelProvider, providerID))
	}
	return attrs
}
