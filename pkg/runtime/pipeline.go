// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/errors"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/monitor"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/operation"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/plugin"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/resilience"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/telemetry"
)

// Reasons recorded on step error metrics.
const (
	stepErrorExecutor = "executor_failed"
	stepErrorTimeout  = "timeout"
)

// EvaluatePipeline asks the model which steps should handle agentCtx.
//
// Planning never fails from the caller's point of view: when the model
// cannot produce a pipeline a planning_failed error item is appended to the
// chain and the fallback pipeline (empty unless configured) is returned.
func (r *Runtime) EvaluatePipeline(ctx context.Context, agentCtx *core.AgentContext) core.Pipeline {
	ctx, span := r.tracer.Start(ctx, "Runtime.EvaluatePipeline")
	defer span.End()

	r.monitor.Publish(ctx, monitor.NewEvent(monitor.EventPipelineGenerationStart, "generating pipeline", map[string]any{
		"platform":    agentCtx.PlatformName(),
		"chainLength": agentCtx.Len(),
	}))

	prompt := r.pipelinePrompt(agentCtx)
	steps, err := operation.GetObject[[]core.PipelineStep](ctx, r.models, prompt,
		operation.WithMaxRetries(r.maxRetries),
		operation.WithLogger(r.logger),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline generation failed")
		r.metrics.RecordPlanningFailure(ctx)
		r.metrics.RecordError(ctx, err, "runtime")

		source := "empty"
		if len(r.fallback) > 0 {
			source = "fallback"
		}
		r.logger.WarnContext(ctx, "runtime.pipeline.generation.error",
			slog.String("error", err.Error()),
			slog.String("source", source))
		r.monitor.Publish(ctx, monitor.NewEvent(monitor.EventPipelineGenerationError, "pipeline generation failed", map[string]any{
			"error":  err.Error(),
			"source": source,
		}))

		agentCtx.Append(core.NewErrorItem(core.RuntimePluginID, core.ActionPlanningFailed,
			"pipeline generation failed: "+err.Error(), nil))
		r.publishState(ctx)

		fallback := r.fallback.Clone()
		span.SetAttributes(telemetry.PipelineAttributes(len(fallback), source)...)
		return fallback
	}

	pipeline := core.Pipeline(steps)
	span.SetAttributes(telemetry.PipelineAttributes(len(pipeline), "model")...)
	r.logger.InfoContext(ctx, "runtime.pipeline.generation.complete",
		slog.Int("steps", len(pipeline)))
	r.monitor.Publish(ctx, monitor.NewEvent(monitor.EventPipelineGenerationComplete, "pipeline generated", map[string]any{
		"pipeline": pipeline,
		"steps":    len(pipeline),
	}))
	return pipeline
}

// ExecutePipeline runs pipeline against agentCtx. Every step appends exactly
// one item to the chain: the executor's data, or an error item when the
// plugin is missing, the step is malformed, or the executor fails. After each
// step the model may replace the steps that follow it.
func (r *Runtime) ExecutePipeline(ctx context.Context, pipeline core.Pipeline, agentCtx *core.AgentContext) {
	current := pipeline.Clone()
	for i := 0; i < len(current); i++ {
		r.executeStep(ctx, i, current[i], agentCtx)
		r.publishState(ctx)

		mod := r.EvaluatePipelineModification(ctx, agentCtx, current, i)
		if !mod.ShouldModify {
			continue
		}
		current = current.SpliceAfter(i, mod.ModifiedSteps)
		r.logger.InfoContext(ctx, "runtime.pipeline.modification",
			slog.Int("index", i),
			slog.Int("steps", len(current)),
			slog.String("explanation", mod.Explanation))
		r.monitor.Publish(ctx, monitor.NewEvent(monitor.EventPipelineModification, mod.Explanation, map[string]any{
			"currentStep":   current[i],
			"index":         i,
			"modifiedSteps": mod.ModifiedSteps,
			"pipeline":      current,
			"explanation":   mod.Explanation,
		}))
	}
}

func (r *Runtime) executeStep(ctx context.Context, index int, step core.PipelineStep, agentCtx *core.AgentContext) {
	ctx, span := r.tracer.Start(ctx, "Runtime.Step", trace.WithAttributes(
		telemetry.StepAttributes(index, step.PluginID, step.Action)...,
	))
	defer span.End()

	r.monitor.Publish(ctx, monitor.NewEvent(monitor.EventPipelineStepStart, "executing "+step.String(), map[string]any{
		"step":  step,
		"index": index,
	}))

	if err := step.Validate(); err != nil {
		r.appendStepError(ctx, span, agentCtx, step, core.ActionInvalidStep, err.Error(), core.ActionInvalidStep)
		return
	}
	p, ok := r.plugins.Plugin(step.PluginID)
	if !ok {
		r.appendStepError(ctx, span, agentCtx, step, core.ActionPluginNotFound,
			fmt.Sprintf("plugin %s not found", step.PluginID), core.ActionPluginNotFound)
		return
	}
	executor, ok := plugin.FindExecutor(p, step.Action)
	if !ok || executor.Fn == nil {
		r.appendStepError(ctx, span, agentCtx, step, core.ActionInvalidStep,
			fmt.Sprintf("plugin %s has no action %s", step.PluginID, step.Action), core.ActionInvalidStep)
		return
	}

	start := time.Now()
	result, err := resilience.WithTimeoutResult(ctx, resilience.TimeoutConfig{Duration: r.stepTimeout},
		func(ctx context.Context) (plugin.Result, error) {
			return callExecutor(ctx, executor.Fn, agentCtx)
		})
	elapsed := time.Since(start)
	span.SetAttributes(telemetry.StepResultAttributes(err == nil && result.Success, float64(elapsed.Microseconds())/1000)...)

	if err != nil || !result.Success {
		msg := result.Error
		reason := stepErrorExecutor
		if err != nil {
			msg = err.Error()
			if errors.HasCode(err, errors.CodeTimeout) {
				reason = stepErrorTimeout
				msg = fmt.Sprintf("step %s timed out after %s", step.String(), r.stepTimeout)
			}
		}
		if msg == "" {
			msg = "executor reported failure"
		}
		r.metrics.RecordStep(ctx, step.PluginID, false)
		r.appendStepError(ctx, span, agentCtx, step, step.Action, msg, reason)
		return
	}

	now := time.Now().UTC()
	agentCtx.Append(core.ContextItem{
		ID:        fmt.Sprintf("%s-%d", step.PluginID, now.UnixNano()),
		PluginID:  step.PluginID,
		Action:    step.Action,
		Type:      core.ItemTypeResult,
		Content:   renderData(result.Data),
		Timestamp: now,
	})
	r.metrics.RecordStep(ctx, step.PluginID, true)
	r.logger.InfoContext(ctx, "runtime.step.complete",
		slog.String("step", step.String()),
		slog.Int("index", index),
		slog.Duration("duration", elapsed))
	r.monitor.Publish(ctx, monitor.NewEvent(monitor.EventPipelineStepComplete, "completed "+step.String(), map[string]any{
		"step":       step,
		"index":      index,
		"durationMs": elapsed.Milliseconds(),
	}))
}

// callExecutor turns a panicking executor into a step failure.
func callExecutor(ctx context.Context, fn plugin.ExecutorFunc, agentCtx *core.AgentContext) (res plugin.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Newf(errors.CodeInternal, "executor panic: %v", p)
		}
	}()
	return fn(ctx, agentCtx)
}

func (r *Runtime) appendStepError(ctx context.Context, span trace.Span, agentCtx *core.AgentContext, step core.PipelineStep, action, msg, reason string) {
	pluginID := step.PluginID
	if action == core.ActionPluginNotFound || action == core.ActionInvalidStep {
		pluginID = core.RuntimePluginID
	}
	agentCtx.Append(core.NewErrorItem(pluginID, action, msg, &step))

	span.SetStatus(codes.Error, msg)
	r.metrics.RecordStepError(ctx, reason)
	r.logger.WarnContext(ctx, "runtime.step.error",
		slog.String("step", step.String()),
		slog.String("reason", reason),
		slog.String("error", msg))
	r.monitor.Publish(ctx, monitor.NewEvent(monitor.EventPipelineStepError, msg, map[string]any{
		"step":   step,
		"reason": reason,
		"error":  msg,
	}))
}

// renderData stores strings as-is and everything else as JSON.
func renderData(data any) string {
	switch v := data.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprint(data)
	}
	return string(raw)
}

// EvaluatePipelineModification asks the model whether the steps after
// pipeline[index] should be replaced. Errors and rejected proposals are
// reported as "no modification". A proposal is rejected when any of its steps
// was already executed or is already planned after index.
func (r *Runtime) EvaluatePipelineModification(ctx context.Context, agentCtx *core.AgentContext, pipeline core.Pipeline, index int) core.PipelineModification {
	ctx, span := r.tracer.Start(ctx, "Runtime.EvaluateModification", trace.WithAttributes(
		telemetry.StepAttributes(index, pipeline[index].PluginID, pipeline[index].Action)...,
	))
	defer span.End()

	prompt := r.modificationPrompt(agentCtx, pipeline, index)
	mod, err := operation.GetObject[core.PipelineModification](ctx, r.models, prompt,
		operation.WithMaxRetries(r.maxRetries),
		operation.WithLogger(r.logger),
	)
	if err != nil {
		span.RecordError(err)
		r.metrics.RecordError(ctx, err, "runtime")
		r.logger.WarnContext(ctx, "runtime.pipeline.modification.error",
			slog.Int("index", index),
			slog.String("error", err.Error()))
		return core.PipelineModification{}
	}
	if !mod.ShouldModify {
		return mod
	}

	names := make([]string, len(mod.ModifiedSteps))
	for i, s := range mod.ModifiedSteps {
		names[i] = s.String()
	}
	if dup, ok := duplicateStep(mod.ModifiedSteps, pipeline); ok {
		span.SetAttributes(telemetry.ModificationAttributes(false, names)...)
		r.metrics.RecordModification(ctx, false)
		r.logger.InfoContext(ctx, "runtime.pipeline.modification.rejected",
			slog.String("duplicate", dup.String()),
			slog.Int("index", index))
		r.monitor.Publish(ctx, monitor.NewEvent(monitor.EventPipelineModificationRejected,
			fmt.Sprintf("proposed step %s duplicates an executed or planned step", dup.String()),
			map[string]any{
				"duplicate":     dup,
				"modifiedSteps": mod.ModifiedSteps,
				"pipeline":      pipeline,
				"index":         index,
			}))
		return core.PipelineModification{Explanation: mod.Explanation}
	}

	span.SetAttributes(telemetry.ModificationAttributes(true, names)...)
	r.metrics.RecordModification(ctx, true)
	return mod
}

// duplicateStep returns the first proposed step already in pipeline. Splices
// never touch the executed prefix, so pipeline holds exactly the executed
// steps followed by the planned ones.
func duplicateStep(proposed []core.PipelineStep, pipeline core.Pipeline) (core.PipelineStep, bool) {
	for _, s := range proposed {
		if pipeline.Contains(s) {
			return s, true
		}
	}
	return core.PipelineStep{}, false
}
