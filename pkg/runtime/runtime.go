// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

// Package runtime executes agent contexts: it admits events into a FIFO
// queue, asks the model for a pipeline of plugin actions, runs the pipeline
// step by step and re-plans the remaining steps after each one.
package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/errors"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/memory"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/monitor"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/operation"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/plugin"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/telemetry"
)

// Defaults applied by New.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultStepTimeout  = 60 * time.Second
	DefaultHistoryLimit = 20
)

var _ plugin.Handle = (*Runtime)(nil)

// Runtime owns the event queue and the single worker that drains it.
type Runtime struct {
	models  *model.Service
	plugins *plugin.Registry
	memory  memory.Provider
	monitor *monitor.Manager
	metrics *telemetry.RuntimeMetrics
	logger  *slog.Logger
	tracer  trace.Tracer
	health  *core.DefaultHealthCheckProvider

	maxRetries   int
	pollInterval time.Duration
	stepTimeout  time.Duration
	historyLimit int
	fallback     core.Pipeline

	queue eventQueue

	mu             sync.RWMutex
	running        bool
	current        *core.AgentContext
	cancelLoop     context.CancelFunc
	cancelTriggers context.CancelFunc
	done           chan struct{}
	triggers       sync.WaitGroup
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithMemory sets the memory backend. Defaults to memory.NewInMemory().
func WithMemory(m memory.Provider) Option {
	return func(r *Runtime) {
		if m != nil {
			r.memory = m
		}
	}
}

// WithMonitor sets the monitor handle that receives runtime events.
func WithMonitor(m *monitor.Manager) Option {
	return func(r *Runtime) {
		r.monitor = m
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *telemetry.RuntimeMetrics) Option {
	return func(r *Runtime) {
		r.metrics = m
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMaxRetries sets the attempts of each planning call.
func WithMaxRetries(n int) Option {
	return func(r *Runtime) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// WithPollInterval sets how long the worker sleeps on an empty queue.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runtime) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithStepTimeout bounds each executor call. Zero disables the bound.
func WithStepTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		if d >= 0 {
			r.stepTimeout = d
		}
	}
}

// WithHistoryLimit sets how many prior messages are attached to user input.
func WithHistoryLimit(n int) Option {
	return func(r *Runtime) {
		if n >= 0 {
			r.historyLimit = n
		}
	}
}

// WithFallbackPipeline sets the pipeline executed when planning fails.
func WithFallbackPipeline(p core.Pipeline) Option {
	return func(r *Runtime) {
		r.fallback = p.Clone()
	}
}

// New creates a Runtime over the given model service and plugin registry.
func New(models *model.Service, plugins *plugin.Registry, opts ...Option) *Runtime {
	if models == nil {
		models = model.NewService()
	}
	if plugins == nil {
		plugins = plugin.NewRegistry()
	}
	r := &Runtime{
		models:       models,
		plugins:      plugins,
		logger:       slog.Default(),
		tracer:       otel.Tracer("maiar/runtime"),
		health:       core.NewDefaultHealthCheckProvider(-1),
		maxRetries:   operation.DefaultMaxRetries,
		pollInterval: DefaultPollInterval,
		stepTimeout:  DefaultStepTimeout,
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.memory == nil {
		r.memory = memory.NewInMemory()
	}
	r.health.RegisterChecker("memory", core.NewErrorHealthChecker(r.memory.CheckHealth))
	if r.monitor != nil {
		r.health.RegisterChecker("monitor", core.NewErrorHealthChecker(r.monitor.CheckHealth))
	}
	return r
}

// Models returns the model dispatch service.
func (r *Runtime) Models() *model.Service {
	return r.models
}

// Plugins returns the plugin registry.
func (r *Runtime) Plugins() *plugin.Registry {
	return r.plugins
}

// Running reports whether the worker loop is active.
func (r *Runtime) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// QueueLength returns the number of admitted contexts waiting to run.
func (r *Runtime) QueueLength() int {
	return r.queue.len()
}

// Start validates capabilities, initializes providers and plugins, starts
// every trigger and then the worker loop. Any error is fatal and leaves the
// runtime stopped.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New(errors.CodeStartup, "runtime already started", nil)
	}
	r.mu.Unlock()

	if err := r.validateCapabilities(ctx); err != nil {
		r.logger.ErrorContext(ctx, "runtime.startup.error", slog.String("error", err.Error()))
		return err
	}
	if err := r.models.Init(ctx); err != nil {
		r.logger.ErrorContext(ctx, "runtime.startup.error", slog.String("error", err.Error()))
		return err
	}
	for _, p := range r.models.Providers() {
		r.health.RegisterChecker("model:"+p.ID(), core.NewErrorHealthChecker(p.CheckHealth))
	}
	for _, p := range r.plugins.All() {
		initializer, ok := p.(plugin.Initializer)
		if !ok {
			continue
		}
		if err := initializer.Init(ctx, r); err != nil {
			r.logger.ErrorContext(ctx, "runtime.startup.error",
				slog.String("plugin_id", p.ID()),
				slog.String("error", err.Error()))
			return errors.New(errors.CodeStartup, fmt.Sprintf("plugin %s failed to initialize", p.ID()), err).
				WithContext("plugin", p.ID())
		}
	}

	loopCtx, cancelLoop := context.WithCancel(context.WithoutCancel(ctx))
	triggerCtx, cancelTriggers := context.WithCancel(ctx)

	r.mu.Lock()
	r.running = true
	r.cancelLoop = cancelLoop
	r.cancelTriggers = cancelTriggers
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	r.startTriggers(triggerCtx)
	go r.loop(loopCtx, done)

	r.logger.InfoContext(ctx, "runtime.start",
		slog.Int("plugins", r.plugins.Len()),
		slog.Int("models", len(r.models.Providers())),
	)
	r.monitor.Publish(ctx, monitor.NewEvent(monitor.EventRuntimeStart, "runtime started", map[string]any{
		"plugins": r.plugins.Len(),
	}))
	r.publishState(ctx)
	return nil
}

func (r *Runtime) startTriggers(ctx context.Context) {
	for _, p := range r.plugins.All() {
		for _, t := range p.Triggers() {
			if t.Start == nil {
				continue
			}
			r.triggers.Add(1)
			go func(pluginID string, t plugin.Trigger) {
				defer r.triggers.Done()
				r.logger.InfoContext(ctx, "runtime.trigger.start",
					slog.String("plugin_id", pluginID),
					slog.String("trigger_id", t.ID))
				if err := t.Start(ctx, r); err != nil && ctx.Err() == nil {
					r.logger.ErrorContext(ctx, "runtime.trigger.error",
						slog.String("plugin_id", pluginID),
						slog.String("trigger_id", t.ID),
						slog.String("error", err.Error()))
					r.monitor.Publish(ctx, monitor.NewEvent(monitor.EventRuntimeWarning,
						fmt.Sprintf("trigger %s of %s stopped: %v", t.ID, pluginID, err),
						map[string]any{"plugin": pluginID, "trigger": t.ID}))
				}
			}(p.ID(), t)
		}
	}
}

// Stop asks the worker to exit after the event it is processing, stops
// triggers and closes plugins. When ctx expires first the in-flight event is
// cancelled.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	cancelLoop, cancelTriggers, done := r.cancelLoop, r.cancelTriggers, r.done
	r.mu.Unlock()

	cancelTriggers()
	select {
	case <-done:
	case <-ctx.Done():
		cancelLoop()
		<-done
	}
	cancelLoop()

	triggersDone := make(chan struct{})
	go func() {
		r.triggers.Wait()
		close(triggersDone)
	}()
	select {
	case <-triggersDone:
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "runtime.stop.triggers_pending")
	}

	var errs []error
	for _, p := range r.plugins.All() {
		if c, ok := p.(plugin.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", p.ID(), err))
			}
		}
	}

	r.logger.InfoContext(ctx, "runtime.stop", slog.Int("queue_length", r.queue.len()))
	r.monitor.Publish(ctx, monitor.NewEvent(monitor.EventRuntimeStop, "runtime stopped", nil))
	r.publishState(ctx)
	return stderrors.Join(errs...)
}

// CreateEvent admits an event. For user input the recent history of the
// (user, platform) conversation is attached to item and the raw message is
// stored before the context is queued. Any memory failure is returned and
// nothing is queued.
func (r *Runtime) CreateEvent(ctx context.Context, item core.ContextItem, platform *core.PlatformContext) error {
	if platform == nil {
		platform = &core.PlatformContext{Platform: item.PluginID}
	}
	if item.ID == "" {
		item.ID = item.PluginID + "-" + uuid.NewString()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}

	var conversationID string
	if item.IsUserInput() {
		history, err := r.memory.RecentConversationHistory(ctx, item.User, platform.Platform, r.historyLimit)
		if err != nil {
			return r.admissionError(ctx, "fetch conversation history", err)
		}
		item.MessageHistory = history

		conv, err := memory.EnsureConversation(ctx, r.memory, item.User, platform.Platform)
		if err != nil {
			return r.admissionError(ctx, "open conversation", err)
		}
		conversationID = conv.ID

		msg := memory.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			Role:           memory.RoleUser,
			Content:        item.RawMessage,
			User:           item.User,
			CreatedAt:      item.Timestamp,
		}
		if err := r.memory.StoreMessage(ctx, msg); err != nil {
			return r.admissionError(ctx, "store user message", err)
		}
	}

	agentCtx := core.NewAgentContext(platform, item)
	agentCtx.ConversationID = conversationID
	n := r.queue.push(agentCtx)

	r.metrics.RecordQueueLength(ctx, n)
	r.logger.DebugContext(ctx, "runtime.event.queued",
		slog.String("item_id", item.ID),
		slog.String("platform", platform.Platform),
		slog.Int("queue_length", n))
	r.publishState(ctx)
	return nil
}

func (r *Runtime) admissionError(ctx context.Context, op string, err error) error {
	r.logger.ErrorContext(ctx, "runtime.event.admission_error",
		slog.String("operation", op),
		slog.String("error", err.Error()))
	wrapped := errors.New(errors.CodeMemoryError, "event admission failed: "+op, err)
	r.metrics.RecordError(ctx, wrapped, "runtime")
	return wrapped
}

func (r *Runtime) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()

	for r.Running() && ctx.Err() == nil {
		agentCtx, ok := r.queue.pop()
		if ok {
			r.metrics.RecordQueueLength(ctx, r.queue.len())
			r.processEvent(ctx, agentCtx)
			continue
		}
		timer.Reset(r.pollInterval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// processEvent plans and executes one agent context, then hands the chain to
// memory.
func (r *Runtime) processEvent(ctx context.Context, agentCtx *core.AgentContext) {
	runID := "run-" + uuid.NewString()
	ctx = core.WithRunID(ctx, runID)
	user := ""
	if in, ok := agentCtx.UserInput(); ok {
		user = in.User
	}
	ctx, span := r.tracer.Start(ctx, "Runtime.Event", trace.WithAttributes(
		telemetry.EventAttributes(runID, agentCtx.PlatformName(), user, agentCtx.Len())...,
	))
	defer span.End()

	start := time.Now()
	r.logger.InfoContext(ctx, "runtime.event.start",
		slog.String("platform", agentCtx.PlatformName()),
		slog.String("conversation_id", agentCtx.ConversationID))

	r.setCurrent(agentCtx)
	r.publishState(ctx)

	pipeline := r.EvaluatePipeline(ctx, agentCtx)
	r.ExecutePipeline(ctx, pipeline, agentCtx)

	r.monitor.Publish(ctx, monitor.NewEvent(monitor.EventPipelineComplete, "pipeline complete", map[string]any{
		"chainLength": agentCtx.Len(),
		"durationMs":  time.Since(start).Milliseconds(),
	}))

	if agentCtx.ConversationID != "" {
		if err := r.memory.StoreContext(ctx, agentCtx.ConversationID, agentCtx.Chain()); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "store context failed")
			r.metrics.RecordError(ctx, err, "memory")
			r.logger.WarnContext(ctx, "runtime.event.store_context_error",
				slog.String("conversation_id", agentCtx.ConversationID),
				slog.String("error", err.Error()))
		}
	}

	r.metrics.RecordEvent(ctx, agentCtx.PlatformName())
	r.logger.InfoContext(ctx, "runtime.event.complete",
		slog.Int("chain_length", agentCtx.Len()),
		slog.Duration("duration", time.Since(start)))

	r.setCurrent(nil)
	r.publishState(ctx)
}

func (r *Runtime) setCurrent(a *core.AgentContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = a
}

// publishState reports the current context and queue to the monitor.
func (r *Runtime) publishState(ctx context.Context) {
	if r.monitor == nil {
		return
	}
	r.mu.RLock()
	current, running := r.current, r.running
	r.mu.RUnlock()

	var snapshot map[string]any
	if current != nil {
		snapshot = map[string]any{
			"contextChain":   current.Chain(),
			"platform":       current.PlatformName(),
			"conversationId": current.ConversationID,
		}
	}
	r.monitor.Publish(ctx, monitor.NewEvent(monitor.EventState, "runtime state", map[string]any{
		"currentContext": snapshot,
		"queueLength":    r.queue.len(),
		"isRunning":      running,
		"lastUpdate":     time.Now().UnixMilli(),
	}))
}

// Health checks memory, the monitor sinks and, once started, every model
// provider.
func (r *Runtime) Health(ctx context.Context) ([]core.HealthResult, core.HealthStatus) {
	return r.health.CheckAll(ctx)
}
