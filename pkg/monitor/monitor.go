// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

// Package monitor fans runtime events out to observability sinks.
// Publishing never fails from the caller's point of view.
package monitor

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the runtime and the model dispatch service.
const (
	EventState                        = "state"
	EventPipelineGenerationStart      = "pipeline.generation.start"
	EventPipelineGenerationComplete   = "pipeline.generation.complete"
	EventPipelineGenerationError      = "pipeline.generation.error"
	EventPipelineStepStart            = "pipeline.step.start"
	EventPipelineStepComplete         = "pipeline.step.complete"
	EventPipelineStepError            = "pipeline.step.error"
	EventPipelineModification         = "pipeline.modification"
	EventPipelineModificationRejected = "pipeline.modification.rejected"
	EventPipelineComplete             = "pipeline.complete"
	EventModelRequest                 = "model.request"
	EventModelResponse                = "model.response"
	EventModelError                   = "model.error"
	EventRuntimeStart                 = "runtime.start"
	EventRuntimeStop                  = "runtime.stop"
	EventRuntimeWarning               = "runtime.warning"
)

// Event is a single observation.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(eventType, message string, metadata map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}

// Provider is an event sink.
type Provider interface {
	ID() string
	PublishEvent(ctx context.Context, event Event) error
	CheckHealth(ctx context.Context) error
}

// Publisher is the narrow view components use to emit events.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Manager is the monitor handle injected into the runtime and the model
// service. A nil *Manager discards events.
type Manager struct {
	mu        sync.RWMutex
	providers []Provider
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used to report sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithProviders registers sinks at construction.
func WithProviders(providers ...Provider) Option {
	return func(m *Manager) {
		m.providers = append(m.providers, providers...)
	}
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a sink.
func (m *Manager) Register(p Provider) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers = append(m.providers, p)
}

// Providers returns the registered sinks.
func (m *Manager) Providers() []Provider {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Provider, len(m.providers))
	copy(out, m.providers)
	return out
}

// Publish delivers event to every sink. Sink errors and panics are logged
// and dropped.
func (m *Manager) Publish(ctx context.Context, event Event) {
	if m == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	for _, p := range m.Providers() {
		if err := publishSafe(ctx, p, event); err != nil {
			m.logger.WarnContext(ctx, "monitor.publish.error",
				slog.String("monitor", p.ID()),
				slog.String("event_type", event.Type),
				slog.String("error", err.Error()),
			)
		}
	}
}

func publishSafe(ctx context.Context, p Provider, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("monitor panic: %v", r)
		}
	}()
	return p.PublishEvent(ctx, event)
}

// CheckHealth checks every sink and joins their errors.
func (m *Manager) CheckHealth(ctx context.Context) error {
	var errs []error
	for _, p := range m.Providers() {
		if err := p.CheckHealth(ctx); err != nil {
			errs = append(errs, fmt.Errorf("monitor %s: %w", p.ID(), err))
		}
	}
	return stderrors.Join(errs...)
}
