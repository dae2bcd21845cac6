// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/capability"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/errors"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/monitor"
)

// Service routes capability calls to providers, validating input and output
// against the capability's schemas.
type Service struct {
	registry *capability.Registry
	monitor  monitor.Publisher
	logging  bool
	logger   *slog.Logger
	tracer   trace.Tracer

	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
	aliases   map[string]string
}

// Option configures a Service.
type Option func(*Service)

// WithMonitor sets the monitor that receives model events.
func WithMonitor(m monitor.Publisher) Option {
	return func(s *Service) {
		s.monitor = m
	}
}

// WithModelLogging wraps every provider registered afterwards with a
// decorator that publishes each call's input, output and error.
func WithModelLogging(enabled bool) Option {
	return func(s *Service) {
		s.logging = enabled
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistry shares an existing capability registry.
func WithRegistry(r *capability.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// NewService creates a Service.
func NewService(opts ...Option) *Service {
	s := &Service{
		registry:  capability.NewRegistry(),
		logger:    slog.Default(),
		tracer:    otel.Tracer("maiar/model"),
		providers: make(map[string]Provider),
		aliases:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the capability registry.
func (s *Service) Registry() *capability.Registry {
	return s.registry
}

// RegisterProvider adds p and registers each of its capabilities.
func (s *Service) RegisterProvider(p Provider) error {
	if p == nil {
		return errors.New(errors.CodeInvalidInput, "model provider is nil", nil)
	}
	if p.ID() == "" {
		return errors.New(errors.CodeInvalidInput, "model provider id is required", nil)
	}
	if s.logging && s.monitor != nil {
		p = NewLoggingProvider(p, s.monitor)
	}

	s.mu.Lock()
	if _, exists := s.providers[p.ID()]; exists {
		s.mu.Unlock()
		return errors.Newf(errors.CodeInvalidInput, "model provider %s already registered", p.ID())
	}
	s.providers[p.ID()] = p
	s.order = append(s.order, p.ID())
	s.mu.Unlock()

	for _, c := range p.Capabilities() {
		s.registry.Register(p.ID(), c.ID())
	}
	s.logger.Info("model.provider.registered",
		slog.String("model_id", p.ID()),
		slog.Int("capabilities", len(p.Capabilities())),
	)
	return nil
}

// RegisterAlias maps alias to a canonical capability id.
func (s *Service) RegisterAlias(alias, canonical string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases[alias] = canonical
}

// SetAliases replaces every alias with those in aliases.
func (s *Service) SetAliases(aliases map[string]string) {
	next := make(map[string]string, len(aliases))
	for alias, canonical := range aliases {
		next[alias] = canonical
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases = next
}

// ResolveCapability returns the canonical id for id.
func (s *Service) ResolveCapability(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if canonical, ok := s.aliases[id]; ok {
		return canonical
	}
	return id
}

// HasCapability reports whether id, after alias resolution, is served.
func (s *Service) HasCapability(id string) bool {
	return s.registry.HasCapability(s.ResolveCapability(id))
}

// SetDefaultModel makes modelID the default for capabilityID.
func (s *Service) SetDefaultModel(capabilityID, modelID string) error {
	return s.registry.SetDefaultModel(s.ResolveCapability(capabilityID), modelID)
}

// Provider returns a registered provider.
func (s *Service) Provider(id string) (Provider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	return p, ok
}

// Providers lists providers in registration order.
func (s *Service) Providers() []Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Provider, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.providers[id])
	}
	return out
}

// Init initializes every provider and checks its health. Any failure is fatal.
func (s *Service) Init(ctx context.Context) error {
	for _, p := range s.Providers() {
		if err := p.Init(ctx); err != nil {
			return errors.New(errors.CodeStartup, fmt.Sprintf("model provider %s failed to initialize", p.ID()), err).
				WithContext("model", p.ID())
		}
		if err := p.CheckHealth(ctx); err != nil {
			return errors.New(errors.CodeStartup, fmt.Sprintf("model provider %s failed health check", p.ID()), err).
				WithContext("model", p.ID())
		}
		s.logger.Info("model.provider.ready", slog.String("model_id", p.ID()))
	}
	return nil
}

// ExecuteCapability runs capabilityID on modelID, or on the capability's
// default provider when modelID is empty.
func (s *Service) ExecuteCapability(ctx context.Context, capabilityID string, input any, cfg capability.Config, modelID string) (any, error) {
	resolved := s.ResolveCapability(capabilityID)

	if modelID == "" {
		id, ok := s.registry.DefaultModel(resolved)
		if !ok {
			return nil, errors.Newf(errors.CodeNoModel, "no model available for capability %s", resolved).
				WithContext("capability", resolved)
		}
		modelID = id
	}

	provider, ok := s.Provider(modelID)
	if !ok {
		return nil, errors.Newf(errors.CodeNoModel, "no model available: model %s is not registered", modelID).
			WithContext("capability", resolved).
			WithContext("model", modelID)
	}
	c, ok := FindCapability(provider, resolved)
	if !ok {
		return nil, errors.Newf(errors.CodeNoModel, "no model available: model %s does not provide capability %s", modelID, resolved).
			WithContext("capability", resolved).
			WithContext("model", modelID)
	}

	in, err := c.InputSchema().Validate(input)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid input for capability %s", resolved), err).
			WithContext("capability", resolved)
	}

	ctx, span := s.tracer.Start(ctx, "ModelService.Execute", trace.WithAttributes(
		attribute.String("maiar.capability.id", resolved),
		attribute.String("maiar.model.id", modelID),
	))
	defer span.End()

	start := time.Now()
	out, err := c.Execute(ctx, in, cfg)
	duration := time.Since(start)
	span.SetAttributes(attribute.Int64("maiar.model.duration_ms", duration.Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WarnContext(ctx, "model.capability.error",
			slog.String("capability", resolved),
			slog.String("model_id", modelID),
			slog.String("error", err.Error()),
		)
		return nil, errors.New(errors.CodeCapabilityFailure, fmt.Sprintf("capability %s failed on model %s", resolved, modelID), err).
			WithContext("capability", resolved).
			WithContext("model", modelID).
			WithRecoverable(true)
	}

	validated, err := c.OutputSchema().Validate(out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "output schema violation")
		return nil, errors.New(errors.CodeCapabilityFailure, fmt.Sprintf("capability %s returned output that does not match its schema", resolved), err).
			WithContext("capability", resolved).
			WithContext("model", modelID).
			WithRecoverable(true)
	}
	s.logger.DebugContext(ctx, "model.capability.complete",
		slog.String("capability", resolved),
		slog.String("model_id", modelID),
		slog.Duration("duration", duration),
	)
	return validated, nil
}

// GenerateText runs the text-generation capability on the default provider.
func (s *Service) GenerateText(ctx context.Context, prompt string, cfg capability.Config) (string, error) {
	out, err := s.ExecuteCapability(ctx, TextGenerationCapability, TextGenerationInput{Prompt: prompt}, cfg, "")
	if err != nil {
		return "", err
	}
	text, ok := out.(string)
	if !ok {
		return "", errors.Newf(errors.CodeCapabilityFailure, "text generation returned %T", out)
	}
	return text, nil
}
