// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

// Package model dispatches capability calls to model providers.
package model

import (
	"context"
	"errors"
	"strings"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/capability"
)

// Provider is a model backend exposing one or more capabilities. Its
// capability set must not change after registration.
type Provider interface {
	ID() string
	Name() string
	Description() string
	Capabilities() []capability.Capability
	Init(ctx context.Context) error
	CheckHealth(ctx context.Context) error
}

// FindCapability returns the capability with id offered by p.
func FindCapability(p Provider, id string) (capability.Capability, bool) {
	for _, c := range p.Capabilities() {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

// Base implements the bookkeeping part of Provider. Concrete providers embed
// it and override Init and CheckHealth as needed.
type Base struct {
	ProviderID          string
	ProviderName        string
	ProviderDescription string
	caps                []capability.Capability
}

// NewBase returns a Base with the given identity.
func NewBase(id, name, description string) Base {
	return Base{ProviderID: id, ProviderName: name, ProviderDescription: description}
}

// ID implements Provider.
func (b *Base) ID() string { return b.ProviderID }

// Name implements Provider.
func (b *Base) Name() string {
	if b.ProviderName == "" {
		return b.ProviderID
	}
	return b.ProviderName
}

// Description implements Provider.
func (b *Base) Description() string { return b.ProviderDescription }

// AddCapability appends c. It is meant to be called from constructors only.
func (b *Base) AddCapability(c capability.Capability) {
	b.caps = append(b.caps, c)
}

// Capabilities implements Provider.
func (b *Base) Capabilities() []capability.Capability {
	out := make([]capability.Capability, len(b.caps))
	copy(out, b.caps)
	return out
}

// Init implements Provider.
func (b *Base) Init(context.Context) error { return nil }

// CheckHealth implements Provider.
func (b *Base) CheckHealth(context.Context) error { return nil }

// TextGenerationCapability is the capability every runtime requires.
const TextGenerationCapability = "text-generation"

// TextGenerationInput is the input of the text-generation capability.
type TextGenerationInput struct {
	Prompt string `json:"prompt" jsonschema:"description=The prompt to complete"`
	System string `json:"system,omitempty" jsonschema:"description=Optional system instruction"`
}

// Validate implements capability.Validator.
func (in TextGenerationInput) Validate() error {
	if strings.TrimSpace(in.Prompt) == "" {
		return errors.New("prompt is required")
	}
	return nil
}

// NewTextGeneration builds a text-generation capability from fn.
func NewTextGeneration(fn capability.Func[TextGenerationInput, string]) capability.Capability {
	return capability.New(TextGenerationCapability, "Generates text from a prompt", fn)
}
