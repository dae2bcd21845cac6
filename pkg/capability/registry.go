// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"sync"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/errors"
)

// Registry tracks which providers implement each capability and which one
// is the default. It is written during startup and read afterwards.
type Registry struct {
	mu        sync.RWMutex
	providers map[string][]string
	defaults  map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string][]string),
		defaults:  make(map[string]string),
	}
}

// Register records that providerID implements capabilityID. The first
// provider registered for a capability becomes its default.
func (r *Registry) Register(providerID, capabilityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.providers[capabilityID] {
		if id == providerID {
			return
		}
	}
	r.providers[capabilityID] = append(r.providers[capabilityID], providerID)
	if _, ok := r.defaults[capabilityID]; !ok {
		r.defaults[capabilityID] = providerID
	}
}

// SetDefaultModel makes providerID the default for capabilityID. The
// provider must already have registered the capability.
func (r *Registry) SetDefaultModel(capabilityID, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.providers[capabilityID] {
		if id == providerID {
			r.defaults[capabilityID] = providerID
			return nil
		}
	}
	return errors.Newf(errors.CodeInvalidInput,
		"model %s does not provide capability %s", providerID, capabilityID).
		WithContext("capability", capabilityID).
		WithContext("model", providerID)
}

// DefaultModel returns the default provider for capabilityID.
func (r *Registry) DefaultModel(capabilityID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.defaults[capabilityID]
	return id, ok
}

// ModelsWithCapability lists providers for capabilityID in registration order.
func (r *Registry) ModelsWithCapability(capabilityID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.providers[capabilityID]))
	copy(out, r.providers[capabilityID])
	return out
}

// HasCapability reports whether any provider implements capabilityID.
func (r *Registry) HasCapability(capabilityID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers[capabilityID]) > 0
}

// Capabilities lists every registered capability id.
func (r *Registry) Capabilities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for id := range r.providers {
		out = append(out, id)
	}
	return out
}
