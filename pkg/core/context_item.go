// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

// Package core defines the data model shared by the runtime, plugins and
// memory backends: context items, agent contexts and pipelines.
package core

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Context item types with runtime meaning. Plugins may use any other value.
const (
	ItemTypeUserInput = "user_input"
	ItemTypeError     = "error"
	// ItemTypeResult marks the data returned by a successful executor.
	ItemTypeResult = "plugin_result"
)

// Actions recorded on error items produced by the runtime itself.
const (
	ActionPluginNotFound = "plugin_not_found"
	ActionInvalidStep    = "invalid_step"
	ActionPlanningFailed = "planning_failed"
)

// RuntimePluginID marks context items synthesized by the runtime.
const RuntimePluginID = "runtime"

// HistoryMessage is one prior exchange attached to a user input item.
type HistoryMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ContextItem is one entry of an agent's context chain.
//
// The User, RawMessage and MessageHistory fields are only meaningful for
// ItemTypeUserInput; Error and FailedStep only for ItemTypeError.
type ContextItem struct {
	ID                 string    `json:"id"`
	PluginID           string    `json:"pluginId"`
	Action             string    `json:"action"`
	Type               string    `json:"type"`
	Content            string    `json:"content"`
	Timestamp          time.Time `json:"timestamp"`
	HelpfulInstruction string    `json:"helpfulInstruction,omitempty"`

	User           string           `json:"user,omitempty"`
	RawMessage     string           `json:"rawMessage,omitempty"`
	MessageHistory []HistoryMessage `json:"messageHistory,omitempty"`

	Error      string        `json:"error,omitempty"`
	FailedStep *PipelineStep `json:"failedStep,omitempty"`
}

// IsUserInput reports whether the item carries a user message.
func (c ContextItem) IsUserInput() bool { return c.Type == ItemTypeUserInput }

// IsError reports whether the item records a failure.
func (c ContextItem) IsError() bool { return c.Type == ItemTypeError }

// NewUserInput builds a user input item for an inbound message.
func NewUserInput(pluginID, action, user, message string) ContextItem {
	return ContextItem{
		ID:         pluginID + "-" + uuid.NewString(),
		PluginID:   pluginID,
		Action:     action,
		Type:       ItemTypeUserInput,
		Content:    message,
		Timestamp:  time.Now().UTC(),
		User:       user,
		RawMessage: message,
	}
}

// NewErrorItem builds an error item. step may be nil.
func NewErrorItem(pluginID, action, msg string, step *PipelineStep) ContextItem {
	item := ContextItem{
		ID:        "error-" + uuid.NewString(),
		PluginID:  pluginID,
		Action:    action,
		Type:      ItemTypeError,
		Content:   msg,
		Timestamp: time.Now().UTC(),
		Error:     msg,
	}
	if step != nil {
		s := *step
		item.FailedStep = &s
	}
	return item
}

// ResponseHandler delivers a reply to the platform that produced an event.
type ResponseHandler func(ctx context.Context, response any) error

// PlatformContext describes where an event came from.
type PlatformContext struct {
	Platform        string          `json:"platform"`
	ResponseHandler ResponseHandler `json:"-"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

// AgentContext is the unit of work the runtime executes. Its context chain is
// append-only.
type AgentContext struct {
	mu             sync.RWMutex
	chain          []ContextItem
	Platform       *PlatformContext
	ConversationID string
}

// NewAgentContext starts a chain with the given items.
func NewAgentContext(platform *PlatformContext, items ...ContextItem) *AgentContext {
	chain := make([]ContextItem, len(items))
	copy(chain, items)
	return &AgentContext{chain: chain, Platform: platform}
}

// Append adds an item to the end of the chain.
func (a *AgentContext) Append(item ContextItem) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chain = append(a.chain, item)
}

// Chain returns a copy of the context chain.
func (a *AgentContext) Chain() []ContextItem {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]ContextItem, len(a.chain))
	copy(out, a.chain)
	return out
}

// Len returns the chain length.
func (a *AgentContext) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.chain)
}

// Last returns the most recent item.
func (a *AgentContext) Last() (ContextItem, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.chain) == 0 {
		return ContextItem{}, false
	}
	return a.chain[len(a.chain)-1], true
}

// UserInput returns the first item when it is a user input. That item is
// the canonical source of user and platform for memory attribution.
func (a *AgentContext) UserInput() (ContextItem, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.chain) == 0 || !a.chain[0].IsUserInput() {
		return ContextItem{}, false
	}
	return a.chain[0], true
}

// PlatformName returns the platform name or "" when unset.
func (a *AgentContext) PlatformName() string {
	if a == nil || a.Platform == nil {
		return ""
	}
	return a.Platform.Platform
}

// MarshalJSON renders the chain and platform for prompts and state events.
func (a *AgentContext) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ContextChain   []ContextItem    `json:"contextChain"`
		Platform       *PlatformContext `json:"platformContext,omitempty"`
		ConversationID string           `json:"conversationId,omitempty"`
	}{
		ContextChain:   a.Chain(),
		Platform:       a.Platform,
		ConversationID: a.ConversationID,
	})
}
