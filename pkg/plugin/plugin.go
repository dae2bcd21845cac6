// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

// Package plugin defines the contract between the runtime and the units of
// functionality it plans over: plugins expose named executors (actions) the
// planner can schedule and triggers that push new events into the runtime.
package plugin

import (
	"context"
	"fmt"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model"
)

// IDPrefix is required on every plugin id.
const IDPrefix = "plugin-"

// Result is what an executor reports back to the runtime.
type Result struct {
	Success bool
	Error   string
	Data    any
}

// OK returns a successful result carrying data.
func OK(data any) Result { return Result{Success: true, Data: data} }

// Fail returns a failed result.
func Fail(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// ExecutorFunc runs one action against the agent context. A returned error
// and a Result with Success false are both recorded as step failures.
type ExecutorFunc func(ctx context.Context, agentCtx *core.AgentContext) (Result, error)

// Executor is a named action of a plugin.
type Executor struct {
	Name        string
	Description string
	Fn          ExecutorFunc
}

// Handle is the slice of the runtime exposed to plugins.
type Handle interface {
	// CreateEvent admits a new event, see runtime.Runtime.CreateEvent.
	CreateEvent(ctx context.Context, item core.ContextItem, platform *core.PlatformContext) error
	// Models returns the model dispatch service.
	Models() *model.Service
}

// Trigger is an autonomous event source. Start is called once when the
// runtime starts and should return when ctx is cancelled.
type Trigger struct {
	ID    string
	Start func(ctx context.Context, h Handle) error
}

// Plugin is an installable unit of executors and triggers.
type Plugin interface {
	ID() string
	Name() string
	Description() string
	Executors() []Executor
	Triggers() []Trigger
}

// Initializer is implemented by plugins that need the runtime before
// serving. Init is called once, before any trigger starts.
type Initializer interface {
	Init(ctx context.Context, h Handle) error
}

// Closer is implemented by plugins holding resources released on stop.
type Closer interface {
	Close() error
}

// Requirement names a model capability a plugin depends on.
type Requirement struct {
	ID       string
	Optional bool
}

// CapabilityRequirer is implemented by plugins that depend on model
// capabilities. Missing required capabilities abort runtime startup.
type CapabilityRequirer interface {
	RequiredCapabilities() []Requirement
}

// FindExecutor returns the executor named action.
func FindExecutor(p Plugin, action string) (Executor, bool) {
	for _, e := range p.Executors() {
		if e.Name == action {
			return e, true
		}
	}
	return Executor{}, false
}
