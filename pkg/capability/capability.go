// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability defines typed model operations and the registry that
// tracks which providers implement them.
package capability

import (
	"context"
	"fmt"
)

// Config carries per-call model parameters such as temperature.
type Config map[string]any

// Float returns cfg[key] as a float64 if it holds a number.
func (c Config) Float(key string) (float64, bool) {
	switch v := c[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Int returns cfg[key] as an int if it holds an integral number.
func (c Config) Int(key string) (int, bool) {
	switch v := c[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// String returns cfg[key] as a string.
func (c Config) String(key string) (string, bool) {
	v, ok := c[key].(string)
	return v, ok
}

// Capability is a typed operation a model provider can perform.
type Capability interface {
	ID() string
	Description() string
	InputSchema() Schema
	OutputSchema() Schema
	Execute(ctx context.Context, input any, cfg Config) (any, error)
}

// Func is the body of a typed capability.
type Func[I, O any] func(ctx context.Context, input I, cfg Config) (O, error)

type funcCapability[I, O any] struct {
	id          string
	description string
	input       Schema
	output      Schema
	fn          Func[I, O]
}

// New builds a capability whose schemas are derived from I and O.
func New[I, O any](id, description string, fn Func[I, O]) Capability {
	return &funcCapability[I, O]{
		id:          id,
		description: description,
		input:       TypeOf[I](),
		output:      TypeOf[O](),
		fn:          fn,
	}
}

func (c *funcCapability[I, O]) ID() string           { return c.id }
func (c *funcCapability[I, O]) Description() string  { return c.description }
func (c *funcCapability[I, O]) InputSchema() Schema  { return c.input }
func (c *funcCapability[I, O]) OutputSchema() Schema { return c.output }

func (c *funcCapability[I, O]) Execute(ctx context.Context, input any, cfg Config) (any, error) {
	in, ok := input.(I)
	if !ok {
		var err error
		in, err = Decode[I](input)
		if err != nil {
			return nil, fmt.Errorf("capability %s: %w", c.id, err)
		}
	}
	return c.fn(ctx, in, cfg)
}
