// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

// Package operation implements structured output on top of plain text
// generation: a typed value is requested from the model, extracted from its
// reply, validated and, on failure, re-requested with the error attached.
package operation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/capability"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/errors"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/resilience"
)

// DefaultMaxRetries is the total number of attempts GetObject makes.
const DefaultMaxRetries = 3

// Executor dispatches capability calls. *model.Service satisfies it.
type Executor interface {
	ExecuteCapability(ctx context.Context, capabilityID string, input any, cfg capability.Config, modelID string) (any, error)
}

// Options tunes a structured-output call.
type Options struct {
	MaxRetries int
	ModelID    string
	Config     capability.Config
	System     string
	Logger     *slog.Logger
}

// Option configures Options.
type Option func(*Options)

// WithMaxRetries sets the total number of attempts.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxRetries = n
		}
	}
}

// WithModel pins the call to a provider id.
func WithModel(id string) Option {
	return func(o *Options) { o.ModelID = id }
}

// WithConfig passes model parameters such as temperature.
func WithConfig(cfg capability.Config) Option {
	return func(o *Options) { o.Config = cfg }
}

// WithSystem sets the system instruction.
func WithSystem(system string) Option {
	return func(o *Options) { o.System = system }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// GetObject asks the model for a value of type T described by prompt.
//
// The reply is stripped of code fences and the last top-level JSON object or
// array is decoded strictly into T. When T implements capability.Validator
// its Validate method must also pass. A failed attempt is retried with the
// previous reply and the error appended to the prompt. Once attempts are
// exhausted the returned error has code SCHEMA_VIOLATION and includes the
// last raw reply.
func GetObject[T any](ctx context.Context, exec Executor, prompt string, opts ...Option) (T, error) {
	o := Options{MaxRetries: DefaultMaxRetries, Logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := otel.Tracer("maiar/operation").Start(ctx, "Operation.GetObject")
	defer span.End()

	schema := capability.DescribeType[T]()
	basePrompt := BuildPrompt(prompt, schema)

	var (
		result  T
		lastRaw string
		lastErr error
	)
	retry := resilience.ImmediateRetryConfig(o.MaxRetries).
		WithIsRecoverable(func(err error) bool {
			if errors.HasCode(err, errors.CodeSchemaViolation) {
				return true
			}
			if me := errors.AsMaiarError(err); me != nil {
				return me.Recoverable
			}
			return false
		}).
		WithOnRetry(func(attempt int, err error) {
			o.Logger.DebugContext(ctx, "operation.get_object.retry",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", o.MaxRetries),
				slog.String("error", err.Error()))
		})

	err := retry.DoAttempt(ctx, func(attempt int) error {
		p := basePrompt
		if attempt > 0 && lastErr != nil {
			p = BuildRetryPrompt(basePrompt, lastRaw, lastErr)
		}

		out, err := exec.ExecuteCapability(ctx, model.TextGenerationCapability,
			model.TextGenerationInput{Prompt: p, System: o.System}, o.Config, o.ModelID)
		if err != nil {
			return err
		}
		raw, _ := out.(string)
		lastRaw = raw

		value, err := Parse[T](raw)
		if err != nil {
			lastErr = err
			return errors.New(errors.CodeSchemaViolation, err.Error(), err)
		}
		result = value
		return nil
	})
	span.SetAttributes(attribute.Int("operation.max_attempts", o.MaxRetries))
	if err == nil {
		return result, nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if !errors.HasCode(err, errors.CodeSchemaViolation) {
		return result, err
	}
	return result, errors.Newf(errors.CodeSchemaViolation,
		"structured output failed after %d attempts: %v; last response: %s",
		o.MaxRetries, lastErr, lastRaw).
		WithContext("last_response", lastRaw).
		WithContext("attempts", o.MaxRetries)
}

// Parse extracts and decodes a T from a raw model reply.
func Parse[T any](raw string) (T, error) {
	var zero T
	block, ok := ExtractJSON(raw)
	if !ok {
		return zero, fmt.Errorf("no JSON object or array found in response")
	}
	return capability.Decode[T](json.RawMessage(block))
}

// BuildPrompt embeds the expected JSON shape after the caller's prompt.
func BuildPrompt(body, schema string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n\nRespond with JSON that matches this JSON Schema:\n")
	b.WriteString(schema)
	b.WriteString("\n\nReturn only the JSON value. Do not add explanations or code fences.")
	return b.String()
}

// BuildRetryPrompt appends the rejected reply and the reason it was rejected.
func BuildRetryPrompt(base, lastRaw string, lastErr error) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nYour previous response was:\n")
	b.WriteString(lastRaw)
	b.WriteString("\n\nIt was rejected with this error:\n")
	b.WriteString(lastErr.Error())
	b.WriteString("\n\nFix the error and respond again with only the JSON value.")
	return b.String()
}

// booleanResult is the envelope GetBoolean asks for.
type booleanResult struct {
	Result *bool `json:"result" jsonschema:"required,description=The answer to the question"`
}

func (b booleanResult) Validate() error {
	if b.Result == nil {
		return fmt.Errorf("field result is required")
	}
	return nil
}

// GetBoolean asks a yes/no question and decodes {"result": bool}.
func GetBoolean(ctx context.Context, exec Executor, prompt string, opts ...Option) (bool, error) {
	out, err := GetObject[booleanResult](ctx, exec, prompt, opts...)
	if err != nil {
		return false, err
	}
	return *out.Result, nil
}
