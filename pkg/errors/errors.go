// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for the Maiar runtime.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies runtime errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeNoModel indicates no provider could serve a capability.
	CodeNoModel ErrorCode = "NO_MODEL"

	// CodeCapabilityFailure indicates a capability returned an error or
	// output that does not satisfy its declared schema.
	CodeCapabilityFailure ErrorCode = "CAPABILITY_FAILURE"

	// CodeSchemaViolation indicates model output could not be coerced into
	// the requested structure.
	CodeSchemaViolation ErrorCode = "SCHEMA_VIOLATION"

	// CodePluginCollision indicates a plugin id was registered twice.
	CodePluginCollision ErrorCode = "PLUGIN_COLLISION"

	// CodeStartup indicates the runtime refused to start.
	CodeStartup ErrorCode = "STARTUP_FAILURE"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeContextLost indicates the calling context was canceled.
	CodeContextLost ErrorCode = "CONTEXT_LOST"

	// CodeMemoryError indicates a memory backend error.
	CodeMemoryError ErrorCode = "MEMORY_ERROR"

	// CodeLLMError indicates an LLM provider error.
	CodeLLMError ErrorCode = "LLM_ERROR"
)

// MaiarError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type MaiarError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *MaiarError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *MaiarError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error for structured logs and monitor events.
func (e *MaiarError) MarshalJSON() ([]byte, error) {
	out := struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Context:     e.Context,
		Recoverable: e.Recoverable,
	}
	if e.Err != nil {
		out.Err = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates a new MaiarError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *MaiarError {
	return &MaiarError{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]interface{}),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...any) *MaiarError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *MaiarError) WithContext(key string, value interface{}) *MaiarError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *MaiarError) WithRecoverable(recoverable bool) *MaiarError {
	e.Recoverable = recoverable
	return e
}

// AsMaiarError returns the first MaiarError in err's chain, or wraps err as
// an internal error when there is none.
func AsMaiarError(err error) *MaiarError {
	if err == nil {
		return nil
	}
	var me *MaiarError
	if stderrors.As(err, &me) {
		return me
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code of the first MaiarError in err's chain.
// Plain errors report CodeInternal; nil reports "".
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var me *MaiarError
	if stderrors.As(err, &me) {
		return me.Code
	}
	return CodeInternal
}

// HasCode reports whether any MaiarError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var me *MaiarError
		if !stderrors.As(err, &me) {
			return false
		}
		if me.Code == code {
			return true
		}
		err = me.Err
	}
	return false
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *MaiarError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}
