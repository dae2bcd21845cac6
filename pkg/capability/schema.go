// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
)

// Schema validates values crossing a capability boundary.
type Schema interface {
	// Validate checks value and returns it normalized to the schema's Go type.
	Validate(value any) (any, error)

	// Describe returns a human-readable rendering of the expected shape.
	Describe() string
}

// Validator is implemented by types with constraints beyond their JSON shape.
type Validator interface {
	Validate() error
}

type typeSchema[T any] struct {
	once sync.Once
	desc string
}

// TypeOf returns a schema that accepts T itself or any JSON-compatible value
// that decodes into T without unknown fields. When T (or *T) implements
// Validator, its Validate method is applied as well.
func TypeOf[T any]() Schema {
	return &typeSchema[T]{}
}

func (s *typeSchema[T]) Validate(value any) (any, error) {
	out, err := Decode[T](value)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *typeSchema[T]) Describe() string {
	s.once.Do(func() {
		s.desc = DescribeType[T]()
	})
	return s.desc
}

// Decode coerces value into T and applies its Validator, if any.
func Decode[T any](value any) (T, error) {
	var out T
	switch v := value.(type) {
	case T:
		out = v
	case *T:
		if v == nil {
			return out, fmt.Errorf("expected %s, got nil", typeName[T]())
		}
		out = *v
	case json.RawMessage:
		if err := strictUnmarshal(v, &out); err != nil {
			return out, err
		}
	case []byte:
		if err := strictUnmarshal(v, &out); err != nil {
			return out, err
		}
	default:
		if value == nil {
			return out, fmt.Errorf("expected %s, got nil", typeName[T]())
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return out, fmt.Errorf("expected %s: %w", typeName[T](), err)
		}
		if err := strictUnmarshal(raw, &out); err != nil {
			return out, err
		}
	}
	if err := validate(&out); err != nil {
		return out, err
	}
	return out, nil
}

func strictUnmarshal[T any](raw []byte, out *T) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("expected %s: %w", typeName[T](), err)
	}
	if dec.More() {
		return fmt.Errorf("expected %s: trailing data", typeName[T]())
	}
	return nil
}

func validate[T any](v *T) error {
	if val, ok := any(*v).(Validator); ok {
		return val.Validate()
	}
	if val, ok := any(v).(Validator); ok {
		return val.Validate()
	}
	return nil
}

// DescribeType renders T as an indented JSON Schema document.
func DescribeType[T any]() string {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.ReflectFromType(reflect.TypeOf((*T)(nil)).Elem())
	schema.Version = ""
	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return typeName[T]()
	}
	return string(raw)
}

func typeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

type anySchema struct{}

// Any accepts every value unchanged.
func Any() Schema { return anySchema{} }

func (anySchema) Validate(value any) (any, error) { return value, nil }

func (anySchema) Describe() string { return "{}" }
