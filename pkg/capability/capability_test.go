// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"context"
	"errors"
	"strings"
	"testing"

	merrors "github.com/zeeman-effect/maiar-ai-sub000/pkg/errors"
)

type greeting struct {
	Name  string `json:"name"`
	Count int    `json:"count,omitempty"`
}

func (g greeting) Validate() error {
	if g.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func TestRegistryFirstProviderIsDefault(t *testing.T) {
	r := NewRegistry()
	r.Register("model-a", "text-generation")
	r.Register("model-b", "text-generation")
	r.Register("model-a", "text-generation")

	id, ok := r.DefaultModel("text-generation")
	if !ok || id != "model-a" {
		t.Fatalf("expected model-a default, got %q (%v)", id, ok)
	}
	models := r.ModelsWithCapability("text-generation")
	if len(models) != 2 || models[0] != "model-a" || models[1] != "model-b" {
		t.Errorf("unexpected candidate set %v", models)
	}
	if !r.HasCapability("text-generation") || r.HasCapability("image-generation") {
		t.Errorf("unexpected HasCapability results")
	}
}

func TestRegistrySetDefaultModel(t *testing.T) {
	r := NewRegistry()
	r.Register("model-a", "text-generation")
	r.Register("model-b", "text-generation")

	if err := r.SetDefaultModel("text-generation", "model-b"); err != nil {
		t.Fatalf("SetDefaultModel: %v", err)
	}
	if id, _ := r.DefaultModel("text-generation"); id != "model-b" {
		t.Errorf("expected model-b, got %s", id)
	}

	err := r.SetDefaultModel("text-generation", "model-c")
	if !merrors.HasCode(err, merrors.CodeInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
	if id, _ := r.DefaultModel("text-generation"); id != "model-b" {
		t.Errorf("failed SetDefaultModel must not change default, got %s", id)
	}
}

func TestTypeOfValidate(t *testing.T) {
	schema := TypeOf[greeting]()

	tests := []struct {
		name    string
		value   any
		wantErr string
	}{
		{name: "typed value", value: greeting{Name: "maiar"}},
		{name: "map value", value: map[string]any{"name": "maiar", "count": 2}},
		{name: "raw json", value: []byte(`{"name":"maiar"}`)},
		{name: "unknown field", value: map[string]any{"name": "maiar", "extra": true}, wantErr: "unknown field"},
		{name: "validator fails", value: map[string]any{"count": 1}, wantErr: "name is required"},
		{name: "wrong type", value: "hello", wantErr: "expected greeting"},
		{name: "nil", value: nil, wantErr: "got nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := schema.Validate(tt.value)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if g, ok := out.(greeting); !ok || g.Name != "maiar" {
				t.Errorf("unexpected normalized value %#v", out)
			}
		})
	}
}

func TestDescribeType(t *testing.T) {
	desc := TypeOf[greeting]().Describe()
	if !strings.Contains(desc, `"name"`) || !strings.Contains(desc, `"count"`) {
		t.Errorf("expected field names in description, got %s", desc)
	}
	if !strings.Contains(TypeOf[string]().Describe(), `"string"`) {
		t.Errorf("expected string schema")
	}
}

func TestNewCapabilityExecute(t *testing.T) {
	c := New("greet", "Greets someone", func(_ context.Context, in greeting, cfg Config) (string, error) {
		prefix, _ := cfg.String("prefix")
		return prefix + in.Name, nil
	})

	out, err := c.Execute(context.Background(), map[string]any{"name": "world"}, Config{"prefix": "hello "})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "hello world" {
		t.Errorf("unexpected output %v", out)
	}
	if _, err := c.Execute(context.Background(), 42, nil); err == nil {
		t.Errorf("expected decode failure")
	}
	if c.ID() != "greet" || c.Description() != "Greets someone" {
		t.Errorf("unexpected metadata")
	}
}

func TestConfigAccessors(t *testing.T) {
	cfg := Config{"temperature": 0.2, "max_tokens": 256, "model": "gpt"}
	if v, ok := cfg.Float("temperature"); !ok || v != 0.2 {
		t.Errorf("unexpected temperature %v", v)
	}
	if v, ok := cfg.Int("max_tokens"); !ok || v != 256 {
		t.Errorf("unexpected max_tokens %v", v)
	}
	if _, ok := cfg.Float("missing"); ok {
		t.Errorf("expected missing key")
	}
}
