package plugin

import (
	"context"
	"strings"
	"testing"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/errors"
)

type stubPlugin struct {
	Base
}

func newStub(id string) *stubPlugin {
	p := &stubPlugin{Base: NewBase(id, id, "stub")}
	p.AddExecutor(Executor{Name: "noop", Fn: func(context.Context, *core.AgentContext) (Result, error) {
		return OK(nil), nil
	}})
	return p
}

func TestRegisterCollision(t *testing.T) {
	r := NewRegistry()
	first := newStub("plugin-x")
	if err := r.Register(first); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := r.Register(newStub("plugin-x"))
	if !errors.HasCode(err, errors.CodePluginCollision) {
		t.Fatalf("expected collision, got %v", err)
	}
	if !strings.Contains(err.Error(), "plugin-x") {
		t.Errorf("error should list registered ids, got %v", err)
	}
	if all := r.All(); len(all) != 1 || all[0] != Plugin(first) {
		t.Errorf("expected the first registration to survive, got %v", all)
	}
}

func TestRegisterRejectsInvalid(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name string
		p    Plugin
	}{
		{"nil", nil},
		{"typed nil", (*stubPlugin)(nil)},
		{"no prefix", newStub("time")},
		{"bare prefix", newStub("plugin-")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Register(tt.p); !errors.HasCode(err, errors.CodeInvalidInput) {
				t.Errorf("expected invalid input, got %v", err)
			}
		})
	}
	if r.Len() != 0 {
		t.Errorf("registry must stay empty")
	}
}

func TestRegistryOrderAndLookup(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"plugin-b", "plugin-a", "plugin-c"} {
		if err := r.Register(newStub(id)); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	all := r.All()
	if all[0].ID() != "plugin-b" || all[2].ID() != "plugin-c" {
		t.Errorf("expected registration order")
	}
	p, ok := r.Plugin("plugin-a")
	if !ok {
		t.Fatal("expected plugin-a")
	}
	if _, ok := FindExecutor(p, "noop"); !ok {
		t.Errorf("expected noop executor")
	}
	if _, ok := FindExecutor(p, "missing"); ok {
		t.Errorf("unexpected executor")
	}
	if _, ok := r.Plugin("plugin-z"); ok {
		t.Errorf("unexpected plugin-z")
	}
}

func TestBaseExecutorReplace(t *testing.T) {
	p := newStub("plugin-x")
	p.AddExecutor(Executor{Name: "noop", Description: "second"})
	p.Require("text-generation", false)
	if len(p.Executors()) != 1 || p.Executors()[0].Description != "second" {
		t.Errorf("expected executor to be replaced")
	}
	if reqs := p.RequiredCapabilities(); len(reqs) != 1 || reqs[0].Optional {
		t.Errorf("unexpected requirements %v", reqs)
	}
}
