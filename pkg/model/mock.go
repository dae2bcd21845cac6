package model

import (
	"context"
	"errors"
	"sync"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/capability"
)

// MockProvider answers every text-generation request with a fixed response.
type MockProvider struct {
	Base
	Response  string
	InitErr   error
	HealthErr error
}

// NewMockProvider creates a MockProvider with the given id.
func NewMockProvider(id, response string) *MockProvider {
	m := &MockProvider{Base: NewBase(id, "Mock", "Returns a fixed response"), Response: response}
	m.AddCapability(NewTextGeneration(func(context.Context, TextGenerationInput, capability.Config) (string, error) {
		return m.Response, nil
	}))
	return m
}

// Init implements Provider.
func (m *MockProvider) Init(context.Context) error { return m.InitErr }

// CheckHealth implements Provider.
func (m *MockProvider) CheckHealth(context.Context) error { return m.HealthErr }

// ScriptedResponse is one queued reply of a ScriptedProvider.
type ScriptedResponse struct {
	Content string
	Err     error
	// Condition restricts the reply to prompts it accepts. Nil accepts all.
	Condition func(prompt string) bool
}

// ScriptedProvider returns queued responses in order and records prompts.
// The first queued response whose Condition accepts the prompt is consumed.
type ScriptedProvider struct {
	Base

	mu        sync.Mutex
	responses []ScriptedResponse
	prompts   []string
	fallback  func(prompt string) (string, error)
	// CallCount tracks how many times text generation has been called.
	CallCount int
}

// NewScriptedProvider creates a ScriptedProvider with plain responses queued.
func NewScriptedProvider(id string, responses ...string) *ScriptedProvider {
	s := &ScriptedProvider{Base: NewBase(id, "Scripted", "Returns scripted responses")}
	for _, r := range responses {
		s.responses = append(s.responses, ScriptedResponse{Content: r})
	}
	s.AddCapability(NewTextGeneration(func(_ context.Context, in TextGenerationInput, _ capability.Config) (string, error) {
		return s.next(in.Prompt)
	}))
	return s
}

// AddResponse queues a response.
func (s *ScriptedProvider) AddResponse(content string) *ScriptedProvider {
	return s.AddScripted(ScriptedResponse{Content: content})
}

// AddError queues a failure.
func (s *ScriptedProvider) AddError(err error) *ScriptedProvider {
	return s.AddScripted(ScriptedResponse{Err: err})
}

// AddScripted queues a fully configured response.
func (s *ScriptedProvider) AddScripted(r ScriptedResponse) *ScriptedProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
	return s
}

// WithFallback answers prompts that no queued response accepts.
func (s *ScriptedProvider) WithFallback(fn func(prompt string) (string, error)) *ScriptedProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = fn
	return s
}

// Prompts returns every prompt received so far.
func (s *ScriptedProvider) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.prompts))
	copy(out, s.prompts)
	return out
}

// Calls returns CallCount under lock.
func (s *ScriptedProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCount
}

func (s *ScriptedProvider) next(prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CallCount++
	s.prompts = append(s.prompts, prompt)

	for i, r := range s.responses {
		if r.Condition != nil && !r.Condition(prompt) {
			continue
		}
		s.responses = append(s.responses[:i:i], s.responses[i+1:]...)
		return r.Content, r.Err
	}
	if s.fallback != nil {
		return s.fallback(prompt)
	}
	return "", errors.New("scripted provider: no more responses available")
}
