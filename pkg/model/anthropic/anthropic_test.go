// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model"
)

func TestNewProvider(t *testing.T) {
	p := New(WithAPIKey("test-key"), WithModel("claude-test"), WithMaxTokens(128))
	if p.model != "claude-test" || p.maxTokens != 128 {
		t.Errorf("options not applied: %s %d", p.model, p.maxTokens)
	}
	if _, ok := model.FindCapability(p, model.TextGenerationCapability); !ok {
		t.Errorf("expected text-generation capability")
	}
}

func TestInitRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if err := New().Init(context.Background()); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestGenerateAgainstFakeServer(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "hi "}, {"type": "text", "text": "there"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`)
	}))
	defer srv.Close()

	p := New(WithAPIKey("test-key"), WithBaseURL(srv.URL+"/"), WithModel("claude-test"))
	out, err := p.Capabilities()[0].Execute(context.Background(),
		model.TextGenerationInput{Prompt: "greet", System: "be brief"}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "hi there" {
		t.Errorf("expected concatenated text blocks, got %q", out)
	}
	if body["model"] != "claude-test" {
		t.Errorf("unexpected model %v", body["model"])
	}
	if _, ok := body["system"]; !ok {
		t.Errorf("expected system prompt to be sent")
	}
}
