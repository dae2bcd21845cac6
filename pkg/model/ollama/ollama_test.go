package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model"
)

func fakeServer(t *testing.T, models ...string) (*httptest.Server, *chatRequest) {
	t.Helper()
	var last chatRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		var tags tagsResponse
		for _, m := range models {
			tags.Models = append(tags.Models, struct {
				Name  string `json:"name"`
				Model string `json:"model"`
			}{Name: m, Model: m})
		}
		_ = json.NewEncoder(w).Encode(tags)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&last); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: message{Role: "assistant", Content: "pong"},
			Done:    true,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &last
}

func TestGenerate(t *testing.T) {
	srv, last := fakeServer(t, "llama3.2:latest")
	p := New(WithBaseURL(srv.URL+"/"), WithModel("llama3.2"))

	out, err := p.generate(context.Background(), model.TextGenerationInput{Prompt: "ping", System: "terse"}, map[string]any{"temperature": 0.1, "max_tokens": 5})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "pong" {
		t.Errorf("expected pong, got %q", out)
	}
	if last.Stream {
		t.Errorf("expected non-streaming request")
	}
	if len(last.Messages) != 2 || last.Messages[0].Role != "system" {
		t.Errorf("unexpected messages %+v", last.Messages)
	}
	if last.Options["num_predict"] != float64(5) {
		t.Errorf("expected num_predict option, got %v", last.Options)
	}
}

func TestCheckHealth(t *testing.T) {
	srv, _ := fakeServer(t, "llama3.2:latest")

	if err := New(WithBaseURL(srv.URL), WithModel("llama3.2")).CheckHealth(context.Background()); err != nil {
		t.Errorf("expected healthy, got %v", err)
	}
	if err := New(WithBaseURL(srv.URL), WithModel("mistral")).CheckHealth(context.Background()); err == nil {
		t.Errorf("expected missing model error")
	}
}
