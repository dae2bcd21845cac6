package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/config"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseGlobalFlags(t *testing.T) {
	flags, rest, err := parseGlobalFlags([]string{
		"--config", "maiar.yaml", "--profile=dev", "--set", "runtime.max_retries=5",
		"--timeout=5s", "--json", "validate", "pipeline.yaml",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if flags.ConfigPath != "maiar.yaml" || flags.Profile != "dev" || !flags.JSON || flags.Timeout != 5*time.Second {
		t.Errorf("unexpected flags %+v", flags)
	}
	want := []string{"--config", "maiar.yaml", "--profile", "dev", "--set", "runtime.max_retries=5"}
	if len(flags.ConfigArgs) != len(want) {
		t.Fatalf("unexpected config args %v", flags.ConfigArgs)
	}
	for i := range want {
		if flags.ConfigArgs[i] != want[i] {
			t.Errorf("config arg %d = %q, want %q", i, flags.ConfigArgs[i], want[i])
		}
	}
	if len(rest) != 2 || rest[0] != "validate" {
		t.Errorf("unexpected rest %v", rest)
	}
}

func TestParseGlobalFlagsErrors(t *testing.T) {
	for _, args := range [][]string{{"--bogus"}, {"--config"}, {"--timeout", "soon"}} {
		if _, _, err := parseGlobalFlags(args); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
}

func TestBuildModelsOrderAndAliases(t *testing.T) {
	cfg := config.ModelsConfig{
		Aliases:   map[string]string{"chat": model.TextGenerationCapability},
		OpenAI:    config.OpenAIConfig{APIKey: "sk-test"},
		Anthropic: config.AnthropicConfig{APIKey: "ak-test"},
		Ollama:    config.OllamaConfig{BaseURL: "http://localhost:11434"},
	}
	svc, err := buildModels(cfg, false, nil, discardLogger())
	if err != nil {
		t.Fatalf("buildModels: %v", err)
	}
	providers := svc.Providers()
	if len(providers) != 3 || providers[0].ID() != "openai" {
		t.Fatalf("unexpected providers %v", providers)
	}
	if !svc.HasCapability("chat") {
		t.Errorf("alias chat should resolve to text generation")
	}
	if def, ok := svc.Registry().DefaultModel(model.TextGenerationCapability); !ok || def != "openai" {
		t.Errorf("first registrant must be the default, got %q", def)
	}

	cfg.DefaultTextGeneration = "ollama"
	if err := applyModelConfig(svc, cfg, discardLogger()); err != nil {
		t.Fatalf("applyModelConfig: %v", err)
	}
	if def, _ := svc.Registry().DefaultModel(model.TextGenerationCapability); def != "ollama" {
		t.Errorf("expected ollama default, got %q", def)
	}

	cfg.DefaultTextGeneration = "missing"
	if err := applyModelConfig(svc, cfg, discardLogger()); err == nil {
		t.Error("expected error for unknown default model")
	}
}

func TestApplyReloadReplacesAliases(t *testing.T) {
	prev := &config.Config{Log: config.LogConfig{Level: "info"}, Models: config.ModelsConfig{
		Aliases: map[string]string{"chat": model.TextGenerationCapability},
		Ollama:  config.OllamaConfig{BaseURL: "http://localhost:11434"},
	}}
	svc, err := buildModels(prev.Models, false, nil, discardLogger())
	if err != nil {
		t.Fatalf("buildModels: %v", err)
	}

	next := *prev
	next.Models.Aliases = map[string]string{"talk": model.TextGenerationCapability}
	current := config.NewReloadableConfig(prev)
	applyReload(current, &next, svc, discardLogger())

	if svc.HasCapability("chat") {
		t.Error("removed alias chat must not survive a reload")
	}
	if !svc.HasCapability("talk") {
		t.Error("new alias talk should resolve after a reload")
	}
	if current.Get() != &next {
		t.Error("reloadable config should hold the new config")
	}
}

func TestBuildPluginsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Plugins.Time.Enabled = true
	cfg.Plugins.Text.Enabled = true
	cfg.Plugins.HTTP.Enabled = true

	registry, err := buildPlugins(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("buildPlugins: %v", err)
	}
	for _, id := range []string{"plugin-time", "plugin-text", "plugin-http"} {
		if _, ok := registry.Plugin(id); !ok {
			t.Errorf("missing %s", id)
		}
	}
}

func TestBuildMemoryAndMonitor(t *testing.T) {
	dir := t.TempDir()

	mem, closer, err := buildMemory(config.MemoryConfig{Provider: "sqlite", SQLitePath: filepath.Join(dir, "memory.db")})
	if err != nil {
		t.Fatalf("buildMemory: %v", err)
	}
	if mem == nil || closer == nil {
		t.Fatal("sqlite memory must be closable")
	}
	closer.Close()

	mon, res, err := buildMonitor(config.MonitorConfig{
		Console:    true,
		Store:      "sqlite",
		SQLitePath: filepath.Join(dir, "monitor.db"),
	}, false, discardLogger())
	if err != nil {
		t.Fatalf("buildMonitor: %v", err)
	}
	defer res.Close()
	if n := len(mon.Providers()); n != 2 {
		t.Errorf("expected console and store sinks, got %d", n)
	}
}

func TestValidatePipelineFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.yaml")
	if err := os.WriteFile(path, []byte("- pluginId: plugin-text\n  action: generate_text\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer devNull.Close()
	stdout := os.Stdout
	os.Stdout = devNull
	defer func() { os.Stdout = stdout }()

	if err := runValidate(context.Background(), globalFlags{Timeout: time.Second}, []string{path}); err != nil {
		t.Errorf("valid pipeline rejected: %v", err)
	}
	if err := runValidate(context.Background(), globalFlags{Timeout: time.Second}, []string{filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("expected error for missing pipeline")
	}
}
