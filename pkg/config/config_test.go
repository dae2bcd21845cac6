package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Runtime.MaxRetries != 3 {
		t.Errorf("expected default max_retries 3, got %d", cfg.Runtime.MaxRetries)
	}
	if cfg.Runtime.PollInterval != 100*time.Millisecond {
		t.Errorf("expected default poll interval 100ms, got %s", cfg.Runtime.PollInterval)
	}
	if cfg.Runtime.StepTimeout != time.Minute {
		t.Errorf("expected default step timeout 60s, got %s", cfg.Runtime.StepTimeout)
	}
	if cfg.Memory.Provider != "inmemory" {
		t.Errorf("expected inmemory memory, got %s", cfg.Memory.Provider)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("MAIAR_MODELS__OPENAI__API_KEY", "sk-test")
	t.Setenv("MAIAR_RUNTIME__STEP_TIMEOUT", "5s")
	t.Setenv("MAIAR_RUNTIME__MAX_RETRIES", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Models.OpenAI.APIKey != "sk-test" {
		t.Errorf("expected api key from env, got %q", cfg.Models.OpenAI.APIKey)
	}
	if cfg.Runtime.StepTimeout != 5*time.Second {
		t.Errorf("expected step timeout from env, got %s", cfg.Runtime.StepTimeout)
	}
	if cfg.Runtime.MaxRetries != 5 {
		t.Errorf("expected max retries from env, got %d", cfg.Runtime.MaxRetries)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maiar.yaml")
	content := `
models:
  default_text_generation: anthropic
  aliases:
    text-creation: text-generation
runtime:
  fallback_pipeline: fallback.yaml
plugins:
  mcp:
    servers:
      - name: files
        command: mcp-files
        args: ["--root", "/tmp"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Models.DefaultTextGeneration != "anthropic" {
		t.Errorf("unexpected default model %q", cfg.Models.DefaultTextGeneration)
	}
	if cfg.Models.Aliases["text-creation"] != "text-generation" {
		t.Errorf("unexpected aliases %v", cfg.Models.Aliases)
	}
	if cfg.Runtime.FallbackPipeline != "fallback.yaml" {
		t.Errorf("unexpected fallback pipeline %q", cfg.Runtime.FallbackPipeline)
	}
	servers := cfg.Plugins.MCP.Servers
	if len(servers) != 1 || servers[0].Command != "mcp-files" || len(servers[0].Args) != 2 {
		t.Errorf("unexpected mcp servers %+v", servers)
	}
	if cfg.Runtime.MaxRetries != 3 {
		t.Errorf("defaults must survive a partial file")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadWithProfile(t *testing.T) {
	tmpDir := t.TempDir()

	basePath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(basePath, []byte(`
models:
  ollama:
    model: "llama3.1"
log:
  level: "info"
`), 0644); err != nil {
		t.Fatalf("failed to write base config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "config.dev.yaml"), []byte(`
log:
  level: "debug"
memory:
  provider: "sqlite"
`), 0644); err != nil {
		t.Fatalf("failed to write dev config: %v", err)
	}

	tests := []struct {
		name         string
		profile      string
		wantLevel    string
		wantProvider string
	}{
		{"no profile - base only", "", "info", "inmemory"},
		{"dev profile", "dev", "debug", "sqlite"},
		{"nonexistent profile - falls back to base", "staging", "info", "inmemory"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadWithProfile(basePath, tc.profile)
			if err != nil {
				t.Fatalf("LoadWithProfile failed: %v", err)
			}
			if cfg.Log.Level != tc.wantLevel {
				t.Errorf("log level: got %s, want %s", cfg.Log.Level, tc.wantLevel)
			}
			if cfg.Memory.Provider != tc.wantProvider {
				t.Errorf("memory provider: got %s, want %s", cfg.Memory.Provider, tc.wantProvider)
			}
			if cfg.Models.Ollama.Model != "llama3.1" {
				t.Errorf("model must be inherited from base, got %s", cfg.Models.Ollama.Model)
			}
		})
	}
}

func TestLoadWithCLIOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	content := []byte(`{
  "models": {"ollama": {"model": "model-a"}},
  "telemetry": {"exporter": "stdout"}
}`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MAIAR_MODELS__OLLAMA__MODEL", "model-env")

	cfg, err := LoadWithCLI([]string{
		"--config", path,
		"--set", "models.ollama.model=model-cli",
		"--set", "runtime.model_logging=true",
		"--set", "runtime.history_limit=12",
		"--set=runtime.step_timeout=2s",
		`--set`, `models.aliases={"img-gen":"image-generation"}`,
	})
	if err != nil {
		t.Fatalf("LoadWithCLI failed: %v", err)
	}
	if cfg.Models.Ollama.Model != "model-cli" {
		t.Errorf("expected cli override to win, got %s", cfg.Models.Ollama.Model)
	}
	if !cfg.Runtime.ModelLogging || cfg.Runtime.HistoryLimit != 12 {
		t.Errorf("expected runtime overrides, got %+v", cfg.Runtime)
	}
	if cfg.Runtime.StepTimeout != 2*time.Second {
		t.Errorf("expected step timeout override, got %s", cfg.Runtime.StepTimeout)
	}
	if cfg.Models.Aliases["img-gen"] != "image-generation" {
		t.Errorf("expected alias from JSON override, got %v", cfg.Models.Aliases)
	}
}

func TestLoadWithCLIProfile(t *testing.T) {
	tmpDir := t.TempDir()
	basePath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(basePath, []byte("memory:\n  provider: inmemory\n"), 0644); err != nil {
		t.Fatalf("failed to write base config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "config.dev.yaml"), []byte("memory:\n  provider: sqlite\n"), 0644); err != nil {
		t.Fatalf("failed to write dev config: %v", err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"profile flag", []string{"--config", basePath, "--profile", "dev"}},
		{"env flag alias", []string{"--config", basePath, "--env", "dev"}},
		{"profile with equals", []string{"--config=" + basePath, "--profile=dev"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadWithCLI(tc.args)
			if err != nil {
				t.Fatalf("LoadWithCLI failed: %v", err)
			}
			if cfg.Memory.Provider != "sqlite" {
				t.Errorf("provider: got %s, want sqlite", cfg.Memory.Provider)
			}
		})
	}
}

func TestParseCLIOverridesErrors(t *testing.T) {
	if _, _, err := parseCLIOverrides([]string{"--config"}); err == nil {
		t.Fatalf("expected error for missing --config value")
	}
	if _, _, err := parseCLIOverrides([]string{"--set"}); err == nil {
		t.Fatalf("expected error for missing --set value")
	}
	if _, _, err := parseCLIOverrides([]string{"--set", "invalid"}); err == nil {
		t.Fatalf("expected error for invalid --set value")
	}
}

func TestProfileConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	devPath := filepath.Join(tmpDir, "config.dev.yaml")
	if err := os.WriteFile(devPath, []byte("log: {}"), 0644); err != nil {
		t.Fatalf("failed to create dev config: %v", err)
	}
	basePath := filepath.Join(tmpDir, "config.yaml")

	tests := []struct {
		name     string
		base     string
		profile  string
		wantPath string
	}{
		{"existing profile", basePath, "dev", devPath},
		{"nonexistent profile", basePath, "prod", ""},
		{"empty profile", basePath, "", ""},
		{"empty base", "", "dev", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := profileConfigPath(tc.base, tc.profile); got != tc.wantPath {
				t.Errorf("profileConfigPath(%q, %q) = %q, want %q", tc.base, tc.profile, got, tc.wantPath)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"memory provider", func(c *Config) { c.Memory.Provider = "redis" }},
		{"monitor store", func(c *Config) { c.Monitor.Store = "kafka" }},
		{"otlp endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "otlp"
		}},
		{"max retries", func(c *Config) { c.Runtime.MaxRetries = 0 }},
		{"poll interval", func(c *Config) { c.Runtime.PollInterval = 0 }},
		{"mcp server", func(c *Config) { c.Plugins.MCP.Servers = []MCPServerConfig{{Name: "x"}} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	if got := envKey("MAIAR_MODELS__OPENAI__API_KEY"); got != "models.openai.api_key" {
		t.Errorf("unexpected key %q", got)
	}
}
