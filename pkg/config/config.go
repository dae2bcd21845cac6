// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads runtime configuration from defaults, YAML files,
// environment variables and command line overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore: MAIAR_RUNTIME__STEP_TIMEOUT sets runtime.step_timeout.
const EnvPrefix = "MAIAR_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Runtime   RuntimeConfig   `koanf:"runtime"`
	Models    ModelsConfig    `koanf:"models"`
	Memory    MemoryConfig    `koanf:"memory"`
	Monitor   MonitorConfig   `koanf:"monitor"`
	Plugins   PluginsConfig   `koanf:"plugins"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text, none
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Exporter     string `koanf:"exporter"` // stdout, otlp, none
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
	// SampleRatio is the fraction of traces recorded; 0 records all.
	SampleRatio float64 `koanf:"sample_ratio"`
}

type RuntimeConfig struct {
	// MaxRetries is the number of attempts of every structured-output call.
	MaxRetries   int           `koanf:"max_retries"`
	PollInterval time.Duration `koanf:"poll_interval"`
	// StepTimeout bounds each executor call. Zero disables the bound.
	StepTimeout  time.Duration `koanf:"step_timeout"`
	HistoryLimit int           `koanf:"history_limit"`
	// FallbackPipeline is a YAML or JSON pipeline used when planning fails.
	FallbackPipeline string `koanf:"fallback_pipeline"`
	ModelLogging     bool   `koanf:"model_logging"`
}

type ModelsConfig struct {
	// DefaultTextGeneration overrides which provider serves text generation.
	DefaultTextGeneration string            `koanf:"default_text_generation"`
	Aliases               map[string]string `koanf:"aliases"`
	OpenAI                OpenAIConfig      `koanf:"openai"`
	Anthropic             AnthropicConfig   `koanf:"anthropic"`
	Ollama                OllamaConfig      `koanf:"ollama"`
}

type OpenAIConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

type AnthropicConfig struct {
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"`
}

type OllamaConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

type MemoryConfig struct {
	Provider   string `koanf:"provider"` // inmemory, sqlite
	SQLitePath string `koanf:"sqlite_path"`
}

type MonitorConfig struct {
	Console    bool   `koanf:"console"`
	Store      string `koanf:"store"` // none, memory, sqlite
	SQLitePath string `koanf:"sqlite_path"`
}

type PluginsConfig struct {
	Time TimePluginConfig `koanf:"time"`
	Text TextPluginConfig `koanf:"text"`
	HTTP HTTPPluginConfig `koanf:"http"`
	MCP  MCPPluginConfig  `koanf:"mcp"`
}

type TimePluginConfig struct {
	Enabled bool `koanf:"enabled"`
	// Interval between scheduled events. Zero disables the trigger.
	Interval time.Duration `koanf:"interval"`
	Prompt   string        `koanf:"prompt"`
}

type TextPluginConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Temperature float64 `koanf:"temperature"`
}

type HTTPPluginConfig struct {
	Enabled bool          `koanf:"enabled"`
	Addr    string        `koanf:"addr"`
	Timeout time.Duration `koanf:"timeout"`
}

type MCPPluginConfig struct {
	Servers []MCPServerConfig `koanf:"servers"`
}

// MCPServerConfig reaches a server over stdio (Command) or streamable HTTP (URL).
type MCPServerConfig struct {
	Name    string   `koanf:"name"`
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
	URL     string   `koanf:"url"`
}

// Global k instance
var k = koanf.New(".")

func setDefaults() {
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("telemetry.enabled", false)
	k.Set("telemetry.exporter", "stdout")

	k.Set("runtime.max_retries", 3)
	k.Set("runtime.poll_interval", "100ms")
	k.Set("runtime.step_timeout", "60s")
	k.Set("runtime.history_limit", 20)
	k.Set("runtime.model_logging", false)

	k.Set("models.ollama.base_url", "http://localhost:11434")
	k.Set("models.ollama.model", "llama3.2")
	k.Set("models.openai.model", "gpt-4o-mini")
	k.Set("models.anthropic.model", "claude-3-5-sonnet-20241022")

	k.Set("memory.provider", "inmemory")
	k.Set("memory.sqlite_path", "maiar.db")

	k.Set("monitor.console", true)
	k.Set("monitor.store", "none")
	k.Set("monitor.sqlite_path", "maiar-monitor.db")

	k.Set("plugins.time.enabled", true)
	k.Set("plugins.time.interval", "0s")
	k.Set("plugins.time.prompt", "A scheduled moment has arrived. Decide whether anything should be done.")
	k.Set("plugins.text.enabled", true)
	k.Set("plugins.text.temperature", 0.7)
	k.Set("plugins.http.enabled", false)
	k.Set("plugins.http.addr", ":8080")
	k.Set("plugins.http.timeout", "60s")
}

// Load reads defaults, then the YAML file at path (if any), then the
// environment.
func Load(path string) (*Config, error) {
	return LoadWithProfile(path, "")
}

// LoadWithProfile is Load with a profile overlay: for config.yaml and
// profile "dev", config.dev.yaml is merged on top when it exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	return load(path, profile, nil)
}

// LoadWithCLI parses --config, --profile (alias --env) and repeated
// --set key=value flags. Overrides from --set win over every other source.
func LoadWithCLI(args []string) (*Config, error) {
	opts, sets, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return load(opts.path, opts.profile, sets)
}

func load(path, profile string, sets map[string]any) (*Config, error) {
	k = koanf.New(".")
	setDefaults()

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if p := profileConfigPath(path, profile); p != "" {
			if err := k.Load(file.Provider(p), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load profile config %s: %w", p, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	for key, value := range sets {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("apply --set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps MAIAR_MODELS__OPENAI__API_KEY to models.openai.api_key.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	candidate := strings.TrimSuffix(base, ext) + "." + profile + ext
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

type cliOptions struct {
	path    string
	profile string
}

func parseCLIOverrides(args []string) (cliOptions, map[string]any, error) {
	var opts cliOptions
	sets := make(map[string]any)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		if !strings.HasPrefix(name, "--") {
			continue
		}
		switch name {
		case "--config", "--profile", "--env", "--set":
		default:
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("missing value for %s", name)
			}
			i++
			value = args[i]
		}

		switch name {
		case "--config":
			opts.path = value
		case "--profile", "--env":
			opts.profile = value
		case "--set":
			key, raw, ok := strings.Cut(value, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return opts, nil, fmt.Errorf("invalid --set value %q, expected key=value", value)
			}
			sets[strings.TrimSpace(key)] = parseSetValue(raw)
		}
	}
	return opts, sets, nil
}

// parseSetValue decodes JSON objects and arrays; anything else stays a string
// and is converted by the weakly typed decoder on unmarshal.
func parseSetValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return raw
}

// Validate reports malformed values.
func (c *Config) Validate() error {
	var problems []string
	switch c.Memory.Provider {
	case "inmemory", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("memory.provider %q must be inmemory or sqlite", c.Memory.Provider))
	}
	switch c.Monitor.Store {
	case "", "none", "memory", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("monitor.store %q must be none, memory or sqlite", c.Monitor.Store))
	}
	if c.Telemetry.Enabled && c.Telemetry.Exporter == "otlp" && c.Telemetry.OTLPEndpoint == "" {
		problems = append(problems, "telemetry.otlp_endpoint is required for the otlp exporter")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		problems = append(problems, "telemetry.sample_ratio must be between 0 and 1")
	}
	if c.Runtime.MaxRetries < 1 {
		problems = append(problems, "runtime.max_retries must be at least 1")
	}
	if c.Runtime.PollInterval <= 0 {
		problems = append(problems, "runtime.poll_interval must be positive")
	}
	if c.Runtime.StepTimeout < 0 {
		problems = append(problems, "runtime.step_timeout must not be negative")
	}
	for i, s := range c.Plugins.MCP.Servers {
		if s.Name == "" || (s.Command == "" && s.URL == "") {
			problems = append(problems, fmt.Sprintf("plugins.mcp.servers[%d] needs a name and a command or url", i))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
