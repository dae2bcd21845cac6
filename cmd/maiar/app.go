// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/config"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/memory"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model/anthropic"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model/ollama"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model/openai"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/monitor"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/plugin"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/plugin/httpplugin"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/plugin/mcpplugin"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/plugin/textplugin"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/plugin/timeplugin"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/runtime"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/telemetry"
)

const stopTimeout = 30 * time.Second

// closers releases resources in reverse order of acquisition.
type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func run(ctx context.Context, flags globalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	exporter := "none"
	if cfg.Telemetry.Enabled {
		exporter = cfg.Telemetry.Exporter
	}
	shutdown, err := telemetry.InitWithConfig("maiar", version, telemetry.Config{
		Exporter:     exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("telemetry.shutdown.error", slog.String("error", err.Error()))
		}
	}()

	var resources closers
	defer func() {
		if err := resources.Close(); err != nil {
			logger.Warn("maiar.close.error", slog.String("error", err.Error()))
		}
	}()

	mon, monClosers, err := buildMonitor(cfg.Monitor, cfg.Telemetry.Enabled, logger)
	if err != nil {
		return err
	}
	resources = append(resources, monClosers...)

	models, err := buildModels(cfg.Models, cfg.Runtime.ModelLogging, mon, logger)
	if err != nil {
		return err
	}

	mem, memCloser, err := buildMemory(cfg.Memory)
	if err != nil {
		return err
	}
	if memCloser != nil {
		resources = append(resources, memCloser)
	}

	plugins, err := buildPlugins(ctx, cfg, logger)
	if err != nil {
		return err
	}

	metrics, err := telemetry.NewRuntimeMetrics()
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	opts := []runtime.Option{
		runtime.WithMemory(mem),
		runtime.WithMonitor(mon),
		runtime.WithMetrics(metrics),
		runtime.WithLogger(logger),
		runtime.WithMaxRetries(cfg.Runtime.MaxRetries),
		runtime.WithPollInterval(cfg.Runtime.PollInterval),
		runtime.WithStepTimeout(cfg.Runtime.StepTimeout),
		runtime.WithHistoryLimit(cfg.Runtime.HistoryLimit),
	}
	if path := cfg.Runtime.FallbackPipeline; path != "" {
		fallback, err := runtime.LoadPipeline(path)
		if err != nil {
			return err
		}
		opts = append(opts, runtime.WithFallbackPipeline(fallback))
	}

	rt := runtime.New(models, plugins, opts...)
	if err := rt.Start(ctx); err != nil {
		return err
	}

	if flags.ConfigPath != "" {
		watcher, _, err := config.WatchConfig(ctx, flags.ConfigPath, flags.Profile, config.WithWatchLogger(logger))
		if err != nil {
			logger.Warn("config.watch.error", slog.String("error", err.Error()))
		} else {
			current := config.NewReloadableConfig(cfg)
			watcher.OnChange(func(next *config.Config) { applyReload(current, next, models, logger) })
			defer watcher.Stop()
		}
	}

	logger.Info("maiar.ready",
		slog.Int("plugins", plugins.Len()),
		slog.Int("models", len(models.Providers())))
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return rt.Stop(stopCtx)
}

func buildMonitor(cfg config.MonitorConfig, otelEnabled bool, logger *slog.Logger) (*monitor.Manager, closers, error) {
	mon := monitor.NewManager(monitor.WithLogger(logger))
	var res closers
	if cfg.Console {
		mon.Register(monitor.NewConsoleMonitor(logger))
	}
	switch cfg.Store {
	case "memory":
		mon.Register(monitor.NewStoreMonitor("memory-store", monitor.NewMemoryStore()))
	case "sqlite":
		store, err := monitor.OpenSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open monitor store: %w", err)
		}
		res = append(res, store)
		mon.Register(monitor.NewStoreMonitor("sqlite-store", store))
	}
	if otelEnabled {
		om, err := monitor.NewOTelMonitor()
		if err != nil {
			return nil, res, fmt.Errorf("create otel monitor: %w", err)
		}
		mon.Register(om)
	}
	return mon, res, nil
}

// buildModels registers every configured provider. The first one registered
// becomes the default for each capability it serves.
func buildModels(cfg config.ModelsConfig, logging bool, mon monitor.Publisher, logger *slog.Logger) (*model.Service, error) {
	svc := model.NewService(
		model.WithMonitor(mon),
		model.WithModelLogging(logging),
		model.WithLogger(logger),
	)

	var providers []model.Provider
	if cfg.OpenAI.APIKey != "" {
		providers = append(providers, openai.New(
			openai.WithAPIKey(cfg.OpenAI.APIKey),
			openai.WithModel(cfg.OpenAI.Model),
			openai.WithBaseURL(cfg.OpenAI.BaseURL),
		))
	}
	if cfg.Anthropic.APIKey != "" {
		providers = append(providers, anthropic.New(
			anthropic.WithAPIKey(cfg.Anthropic.APIKey),
			anthropic.WithModel(cfg.Anthropic.Model),
		))
	}
	if cfg.Ollama.BaseURL != "" {
		providers = append(providers, ollama.New(
			ollama.WithBaseURL(cfg.Ollama.BaseURL),
			ollama.WithModel(cfg.Ollama.Model),
		))
	}
	for _, p := range providers {
		if err := svc.RegisterProvider(p); err != nil {
			return nil, err
		}
	}
	if err := applyModelConfig(svc, cfg, logger); err != nil {
		return nil, err
	}
	return svc, nil
}

// applyModelConfig installs aliases and the default text model. It runs at
// startup and again on every configuration reload.
func applyModelConfig(svc *model.Service, cfg config.ModelsConfig, logger *slog.Logger) error {
	svc.SetAliases(cfg.Aliases)
	if cfg.DefaultTextGeneration == "" {
		return nil
	}
	if err := svc.SetDefaultModel(model.TextGenerationCapability, cfg.DefaultTextGeneration); err != nil {
		logger.Warn("models.default.error",
			slog.String("model_id", cfg.DefaultTextGeneration),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}

// applyReload applies the settings that can change while running: log level
// and model aliases or default. Everything else needs a restart.
func applyReload(current *config.ReloadableConfig, next *config.Config, models *model.Service, logger *slog.Logger) {
	prev := current.Get()
	current.Update(next)
	if prev.Log.Level != next.Log.Level {
		telemetry.SetLogLevel(next.Log.Level)
	}
	if err := applyModelConfig(models, next.Models, logger); err != nil {
		return
	}
	for _, section := range config.ChangedSections(prev, next) {
		switch section {
		case "log", "models":
		default:
			logger.Warn("config.reload.restart_required", slog.String("section", section))
		}
	}
}

func buildMemory(cfg config.MemoryConfig) (memory.Provider, io.Closer, error) {
	switch cfg.Provider {
	case "sqlite":
		db, err := memory.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open memory: %w", err)
		}
		return db, db, nil
	default:
		return memory.NewInMemory(), nil, nil
	}
}

func buildPlugins(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *plugin.Registry, err error) {
	registry := plugin.NewRegistry()
	var list []plugin.Plugin
	defer func() {
		if err == nil {
			return
		}
		for _, p := range list {
			if c, ok := p.(plugin.Closer); ok {
				_ = c.Close()
			}
		}
	}()

	pc := cfg.Plugins
	if pc.Time.Enabled {
		list = append(list, timeplugin.New(
			timeplugin.WithInterval(pc.Time.Interval),
			timeplugin.WithPrompt(pc.Time.Prompt),
			timeplugin.WithLogger(logger),
		))
	}
	if pc.Text.Enabled {
		list = append(list, textplugin.New(textplugin.WithTemperature(pc.Text.Temperature)))
	}
	if pc.HTTP.Enabled {
		list = append(list, httpplugin.New(
			httpplugin.WithAddr(pc.HTTP.Addr),
			httpplugin.WithTimeout(pc.HTTP.Timeout),
			httpplugin.WithLogger(logger),
		))
	}
	for _, srv := range pc.MCP.Servers {
		client, err := mcpplugin.Connect(ctx, mcpServer(srv))
		if err != nil {
			return nil, fmt.Errorf("connect mcp server %s: %w", srv.Name, err)
		}
		list = append(list, mcpplugin.New(srv.Name, client,
			mcpplugin.WithLogger(logger),
			mcpplugin.WithMaxRetries(cfg.Runtime.MaxRetries)))
	}

	for _, p := range list {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
