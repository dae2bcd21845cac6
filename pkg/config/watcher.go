// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"
)

// Watcher polls a configuration file and its profile overlay, validates the
// result on change and hands it to the registered listeners. A reload that
// fails validation or changes nothing is dropped.
type Watcher struct {
	path     string
	profile  string
	interval time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	stamp     string
	config    *Config
	listeners []func(*Config)

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets how often the files are polled.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatchLogger sets the watcher's logger.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher loads path with profile and remembers the files' state. It does
// not poll until Start.
func NewWatcher(path, profile string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		profile:  profile,
		interval: time.Second,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, err := LoadWithProfile(path, profile)
	if err != nil {
		return nil, err
	}
	w.config = cfg
	w.stamp = w.fingerprint()
	return w, nil
}

// files returns the base file and, when present, its profile overlay. The
// overlay is looked up on every poll so one created later is picked up.
func (w *Watcher) files() []string {
	if w.path == "" {
		return nil
	}
	files := []string{w.path}
	if p := profileConfigPath(w.path, w.profile); p != "" {
		files = append(files, p)
	}
	return files
}

// fingerprint summarises modification time and size of every watched file.
func (w *Watcher) fingerprint() string {
	var b strings.Builder
	for _, f := range w.files() {
		info, err := os.Stat(f)
		if err != nil {
			fmt.Fprintf(&b, "%s:missing;", f)
			continue
		}
		fmt.Fprintf(&b, "%s:%d:%d;", f, info.ModTime().UnixNano(), info.Size())
	}
	return b.String()
}

// OnChange registers fn to receive every accepted configuration.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Config returns the last accepted configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Start polls in the background until ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.poll()
			}
		}
	}()
}

// Stop ends polling and waits for the loop to exit. It is safe to call more
// than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel == nil {
			close(w.done)
			return
		}
		w.cancel()
	})
	<-w.done
}

func (w *Watcher) poll() {
	stamp := w.fingerprint()
	if stamp == w.stamp {
		return
	}
	w.stamp = stamp

	cfg, err := LoadWithProfile(w.path, w.profile)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		w.logger.Error("config.reload.error", slog.String("error", err.Error()))
		return
	}

	w.mu.Lock()
	sections := ChangedSections(w.config, cfg)
	if len(sections) == 0 {
		w.mu.Unlock()
		w.logger.Info("config.reload.unchanged")
		return
	}
	w.config = cfg
	listeners := append([]func(*Config)(nil), w.listeners...)
	w.mu.Unlock()

	w.logger.Info("config.reload.complete", slog.Any("sections", sections))
	for _, fn := range listeners {
		fn(cfg)
	}
}

// ChangedSections lists the top-level keys (log, runtime, models, ...)
// whose values differ between prev and next.
func ChangedSections(prev, next *Config) []string {
	if prev == nil || next == nil {
		if prev == next {
			return nil
		}
		return []string{"*"}
	}
	pv, nv := reflect.ValueOf(*prev), reflect.ValueOf(*next)
	t := pv.Type()
	var out []string
	for i := 0; i < t.NumField(); i++ {
		if !reflect.DeepEqual(pv.Field(i).Interface(), nv.Field(i).Interface()) {
			out = append(out, t.Field(i).Tag.Get("koanf"))
		}
	}
	return out
}

// WatchConfig starts a Watcher for configPath and profile and returns it with
// the initial configuration.
func WatchConfig(ctx context.Context, configPath, profile string, opts ...WatcherOption) (*Watcher, *Config, error) {
	w, err := NewWatcher(configPath, profile, opts...)
	if err != nil {
		return nil, nil, err
	}
	w.Start(ctx)
	return w, w.Config(), nil
}

// ReloadableConfig is the configuration currently in effect, swapped as a
// whole on reload.
type ReloadableConfig struct {
	mu     sync.RWMutex
	config *Config
}

func NewReloadableConfig(cfg *Config) *ReloadableConfig {
	return &ReloadableConfig{config: cfg}
}

func (r *ReloadableConfig) Get() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

func (r *ReloadableConfig) Update(cfg *Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = cfg
}
