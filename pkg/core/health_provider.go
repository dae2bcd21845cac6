// SPDX-License-Identifier: Apache-2.0
package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultHealthCheckProvider implements HealthCheckProvider. Model providers,
// the memory backend and monitors are registered under stable names.
type DefaultHealthCheckProvider struct {
	checkers map[string]HealthChecker
	mu       sync.RWMutex
	cache    map[string]HealthResult
	cacheTTL time.Duration
}

// NewDefaultHealthCheckProvider creates a new health check provider.
// Results are reused for cacheTTL; a negative TTL disables caching.
func NewDefaultHealthCheckProvider(cacheTTL time.Duration) *DefaultHealthCheckProvider {
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Second
	}
	return &DefaultHealthCheckProvider{
		checkers: make(map[string]HealthChecker),
		cache:    make(map[string]HealthResult),
		cacheTTL: cacheTTL,
	}
}

// RegisterChecker registers a health checker for a component.
func (p *DefaultHealthCheckProvider) RegisterChecker(name string, checker HealthChecker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkers[name] = checker
	delete(p.cache, name)
}

// Check checks the health of a specific component.
func (p *DefaultHealthCheckProvider) Check(ctx context.Context, name string) (HealthResult, error) {
	p.mu.RLock()
	checker, exists := p.checkers[name]
	p.mu.RUnlock()

	if !exists {
		return HealthResult{}, fmt.Errorf("checker not registered: %s", name)
	}
	return p.run(ctx, name, checker), nil
}

// CheckAll checks every registered component in name order.
// The overall status is the worst individual status.
func (p *DefaultHealthCheckProvider) CheckAll(ctx context.Context) ([]HealthResult, HealthStatus) {
	p.mu.RLock()
	names := make([]string, 0, len(p.checkers))
	for name := range p.checkers {
		names = append(names, name)
	}
	p.mu.RUnlock()
	sort.Strings(names)

	results := make([]HealthResult, 0, len(names))
	overall := HealthHealthy
	for _, name := range names {
		p.mu.RLock()
		checker := p.checkers[name]
		p.mu.RUnlock()

		result := p.run(ctx, name, checker)
		results = append(results, result)
		switch result.Status {
		case HealthUnhealthy:
			overall = HealthUnhealthy
		case HealthDegraded:
			if overall == HealthHealthy {
				overall = HealthDegraded
			}
		}
	}
	return results, overall
}

func (p *DefaultHealthCheckProvider) run(ctx context.Context, name string, checker HealthChecker) HealthResult {
	if p.cacheTTL > 0 {
		p.mu.RLock()
		cached, ok := p.cache[name]
		p.mu.RUnlock()
		if ok && time.Since(cached.LastCheck) < p.cacheTTL {
			return cached
		}
	}
	result := checker.Check(ctx)
	result.Component = name
	if result.LastCheck.IsZero() {
		result.LastCheck = time.Now()
	}
	if p.cacheTTL > 0 {
		p.mu.Lock()
		p.cache[name] = result
		p.mu.Unlock()
	}
	return result
}

// FunctionHealthChecker wraps a function as a health checker.
type FunctionHealthChecker struct {
	fn func(ctx context.Context) HealthResult
}

// NewFunctionHealthChecker creates a health checker from a function.
func NewFunctionHealthChecker(fn func(ctx context.Context) HealthResult) *FunctionHealthChecker {
	return &FunctionHealthChecker{fn: fn}
}

// Check calls the underlying function.
func (f *FunctionHealthChecker) Check(ctx context.Context) HealthResult {
	result := f.fn(ctx)
	if result.LastCheck.IsZero() {
		result.LastCheck = time.Now()
	}
	return result
}

// NewErrorHealthChecker adapts a CheckHealth-style method: nil is healthy,
// any error is unhealthy.
func NewErrorHealthChecker(check func(ctx context.Context) error) *FunctionHealthChecker {
	return NewFunctionHealthChecker(func(ctx context.Context) HealthResult {
		if err := check(ctx); err != nil {
			return HealthResult{Status: HealthUnhealthy, Message: err.Error(), Error: err}
		}
		return HealthResult{Status: HealthHealthy}
	})
}
