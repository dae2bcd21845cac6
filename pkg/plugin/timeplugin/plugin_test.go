package timeplugin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/model"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/plugin"
)

type recordingHandle struct {
	mu     sync.Mutex
	events []core.ContextItem
}

func (h *recordingHandle) CreateEvent(_ context.Context, item core.ContextItem, _ *core.PlatformContext) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, item)
	return nil
}

func (h *recordingHandle) Models() *model.Service { return nil }

func (h *recordingHandle) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func TestCurrentTime(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	p := New(WithClock(func() time.Time { return fixed }))

	exec, ok := plugin.FindExecutor(p, ActionCurrentTime)
	if !ok {
		t.Fatal("missing get_current_time")
	}
	res, err := exec.Fn(context.Background(), core.NewAgentContext(nil))
	if err != nil || !res.Success {
		t.Fatalf("unexpected result %+v, %v", res, err)
	}
	if res.Data != "2026-03-01T12:30:00Z" {
		t.Errorf("unexpected time %v", res.Data)
	}
}

func TestTriggerDisabledWithoutInterval(t *testing.T) {
	if n := len(New().Triggers()); n != 0 {
		t.Errorf("expected no trigger, got %d", n)
	}
}

func TestScheduleCreatesEvents(t *testing.T) {
	p := New(WithInterval(5*time.Millisecond), WithPrompt("wake up"))
	triggers := p.Triggers()
	if len(triggers) != 1 {
		t.Fatalf("expected one trigger, got %d", len(triggers))
	}

	h := &recordingHandle{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- triggers[0].Start(ctx, h) }()

	deadline := time.After(2 * time.Second)
	for h.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for scheduled events")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("trigger returned %v", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	item := h.events[0]
	if item.Content != "wake up" || item.PluginID != ID || !item.IsUserInput() {
		t.Errorf("unexpected event %+v", item)
	}
}
