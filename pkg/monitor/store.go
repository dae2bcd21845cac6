package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// EventStore persists monitor events for later inspection.
type EventStore interface {
	Record(ctx context.Context, event Event) error
	List(ctx context.Context, filter EventFilter) ([]Event, error)
}

// EventFilter limits event queries.
type EventFilter struct {
	Type  string
	Since time.Time
	Limit int
}

func (f EventFilter) matches(ev Event) bool {
	if f.Type != "" && ev.Type != f.Type {
		return false
	}
	if !f.Since.IsZero() && ev.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// StoreMonitor is a Provider that writes every event to an EventStore.
type StoreMonitor struct {
	id    string
	store EventStore
}

// NewStoreMonitor wraps store as a monitor sink.
func NewStoreMonitor(id string, store EventStore) *StoreMonitor {
	if id == "" {
		id = "store"
	}
	return &StoreMonitor{id: id, store: store}
}

// ID implements Provider.
func (s *StoreMonitor) ID() string { return s.id }

// PublishEvent implements Provider.
func (s *StoreMonitor) PublishEvent(ctx context.Context, event Event) error {
	return s.store.Record(ctx, event)
}

// CheckHealth implements Provider.
func (s *StoreMonitor) CheckHealth(ctx context.Context) error {
	_, err := s.store.List(ctx, EventFilter{Limit: 1})
	return err
}

// MemoryStore keeps events in memory.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryStore returns an in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends an event.
func (s *MemoryStore) Record(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns filtered events in publish order.
func (s *MemoryStore) List(_ context.Context, filter EventFilter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if !filter.matches(ev) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Types returns the type of every stored event in order.
func (s *MemoryStore) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

func encodeMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return []byte("null"), nil
	}
	return json.Marshal(metadata)
}

func decodeMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
