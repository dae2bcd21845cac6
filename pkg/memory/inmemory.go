// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
)

// InMemory implements Provider with in-process maps.
// Suitable for development, testing, and single-instance deployments.
// Data is lost on restart.
type InMemory struct {
	mu            sync.RWMutex
	conversations map[string]Conversation
	byKey         map[string]string
	messages      map[string][]Message
	contexts      map[string][][]core.ContextItem
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		conversations: make(map[string]Conversation),
		byKey:         make(map[string]string),
		messages:      make(map[string][]Message),
		contexts:      make(map[string][][]core.ContextItem),
	}
}

func conversationKey(user, platform string) string {
	return platform + "\x00" + user
}

// CreateConversation implements Provider.
func (m *InMemory) CreateConversation(_ context.Context, user, platform string) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv := Conversation{
		ID:        uuid.New().String(),
		User:      user,
		Platform:  platform,
		CreatedAt: time.Now().UTC(),
	}
	m.conversations[conv.ID] = conv
	m.byKey[conversationKey(user, platform)] = conv.ID
	return conv, nil
}

// Conversation implements Provider.
func (m *InMemory) Conversation(_ context.Context, id string) (Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.conversations[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return conv, nil
}

// FindConversation implements Provider.
func (m *InMemory) FindConversation(_ context.Context, user, platform string) (Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[conversationKey(user, platform)]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return m.conversations[id], nil
}

// StoreMessage implements Provider.
func (m *InMemory) StoreMessage(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[msg.ConversationID]; !ok {
		return fmt.Errorf("conversation %s: %w", msg.ConversationID, ErrNotFound)
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

// StoreContext implements Provider.
func (m *InMemory) StoreContext(_ context.Context, conversationID string, chain []core.ContextItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[conversationID]; !ok {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	stored := make([]core.ContextItem, len(chain))
	copy(stored, chain)
	m.contexts[conversationID] = append(m.contexts[conversationID], stored)
	return nil
}

// RecentConversationHistory implements Provider.
func (m *InMemory) RecentConversationHistory(_ context.Context, user, platform string, limit int) ([]core.HistoryMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byKey[conversationKey(user, platform)]
	if !ok {
		return nil, nil
	}
	all := m.messages[id]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return toHistory(all), nil
}

// Contexts returns the stored context chains of a conversation.
func (m *InMemory) Contexts(conversationID string) [][]core.ContextItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]core.ContextItem, len(m.contexts[conversationID]))
	copy(out, m.contexts[conversationID])
	return out
}

// CheckHealth implements Provider.
func (m *InMemory) CheckHealth(context.Context) error { return nil }

var _ Provider = (*InMemory)(nil)
