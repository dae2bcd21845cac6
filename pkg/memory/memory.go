// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory persists conversations, messages and completed agent
// contexts, keyed by the (user, platform) pair of the originating event.
package memory

import (
	"context"
	"errors"
	"time"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("memory: not found")

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation groups the messages of one user on one platform.
type Conversation struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one stored exchange of a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	User           string    `json:"user,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Provider stores conversation state for the runtime. Calls for the same
// conversation are never issued concurrently by the runtime.
type Provider interface {
	// CreateConversation starts a new conversation for user on platform.
	CreateConversation(ctx context.Context, user, platform string) (Conversation, error)

	// Conversation returns the conversation with id or ErrNotFound.
	Conversation(ctx context.Context, id string) (Conversation, error)

	// FindConversation returns the most recent conversation of user on
	// platform or ErrNotFound.
	FindConversation(ctx context.Context, user, platform string) (Conversation, error)

	// StoreMessage appends msg to its conversation.
	StoreMessage(ctx context.Context, msg Message) error

	// StoreContext records the context chain of a completed event.
	StoreContext(ctx context.Context, conversationID string, chain []core.ContextItem) error

	// RecentConversationHistory returns up to limit messages of the
	// conversation of user on platform, oldest first.
	RecentConversationHistory(ctx context.Context, user, platform string, limit int) ([]core.HistoryMessage, error)

	CheckHealth(ctx context.Context) error
}

// EnsureConversation returns the conversation of user on platform, creating
// it when none exists.
func EnsureConversation(ctx context.Context, p Provider, user, platform string) (Conversation, error) {
	conv, err := p.FindConversation(ctx, user, platform)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Conversation{}, err
	}
	return p.CreateConversation(ctx, user, platform)
}

func toHistory(msgs []Message) []core.HistoryMessage {
	out := make([]core.HistoryMessage, len(msgs))
	for i, m := range msgs {
		out[i] = core.HistoryMessage{Role: m.Role, Content: m.Content, Timestamp: m.CreatedAt}
	}
	return out
}
