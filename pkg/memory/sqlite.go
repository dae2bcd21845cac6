package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
)

// SQLite implements Provider on a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// shared between calls.
	db.SetMaxOpenConns(1)
	store, err := NewSQLite(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLite wraps db and ensures the schema exists.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureMemorySchema(db); err != nil {
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateConversation implements Provider.
func (s *SQLite) CreateConversation(ctx context.Context, user, platform string) (Conversation, error) {
	conv := Conversation{
		ID:        uuid.New().String(),
		User:      user,
		Platform:  platform,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, platform, created_at)
		VALUES (?, ?, ?, ?)
	`, conv.ID, conv.User, conv.Platform, conv.CreatedAt.UnixNano())
	if err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// Conversation implements Provider.
func (s *SQLite) Conversation(ctx context.Context, id string) (Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, platform, created_at FROM conversations WHERE id = ?
	`, id)
	return scanConversation(row)
}

// FindConversation implements Provider.
func (s *SQLite) FindConversation(ctx context.Context, user, platform string) (Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, platform, created_at FROM conversations
		WHERE user_id = ? AND platform = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, user, platform)
	return scanConversation(row)
}

func scanConversation(row *sql.Row) (Conversation, error) {
	var (
		conv    Conversation
		created int64
	)
	if err := row.Scan(&conv.ID, &conv.User, &conv.Platform, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	conv.CreatedAt = time.Unix(0, created).UTC()
	return conv, nil
}

// StoreMessage implements Provider.
func (s *SQLite) StoreMessage(ctx context.Context, msg Message) error {
	if _, err := s.Conversation(ctx, msg.ConversationID); err != nil {
		return fmt.Errorf("conversation %s: %w", msg.ConversationID, err)
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.User, msg.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("store message: %w", err)
	}
	return nil
}

// StoreContext implements Provider.
func (s *SQLite) StoreContext(ctx context.Context, conversationID string, chain []core.ContextItem) error {
	if _, err := s.Conversation(ctx, conversationID); err != nil {
		return fmt.Errorf("conversation %s: %w", conversationID, err)
	}
	raw, err := json.Marshal(chain)
	if err != nil {
		return fmt.Errorf("marshal context chain: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contexts (id, conversation_id, chain_json, created_at)
		VALUES (?, ?, ?, ?)
	`, uuid.New().String(), conversationID, string(raw), time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("store context: %w", err)
	}
	return nil
}

// Contexts returns the stored context chains of a conversation, oldest first.
func (s *SQLite) Contexts(ctx context.Context, conversationID string) ([][]core.ContextItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chain_json FROM contexts WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]core.ContextItem
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var chain []core.ContextItem
		if err := json.Unmarshal([]byte(raw), &chain); err != nil {
			return nil, fmt.Errorf("decode context chain: %w", err)
		}
		out = append(out, chain)
	}
	return out, rows.Err()
}

// RecentConversationHistory implements Provider.
func (s *SQLite) RecentConversationHistory(ctx context.Context, user, platform string, limit int) ([]core.HistoryMessage, error) {
	conv, err := s.FindConversation(ctx, user, platform)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, conversation_id, role, content, user_id, created_at FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, rowid DESC`
	args := []any{conv.ID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			m       Message
			created int64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.User, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(0, created).UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return toHistory(msgs), nil
}

// CheckHealth implements Provider.
func (s *SQLite) CheckHealth(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func ensureMemorySchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_key ON conversations (user_id, platform, created_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			user_id TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS contexts (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			chain_json TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure memory schema: %w", err)
		}
	}
	return nil
}

var _ Provider = (*SQLite)(nil)
