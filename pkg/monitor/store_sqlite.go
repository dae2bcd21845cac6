package monitor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists monitor events in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) a SQLite database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open monitor store: %w", err)
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore creates a SQLite-backed event store and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureMonitorSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record stores a single event.
func (s *SQLiteStore) Record(ctx context.Context, event Event) error {
	metadata, err := encodeMetadata(event.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO monitor_events (event_id, event_type, message, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		event.ID,
		event.Type,
		event.Message,
		string(metadata),
		event.Timestamp.UTC(),
	)
	return err
}

// List returns events matching the filter in publish order.
func (s *SQLiteStore) List(ctx context.Context, filter EventFilter) ([]Event, error) {
	query := `SELECT event_id, event_type, message, metadata_json, created_at FROM monitor_events`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.Type != "" {
		addFilter("event_type = ?", filter.Type)
	}
	if !filter.Since.IsZero() {
		addFilter("created_at >= ?", filter.Since.UTC())
	}
	query += where + " ORDER BY rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event    Event
			metadata sql.NullString
			created  sql.NullTime
		)
		if err := rows.Scan(&event.ID, &event.Type, &event.Message, &metadata, &created); err != nil {
			return nil, err
		}
		if metadata.Valid {
			if decoded, err := decodeMetadata([]byte(metadata.String)); err == nil {
				event.Metadata = decoded
			}
		}
		if created.Valid {
			event.Timestamp = created.Time
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func ensureMonitorSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS monitor_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			message TEXT,
			metadata_json TEXT,
			created_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_monitor_events_type ON monitor_events(event_type);
	`)
	return err
}
