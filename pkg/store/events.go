package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sagelight/dreamer/pkg/pattern"
)

// EventStore persists behavioral telemetry in SQLite and serves it back
// as the analysis event source.
type EventStore struct {
	db *sql.DB
}

// NewEventStore wraps an opened database and ensures the schema exists.
func NewEventStore(db *sql.DB) (*EventStore, error) {
	s := &EventStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *EventStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS behavioral_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		category TEXT,
		page TEXT,
		component TEXT,
		action TEXT,
		metadata JSON,
		occurred_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_user_occurred ON behavioral_events(user_id, occurred_at);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// RecordEvent appends one telemetry event.
func (s *EventStore) RecordEvent(ctx context.Context, userID string, ev pattern.Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	var metaJSON []byte
	if ev.Metadata != nil {
		var err error
		metaJSON, err = json.Marshal(ev.Metadata)
		if err != nil {
			return fmt.Errorf("store: encode event metadata: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO behavioral_events (user_id, event_type, category, page, component, action, metadata, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, string(ev.Type), ev.Category, ev.Page, ev.Component, ev.Action, nullableJSON(metaJSON),
		ev.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: insert event: %w", err)
	}
	return nil
}

// ListRecentEvents returns up to limit of the user's newest events,
// reordered oldest first for session reconstruction.
func (s *EventStore) ListRecentEvents(ctx context.Context, userID string, limit int) ([]pattern.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, category, page, component, action, metadata, occurred_at
		FROM behavioral_events
		WHERE user_id = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	defer rows.Close()

	var events []pattern.Event
	for rows.Next() {
		var (
			ev         pattern.Event
			evType     string
			metaJSON   sql.NullString
			occurredAt string
		)
		if err := rows.Scan(&evType, &ev.Category, &ev.Page, &ev.Component, &ev.Action, &metaJSON, &occurredAt); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		ev.Type = pattern.EventType(evType)
		if ev.Timestamp, err = time.Parse(time.RFC3339Nano, occurredAt); err != nil {
			return nil, fmt.Errorf("store: parse event timestamp: %w", err)
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("store: decode event metadata: %w", err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate events: %w", err)
	}

	// Newest-first from the index; the extractor wants oldest first.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
