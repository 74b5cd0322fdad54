package metering

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresMeter implements Meter with PostgreSQL storage, for deployments
// where usage must survive restarts and be shared across replicas.
type PostgresMeter struct {
	db *sql.DB
}

// NewPostgresMeter creates a PostgreSQL-backed meter.
func NewPostgresMeter(db *sql.DB) *PostgresMeter {
	return &PostgresMeter{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS usage_events (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	quantity BIGINT NOT NULL,
	timestamp TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_events_user_time ON usage_events(user_id, timestamp);
`

// Init creates the necessary tables.
func (m *PostgresMeter) Init(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, schema)
	return err
}

// Record stores a single usage event.
func (m *PostgresMeter) Record(ctx context.Context, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO usage_events (user_id, event_type, quantity, timestamp)
		VALUES ($1, $2, $3, $4)
	`, event.UserID, string(event.EventType), event.Quantity, event.Timestamp)
	if err != nil {
		return fmt.Errorf("metering: record event: %w", err)
	}
	return nil
}

// Summarize aggregates the user's recorded events.
func (m *PostgresMeter) Summarize(ctx context.Context, userID string) (*Summary, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT event_type, COALESCE(SUM(quantity), 0)
		FROM usage_events
		WHERE user_id = $1
		GROUP BY event_type
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("metering: summarize: %w", err)
	}
	defer func() { _ = rows.Close() }()

	s := &Summary{UserID: userID}
	for rows.Next() {
		var eventType string
		var total int64
		if err := rows.Scan(&eventType, &total); err != nil {
			return nil, fmt.Errorf("metering: scan summary row: %w", err)
		}
		switch EventType(eventType) {
		case EventAnalysisRun:
			s.AnalysisRuns = total
		case EventReview:
			s.ReviewActions = total
		case EventProposal:
			s.ProposalsSeen = total
		}
	}
	return s, rows.Err()
}
