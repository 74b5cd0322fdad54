// Package metering tracks per-user pipeline usage: analysis runs, review
// actions and proposals surfaced. Summaries feed the governance context's
// historical usage view.
package metering

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrEmptyUserID is returned when a metering event has no user ID.
	ErrEmptyUserID = errors.New("metering: user_id must not be empty")
	// ErrNegativeQuantity is returned for a negative quantity.
	ErrNegativeQuantity = errors.New("metering: quantity must not be negative")
	// ErrInvalidEventType is returned when the event type is empty.
	ErrInvalidEventType = errors.New("metering: event_type must not be empty")
)

// EventType defines the type of metered event.
type EventType string

const (
	EventAnalysisRun EventType = "analysis_run"
	EventReview      EventType = "review_action"
	EventProposal    EventType = "proposal_surfaced"
)

// Event is a single metered usage event.
type Event struct {
	UserID    string    `json:"user_id"`
	EventType EventType `json:"event_type"`
	Quantity  int64     `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks the event fields.
func (e Event) Validate() error {
	if e.UserID == "" {
		return ErrEmptyUserID
	}
	if e.Quantity < 0 {
		return ErrNegativeQuantity
	}
	if e.EventType == "" {
		return ErrInvalidEventType
	}
	return nil
}

// Summary is the aggregated usage view handed to governance.
type Summary struct {
	UserID        string
	AnalysisRuns  int64
	ReviewActions int64
	ProposalsSeen int64
}

// Meter records and aggregates usage.
type Meter interface {
	Record(ctx context.Context, event Event) error
	Summarize(ctx context.Context, userID string) (*Summary, error)
}

// MemoryMeter is the in-process Meter used when Postgres is not wired.
type MemoryMeter struct {
	mu     sync.Mutex
	totals map[string]map[EventType]int64
}

// NewMemoryMeter creates an empty in-memory meter.
func NewMemoryMeter() *MemoryMeter {
	return &MemoryMeter{totals: make(map[string]map[EventType]int64)}
}

// Record stores a usage event.
func (m *MemoryMeter) Record(_ context.Context, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byType, ok := m.totals[event.UserID]
	if !ok {
		byType = make(map[EventType]int64)
		m.totals[event.UserID] = byType
	}
	byType[event.EventType] += event.Quantity
	return nil
}

// Summarize aggregates the user's recorded events.
func (m *MemoryMeter) Summarize(_ context.Context, userID string) (*Summary, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byType := m.totals[userID]
	return &Summary{
		UserID:        userID,
		AnalysisRuns:  byType[EventAnalysisRun],
		ReviewActions: byType[EventReview],
		ProposalsSeen: byType[EventProposal],
	}, nil
}
