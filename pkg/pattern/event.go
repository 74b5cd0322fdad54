// Package pattern turns raw behavioral telemetry into the derived
// UserPattern and SemanticProfile consumed by the template library and
// scorer. Both derivations are ephemeral: recomputed every run, never
// persisted.
package pattern

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientSignal aborts an analysis run that has too few
	// events to say anything meaningful. It is an expected early exit,
	// not a failure.
	ErrInsufficientSignal = errors.New("pattern: insufficient signal")
)

// MinEvents is the minimum number of behavioral events required before a
// run produces any proposals.
const MinEvents = 10

// EventType classifies a behavioral or system event.
type EventType string

const (
	EventPageView  EventType = "page_view"
	EventAction    EventType = "action"
	EventError     EventType = "error"
	EventSuccess   EventType = "success"
	EventFriction  EventType = "friction"
	EventAbandoned EventType = "abandoned"
)

// Event is one timestamped telemetry record from the event source.
type Event struct {
	Type      EventType      `json:"type"`
	Category  string         `json:"category"`
	Page      string         `json:"page"`
	Component string         `json:"component,omitempty"`
	Action    string         `json:"action,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Source is the external event stream collaborator.
type Source interface {
	// ListRecentEvents returns up to limit events for the user,
	// oldest first.
	ListRecentEvents(ctx context.Context, userID string, limit int) ([]Event, error)
}
