// Package store persists proposals and per-user review queues.
// The proposals table is append-only history: records are never deleted,
// only resolved or superseded out of the pending set.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sagelight/dreamer/pkg/proposal"
)

var (
	// ErrNotFound is returned when a proposal id has no record.
	ErrNotFound = errors.New("store: proposal not found")
)

// PendingCap bounds the per-user pending set; oldest pending items are
// evicted from the queue (not deleted from history) past this.
const PendingCap = 10

// ReviewQueue is the compact per-user record: the ordered pending set
// (most recent first) plus the reward counters.
type ReviewQueue struct {
	UserID        string    `json:"user_id"`
	PendingIDs    []string  `json:"pending_ids"`
	ApprovedCount int       `json:"approved_count"`
	RejectedCount int       `json:"rejected_count"`
	ReviewStreak  int       `json:"review_streak"`
	Points        int       `json:"points"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Level derives the karma level from accumulated points.
func (q *ReviewQueue) Level() int { return q.Points/100 + 1 }

// Store is the backing-store contract for proposals and review queues.
// ResolveProposal must implement update-if-current-status-matches
// semantics so approval races cannot produce lost updates.
type Store interface {
	// InsertProposal persists a proposal, assigning a permanent id if
	// the record does not carry one yet.
	InsertProposal(ctx context.Context, p *proposal.Proposal) error

	// GetProposal fetches one proposal by id.
	GetProposal(ctx context.Context, id string) (*proposal.Proposal, error)

	// ListProposals fetches the given ids, preserving the input order
	// and silently skipping ids with no record.
	ListProposals(ctx context.Context, ids []string) ([]*proposal.Proposal, error)

	// ResolveProposal transitions a proposal out of pending. It updates
	// the row only if its status is still pending and reports whether a
	// row changed, so a concurrent resolution surfaces as false.
	ResolveProposal(ctx context.Context, id string, status proposal.Status, reason string, at time.Time) (bool, error)

	// History returns the user's proposal records, newest first.
	History(ctx context.Context, userID string, limit int) ([]*proposal.Proposal, error)

	// GetQueue returns the user's review queue, or an empty queue when
	// none has been saved yet.
	GetQueue(ctx context.Context, userID string) (*ReviewQueue, error)

	// SaveQueue upserts the review queue.
	SaveQueue(ctx context.Context, q *ReviewQueue) error
}
