// Package review is the human approval workflow over pending proposals:
// the one place a persisted proposal's status ever changes, plus the
// karma counters that reward engagement with the review queue.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sagelight/dreamer/pkg/audit"
	"github.com/sagelight/dreamer/pkg/metering"
	"github.com/sagelight/dreamer/pkg/proposal"
	"github.com/sagelight/dreamer/pkg/store"
)

var (
	// ErrNotFound is returned when the proposal id has no record.
	ErrNotFound = errors.New("review: proposal not found")
	// ErrAlreadyResolved is the idempotency guard: the proposal left
	// pending through another call. Counters are never advanced twice.
	ErrAlreadyResolved = errors.New("review: proposal already resolved")
)

// RateLimitedError tells the caller to wait before acting again.
type RateLimitedError struct {
	RetryAfter time.Duration
	// Strict marks the server-side quota (429) as opposed to the
	// polite inter-action gap.
	Strict bool
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("review: rate limited, retry after %s", e.RetryAfter)
}

// PointsPerReview is the karma awarded for each decision.
const PointsPerReview = 10

// Workflow coordinates decisions, counters and audit.
type Workflow struct {
	store   store.Store
	limiter *ActionLimiter
	quota   QuotaLimiter
	auditor *audit.Log
	meter   metering.Meter
	clock   func() time.Time
	logger  *slog.Logger
}

// NewWorkflow wires the approval workflow. quota may be nil (unlimited);
// meter may be nil (unmetered).
func NewWorkflow(s store.Store, limiter *ActionLimiter, quota QuotaLimiter, auditor *audit.Log, meter metering.Meter) *Workflow {
	if quota == nil {
		quota = UnlimitedQuota{}
	}
	return &Workflow{
		store:   s,
		limiter: limiter,
		quota:   quota,
		auditor: auditor,
		meter:   meter,
		clock:   time.Now,
		logger:  slog.Default().With("component", "review"),
	}
}

// WithClock overrides the clock for deterministic testing.
func (w *Workflow) WithClock(clock func() time.Time) *Workflow {
	w.clock = clock
	return w
}

// Approve transitions a pending proposal to approved and advances the
// user's counters. It returns the proposal title for the confirmation UI.
func (w *Workflow) Approve(ctx context.Context, userID, proposalID string) (string, error) {
	p, err := w.decide(ctx, userID, proposalID, proposal.StatusApproved, "")
	if err != nil {
		return "", err
	}
	return p.Title, nil
}

// Reject transitions a pending proposal to rejected with an optional reason.
func (w *Workflow) Reject(ctx context.Context, userID, proposalID, reason string) error {
	_, err := w.decide(ctx, userID, proposalID, proposal.StatusRejected, reason)
	return err
}

func (w *Workflow) decide(ctx context.Context, userID, proposalID string, status proposal.Status, reason string) (*proposal.Proposal, error) {
	if ok, wait := w.limiter.Allow(userID); !ok {
		// Each gap violation burns a strict-quota token; a user who
		// keeps hammering tips from polite hints into the 429 path.
		allowed, err := w.quota.Allow(ctx, userID)
		if err != nil {
			w.logger.Warn("quota check failed", "user", userID, "error", err)
		} else if !allowed {
			return nil, &RateLimitedError{RetryAfter: QuotaBackoff, Strict: true}
		}
		return nil, &RateLimitedError{RetryAfter: wait}
	}

	p, err := w.store.GetProposal(ctx, proposalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("review: load proposal: %w", err)
	}
	if p.UserID != userID {
		return nil, ErrNotFound
	}

	now := w.clock()
	changed, err := w.store.ResolveProposal(ctx, proposalID, status, reason, now)
	if err != nil {
		return nil, fmt.Errorf("review: resolve: %w", err)
	}
	if !changed {
		return nil, ErrAlreadyResolved
	}

	if err := w.advanceCounters(ctx, userID, proposalID, status); err != nil {
		// The decision stood; counter drift self-heals on the next
		// reconcile, so log rather than unwind.
		w.logger.Error("counter update failed", "user", userID, "proposal", proposalID, "error", err)
	}

	action := audit.ActionProposalApproved
	if status == proposal.StatusRejected {
		action = audit.ActionProposalRejected
	}
	if w.auditor != nil {
		w.auditor.TryAppend(userID, action, proposalID, map[string]any{
			"title":  p.Title,
			"reason": reason,
		})
	}
	if w.meter != nil {
		if err := w.meter.Record(ctx, metering.Event{
			UserID:    userID,
			EventType: metering.EventReview,
			Quantity:  1,
		}); err != nil {
			w.logger.Warn("metering failed", "user", userID, "error", err)
		}
	}

	p.Status = status
	p.ResolvedAt = now.UTC()
	return p, nil
}

// advanceCounters removes the id from the pending set and applies karma.
func (w *Workflow) advanceCounters(ctx context.Context, userID, proposalID string, status proposal.Status) error {
	q, err := w.store.GetQueue(ctx, userID)
	if err != nil {
		return err
	}

	kept := q.PendingIDs[:0]
	for _, id := range q.PendingIDs {
		if id != proposalID {
			kept = append(kept, id)
		}
	}
	q.PendingIDs = kept

	if status == proposal.StatusApproved {
		q.ApprovedCount++
	} else {
		q.RejectedCount++
	}
	q.ReviewStreak++
	q.Points += PointsPerReview

	return w.store.SaveQueue(ctx, q)
}

// Rewards is the karma snapshot surfaced to the UI.
type Rewards struct {
	Points        int `json:"points"`
	Level         int `json:"level"`
	Streak        int `json:"streak"`
	ReviewedCount int `json:"reviewed_count"`
}

// GetRewards returns the user's current reward counters.
func (w *Workflow) GetRewards(ctx context.Context, userID string) (*Rewards, error) {
	q, err := w.store.GetQueue(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("review: load queue: %w", err)
	}
	return &Rewards{
		Points:        q.Points,
		Level:         q.Level(),
		Streak:        q.ReviewStreak,
		ReviewedCount: q.ApprovedCount + q.RejectedCount,
	}, nil
}

// ListPending returns the user's live pending proposals.
func (w *Workflow) ListPending(ctx context.Context, userID string) ([]*proposal.Proposal, error) {
	return store.ListPending(ctx, w.store, userID)
}
