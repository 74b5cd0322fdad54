package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sagelight/dreamer/pkg/proposal"
)

// CommitPending runs the read-reconcile-write cycle that keeps the
// pending set bounded and honest:
//
//  1. fetch the user's queue;
//  2. drop every id whose backing status is no longer pending (resolved
//     through the review path since the last run);
//  3. prepend the newly approved drafts, skipping any whose fingerprint
//     duplicates a still-pending proposal, and truncate to PendingCap;
//  4. save the queue, then persist the surviving drafts.
//
// The queue is written before the draft rows so a partial failure leaves
// dangling queue ids (skipped by reads, dropped by the next reconcile)
// rather than pending history rows no queue references — those would be
// unreachable by review and invisible to fingerprint dedup.
//
// The reconciliation step is the deliberate substitute for a transaction:
// an analysis run and a concurrent approval can race, and the next run
// self-heals whatever staleness that leaves behind.
func CommitPending(ctx context.Context, s Store, userID string, drafts []*proposal.Proposal) (int, error) {
	q, err := s.GetQueue(ctx, userID)
	if err != nil {
		return 0, err
	}

	existing, err := s.ListProposals(ctx, q.PendingIDs)
	if err != nil {
		return 0, err
	}

	livePending := make([]string, 0, len(existing))
	liveFingerprints := make(map[string]bool, len(existing))
	for _, p := range existing {
		if p.Status != proposal.StatusPending {
			continue
		}
		livePending = append(livePending, p.ID)
		fp, err := p.Fingerprint()
		if err != nil {
			return 0, fmt.Errorf("store: reconcile fingerprint: %w", err)
		}
		liveFingerprints[fp] = true
	}

	fresh := make([]string, 0, len(drafts))
	accepted := make([]*proposal.Proposal, 0, len(drafts))
	for _, draft := range drafts {
		fp, err := draft.Fingerprint()
		if err != nil {
			return 0, fmt.Errorf("store: draft fingerprint: %w", err)
		}
		if liveFingerprints[fp] {
			continue
		}
		liveFingerprints[fp] = true

		draft.UserID = userID
		draft.Status = proposal.StatusPending
		if draft.ID == "" {
			draft.ID = uuid.New().String()
		}
		fresh = append(fresh, draft.ID)
		accepted = append(accepted, draft)
	}

	// A batch larger than the cap would insert rows only to evict them
	// in the same call; don't persist those at all.
	if len(fresh) > PendingCap {
		fresh = fresh[:PendingCap]
		accepted = accepted[:PendingCap]
	}

	// Newest first; evict from the tail.
	merged := append(fresh, livePending...)
	if len(merged) > PendingCap {
		merged = merged[:PendingCap]
	}

	q.PendingIDs = merged
	if err := s.SaveQueue(ctx, q); err != nil {
		return 0, err
	}

	added := 0
	for _, draft := range accepted {
		if err := s.InsertProposal(ctx, draft); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// ListPending resolves the user's queue into live pending proposals,
// dropping stale entries without rewriting the queue (the next commit
// does that).
func ListPending(ctx context.Context, s Store, userID string) ([]*proposal.Proposal, error) {
	q, err := s.GetQueue(ctx, userID)
	if err != nil {
		return nil, err
	}
	records, err := s.ListProposals(ctx, q.PendingIDs)
	if err != nil {
		return nil, err
	}
	live := make([]*proposal.Proposal, 0, len(records))
	for _, p := range records {
		if p.Status == proposal.StatusPending {
			live = append(live, p)
		}
	}
	return live, nil
}
