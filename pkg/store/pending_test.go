package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagelight/dreamer/pkg/proposal"
)

func TestCommitPendingDeduplicatesByFingerprint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	added, err := CommitPending(ctx, s, "u1", []*proposal.Proposal{draft("u1", "A")})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	// Same change payload again: fingerprint collides with the still
	// pending record, and nothing new lands.
	added, err = CommitPending(ctx, s, "u1", []*proposal.Proposal{draft("u1", "A")})
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	live, err := ListPending(ctx, s, "u1")
	require.NoError(t, err)
	assert.Len(t, live, 1)
}

func TestCommitPendingDuplicateWithinBatch(t *testing.T) {
	s := openTestStore(t)

	added, err := CommitPending(context.Background(), s, "u1",
		[]*proposal.Proposal{draft("u1", "A"), draft("u1", "A")})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
}

func TestCommitPendingEvictsOldestPastCap(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < PendingCap; i++ {
		_, err := CommitPending(ctx, s, "u1", []*proposal.Proposal{draft("u1", fmt.Sprintf("old-%d", i))})
		require.NoError(t, err)
	}

	q, err := s.GetQueue(ctx, "u1")
	require.NoError(t, err)
	oldest := q.PendingIDs[len(q.PendingIDs)-1]

	added, err := CommitPending(ctx, s, "u1", []*proposal.Proposal{draft("u1", "newest")})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	q, err = s.GetQueue(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, q.PendingIDs, PendingCap)
	assert.NotContains(t, q.PendingIDs, oldest, "oldest pending id evicted from the queue")

	// Evicted, not erased: the record survives in history.
	got, err := s.GetProposal(ctx, oldest)
	require.NoError(t, err)
	assert.Equal(t, "old-0", got.Title)
}

func TestCommitPendingReconcilesResolvedEntries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	resolved := draft("u1", "A")
	_, err := CommitPending(ctx, s, "u1", []*proposal.Proposal{resolved})
	require.NoError(t, err)

	changed, err := s.ResolveProposal(ctx, resolved.ID, proposal.StatusApproved, "", time.Now())
	require.NoError(t, err)
	require.True(t, changed)

	// The next run drops the resolved id, which also frees its
	// fingerprint for future drafts.
	_, err = CommitPending(ctx, s, "u1", []*proposal.Proposal{draft("u1", "B")})
	require.NoError(t, err)

	q, err := s.GetQueue(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, q.PendingIDs, 1)
	assert.NotContains(t, q.PendingIDs, resolved.ID)

	added, err := CommitPending(ctx, s, "u1", []*proposal.Proposal{draft("u1", "A")})
	require.NoError(t, err)
	assert.Equal(t, 1, added, "resolved fingerprint no longer blocks resubmission")
}

func TestListPendingFiltersResolved(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := draft("u1", "A")
	b := draft("u1", "B")
	_, err := CommitPending(ctx, s, "u1", []*proposal.Proposal{a, b})
	require.NoError(t, err)

	_, err = s.ResolveProposal(ctx, a.ID, proposal.StatusRejected, "not useful", time.Now())
	require.NoError(t, err)

	live, err := ListPending(ctx, s, "u1")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, b.ID, live[0].ID)
}

// flakyStore fails selected writes so partial-failure behavior of
// CommitPending can be exercised against a real backing store.
type flakyStore struct {
	Store
	failSave   bool
	failInsert bool
}

func (f *flakyStore) SaveQueue(ctx context.Context, q *ReviewQueue) error {
	if f.failSave {
		return errors.New("queue backend unavailable")
	}
	return f.Store.SaveQueue(ctx, q)
}

func (f *flakyStore) InsertProposal(ctx context.Context, p *proposal.Proposal) error {
	if f.failInsert {
		return errors.New("insert failed")
	}
	return f.Store.InsertProposal(ctx, p)
}

func TestCommitPendingQueueFailureWritesNoRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	fs := &flakyStore{Store: s, failSave: true}

	added, err := CommitPending(ctx, fs, "u1", []*proposal.Proposal{draft("u1", "A")})
	require.Error(t, err)
	assert.Zero(t, added)

	// The queue write comes first; when it fails no history row may
	// exist, or it would sit pending outside every queue forever.
	history, err := s.History(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCommitPendingInsertFailureSelfHeals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	fs := &flakyStore{Store: s, failInsert: true}

	added, err := CommitPending(ctx, fs, "u1", []*proposal.Proposal{draft("u1", "A")})
	require.Error(t, err)
	assert.Zero(t, added)

	// The queue holds a dangling id; reads skip it.
	q, err := s.GetQueue(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, q.PendingIDs, 1)
	live, err := ListPending(ctx, s, "u1")
	require.NoError(t, err)
	assert.Empty(t, live)

	// A later run resubmits the same draft without a duplicate: the
	// dangling id contributes no fingerprint and gets reconciled away.
	fs.failInsert = false
	added, err = CommitPending(ctx, fs, "u1", []*proposal.Proposal{draft("u1", "A")})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	history, err := s.History(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	live, err = ListPending(ctx, s, "u1")
	require.NoError(t, err)
	assert.Len(t, live, 1)
}

func TestCommitPendingOversizedBatchStopsAtCap(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	drafts := make([]*proposal.Proposal, 0, PendingCap+3)
	for i := 0; i < PendingCap+3; i++ {
		drafts = append(drafts, draft("u1", fmt.Sprintf("batch-%d", i)))
	}

	added, err := CommitPending(ctx, s, "u1", drafts)
	require.NoError(t, err)
	assert.Equal(t, PendingCap, added, "drafts past the cap are never written")

	history, err := s.History(ctx, "u1", 50)
	require.NoError(t, err)
	assert.Len(t, history, PendingCap)
}
