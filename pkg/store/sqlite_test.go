package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagelight/dreamer/pkg/proposal"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	// In-memory SQLite plus connection pooling would hand each conn its
	// own empty database.
	db.SetMaxOpenConns(1)

	s, err := NewSQLiteStore(db)
	require.NoError(t, err)
	return s
}

func draft(userID, title string) *proposal.Proposal {
	return &proposal.Proposal{
		UserID: userID,
		Type:   proposal.TypeUXChange,
		Title:  title,
		Impact: proposal.ImpactLow,
		Status: proposal.StatusPending,
		Change: &proposal.ShortcutChange{FromPage: "/from-" + title, ToPage: "/to-" + title, Label: title},
	}
}

func TestInsertAndGetProposal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := draft("u1", "Shortcut A")
	p.Metadata = proposal.Metadata{QualityScore: 72, Evidence: 6, GovernanceApproved: true}
	require.NoError(t, s.InsertProposal(ctx, p))
	require.NotEmpty(t, p.ID, "insert assigns identity")

	got, err := s.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, got.Title)
	assert.Equal(t, proposal.StatusPending, got.Status)
	assert.Equal(t, 72, got.Metadata.QualityScore)

	change, ok := got.Change.(*proposal.ShortcutChange)
	require.True(t, ok)
	assert.Equal(t, "/from-Shortcut A", change.FromPage)

	_, err = s.GetProposal(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveProposalConditional(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := draft("u1", "Shortcut B")
	require.NoError(t, s.InsertProposal(ctx, p))

	now := time.Now()
	changed, err := s.ResolveProposal(ctx, p.ID, proposal.StatusApproved, "", now)
	require.NoError(t, err)
	assert.True(t, changed)

	// Second resolution loses the race: no row is still pending.
	changed, err = s.ResolveProposal(ctx, p.ID, proposal.StatusRejected, "too late", now)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := s.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusApproved, got.Status)
	assert.Empty(t, got.RejectionReason)
}

func TestResolveProposalRejectsIllegalStatus(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ResolveProposal(context.Background(), "any", proposal.StatusPending, "", time.Now())
	assert.ErrorIs(t, err, proposal.ErrInvalidTransition)
}

func TestListProposalsPreservesOrderSkipsMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := draft("u1", "A")
	b := draft("u1", "B")
	require.NoError(t, s.InsertProposal(ctx, a))
	require.NoError(t, s.InsertProposal(ctx, b))

	got, err := s.ListProposals(ctx, []string{b.ID, "ghost", a.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].Title)
	assert.Equal(t, "A", got[1].Title)
}

func TestHistoryNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := draft("u1", "Old")
	old.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := draft("u1", "Recent")
	recent.CreatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	other := draft("u2", "Other")

	require.NoError(t, s.InsertProposal(ctx, old))
	require.NoError(t, s.InsertProposal(ctx, recent))
	require.NoError(t, s.InsertProposal(ctx, other))

	got, err := s.History(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Recent", got[0].Title)
	assert.Equal(t, "Old", got[1].Title)
}

func TestQueueRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	q, err := s.GetQueue(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, q.PendingIDs, "unknown user gets an empty queue")

	q.PendingIDs = []string{"p1", "p2"}
	q.ApprovedCount = 3
	q.Points = 130
	require.NoError(t, s.SaveQueue(ctx, q))

	got, err := s.GetQueue(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, got.PendingIDs)
	assert.Equal(t, 3, got.ApprovedCount)
	assert.Equal(t, 130, got.Points)
	assert.Equal(t, 2, got.Level())

	// Upsert path.
	got.Points = 250
	require.NoError(t, s.SaveQueue(ctx, got))
	again, err := s.GetQueue(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 250, again.Points)
	assert.Equal(t, 3, again.Level())
}
