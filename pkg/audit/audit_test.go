package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func TestAppendChainsEntries(t *testing.T) {
	l := NewLog(nil).WithClock(fixedClock)

	first, err := l.Append("u1", ActionAnalysisRun, "u1", map[string]any{"proposals": 2})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Empty(t, first.PreviousHash)
	assert.Len(t, first.Hash, 64)
	assert.Equal(t, fixedNow, first.Timestamp)

	second, err := l.Append("u1", ActionProposalApproved, "p1", nil)
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.PreviousHash)

	require.NoError(t, l.VerifyChain())
	assert.Len(t, l.Entries(), 2)
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	l := NewLog(nil).WithClock(fixedClock)
	_, err := l.Append("u1", ActionProposalApproved, "p1", nil)
	require.NoError(t, err)
	_, err = l.Append("u1", ActionProposalRejected, "p2", map[string]any{"reason": "not useful"})
	require.NoError(t, err)

	// Rewrite history directly.
	l.entries[1].Target = "p3"
	err = l.VerifyChain()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integrity failure")

	// A broken link is reported as such.
	l2 := NewLog(nil).WithClock(fixedClock)
	_, err = l2.Append("u1", ActionIssueDetected, "export", nil)
	require.NoError(t, err)
	_, err = l2.Append("u1", ActionIssueDetected, "export", nil)
	require.NoError(t, err)
	l2.entries[1].PreviousHash = "bogus"
	err = l2.VerifyChain()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain broken")
}

func TestAppendWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(&buf).WithClock(fixedClock)

	_, err := l.Append("u1", ActionGovernanceRejected, "draft", map[string]any{"violations": 1})
	require.NoError(t, err)
	_, err = l.Append("u1", ActionProposalApproved, "p1", nil)
	require.NoError(t, err)

	scanner := bufio.NewScanner(&buf)
	var lines []Entry
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		lines = append(lines, e)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)
	assert.Equal(t, ActionGovernanceRejected, lines[0].Action)
	assert.Equal(t, lines[0].Hash, lines[1].PreviousHash)
}

func TestEntriesBetween(t *testing.T) {
	now := fixedNow
	l := NewLog(nil)
	for i := 0; i < 3; i++ {
		ts := now.Add(time.Duration(i) * time.Hour)
		l.WithClock(func() time.Time { return ts })
		_, err := l.Append("u1", ActionAnalysisRun, "u1", nil)
		require.NoError(t, err)
	}

	got := l.EntriesBetween(now.Add(30*time.Minute), now.Add(2*time.Hour))
	require.Len(t, got, 2)
	assert.Equal(t, now.Add(time.Hour), got[0].Timestamp)
	assert.Equal(t, now.Add(2*time.Hour), got[1].Timestamp, "range is inclusive")
}

func TestEntriesReturnsCopy(t *testing.T) {
	l := NewLog(nil).WithClock(fixedClock)
	_, err := l.Append("u1", ActionProposalApproved, "p1", nil)
	require.NoError(t, err)

	out := l.Entries()
	out[0].Target = "mutated"
	assert.NoError(t, l.VerifyChain())
	assert.Equal(t, "p1", l.Entries()[0].Target)
}
