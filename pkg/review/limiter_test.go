package review

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionLimiterGap(t *testing.T) {
	l := NewActionLimiter(MinActionGap)

	ok, wait := l.Allow("u1")
	assert.True(t, ok)
	assert.Zero(t, wait)

	ok, wait = l.Allow("u1")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, MinActionGap)
}

func TestActionLimiterPerUser(t *testing.T) {
	l := NewActionLimiter(MinActionGap)

	ok, _ := l.Allow("u1")
	require.True(t, ok)

	// One user's burn never throttles another.
	ok, _ = l.Allow("u2")
	assert.True(t, ok)
}

func TestActionLimiterRecoversAfterGap(t *testing.T) {
	l := NewActionLimiter(20 * time.Millisecond)

	ok, _ := l.Allow("u1")
	require.True(t, ok)
	ok, _ = l.Allow("u1")
	require.False(t, ok)

	time.Sleep(30 * time.Millisecond)
	ok, _ = l.Allow("u1")
	assert.True(t, ok)
}

func TestActionLimiterDefaultsGap(t *testing.T) {
	l := NewActionLimiter(0)
	assert.Equal(t, MinActionGap, l.interval)
}

func TestActionLimiterCleanup(t *testing.T) {
	l := NewActionLimiter(MinActionGap)
	l.Allow("stale")
	l.users["stale"].lastSeen = time.Now().Add(-time.Hour)
	l.Allow("fresh")

	l.Cleanup(10 * time.Minute)

	_, staleKept := l.users["stale"]
	_, freshKept := l.users["fresh"]
	assert.False(t, staleKept)
	assert.True(t, freshKept)
}

func TestUnlimitedQuota(t *testing.T) {
	ok, err := UnlimitedQuota{}.Allow(context.Background(), "anyone")
	require.NoError(t, err)
	assert.True(t, ok)
}
