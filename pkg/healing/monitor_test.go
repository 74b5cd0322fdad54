package healing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorSweepClassifiesWindows(t *testing.T) {
	m := NewMonitor(testDetector())

	m.RecordLatency("/api/run", 200)
	m.RecordLatency("/api/run", 12000)
	m.RecordLatency("/api/run", 500)
	m.RecordLatency("/api/pending", 150)
	for i := 0; i < 6; i++ {
		m.RecordError("export", "write timeout")
	}

	issues := m.Sweep()
	require.Len(t, issues, 2)

	// Sorted order: latencies first, then error components.
	assert.Equal(t, IssueSlowResponse, issues[0].Type)
	assert.Equal(t, "/api/run", issues[0].AffectedComponent)
	assert.Equal(t, SeverityHigh, issues[0].Severity, "worst sample in the window decides")

	assert.Equal(t, IssueError, issues[1].Type)
	assert.Equal(t, "export", issues[1].AffectedComponent)
	assert.Equal(t, SeverityCritical, issues[1].Severity)
	assert.Contains(t, issues[1].ErrorDetails, "write timeout")
}

func TestMonitorSweepDeterministicOrder(t *testing.T) {
	m := NewMonitor(testDetector())
	for _, comp := range []string{"zeta", "alpha", "mid"} {
		for i := 0; i < 4; i++ {
			m.RecordError(comp, "boom")
		}
	}

	first := m.Sweep()
	second := m.Sweep()
	require.Len(t, first, 3)
	assert.Equal(t, "alpha", first[0].AffectedComponent)
	assert.Equal(t, "mid", first[1].AffectedComponent)
	assert.Equal(t, "zeta", first[2].AffectedComponent)
	for i := range first {
		assert.Equal(t, first[i].AffectedComponent, second[i].AffectedComponent)
	}
}

func TestMonitorWindowEviction(t *testing.T) {
	m := NewMonitor(testDetector())

	// One very slow sample, then enough fast ones to push it out.
	m.RecordLatency("/api/run", 12000)
	for i := 0; i < windowSize; i++ {
		m.RecordLatency("/api/run", 100)
	}
	assert.Empty(t, m.Sweep(), "evicted sample no longer trips detection")

	for i := 0; i < windowSize+20; i++ {
		m.RecordError("export", fmt.Sprintf("err-%d", i))
	}
	issues := m.Sweep()
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].ErrorDetails, fmt.Sprintf("%d recent errors", windowSize))
}

func TestMonitorReset(t *testing.T) {
	m := NewMonitor(testDetector())
	m.RecordLatency("/api/run", 12000)
	m.RecordError("export", "boom")

	m.Reset()
	assert.Empty(t, m.Sweep())
}
