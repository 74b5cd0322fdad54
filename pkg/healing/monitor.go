package healing

import (
	"sort"
	"sync"
)

// windowSize bounds the per-endpoint rolling windows. Losing a window
// (process restart) is acceptable — it delays detection, never corrupts
// approved state.
const windowSize = 50

// Monitor owns the in-memory rolling windows of recent latencies and
// error counts per endpoint. It is instance-scoped with an explicit
// reset lifecycle; nothing here lives at module level, so tests run in
// isolation and deployments never share state by accident.
type Monitor struct {
	mu        sync.Mutex
	latencies map[string][]int // endpoint → recent latencies (ms)
	errors    map[string][]string
	detector  *Detector
}

// NewMonitor builds a Monitor around the given detector.
func NewMonitor(detector *Detector) *Monitor {
	return &Monitor{
		latencies: make(map[string][]int),
		errors:    make(map[string][]string),
		detector:  detector,
	}
}

// RecordLatency appends one latency observation for an endpoint.
func (m *Monitor) RecordLatency(endpoint string, latencyMs int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := append(m.latencies[endpoint], latencyMs)
	if len(w) > windowSize {
		w = w[len(w)-windowSize:]
	}
	m.latencies[endpoint] = w
}

// RecordError appends one error observation for a component.
func (m *Monitor) RecordError(component, detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := append(m.errors[component], detail)
	if len(w) > windowSize {
		w = w[len(w)-windowSize:]
	}
	m.errors[component] = w
}

// Reset clears all windows. Used between tests and on tenant teardown.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = make(map[string][]int)
	m.errors = make(map[string][]string)
}

// Sweep classifies the current windows into issues: the worst recent
// latency per endpoint and the error count per component. Output order
// is stable (sorted by component) so sweeps are deterministic.
func (m *Monitor) Sweep() []*Issue {
	m.mu.Lock()
	defer m.mu.Unlock()

	var issues []*Issue

	endpoints := sortedKeys(m.latencies)
	for _, ep := range endpoints {
		worst := 0
		for _, ms := range m.latencies[ep] {
			if ms > worst {
				worst = ms
			}
		}
		if issue := m.detector.SlowResponse(ep, worst); issue != nil {
			issues = append(issues, issue)
		}
	}

	components := sortedKeys(m.errors)
	for _, comp := range components {
		window := m.errors[comp]
		detail := ""
		if len(window) > 0 {
			detail = window[len(window)-1]
		}
		if issue := m.detector.RepeatedError(comp, len(window), detail); issue != nil {
			issues = append(issues, issue)
		}
	}

	return issues
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
