package healing

import (
	"fmt"
	"time"
)

// Detection thresholds. The "recent" window for error escalation is the
// monitor's rolling window (see Monitor), documented here because the
// upstream behavior never pinned it down.
const (
	SlowThresholdMs     = 3000
	VerySlowThresholdMs = 10000
	ErrCountCritical    = 5 // strictly more than this → critical
	ErrCountHigh        = 3 // strictly more than this → high
	HallucinationMinLen = 200
)

// Clock lets tests pin detection timestamps.
type Clock func() time.Time

// Detector holds the pure classification functions, one per symptom
// class. Each returns nil when the symptom does not rise to an issue.
type Detector struct {
	matcher DomainMatcher
	clock   Clock
}

// NewDetector builds a Detector with the given matcher; a nil matcher
// falls back to the keyword-overlap default.
func NewDetector(matcher DomainMatcher) *Detector {
	if matcher == nil {
		matcher = KeywordMatcher{}
	}
	return &Detector{matcher: matcher, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (d *Detector) WithClock(clock Clock) *Detector {
	d.clock = clock
	return d
}

// SlowResponse triggers above SlowThresholdMs, escalating to high above
// VerySlowThresholdMs.
func (d *Detector) SlowResponse(endpoint string, latencyMs int) *Issue {
	if latencyMs <= SlowThresholdMs {
		return nil
	}
	sev := SeverityMedium
	if latencyMs > VerySlowThresholdMs {
		sev = SeverityHigh
	}
	return &Issue{
		Type:              IssueSlowResponse,
		Severity:          sev,
		AffectedComponent: endpoint,
		ErrorDetails:      fmt.Sprintf("observed latency %dms exceeds %dms threshold", latencyMs, SlowThresholdMs),
		DetectedAt:        d.clock().UTC(),
	}
}

// RepeatedError scales severity with the recent occurrence count.
func (d *Detector) RepeatedError(component string, recentCount int, detail string) *Issue {
	if recentCount < 1 {
		return nil
	}
	sev := SeverityMedium
	switch {
	case recentCount > ErrCountCritical:
		sev = SeverityCritical
	case recentCount > ErrCountHigh:
		sev = SeverityHigh
	}
	return &Issue{
		Type:              IssueError,
		Severity:          sev,
		AffectedComponent: component,
		ErrorDetails:      fmt.Sprintf("%d recent errors: %s", recentCount, detail),
		DetectedAt:        d.clock().UTC(),
	}
}

// BrokenRoute triggers on observed 404/500 responses.
func (d *Detector) BrokenRoute(route string, statusCode int) *Issue {
	var sev Severity
	switch statusCode {
	case 500:
		sev = SeverityHigh
	case 404:
		sev = SeverityMedium
	default:
		return nil
	}
	return &Issue{
		Type:              IssueBrokenRoute,
		Severity:          sev,
		AffectedComponent: route,
		ErrorDetails:      fmt.Sprintf("route returned HTTP %d", statusCode),
		DetectedAt:        d.clock().UTC(),
	}
}

// Hallucination flags a domain-scoped responder whose output is long
// enough to be substantive yet shares zero vocabulary with its declared
// domain. Deliberately approximate and tolerant of false positives;
// severity stays medium for that reason.
func (d *Detector) Hallucination(responder string, vocabulary []string, output string) *Issue {
	if len(output) <= HallucinationMinLen {
		return nil
	}
	if d.matcher.Matches(vocabulary, output) {
		return nil
	}
	return &Issue{
		Type:              IssueHallucination,
		Severity:          SeverityMedium,
		AffectedComponent: responder,
		ErrorDetails:      fmt.Sprintf("%d-char response with no overlap against %d domain terms", len(output), len(vocabulary)),
		DetectedAt:        d.clock().UTC(),
	}
}

// CouncilDeadlock triggers when a multi-agent deliberation exhausts its
// voting rounds without consensus. Always high: a stalled council blocks
// every downstream answer.
func (d *Detector) CouncilDeadlock(topic string, rounds, maxRounds int) *Issue {
	if rounds < maxRounds {
		return nil
	}
	return &Issue{
		Type:              IssueCouncilDeadlock,
		Severity:          SeverityHigh,
		AffectedComponent: topic,
		ErrorDetails:      fmt.Sprintf("no consensus after %d of %d voting rounds", rounds, maxRounds),
		DetectedAt:        d.clock().UTC(),
	}
}
