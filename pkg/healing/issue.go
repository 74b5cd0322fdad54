// Package healing detects system-health issues and converts them into
// proposals that ride the same governance and approval pipeline as
// behavior-driven ones.
package healing

import (
	"time"

	"github.com/sagelight/dreamer/pkg/proposal"
)

// IssueType classifies a system-health symptom.
type IssueType string

const (
	IssueSlowResponse    IssueType = "slow_response"
	IssueError           IssueType = "error"
	IssueBrokenRoute     IssueType = "broken_route"
	IssueHallucination   IssueType = "hallucination"
	IssueCouncilDeadlock IssueType = "council_deadlock"
	IssueMemory          IssueType = "memory_issue"
)

// Severity grades an issue.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Issue is one detected system-health symptom. Issues are logged whether
// or not a proposal survives governance; the issue log is the audit
// trail.
type Issue struct {
	Type              IssueType `json:"type"`
	Severity          Severity  `json:"severity"`
	AffectedComponent string    `json:"affected_component"`
	ErrorDetails      string    `json:"error_details"`
	DetectedAt        time.Time `json:"detected_at"`
}

// Impact maps severity onto proposal impact: critical and high collapse
// to high since the proposal UI has no fourth tier.
func (s Severity) Impact() proposal.Impact {
	switch s {
	case SeverityCritical, SeverityHigh:
		return proposal.ImpactHigh
	case SeverityMedium:
		return proposal.ImpactMedium
	default:
		return proposal.ImpactLow
	}
}

// RequiresApproval is per-issue-type policy, not a severity derivation:
// error and council_deadlock fixes always need a human; broken_route and
// hallucination fixes never do; slow_response only when severe.
func (t IssueType) RequiresApproval(s Severity) bool {
	switch t {
	case IssueError, IssueCouncilDeadlock:
		return true
	case IssueBrokenRoute, IssueHallucination:
		return false
	case IssueSlowResponse:
		return s == SeverityHigh || s == SeverityCritical
	default:
		return true
	}
}
