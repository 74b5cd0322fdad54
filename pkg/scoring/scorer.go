// Package scoring assigns each draft proposal a 0–100 quality score.
// Scores are deterministic for identical inputs and monotonic in evidence
// strength: more supporting occurrences never lowers a score.
package scoring

import (
	"github.com/sagelight/dreamer/pkg/pattern"
	"github.com/sagelight/dreamer/pkg/proposal"
)

// MinScore is the persistence gate: drafts below it are dropped before
// governance evaluation and never enter history.
const MinScore = 50

// Weighting constants. Base + evidence + engagement + alignment caps at
// exactly 100 (40+35+15+10).
const (
	baseScore        = 40 // every activated template starts here
	evidenceCap      = 35
	evidencePerUnit  = 5 // points per supporting occurrence
	engagementCap    = 15
	alignmentBonus   = 10
	complexityFloor  = 0.6 // profile counts as "complex" above this
)

// Scorer scores drafts against the run's patterns. Stateless; a value is
// safe for concurrent use.
type Scorer struct{}

// New returns a Scorer.
func New() Scorer { return Scorer{} }

// Score computes the quality score for one draft.
func (Scorer) Score(p *proposal.Proposal, up *pattern.UserPattern, sp *pattern.SemanticProfile) int {
	score := baseScore

	// Evidence: linear in supporting occurrences, capped. The cap keeps
	// the term monotonic without letting a single runaway counter pin
	// every proposal to 100.
	ev := p.Metadata.Evidence * evidencePerUnit
	if ev > evidenceCap {
		ev = evidenceCap
	}
	score += ev

	// Engagement: users with more success signals get slightly bolder
	// proposals surfaced.
	if up != nil {
		eng := len(up.SuccessSignals) * 5
		if eng > engagementCap {
			eng = engagementCap
		}
		score += eng
	}

	// Alignment: automation-flavored proposals fit users with complex
	// query profiles; cosmetic ones fit everyone.
	if sp != nil && sp.QueryComplexity >= complexityFloor {
		switch p.Type {
		case proposal.TypeWorkflowAutomation, proposal.TypeFeatureToggle:
			score += alignmentBonus
		}
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Passes reports whether a score clears the persistence gate.
func Passes(score int) bool { return score >= MinScore }
