package healing

import (
	"fmt"

	"github.com/sagelight/dreamer/pkg/proposal"
)

// fixTemplates maps issue types to deterministic proposal text. Titles
// and reasoning come from these tables, not free generation, so the
// output is testable.
var fixTemplates = map[IssueType]struct {
	title   string
	benefit string
	action  string
}{
	IssueSlowResponse: {
		title:   "Speed up %s",
		benefit: "Faster responses on an endpoint you rely on",
		action:  "profile_and_cache",
	},
	IssueError: {
		title:   "Stabilize %s",
		benefit: "Fewer errors interrupting your session",
		action:  "add_retry_and_fallback",
	},
	IssueBrokenRoute: {
		title:   "Repair route %s",
		benefit: "A dead link stops leading nowhere",
		action:  "restore_route",
	},
	IssueHallucination: {
		title:   "Refocus %s",
		benefit: "Answers stay on topic for this domain",
		action:  "tighten_domain_prompt",
	},
	IssueCouncilDeadlock: {
		title:   "Unblock deliberation on %s",
		benefit: "Stalled multi-agent sessions resolve instead of spinning",
		action:  "apply_tiebreak_policy",
	},
	IssueMemory: {
		title:   "Compact memory for %s",
		benefit: "Context stays responsive as history grows",
		action:  "compact_memory",
	},
}

// ProposeFix converts an issue into a proposal riding the shared state
// machine. Drafts carry no id; persistence assigns identity.
func ProposeFix(issue *Issue) (*proposal.Proposal, error) {
	tmpl, ok := fixTemplates[issue.Type]
	if !ok {
		return nil, fmt.Errorf("healing: no fix template for issue type %q", issue.Type)
	}

	requiresApproval := issue.Type.RequiresApproval(issue.Severity)
	impact := issue.Severity.Impact()

	return &proposal.Proposal{
		Type:            proposal.TypeSelfHealingFix,
		Title:           fmt.Sprintf(tmpl.title, issue.AffectedComponent),
		Description:     fmt.Sprintf("Self-healing detected %s on %s: %s", issue.Type, issue.AffectedComponent, issue.ErrorDetails),
		ExpectedBenefit: tmpl.benefit,
		AIReasoning:     fmt.Sprintf("Issue %s at severity %s; fix action %s follows the per-type playbook.", issue.Type, issue.Severity, tmpl.action),
		Impact:          impact,
		Status:          proposal.StatusPending,
		Change: &proposal.FixChange{
			IssueType: string(issue.Type),
			Component: issue.AffectedComponent,
			Action:    tmpl.action,
			AutoApply: !requiresApproval && impact == proposal.ImpactLow,
		},
		Metadata: proposal.Metadata{
			SelfHealing:      true,
			RequiresApproval: requiresApproval,
			Severity:         string(issue.Severity),
			Evidence:         1,
		},
	}, nil
}

// ShouldAutoApply gates unattended application: low impact AND
// self-healing-sourced AND no approval requirement. All three, always —
// severity alone never flips this.
func ShouldAutoApply(p *proposal.Proposal) bool {
	return p.Impact == proposal.ImpactLow &&
		p.Metadata.SelfHealing &&
		!p.Metadata.RequiresApproval
}
