package governance

import (
	"fmt"
	"strings"

	"github.com/sagelight/dreamer/pkg/proposal"
)

// Rule is one fixed governance rule. Check returns a human-readable
// violation, or "" when the proposal passes.
type Rule struct {
	ID    string
	Check func(p *proposal.Proposal, ctx *Context) string
}

// fixedRules is the non-configurable rule table. Operator-tunable policy
// lives in the CEL engine; these are the floor beneath it.
var fixedRules = []Rule{
	{
		ID: "valid_payload",
		Check: func(p *proposal.Proposal, _ *Context) string {
			if err := p.ValidateChange(); err != nil {
				return fmt.Sprintf("change payload invalid: %v", err)
			}
			if err := proposal.ValidateChangeSchema(p.Change); err != nil {
				return fmt.Sprintf("change payload failed schema validation: %v", err)
			}
			return ""
		},
	},
	{
		ID: "protect_safety_components",
		Check: func(p *proposal.Proposal, ctx *Context) string {
			target := changeTarget(p.Change)
			if target == "" {
				return ""
			}
			for _, protected := range ctx.Platform.ProtectedComponents {
				if strings.EqualFold(target, protected) {
					return fmt.Sprintf("proposal touches protected component %q", protected)
				}
			}
			return ""
		},
	},
	{
		ID: "high_impact_requires_approval",
		Check: func(p *proposal.Proposal, _ *Context) string {
			if p.Impact == proposal.ImpactHigh && !p.Metadata.RequiresApproval {
				return "high-impact proposals must require explicit approval"
			}
			return ""
		},
	},
	{
		ID: "respect_rejected_categories",
		Check: func(p *proposal.Proposal, ctx *Context) string {
			category := p.Type.Category()
			for _, rejected := range ctx.Preferences.RejectedCategories {
				if strings.EqualFold(category, rejected) {
					return fmt.Sprintf("user has opted out of %s proposals", category)
				}
			}
			return ""
		},
	},
	{
		ID: "platform_blocked_categories",
		Check: func(p *proposal.Proposal, ctx *Context) string {
			category := p.Type.Category()
			for _, blocked := range ctx.Platform.BlockedCategories {
				if strings.EqualFold(category, blocked) {
					return fmt.Sprintf("platform blocks %s proposals", category)
				}
			}
			return ""
		},
	},
}

// changeTarget names the component or page a change touches, for matching
// against the platform's protected list.
func changeTarget(c proposal.Change) string {
	switch v := c.(type) {
	case *proposal.ShortcutChange:
		return v.ToPage
	case *proposal.FilterChange:
		return v.Page
	case *proposal.AvoidanceChange:
		return v.Component
	case *proposal.FixChange:
		return v.Component
	default:
		return ""
	}
}
