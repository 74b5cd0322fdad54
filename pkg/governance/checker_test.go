package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagelight/dreamer/pkg/proposal"
)

func validDraft() *proposal.Proposal {
	return &proposal.Proposal{
		Type:   proposal.TypeUXChange,
		Title:  "Shortcut from /playground to /council",
		Impact: proposal.ImpactLow,
		Status: proposal.StatusPending,
		Change: &proposal.ShortcutChange{FromPage: "/playground", ToPage: "/council", Label: "Council"},
	}
}

func TestCheckApprovesValidProposal(t *testing.T) {
	checker := NewChecker(nil)
	decision := checker.Check(validDraft(), &Context{UserID: "u1"})
	assert.True(t, decision.Approved)
	assert.Empty(t, decision.Violations)
}

func TestCheckInvalidPayload(t *testing.T) {
	checker := NewChecker(nil)

	p := validDraft()
	p.Change = nil
	decision := checker.Check(p, &Context{})
	assert.False(t, decision.Approved)

	p = validDraft()
	p.Change = &proposal.ShortcutChange{FromPage: "/a", ToPage: "/a"}
	decision = checker.Check(p, &Context{})
	assert.False(t, decision.Approved)
}

func TestCheckProtectedComponents(t *testing.T) {
	checker := NewChecker(nil)
	ctx := &Context{Platform: PlatformConfig{ProtectedComponents: []string{"safety-banner"}}}

	p := &proposal.Proposal{
		Type:   proposal.TypeFeatureToggle,
		Title:  "Smoother safety-banner",
		Impact: proposal.ImpactLow,
		Change: &proposal.AvoidanceChange{Component: "safety-banner", Page: "/home"},
	}
	decision := checker.Check(p, ctx)
	require.False(t, decision.Approved)
	assert.Contains(t, decision.Violations[0], "protected component")

	p.Change = &proposal.AvoidanceChange{Component: "uploader", Page: "/home"}
	assert.True(t, checker.Check(p, ctx).Approved)
}

func TestCheckHighImpactRequiresApproval(t *testing.T) {
	checker := NewChecker(nil)

	p := validDraft()
	p.Impact = proposal.ImpactHigh
	decision := checker.Check(p, &Context{})
	require.False(t, decision.Approved)
	assert.Contains(t, decision.Violations[0], "require explicit approval")

	p.Metadata.RequiresApproval = true
	assert.True(t, checker.Check(p, &Context{}).Approved)
}

func TestCheckRejectedCategories(t *testing.T) {
	checker := NewChecker(nil)
	ctx := &Context{Preferences: Preferences{RejectedCategories: []string{"Interface"}}}

	decision := checker.Check(validDraft(), ctx)
	require.False(t, decision.Approved, "category match is case-insensitive")
	assert.Contains(t, decision.Violations[0], "opted out")

	automation := &proposal.Proposal{
		Type:   proposal.TypeWorkflowAutomation,
		Impact: proposal.ImpactMedium,
		Change: &proposal.FilterChange{Page: "/library", Filter: "recent"},
	}
	assert.True(t, checker.Check(automation, ctx).Approved)
}

func TestCheckPlatformBlockedCategories(t *testing.T) {
	checker := NewChecker(nil)
	ctx := &Context{Platform: PlatformConfig{BlockedCategories: []string{"automation"}}}

	automation := &proposal.Proposal{
		Type:   proposal.TypeWorkflowAutomation,
		Impact: proposal.ImpactMedium,
		Change: &proposal.FilterChange{Page: "/library", Filter: "recent"},
	}
	decision := checker.Check(automation, ctx)
	require.False(t, decision.Approved)
	assert.Contains(t, decision.Violations[0], "platform blocks")
}

func TestCheckCollectsAllViolations(t *testing.T) {
	checker := NewChecker(nil)
	ctx := &Context{
		Preferences: Preferences{RejectedCategories: []string{"interface"}},
		Platform:    PlatformConfig{BlockedCategories: []string{"interface"}},
	}
	p := validDraft()
	p.Impact = proposal.ImpactHigh

	decision := checker.Check(p, ctx)
	require.False(t, decision.Approved)
	assert.Len(t, decision.Violations, 3, "every failing rule reports")
}

func TestCheckDeterministic(t *testing.T) {
	checker := NewChecker(nil)
	ctx := &Context{Preferences: Preferences{RejectedCategories: []string{"interface"}}}
	p := validDraft()

	first := checker.Check(p, ctx)
	second := checker.Check(p, ctx)
	assert.Equal(t, first, second)
}
