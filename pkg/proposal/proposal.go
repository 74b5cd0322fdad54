// Package proposal defines the central Proposal entity shared by the
// behavioral pipeline and the self-healing path, together with the closed
// set of change payload variants and the deduplication fingerprint.
package proposal

import (
	"errors"
	"time"
)

var (
	// ErrInvalidTransition is returned when a status change other than
	// pending→approved or pending→rejected is attempted.
	ErrInvalidTransition = errors.New("proposal: invalid status transition")
	// ErrUnknownType is returned for a Type outside the closed set.
	ErrUnknownType = errors.New("proposal: unknown proposal type")
)

// Type identifies what kind of change a proposal suggests.
type Type string

const (
	TypeUXChange           Type = "ux_change"
	TypeFeatureToggle      Type = "feature_toggle"
	TypeWorkflowAutomation Type = "workflow_automation"
	TypeSageRecommendation Type = "sage_recommendation"
	TypeThemeVariant       Type = "theme_variant"
	TypeSelfHealingFix     Type = "self_healing_fix"
)

// Valid reports whether t is part of the closed type set.
func (t Type) Valid() bool {
	switch t {
	case TypeUXChange, TypeFeatureToggle, TypeWorkflowAutomation,
		TypeSageRecommendation, TypeThemeVariant, TypeSelfHealingFix:
		return true
	}
	return false
}

// Impact drives UI treatment and auto-apply eligibility.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Status is the one-way proposal state machine: pending → approved|rejected.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// CanTransition reports whether moving from s to next is legal.
// Only pending→approved and pending→rejected are permitted; once a
// proposal leaves pending it never returns.
func (s Status) CanTransition(next Status) bool {
	return s == StatusPending && (next == StatusApproved || next == StatusRejected)
}

// Metadata carries non-authoritative scoring and audit annotations.
// Nothing in here participates in the state machine.
type Metadata struct {
	QualityScore       int    `json:"quality_score"`
	SelfHealing        bool   `json:"self_healing"`
	RequiresApproval   bool   `json:"requires_approval"`
	Severity           string `json:"severity,omitempty"`
	GovernanceApproved bool   `json:"governance_approved"`
	Evidence           int    `json:"evidence"` // supporting occurrence count
}

// Proposal is a candidate, human-reviewable change surfaced by the pipeline.
//
// ID is assigned only when the proposal is persisted; drafts produced by the
// template library or the fix proposer carry an empty ID and StatusPending.
type Proposal struct {
	ID              string    `json:"id,omitempty"`
	UserID          string    `json:"user_id"`
	Type            Type      `json:"proposal_type"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ExpectedBenefit string    `json:"expected_benefit"`
	AIReasoning     string    `json:"ai_reasoning"`
	Impact          Impact    `json:"impact_level"`
	Change          Change    `json:"-"`
	Status          Status    `json:"status"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	Metadata        Metadata  `json:"metadata"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	ResolvedAt      time.Time `json:"resolved_at,omitempty"`
}

// Transition applies a status change, enforcing the one-way state machine.
func (p *Proposal) Transition(next Status, at time.Time) error {
	if !p.Status.CanTransition(next) {
		return ErrInvalidTransition
	}
	p.Status = next
	p.ResolvedAt = at.UTC()
	return nil
}

// Category maps a proposal type to the preference category users can
// opt out of. Governance matches rejected-category lists against this.
func (t Type) Category() string {
	switch t {
	case TypeUXChange, TypeThemeVariant:
		return "interface"
	case TypeFeatureToggle, TypeWorkflowAutomation:
		return "automation"
	case TypeSageRecommendation:
		return "recommendations"
	case TypeSelfHealingFix:
		return "maintenance"
	default:
		return "unknown"
	}
}
