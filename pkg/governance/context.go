// Package governance is the gate between scored drafts and persistence.
// Evaluation is deterministic: it reads the proposal and the assembled
// context, nothing else. Sanitization runs before checking so every rule
// and policy sees the cleaned proposal.
package governance

import "time"

// Preferences is the user-controlled slice of the governance context.
type Preferences struct {
	Theme              string   `json:"theme,omitempty"`
	RejectedCategories []string `json:"rejected_categories,omitempty"`
	AutoApplyOptIn     bool     `json:"auto_apply_opt_in"`
}

// UsageSummary is the historical usage slice, sourced from metering.
type UsageSummary struct {
	AnalysisRuns  int64 `json:"analysis_runs"`
	ReviewActions int64 `json:"review_actions"`
	ProposalsSeen int64 `json:"proposals_seen"`
}

// PlatformConfig is the operator-controlled slice: hard constraints no
// user preference can override.
type PlatformConfig struct {
	BlockedCategories   []string `json:"blocked_categories,omitempty"`
	ProtectedComponents []string `json:"protected_components,omitempty"`
}

// Context is everything one governance evaluation may read. It is
// assembled per run and never mutated during evaluation.
type Context struct {
	UserID      string         `json:"user_id"`
	Preferences Preferences    `json:"preferences"`
	Usage       UsageSummary   `json:"usage"`
	Platform    PlatformConfig `json:"platform"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
}
