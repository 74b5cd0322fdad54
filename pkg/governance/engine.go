package governance

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"

	"github.com/sagelight/dreamer/pkg/proposal"
)

// Engine evaluates operator-configurable CEL policies against proposals.
// Policies are compiled once at load time and evaluated per proposal.
// A policy that evaluates to anything other than true — including an
// evaluation error — counts as a violation: the gate fails closed.
type Engine struct {
	mu           sync.RWMutex
	env          *cel.Env
	programs     map[string]cel.Program
	descriptions map[string]string
}

// NewEngine initializes the CEL environment with the attributes every
// policy can reference.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.VariableDecls(
			decls.NewVariable("proposal", types.NewMapType(types.StringType, types.DynType)),
			decls.NewVariable("context", types.NewMapType(types.StringType, types.DynType)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("governance: create CEL env: %w", err)
	}
	return &Engine{
		env:          env,
		programs:     make(map[string]cel.Program),
		descriptions: make(map[string]string),
	}, nil
}

// LoadPolicy compiles and registers one policy. The expression must
// evaluate to true for the proposal to pass.
func (e *Engine) LoadPolicy(id, description, source string) error {
	ast, issues := e.env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("governance: policy %s failed to compile: %w", id, issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return fmt.Errorf("governance: policy %s program construction: %w", id, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.programs[id] = prg
	e.descriptions[id] = description
	return nil
}

// Evaluate runs every loaded policy against the proposal and returns one
// violation string per failing policy, in stable policy-id order.
func (e *Engine) Evaluate(p *proposal.Proposal, ctx *Context) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	input := map[string]any{
		"proposal": proposalActivation(p),
		"context":  contextActivation(ctx),
	}

	ids := make([]string, 0, len(e.programs))
	for id := range e.programs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var violations []string
	for _, id := range ids {
		out, _, err := e.programs[id].Eval(input)
		if err != nil {
			// Fail closed: an unevaluable policy blocks the proposal.
			violations = append(violations, fmt.Sprintf("policy %s could not be evaluated: %v", id, err))
			continue
		}
		if passed, ok := out.Value().(bool); !ok || !passed {
			violations = append(violations, fmt.Sprintf("policy %s: %s", id, e.descriptions[id]))
		}
	}
	return violations
}

// proposalActivation flattens a proposal into the CEL input map.
func proposalActivation(p *proposal.Proposal) map[string]any {
	return map[string]any{
		"type":              string(p.Type),
		"category":          p.Type.Category(),
		"title":             p.Title,
		"impact":            string(p.Impact),
		"quality_score":     p.Metadata.QualityScore,
		"self_healing":      p.Metadata.SelfHealing,
		"requires_approval": p.Metadata.RequiresApproval,
		"severity":          p.Metadata.Severity,
		"evidence":          p.Metadata.Evidence,
	}
}

func contextActivation(ctx *Context) map[string]any {
	return map[string]any{
		"user_id":             ctx.UserID,
		"rejected_categories": ctx.Preferences.RejectedCategories,
		"auto_apply_opt_in":   ctx.Preferences.AutoApplyOptIn,
		"analysis_runs":       ctx.Usage.AnalysisRuns,
		"review_actions":      ctx.Usage.ReviewActions,
		"proposals_seen":      ctx.Usage.ProposalsSeen,
	}
}
