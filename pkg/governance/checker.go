package governance

import "github.com/sagelight/dreamer/pkg/proposal"

// Decision is the outcome of one governance evaluation.
type Decision struct {
	Approved   bool     `json:"approved"`
	Violations []string `json:"violations,omitempty"`
}

// Checker combines the fixed rule table with the CEL policy engine.
// Callers are expected to Sanitize a draft before handing it to Check.
type Checker struct {
	rules  []Rule
	engine *Engine
}

// NewChecker builds a Checker. A nil engine is allowed: only the fixed
// rule table runs.
func NewChecker(engine *Engine) *Checker {
	return &Checker{rules: fixedRules, engine: engine}
}

// Check evaluates the proposal against the fixed rule table and all
// loaded CEL policies. It reads only its arguments; two calls with the
// same inputs return the same decision.
func (c *Checker) Check(p *proposal.Proposal, ctx *Context) Decision {
	var violations []string
	for _, rule := range c.rules {
		if v := rule.Check(p, ctx); v != "" {
			violations = append(violations, v)
		}
	}
	if c.engine != nil {
		violations = append(violations, c.engine.Evaluate(p, ctx)...)
	}
	return Decision{Approved: len(violations) == 0, Violations: violations}
}
