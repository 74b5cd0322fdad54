package governance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagelight/dreamer/pkg/proposal"
)

func TestEnginePolicyPassAndFail(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	require.NoError(t, engine.LoadPolicy("min_score", "quality score must reach 70", "proposal.quality_score >= 70"))

	p := validDraft()
	p.Metadata.QualityScore = 85
	assert.Empty(t, engine.Evaluate(p, &Context{}))

	p.Metadata.QualityScore = 40
	violations := engine.Evaluate(p, &Context{})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "min_score")
	assert.Contains(t, violations[0], "quality score must reach 70")
}

func TestEngineCompileError(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	assert.Error(t, engine.LoadPolicy("broken", "", "proposal.quality_score >="))
}

func TestEngineFailsClosedOnEvalError(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	// Indexing a key that is absent from the activation map errors at
	// eval time; that must count as a violation, not a pass.
	require.NoError(t, engine.LoadPolicy("phantom", "", "proposal.nonexistent_field == true"))

	violations := engine.Evaluate(validDraft(), &Context{})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "could not be evaluated")
}

func TestEngineContextAttributes(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	require.NoError(t, engine.LoadPolicy("engaged_users_only", "automation needs review history",
		"proposal.category != 'automation' || context.review_actions > 0"))

	automation := &proposal.Proposal{
		Type:   proposal.TypeWorkflowAutomation,
		Change: &proposal.FilterChange{Page: "/library", Filter: "recent"},
	}

	assert.Len(t, engine.Evaluate(automation, &Context{}), 1)
	assert.Empty(t, engine.Evaluate(automation, &Context{Usage: UsageSummary{ReviewActions: 4}}))
}

func TestEngineStableViolationOrder(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	require.NoError(t, engine.LoadPolicy("b_rule", "", "false"))
	require.NoError(t, engine.LoadPolicy("a_rule", "", "false"))

	violations := engine.Evaluate(validDraft(), &Context{})
	require.Len(t, violations, 2)
	assert.Contains(t, violations[0], "a_rule")
	assert.Contains(t, violations[1], "b_rule")
}

func TestLoadPolicyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
policies:
  - id: min_quality
    description: score floor
    expr: "proposal.quality_score >= 10"
  - id: no_blank_titles
    description: titles required
    expr: "proposal.title != ''"
`), 0o600))

	engine, err := NewEngine()
	require.NoError(t, err)
	n, err := LoadPolicyFile(engine, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	p := validDraft()
	p.Metadata.QualityScore = 50
	assert.Empty(t, engine.Evaluate(p, &Context{}))
}

func TestLoadPolicyFileRejectsIncomplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policies:\n  - id: only_id\n"), 0o600))

	engine, err := NewEngine()
	require.NoError(t, err)
	_, err = LoadPolicyFile(engine, path)
	assert.Error(t, err)
}
