package templates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagelight/dreamer/pkg/pattern"
	"github.com/sagelight/dreamer/pkg/proposal"
)

func TestNavigationShortcutActivation(t *testing.T) {
	up := &pattern.UserPattern{
		Transitions: []pattern.Transition{
			{From: "/playground", To: "/council", Count: 6},
			{From: "/library", To: "/home", Count: 2}, // below threshold
		},
	}

	drafts := NavigationShortcut{}.Generate(up, nil)
	require.Len(t, drafts, 1)

	d := drafts[0]
	assert.Equal(t, proposal.TypeUXChange, d.Type)
	assert.Equal(t, proposal.StatusPending, d.Status)
	assert.Empty(t, d.ID, "drafts carry no identity")
	assert.Equal(t, 6, d.Metadata.Evidence)

	change, ok := d.Change.(*proposal.ShortcutChange)
	require.True(t, ok)
	assert.Equal(t, "/playground", change.FromPage)
	assert.Equal(t, "/council", change.ToPage)
	assert.Equal(t, "Council", change.Label)
}

func TestNavigationShortcutTopN(t *testing.T) {
	up := &pattern.UserPattern{
		Transitions: []pattern.Transition{
			{From: "/a", To: "/b", Count: 9},
			{From: "/b", To: "/c", Count: 8},
			{From: "/c", To: "/d", Count: 7},
			{From: "/d", To: "/e", Count: 6}, // over threshold but outside top 3
		},
	}
	drafts := NavigationShortcut{}.Generate(up, nil)
	assert.Len(t, drafts, MaxShortcuts)
}

func TestShortcutLabel(t *testing.T) {
	assert.Equal(t, "Home", shortcutLabel("/"))
	assert.Equal(t, "Council", shortcutLabel("/council"))
	assert.Equal(t, "Reading list", shortcutLabel("/library/reading-list"))
}

func TestRecommendationFromTopics(t *testing.T) {
	assert.Nil(t, Recommendation{}.Generate(nil, nil))
	assert.Nil(t, Recommendation{}.Generate(nil, &pattern.SemanticProfile{}))

	sp := &pattern.SemanticProfile{
		DominantTopics: []pattern.Topic{
			{Name: "astronomy", Weight: 0.9},
			{Name: "poetry", Weight: 0.5},
			{Name: "chess", Weight: 0.3},
			{Name: "baking", Weight: 0.1}, // beyond MaxAffinities
		},
	}
	drafts := Recommendation{}.Generate(nil, sp)
	require.Len(t, drafts, 1)

	change, ok := drafts[0].Change.(*proposal.RecommendationChange)
	require.True(t, ok)
	assert.Equal(t, []string{"astronomy", "poetry", "chess"}, change.Topics)
	assert.Equal(t, proposal.TypeSageRecommendation, drafts[0].Type)
}

func TestFilterSuggestionThresholdAndStructuralPages(t *testing.T) {
	up := &pattern.UserPattern{
		PageVisitRates: map[string]float64{
			"/library":  0.25, // activates
			"/settings": 0.40, // structural, excluded
			"/reports":  0.05, // below threshold
		},
		PageVisits: map[string]int{"/library": 25, "/settings": 40, "/reports": 5},
	}
	drafts := FilterSuggestion{}.Generate(up, nil)
	require.Len(t, drafts, 1)

	change, ok := drafts[0].Change.(*proposal.FilterChange)
	require.True(t, ok)
	assert.Equal(t, "/library", change.Page)
	assert.Equal(t, proposal.ImpactMedium, drafts[0].Impact)
	assert.Equal(t, 25, drafts[0].Metadata.Evidence)
}

func TestErrorAvoidanceThresholds(t *testing.T) {
	up := &pattern.UserPattern{
		FrictionPoints: []pattern.FrictionPoint{
			{Component: "uploader", Page: "/files", Count: 5},
			{Component: "search-box", Page: "/library", Count: 2}, // below threshold
			{Component: "editor", Page: "/notes", Count: 4},       // outside top 2
		},
	}
	drafts := ErrorAvoidance{}.Generate(up, nil)
	require.Len(t, drafts, 1)
	assert.Equal(t, proposal.TypeFeatureToggle, drafts[0].Type)

	change, ok := drafts[0].Change.(*proposal.AvoidanceChange)
	require.True(t, ok)
	assert.Equal(t, "uploader", change.Component)
}

func TestLibraryGenerateConcatenates(t *testing.T) {
	up := &pattern.UserPattern{
		Transitions: []pattern.Transition{{From: "/a", To: "/b", Count: 6}},
		FrictionPoints: []pattern.FrictionPoint{
			{Component: "uploader", Page: "/files", Count: 4},
		},
	}
	sp := &pattern.SemanticProfile{
		DominantTopics: []pattern.Topic{{Name: "astronomy", Weight: 0.8}},
		AvgSessionLen:  2 * time.Minute,
	}
	drafts := Default().Generate(up, sp)
	assert.Len(t, drafts, 3)
	for _, d := range drafts {
		assert.NoError(t, d.ValidateChange())
		assert.Equal(t, proposal.StatusPending, d.Status)
	}
}
