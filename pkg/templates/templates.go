// Package templates is the proposal template library: pure functions that
// turn detected patterns into draft proposals. Each template carries its
// own activation threshold, so new templates slot in without touching the
// pipeline orchestration.
package templates

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sagelight/dreamer/pkg/pattern"
	"github.com/sagelight/dreamer/pkg/proposal"
)

// Activation thresholds. A template that does not meet its threshold
// produces nothing for the run.
const (
	MinTransitionCount = 5    // navigation shortcut: per-transition floor
	MaxShortcuts       = 3    // navigation shortcut: top transitions considered
	MaxAffinities      = 3    // recommendation: top topics taken
	FilterVisitRate    = 0.10 // filter suggestion: share of total page views
	MinFrictionCount   = 3    // error avoidance: per-friction floor
	MaxFrictionPoints  = 2    // error avoidance: top friction points considered
)

// Template generates zero or more draft proposals from one run's patterns.
// Drafts have no ID and StatusPending; persistence assigns identity later.
type Template interface {
	Name() string
	Generate(up *pattern.UserPattern, sp *pattern.SemanticProfile) []*proposal.Proposal
}

// Library is an ordered set of templates applied per run.
type Library struct {
	templates []Template
}

// NewLibrary builds a library from the given templates.
func NewLibrary(ts ...Template) *Library {
	return &Library{templates: ts}
}

// Default returns the built-in template set.
func Default() *Library {
	return NewLibrary(
		NavigationShortcut{},
		Recommendation{},
		FilterSuggestion{},
		ErrorAvoidance{},
	)
}

// Generate applies every template and concatenates the drafts.
func (l *Library) Generate(up *pattern.UserPattern, sp *pattern.SemanticProfile) []*proposal.Proposal {
	var drafts []*proposal.Proposal
	for _, t := range l.templates {
		drafts = append(drafts, t.Generate(up, sp)...)
	}
	return drafts
}

// NavigationShortcut proposes a shortcut for a page→page transition the
// user repeats at least MinTransitionCount times.
type NavigationShortcut struct{}

func (NavigationShortcut) Name() string { return "navigation_shortcut" }

func (NavigationShortcut) Generate(up *pattern.UserPattern, _ *pattern.SemanticProfile) []*proposal.Proposal {
	var drafts []*proposal.Proposal
	considered := 0
	for _, tr := range up.Transitions {
		if considered >= MaxShortcuts {
			break
		}
		considered++
		if tr.Count < MinTransitionCount {
			continue
		}
		drafts = append(drafts, &proposal.Proposal{
			Type:            proposal.TypeUXChange,
			Title:           fmt.Sprintf("Shortcut from %s to %s", tr.From, tr.To),
			Description:     fmt.Sprintf("You moved from %s to %s %d times recently. A one-tap shortcut would skip the detour.", tr.From, tr.To, tr.Count),
			ExpectedBenefit: "Fewer clicks on a path you take often",
			AIReasoning:     fmt.Sprintf("Transition %s→%s observed %d times, above the %d-occurrence threshold.", tr.From, tr.To, tr.Count, MinTransitionCount),
			Impact:          proposal.ImpactLow,
			Status:          proposal.StatusPending,
			Change: &proposal.ShortcutChange{
				FromPage: tr.From,
				ToPage:   tr.To,
				Label:    shortcutLabel(tr.To),
			},
			Metadata: proposal.Metadata{Evidence: tr.Count},
		})
	}
	return drafts
}

func shortcutLabel(page string) string {
	trimmed := strings.Trim(page, "/")
	if trimmed == "" {
		return "Home"
	}
	parts := strings.Split(trimmed, "/")
	last := strings.ReplaceAll(parts[len(parts)-1], "-", " ")
	return strings.ToUpper(last[:1]) + last[1:]
}

// Recommendation proposes content picks from the user's top topic
// affinities; it activates with a single affinity signal.
type Recommendation struct{}

func (Recommendation) Name() string { return "recommendation" }

func (Recommendation) Generate(_ *pattern.UserPattern, sp *pattern.SemanticProfile) []*proposal.Proposal {
	if sp == nil || len(sp.DominantTopics) == 0 {
		return nil
	}
	top := sp.TopTopics(MaxAffinities)
	names := make([]string, 0, len(top))
	evidence := 0
	for _, t := range top {
		names = append(names, t.Name)
		evidence += int(t.Weight * 10)
	}
	return []*proposal.Proposal{{
		Type:            proposal.TypeSageRecommendation,
		Title:           fmt.Sprintf("Picks for %s", strings.Join(names, ", ")),
		Description:     "A curated shelf based on the topics you come back to.",
		ExpectedBenefit: "Less searching for the things you already like",
		AIReasoning:     fmt.Sprintf("Dominant topics: %s.", strings.Join(names, ", ")),
		Impact:          proposal.ImpactLow,
		Status:          proposal.StatusPending,
		Change:          &proposal.RecommendationChange{Topics: names, Limit: 5},
		Metadata:        proposal.Metadata{Evidence: evidence},
	}}
}

// FilterSuggestion proposes a default filter on a feature page the user
// visits for more than FilterVisitRate of all page views.
type FilterSuggestion struct{}

func (FilterSuggestion) Name() string { return "filter_suggestion" }

func (FilterSuggestion) Generate(up *pattern.UserPattern, _ *pattern.SemanticProfile) []*proposal.Proposal {
	pages := make([]string, 0, len(up.PageVisitRates))
	for page := range up.PageVisitRates {
		pages = append(pages, page)
	}
	sort.Strings(pages)

	var drafts []*proposal.Proposal
	for _, page := range pages {
		rate := up.PageVisitRates[page]
		if rate <= FilterVisitRate || !isFeaturePage(page) {
			continue
		}
		drafts = append(drafts, &proposal.Proposal{
			Type:            proposal.TypeWorkflowAutomation,
			Title:           fmt.Sprintf("Default filter on %s", page),
			Description:     fmt.Sprintf("%s accounts for %.0f%% of your page views. Pre-applying your usual filter would land you where you want faster.", page, rate*100),
			ExpectedBenefit: "Skip repetitive filtering",
			AIReasoning:     fmt.Sprintf("Visit rate %.2f exceeds the %.2f activation threshold.", rate, FilterVisitRate),
			Impact:          proposal.ImpactMedium,
			Status:          proposal.StatusPending,
			Change:          &proposal.FilterChange{Page: page, Filter: "recent"},
			Metadata:        proposal.Metadata{Evidence: up.PageVisits[page]},
		})
	}
	return drafts
}

// isFeaturePage excludes structural pages from filter suggestions.
func isFeaturePage(page string) bool {
	switch strings.Trim(page, "/") {
	case "", "home", "login", "settings":
		return false
	}
	return true
}

// ErrorAvoidance proposes guarding components that repeatedly produce
// negative signals.
type ErrorAvoidance struct{}

func (ErrorAvoidance) Name() string { return "error_avoidance" }

func (ErrorAvoidance) Generate(up *pattern.UserPattern, _ *pattern.SemanticProfile) []*proposal.Proposal {
	var drafts []*proposal.Proposal
	considered := 0
	for _, fp := range up.FrictionPoints {
		if considered >= MaxFrictionPoints {
			break
		}
		considered++
		if fp.Count < MinFrictionCount {
			continue
		}
		drafts = append(drafts, &proposal.Proposal{
			Type:            proposal.TypeFeatureToggle,
			Title:           fmt.Sprintf("Smoother %s on %s", fp.Component, fp.Page),
			Description:     fmt.Sprintf("%s on %s tripped you up %d times. An inline hint could head that off.", fp.Component, fp.Page, fp.Count),
			ExpectedBenefit: "Fewer dead ends on a flow you use",
			AIReasoning:     fmt.Sprintf("Friction on %s@%s observed %d times, above the %d-occurrence threshold.", fp.Component, fp.Page, fp.Count, MinFrictionCount),
			Impact:          proposal.ImpactLow,
			Status:          proposal.StatusPending,
			Change: &proposal.AvoidanceChange{
				Component: fp.Component,
				Page:      fp.Page,
				Hint:      fmt.Sprintf("Heads up: %s has a known rough edge here.", fp.Component),
			},
			Metadata: proposal.Metadata{Evidence: fp.Count},
		})
	}
	return drafts
}
