package pattern

import (
	"context"
	"time"
)

// Topic is one ranked subject of interest.
type Topic struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Analysis is what the external semantic analyzer returns: a ranked topic
// list and a query complexity score in [0,1].
type Analysis struct {
	DominantTopics  []Topic `json:"dominant_topics"`
	QueryComplexity float64 `json:"query_complexity"`
}

// Analyzer is the external semantic/topic-extraction collaborator.
// The heavy lifting (embeddings, topic models) lives behind this contract.
type Analyzer interface {
	Analyze(ctx context.Context, events []Event, priorTopics []Topic) (*Analysis, error)
}

// SemanticProfile is the user-level semantic digest for one run.
type SemanticProfile struct {
	DominantTopics  []Topic
	MoodPreference  string
	QueryComplexity float64
	AvgSessionLen   time.Duration
}

// BuildProfile merges the analyzer's output with session-level signals
// from the already-extracted UserPattern.
func BuildProfile(analysis *Analysis, up *UserPattern, mood string) *SemanticProfile {
	sp := &SemanticProfile{MoodPreference: mood}
	if analysis != nil {
		sp.DominantTopics = analysis.DominantTopics
		sp.QueryComplexity = analysis.QueryComplexity
	}
	if up != nil {
		sp.AvgSessionLen = up.AvgTimeOnPage
	}
	return sp
}

// TopTopics returns up to n dominant topics, highest weight first.
// The analyzer contract already ranks them; this just truncates safely.
func (sp *SemanticProfile) TopTopics(n int) []Topic {
	if n >= len(sp.DominantTopics) {
		return sp.DominantTopics
	}
	return sp.DominantTopics[:n]
}
