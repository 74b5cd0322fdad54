package healing

import "strings"

// DomainMatcher decides whether a responder's output belongs to its
// declared domain. The default is a keyword-overlap heuristic; a
// stronger implementation (embedding similarity, a classifier) can
// replace it without touching the detector's control flow.
type DomainMatcher interface {
	Matches(vocabulary []string, output string) bool
}

// KeywordMatcher reports a match when at least one vocabulary term
// appears in the output, case-insensitively.
type KeywordMatcher struct{}

func (KeywordMatcher) Matches(vocabulary []string, output string) bool {
	lowered := strings.ToLower(output)
	for _, term := range vocabulary {
		if term == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
