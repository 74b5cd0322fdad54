package governance

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/sagelight/dreamer/pkg/proposal"
)

// Field length bounds after sanitization. Oversized text is truncated,
// never rejected: length is a presentation constraint, not a policy one.
const (
	MaxTitleLen       = 120
	MaxDescriptionLen = 600
	MaxBenefitLen     = 300
	MaxReasoningLen   = 500
)

// PII-shaped content is redacted rather than passed to reviewers or the
// audit trail. The patterns are deliberately coarse; false positives
// cost a placeholder, false negatives leak.
var (
	emailPattern     = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern     = regexp.MustCompile(`\+?\d[\d\s\-()]{7,}\d`)
	longDigitPattern = regexp.MustCompile(`\d{9,}`)
)

const redactedPlaceholder = "[redacted]"

// Sanitize returns a copy of the proposal with every free-text field
// normalized, redacted and bounded. The original draft is not touched.
func Sanitize(p *proposal.Proposal) *proposal.Proposal {
	clean := *p
	clean.Title = sanitizeText(p.Title, MaxTitleLen)
	clean.Description = sanitizeText(p.Description, MaxDescriptionLen)
	clean.ExpectedBenefit = sanitizeText(p.ExpectedBenefit, MaxBenefitLen)
	clean.AIReasoning = sanitizeText(p.AIReasoning, MaxReasoningLen)
	return &clean
}

func sanitizeText(s string, maxLen int) string {
	s = norm.NFKC.String(s)
	s = strings.TrimSpace(s)
	s = emailPattern.ReplaceAllString(s, redactedPlaceholder)
	s = phonePattern.ReplaceAllString(s, redactedPlaceholder)
	s = longDigitPattern.ReplaceAllString(s, redactedPlaceholder)
	return truncate(s, maxLen)
}

// truncate cuts to maxLen bytes without splitting a UTF-8 sequence.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
