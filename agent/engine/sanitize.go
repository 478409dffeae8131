package engine

import (
	"regexp"
	"strings"
)

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// Sanitizer is the defensive post-filter applied to every terminal text
// before it reaches the user: internal tool vocabulary is stripped and runs
// of blank lines are collapsed.
type Sanitizer struct {
	vocabRe *regexp.Regexp
}

func NewSanitizer(vocabulary []string) *Sanitizer {
	terms := make([]string, 0, len(vocabulary))
	for _, v := range vocabulary {
		v = strings.TrimSpace(v)
		if v != "" {
			terms = append(terms, regexp.QuoteMeta(v))
		}
	}

	s := &Sanitizer{}
	if len(terms) > 0 {
		s.vocabRe = regexp.MustCompile(`(?i)\b(?:` + strings.Join(terms, "|") + `)\b`)
	}
	return s
}

func (s *Sanitizer) Clean(text string) string {
	text = strings.ReplaceAll(text, currentTurnTag, "")
	if s.vocabRe != nil {
		text = s.vocabRe.ReplaceAllString(text, "")
	}
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
