// Package filter matches titles against user-configured term lists.
package filter

import (
	"regexp"
	"strings"
)

// Term is one compiled matcher: either a lowercased substring or a
// case-insensitive regex.
type Term struct {
	substring string
	pattern   *regexp.Regexp
}

// Compile turns raw term strings into matchers. A term wrapped in
// /slashes/ compiles as a case-insensitive regex; if the pattern is
// invalid it falls back to a plain substring match on the whole string,
// slashes included. Blank terms are dropped.
func Compile(raw []string) []Term {
	terms := make([]Term, 0, len(raw))
	for _, r := range raw {
		trimmed := strings.TrimSpace(r)
		if trimmed == "" {
			continue
		}
		if len(trimmed) >= 3 && trimmed[0] == '/' && trimmed[len(trimmed)-1] == '/' {
			if re, err := regexp.Compile("(?i)" + trimmed[1:len(trimmed)-1]); err == nil {
				terms = append(terms, Term{pattern: re})
				continue
			}
		}
		terms = append(terms, Term{substring: strings.ToLower(trimmed)})
	}
	return terms
}

// MatchAny reports whether s matches at least one term. An empty term
// list matches nothing.
func MatchAny(s string, terms []Term) bool {
	if len(terms) == 0 {
		return false
	}
	lower := strings.ToLower(s)
	for _, t := range terms {
		if t.pattern != nil {
			if t.pattern.MatchString(s) {
				return true
			}
			continue
		}
		if strings.Contains(lower, t.substring) {
			return true
		}
	}
	return false
}
