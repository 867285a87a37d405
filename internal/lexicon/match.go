package lexicon

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns the NFC, lower-cased, trimmed form used for matching.
// A cases.Caser is stateful, so one is built per call.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Lower(language.Und).String(norm.NFC.String(s))
}

// Matches returns the keywords that occur as substrings of folded, in
// keyword order. folded must already be Normalize'd.
func Matches(folded string, keywords []string) []string {
	var found []string
	for _, kw := range keywords {
		if kw != "" && strings.Contains(folded, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// Count returns the number of keywords that occur in folded.
func Count(folded string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(folded, kw) {
			n++
		}
	}
	return n
}

// ContainsAny reports whether any keyword occurs in folded.
func ContainsAny(folded string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

// Fires reports whether the cue matches folded.
func (c Cue) Fires(folded string) bool {
	if len(c.Keywords) == 0 {
		return false
	}
	if !c.RequireAll {
		return ContainsAny(folded, c.Keywords)
	}
	for _, kw := range c.Keywords {
		if !strings.Contains(folded, kw) {
			return false
		}
	}
	return true
}
