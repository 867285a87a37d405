package insight

import (
	"strings"
	"unicode"

	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/cultural"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/lexicon"
)

// stopWords are the function words used to guess a language. Detection
// counts whole words, so "in" inside "village" does not count.
var stopWords = []struct {
	lang  string
	words map[string]struct{}
}{
	{"en", wordSet("the", "and", "or", "but", "in", "on", "at", "we", "is", "for", "with", "need", "this")},
	{"fr", wordSet("le", "la", "les", "un", "une", "des", "et", "nous", "est", "pour", "avec", "du")},
	{"es", wordSet("el", "la", "los", "las", "un", "una", "y", "nosotros", "es", "para", "con", "del")},
}

var pidginWords = wordSet("una", "dem", "wey", "dey", "abeg", "wahala", "sabi")

var yorubaMarks = []string{"ẹ", "ọ", "ṣ", "wà"}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Words splits a text into lower-cased words.
func Words(text string) []string {
	return strings.FieldsFunc(lexicon.Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\'' && r != '-'
	})
}

// DetectLanguage returns the language whose stop words occur most often,
// or fallback when none occur or the count is tied. Scripts without
// stop-word tables are recognised by their characters.
func DetectLanguage(text, fallback string) string {
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			return "zh"
		case unicode.Is(unicode.Arabic, r):
			return "ar"
		case unicode.Is(unicode.Devanagari, r):
			return "hi"
		}
	}

	counts := make([]int, len(stopWords))
	for _, w := range Words(text) {
		for i, sw := range stopWords {
			if _, ok := sw.words[w]; ok {
				counts[i]++
			}
		}
	}
	best, bestCount, tied := fallback, 0, false
	for i, c := range counts {
		switch {
		case c > bestCount:
			best, bestCount, tied = stopWords[i].lang, c, false
		case c == bestCount && c > 0:
			tied = true
		}
	}
	if bestCount == 0 || tied {
		return fallback
	}
	return best
}

// DetectDialect returns a dialect label within a region, or "".
func DetectDialect(text string, region cultural.Region) string {
	if region != cultural.RegionWestAfrica {
		return ""
	}
	for _, w := range Words(text) {
		if _, ok := pidginWords[w]; ok {
			return "pidgin"
		}
	}
	if lexicon.ContainsAny(lexicon.Normalize(text), yorubaMarks) {
		return "yoruba"
	}
	return ""
}
