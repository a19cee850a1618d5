// Package story extracts candidate entity and action keywords from a
// free-text user story.
package story

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Set is an unordered collection of lower-cased, non-empty keywords.
type Set map[string]struct{}

// Has reports whether s contains word.
func (s Set) Has(word string) bool {
	_, ok := s[word]
	return ok
}

// Len returns the number of keywords in s.
func (s Set) Len() int { return len(s) }

// Sorted returns the keywords in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for w := range s {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

func (s Set) add(word string) {
	if word != "" {
		s[word] = struct{}{}
	}
}

// Parsed is the keyword view of a story.
type Parsed struct {
	RawText  string
	Entities Set
	Actions  Set
}

// minEntityRunes is the exclusive lower bound on unquoted entity length.
const minEntityRunes = 3

var quotedRe = regexp.MustCompile(`"([^"]+)"`)

var actionVerbs = map[string]bool{
	"add":    true,
	"remove": true,
	"delete": true,
	"create": true,
	"update": true,
	"view":   true,
	"edit":   true,
	"search": true,
	"filter": true,
}

// stopwords are common story filler that never name a code symbol.
var stopwords = map[string]bool{
	"about": true, "after": true, "also": true, "able": true, "and": true,
	"been": true, "before": true, "being": true, "both": true, "cannot": true,
	"could": true, "does": true, "each": true, "every": true, "from": true,
	"given": true, "have": true, "having": true, "into": true, "just": true,
	"like": true, "make": true, "many": true, "more": true, "most": true,
	"much": true, "must": true, "need": true, "needs": true, "only": true,
	"other": true, "over": true, "same": true, "should": true, "some": true,
	"such": true, "sure": true, "than": true, "that": true, "their": true,
	"them": true, "then": true, "there": true, "these": true, "they": true,
	"this": true, "those": true, "through": true, "under": true, "until": true,
	"upon": true, "user": true, "users": true, "very": true, "want": true,
	"wants": true, "were": true, "what": true, "when": true, "where": true,
	"which": true, "while": true, "will": true, "with": true, "within": true,
	"without": true, "would": true, "your": true, "yours": true,
}

// Parse extracts keywords from text. It never fails; empty input yields
// empty sets.
func Parse(text string) Parsed {
	p := Parsed{
		RawText:  text,
		Entities: make(Set),
		Actions:  make(Set),
	}

	for _, m := range quotedRe.FindAllStringSubmatch(text, -1) {
		p.Entities.add(strings.ToLower(strings.TrimSpace(m[1])))
	}

	for _, field := range strings.Fields(text) {
		word := normalizeToken(field)
		if word == "" {
			continue
		}
		if actionVerbs[word] {
			p.Actions.add(word)
		}
		if !stopwords[word] && utf8.RuneCountInString(word) > minEntityRunes {
			p.Entities.add(word)
		}
	}

	return p
}

// normalizeToken lower-cases a whitespace token and trims any leading or
// trailing rune that is neither a letter nor a digit.
func normalizeToken(tok string) string {
	tok = strings.TrimFunc(tok, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.ToLower(tok)
}
