// Package match pairs story entities with indexed code symbols.
package match

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AbdelazizMoustafa10m/storytotest/internal/story"
	"github.com/AbdelazizMoustafa10m/storytotest/internal/symbols"
)

// Matcher names accepted by New.
const (
	NameSubstring = "substring"
	NameScored    = "scored"
)

// Result holds the matched symbols as ordered subsequences of the index.
type Result struct {
	Interfaces []symbols.Descriptor
	Classes    []symbols.Descriptor
}

// Empty reports whether nothing matched.
func (r Result) Empty() bool {
	return len(r.Interfaces) == 0 && len(r.Classes) == 0
}

// Matcher selects the symbols relevant to a set of story entities.
type Matcher interface {
	Match(idx *symbols.Index, entities story.Set) Result
}

// New returns the matcher registered under name. An empty name selects the
// substring matcher.
func New(name string) (Matcher, error) {
	switch name {
	case "", NameSubstring:
		return SubstringMatcher{}, nil
	case NameScored:
		return ScoredMatcher{}, nil
	default:
		return nil, fmt.Errorf("match: unknown matcher %q", name)
	}
}

// Search runs the default matcher.
func Search(idx *symbols.Index, entities story.Set) Result {
	return SubstringMatcher{}.Match(idx, entities)
}

// Related reports whether a lower-cased symbol name and an entity contain
// one another.
func Related(name, entity string) bool {
	return strings.Contains(name, entity) || strings.Contains(entity, name)
}

// SubstringMatcher keeps every symbol related to at least one entity, in
// index order, interfaces first. Each symbol appears at most once.
type SubstringMatcher struct{}

// Match implements Matcher.
func (SubstringMatcher) Match(idx *symbols.Index, entities story.Set) Result {
	var res Result
	if idx == nil || entities.Len() == 0 {
		return res
	}
	words := entities.Sorted()
	res.Interfaces = firstMatch(idx.Interfaces, words)
	res.Classes = firstMatch(idx.Classes, words)
	return res
}

func firstMatch(decls []symbols.Descriptor, words []string) []symbols.Descriptor {
	var out []symbols.Descriptor
	for _, d := range decls {
		name := strings.ToLower(d.Name)
		for _, w := range words {
			if Related(name, w) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// ScoredMatcher keeps the same symbols as SubstringMatcher but orders them
// by the number of related entities, highest first. Ties keep index order.
type ScoredMatcher struct{}

// Match implements Matcher.
func (ScoredMatcher) Match(idx *symbols.Index, entities story.Set) Result {
	var res Result
	if idx == nil || entities.Len() == 0 {
		return res
	}
	words := entities.Sorted()
	res.Interfaces = byScore(idx.Interfaces, words)
	res.Classes = byScore(idx.Classes, words)
	return res
}

func byScore(decls []symbols.Descriptor, words []string) []symbols.Descriptor {
	type scored struct {
		desc  symbols.Descriptor
		score int
	}
	var hits []scored
	for _, d := range decls {
		name := strings.ToLower(d.Name)
		n := 0
		for _, w := range words {
			if Related(name, w) {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, scored{desc: d, score: n})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	var out []symbols.Descriptor
	for _, h := range hits {
		out = append(out, h.desc)
	}
	return out
}
