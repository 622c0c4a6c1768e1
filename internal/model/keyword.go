package model

import (
	"maps"
	"slices"
	"strings"
)

// KeywordMap maps a keyword term to its group. Terms are stored lowercased
// with underscores replaced by spaces. The map is built once at startup and
// read-only afterwards.
type KeywordMap map[string]string

// Add normalizes term and assigns it to group. A term listed twice keeps the
// group it was last given.
func (k KeywordMap) Add(group, term string) {
	term = NormalizeKeyword(term)
	group = strings.TrimSpace(group)
	if term == "" || group == "" {
		return
	}
	k[term] = group
}

// Terms returns every term, sorted.
func (k KeywordMap) Terms() []string {
	return slices.Sorted(maps.Keys(k))
}

// Groups returns the distinct group names, sorted.
func (k KeywordMap) Groups() []string {
	seen := make(map[string]struct{})
	for _, g := range k {
		seen[g] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

// TermsOf returns the terms of group, sorted.
func (k KeywordMap) TermsOf(group string) []string {
	var terms []string
	for t, g := range k {
		if g == group {
			terms = append(terms, t)
		}
	}
	slices.Sort(terms)
	return terms
}

// NormalizeKeyword lowercases term, turns underscores into spaces and
// collapses whitespace.
func NormalizeKeyword(term string) string {
	term = strings.ReplaceAll(term, "_", " ")
	return strings.Join(strings.Fields(strings.ToLower(term)), " ")
}
