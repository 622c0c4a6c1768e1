package report

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/nao1215/sitesift/internal/model"
)

// KeywordAnalysis summarizes how often keywords and keyword groups appear in
// a result and which keywords appear on the same page.
type KeywordAnalysis struct {
	// Pages is the number of subpages analyzed.
	Pages int `json:"pages"`

	// MatchedPages is the number of subpages with at least one keyword.
	MatchedPages int `json:"matched_pages"`

	// Terms lists every keyword, sorted. It indexes CoOccurrence.
	Terms []string `json:"terms"`

	// TermGroups maps each term to its group.
	TermGroups map[string]string `json:"term_groups"`

	// Groups holds one entry per keyword group, sorted by name.
	Groups []GroupFrequency `json:"groups"`

	// CoOccurrence[i][j] counts the pages where Terms[i] and Terms[j] both
	// appear. The diagonal counts the pages containing a term at all.
	CoOccurrence [][]int `json:"co_occurrence"`

	// PageMatches lists the keywords found on each matching subpage.
	PageMatches []PageMatch `json:"page_matches,omitempty"`
}

// GroupFrequency counts keyword hits of one group. Every keyword of the
// group found on a page adds one.
type GroupFrequency struct {
	Group     string `json:"group"`
	Frequency int    `json:"frequency"`
	Terms     int    `json:"terms"`
}

// PageMatch records the keywords found on one subpage.
type PageMatch struct {
	Seed     string   `json:"seed"`
	URL      string   `json:"url"`
	Keywords []string `json:"keywords"`
}

// TermPair is a pair of keywords seen together.
type TermPair struct {
	A           string  `json:"a"`
	B           string  `json:"b"`
	Count       int     `json:"count"`
	Correlation float64 `json:"correlation"`
}

// AnalyzeKeywords counts keyword occurrences over every subpage of result.
//
// A keyword is present on a page when each of its words appears in the page
// as a whole word. Punctuation is removed from both sides before comparing,
// and case is ignored.
func AnalyzeKeywords(result *model.CrawlResult, keywords model.KeywordMap) *KeywordAnalysis {
	terms := keywords.Terms()
	index := make(map[string]int, len(terms))
	parts := make([][]string, len(terms))
	for i, term := range terms {
		index[term] = i
		parts[i] = strings.Fields(stripPunctuation(term))
	}

	a := &KeywordAnalysis{
		Terms:        terms,
		TermGroups:   make(map[string]string, len(terms)),
		CoOccurrence: make([][]int, len(terms)),
	}
	for i, term := range terms {
		a.TermGroups[term] = keywords[term]
		a.CoOccurrence[i] = make([]int, len(terms))
	}

	groupHits := make(map[string]int)
	for _, page := range result.Pages() {
		a.Pages++
		words := wordSet(page.Text)

		var found []int
		for i := range terms {
			if containsWords(words, parts[i]) {
				found = append(found, i)
			}
		}
		if len(found) == 0 {
			continue
		}

		a.MatchedPages++
		match := PageMatch{Seed: page.Seed, URL: page.URL}
		for n, i := range found {
			match.Keywords = append(match.Keywords, terms[i])
			groupHits[keywords[terms[i]]]++
			for _, j := range found[n:] {
				a.CoOccurrence[i][j]++
				if i != j {
					a.CoOccurrence[j][i]++
				}
			}
		}
		a.PageMatches = append(a.PageMatches, match)
	}

	for _, group := range keywords.Groups() {
		a.Groups = append(a.Groups, GroupFrequency{
			Group:     group,
			Frequency: groupHits[group],
			Terms:     len(keywords.TermsOf(group)),
		})
	}
	return a
}

// TermCount returns the number of pages containing term.
func (a *KeywordAnalysis) TermCount(term string) int {
	i, ok := slices.BinarySearch(a.Terms, term)
	if !ok {
		return 0
	}
	return a.CoOccurrence[i][i]
}

// Correlation returns the Pearson correlation between the co-occurrence
// columns of every pair of terms. Pairs involving a column without variance
// are 0.
func (a *KeywordAnalysis) Correlation() [][]float64 {
	n := len(a.Terms)
	out := make([][]float64, n)
	for i := range n {
		out[i] = make([]float64, n)
	}
	for i := range n {
		for j := i; j < n; j++ {
			r := pearson(a.column(i), a.column(j))
			out[i][j], out[j][i] = r, r
		}
	}
	return out
}

// TopPairs returns up to limit distinct term pairs that share at least one
// page, most frequent first. A non-positive limit returns every pair.
func (a *KeywordAnalysis) TopPairs(limit int) []TermPair {
	corr := a.Correlation()
	var pairs []TermPair
	for i := range a.Terms {
		for j := i + 1; j < len(a.Terms); j++ {
			if a.CoOccurrence[i][j] == 0 {
				continue
			}
			pairs = append(pairs, TermPair{
				A:           a.Terms[i],
				B:           a.Terms[j],
				Count:       a.CoOccurrence[i][j],
				Correlation: corr[i][j],
			})
		}
	}
	slices.SortStableFunc(pairs, func(x, y TermPair) int {
		return cmp.Compare(y.Count, x.Count)
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

func (a *KeywordAnalysis) column(j int) []float64 {
	col := make([]float64, len(a.Terms))
	for i := range a.Terms {
		col[i] = float64(a.CoOccurrence[i][j])
	}
	return col
}

func pearson(x, y []float64) float64 {
	n := float64(len(x))
	if n == 0 {
		return 0
	}
	var sumX, sumY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range x {
		dx, dy := x[i]-meanX, y[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

// stripPunctuation lowercases s and drops every rune that is neither a word
// character nor whitespace.
func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(stripPunctuation(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func containsWords(set map[string]struct{}, words []string) bool {
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}
