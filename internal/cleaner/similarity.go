package cleaner

import (
	"strings"

	"github.com/nao1215/sitesift/internal/model"
)

// Tokens returns the set of lowercased words in text.
func Tokens(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard returns |A∩B| / |A∪B| for the word sets of a and b. Two empty
// texts are identical (1.0).
func Jaccard(a, b string) float64 {
	return jaccardSets(Tokens(a), Tokens(b))
}

func jaccardSets(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// RemoveNearDuplicates compares every pair of pages, which must belong to
// one seed, and returns the URLs of pages whose text is at least threshold
// similar to an earlier page. Pages are compared in slice order and every
// decision is taken against the full input, so a page marked for removal
// still takes part in later comparisons.
func RemoveNearDuplicates(pages []model.PageRef, threshold float64) []string {
	sets := make([]map[string]struct{}, len(pages))
	for i, p := range pages {
		sets[i] = Tokens(p.Text)
	}

	marked := make([]bool, len(pages))
	for i := range pages {
		for j := i + 1; j < len(pages); j++ {
			if marked[j] {
				continue
			}
			if jaccardSets(sets[i], sets[j]) >= threshold {
				marked[j] = true
			}
		}
	}

	var removed []string
	for i, m := range marked {
		if m {
			removed = append(removed, pages[i].URL)
		}
	}
	return removed
}
