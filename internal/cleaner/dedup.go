package cleaner

import (
	"crypto/sha256"

	"github.com/nao1215/sitesift/internal/model"
)

// Scope selects how far exact-duplicate detection reaches.
type Scope string

const (
	// ScopeGlobal drops a text seen anywhere earlier in the result.
	ScopeGlobal Scope = "global"
	// ScopeDomain drops a text only when it repeats within one seed.
	ScopeDomain Scope = "domain"
)

// RemoveExactDuplicates deletes every page whose text hashes to the same
// SHA-256 as an earlier page and returns how many it deleted. Pages are
// visited in result.Pages() order, so the survivor is deterministic.
// Empty texts are left alone.
func RemoveExactDuplicates(result *model.CrawlResult, scope Scope) int {
	type key struct {
		seed string
		sum  [sha256.Size]byte
	}
	seen := make(map[key]struct{})
	removed := 0
	for _, p := range result.Pages() {
		if p.Text == "" {
			continue
		}
		k := key{sum: sha256.Sum256([]byte(p.Text))}
		if scope == ScopeDomain {
			k.seed = p.Seed
		}
		if _, dup := seen[k]; dup {
			result.Delete(p.Seed, p.URL)
			removed++
			continue
		}
		seen[k] = struct{}{}
	}
	return removed
}

// RemoveNearDuplicatesIn runs RemoveNearDuplicates for every seed of
// result, deleting the marked pages, and returns how many it deleted.
func RemoveNearDuplicatesIn(result *model.CrawlResult, threshold float64) int {
	removed := 0
	for _, seed := range result.Seeds() {
		urls := result.Subpages(seed)
		pages := make([]model.PageRef, 0, len(urls))
		for _, u := range urls {
			text, _ := result.Get(seed, u)
			pages = append(pages, model.PageRef{Seed: seed, URL: u, Text: text})
		}
		for _, u := range RemoveNearDuplicates(pages, threshold) {
			result.Delete(seed, u)
			removed++
		}
	}
	return removed
}
