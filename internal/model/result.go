package model

import (
	"encoding/json"
	"maps"
	"slices"
)

// CrawlResult maps seed URL → subpage URL → text.
//
// The same shape flows through crawl, clean, filter and translate. The
// persisted form is a JSON object of objects; encoding/json writes map keys in
// sorted order, so output files are stable across runs.
//
// A CrawlResult is not safe for concurrent use. Callers that write from
// several goroutines must serialize access.
type CrawlResult struct {
	pages map[string]map[string]string
}

// PageRef addresses one subpage of a CrawlResult together with its text.
type PageRef struct {
	Seed string
	URL  string
	Text string
}

// NewCrawlResult returns an empty result.
func NewCrawlResult() *CrawlResult {
	return &CrawlResult{pages: make(map[string]map[string]string)}
}

// Set stores text for url under seed, creating the seed entry if needed.
func (r *CrawlResult) Set(seed, url, text string) {
	r.init()
	sub, ok := r.pages[seed]
	if !ok {
		sub = make(map[string]string)
		r.pages[seed] = sub
	}
	sub[url] = text
}

// AddSeed makes sure seed has an entry, even if no subpage is recorded yet.
func (r *CrawlResult) AddSeed(seed string) {
	r.init()
	if _, ok := r.pages[seed]; !ok {
		r.pages[seed] = make(map[string]string)
	}
}

// Get returns the text stored for url under seed.
func (r *CrawlResult) Get(seed, url string) (string, bool) {
	if r == nil || r.pages == nil {
		return "", false
	}
	text, ok := r.pages[seed][url]
	return text, ok
}

// Has reports whether url is recorded under seed.
func (r *CrawlResult) Has(seed, url string) bool {
	_, ok := r.Get(seed, url)
	return ok
}

// Delete removes url from seed. The seed entry itself is kept.
func (r *CrawlResult) Delete(seed, url string) {
	if r == nil || r.pages == nil {
		return
	}
	delete(r.pages[seed], url)
}

// DeleteSeed removes seed and all of its subpages.
func (r *CrawlResult) DeleteSeed(seed string) {
	if r == nil || r.pages == nil {
		return
	}
	delete(r.pages, seed)
}

// Seeds returns the seed URLs in sorted order.
func (r *CrawlResult) Seeds() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.pages))
}

// Subpages returns the subpage URLs of seed in sorted order.
func (r *CrawlResult) Subpages(seed string) []string {
	if r == nil || r.pages == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.pages[seed]))
}

// Pages returns every subpage in a deterministic order: seeds sorted, then
// subpages sorted within a seed. Dedup stages use this order to decide which
// of two pages came first.
func (r *CrawlResult) Pages() []PageRef {
	var refs []PageRef
	for _, seed := range r.Seeds() {
		for _, u := range r.Subpages(seed) {
			refs = append(refs, PageRef{Seed: seed, URL: u, Text: r.pages[seed][u]})
		}
	}
	return refs
}

// Len returns the total number of subpages across all seeds.
func (r *CrawlResult) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, sub := range r.pages {
		n += len(sub)
	}
	return n
}

// SeedCount returns the number of seeds.
func (r *CrawlResult) SeedCount() int {
	if r == nil {
		return 0
	}
	return len(r.pages)
}

// Clone returns a deep copy. Stages clone their input so they never mutate
// the caller's value.
func (r *CrawlResult) Clone() *CrawlResult {
	c := NewCrawlResult()
	if r == nil {
		return c
	}
	for seed, sub := range r.pages {
		c.pages[seed] = maps.Clone(sub)
	}
	return c
}

// Merge copies every entry of other into r, overwriting existing subpages.
func (r *CrawlResult) Merge(other *CrawlResult) {
	if other == nil {
		return
	}
	r.init()
	for seed, sub := range other.pages {
		r.AddSeed(seed)
		maps.Copy(r.pages[seed], sub)
	}
}

// PruneEmpty removes subpages with empty text and then seeds that have no
// subpages left. It returns the number of subpages removed.
func (r *CrawlResult) PruneEmpty() int {
	if r == nil {
		return 0
	}
	removed := 0
	for seed, sub := range r.pages {
		for u, text := range sub {
			if text == "" {
				delete(sub, u)
				removed++
			}
		}
		if len(sub) == 0 {
			delete(r.pages, seed)
		}
	}
	return removed
}

// MarshalJSON writes the nested object form.
func (r *CrawlResult) MarshalJSON() ([]byte, error) {
	if r == nil || r.pages == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.pages)
}

// UnmarshalJSON reads the nested object form.
func (r *CrawlResult) UnmarshalJSON(data []byte) error {
	pages := make(map[string]map[string]string)
	if err := json.Unmarshal(data, &pages); err != nil {
		return err
	}
	for seed, sub := range pages {
		if sub == nil {
			pages[seed] = make(map[string]string)
		}
	}
	r.pages = pages
	return nil
}

func (r *CrawlResult) init() {
	if r.pages == nil {
		r.pages = make(map[string]map[string]string)
	}
}
