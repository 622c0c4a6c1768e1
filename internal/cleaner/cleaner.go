// Package cleaner normalizes crawled text and removes pages that carry no
// usable content: soft error pages, near-empty pages and duplicates.
package cleaner

import (
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/sitesift/internal/model"
)

// Drop reasons recorded in StageStats.
const (
	DropEmpty         = "empty"
	DropShort         = "short"
	DropErrorPage     = "error_page"
	DropExactDup      = "exact_duplicate"
	DropNearDuplicate = "near_duplicate"
)

// Options configures a Cleaner.
type Options struct {
	// Threshold is the Jaccard similarity at or above which a later page of
	// the same seed is a near duplicate.
	Threshold float64

	// Scope is the reach of exact-duplicate detection.
	Scope Scope

	// MinWords drops pages with fewer words after normalization.
	MinWords int

	// ErrorPhrases mark soft error pages. A page is dropped when its
	// normalized text contains one of them, ignoring case.
	ErrorPhrases []string

	// Boilerplate phrases are removed from every page.
	Boilerplate []string
}

// Cleaner runs normalization, filtering and deduplication over a crawl
// result.
type Cleaner struct {
	opts       Options
	normalizer *Normalizer
	errorPages []string
	logger     *slog.Logger
}

// New creates a Cleaner.
func New(opts Options, logger *slog.Logger) *Cleaner {
	if opts.Scope == "" {
		opts.Scope = ScopeGlobal
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Cleaner{
		opts:       opts,
		normalizer: NewNormalizer(opts.Boilerplate),
		logger:     logger,
	}
	for _, phrase := range opts.ErrorPhrases {
		if phrase = strings.ToLower(strings.Join(strings.Fields(phrase), " ")); phrase != "" {
			c.errorPages = append(c.errorPages, phrase)
		}
	}
	return c
}

// Clean returns a cleaned copy of result. The input is not modified.
// Pages are normalized, filtered by length and error phrases, then exact
// and near duplicates are removed. Empty subpages and seeds left without
// subpages are pruned last.
func (c *Cleaner) Clean(result *model.CrawlResult) (*model.CrawlResult, model.StageStats) {
	start := time.Now()
	stats := model.NewStageStats(model.StageClean)
	stats.Input = result.Len()

	out := model.NewCrawlResult()
	for _, p := range result.Pages() {
		out.AddSeed(p.Seed)
		text := c.normalizer.Normalize(p.Text)
		switch {
		case text == "":
			stats.Drop(DropEmpty, 1)
			continue
		case wordCount(text) < c.opts.MinWords:
			stats.Drop(DropShort, 1)
			continue
		case containsAny(strings.ToLower(text), c.errorPages):
			stats.Drop(DropErrorPage, 1)
			c.logger.Debug("dropping error page", "url", p.URL)
			continue
		}
		out.Set(p.Seed, p.URL, text)
	}

	stats.Drop(DropExactDup, RemoveExactDuplicates(out, c.opts.Scope))
	stats.Drop(DropNearDuplicate, RemoveNearDuplicatesIn(out, c.opts.Threshold))
	out.PruneEmpty()

	stats.Output = out.Len()
	stats.Duration = time.Since(start)
	c.logger.Info("clean finished",
		"input", stats.Input,
		"output", stats.Output,
		"short", stats.Dropped[DropShort],
		"error_pages", stats.Dropped[DropErrorPage],
		"exact_duplicates", stats.Dropped[DropExactDup],
		"near_duplicates", stats.Dropped[DropNearDuplicate],
	)
	return out, stats
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// containsAny reports whether text contains any of the substrings.
func containsAny(text string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(text, sub) {
			return true
		}
	}
	return false
}
