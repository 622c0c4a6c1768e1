// Package relevance keeps the sentences of a page that are written in the
// target language and mention at least one keyword.
package relevance

import (
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/sitesift/internal/model"
)

// DropIrrelevant is the StageStats reason for pages with no kept sentence.
const DropIrrelevant = "irrelevant"

// FilterSentences splits text into sentences and returns, in order, those
// whose detected language is target and that contain one of the keywords
// as a case-insensitive substring. Sentences whose language cannot be
// detected count as fallback.
func FilterSentences(d Detector, text string, keywords model.KeywordMap, target, fallback string) []string {
	return filterSentences(d, text, keywords.Terms(), target, fallback)
}

func filterSentences(d Detector, text string, terms []string, target, fallback string) []string {
	var kept []string
	for _, sentence := range SplitSentences(text) {
		if !containsAny(strings.ToLower(sentence), terms) {
			continue
		}
		if DetectOrFallback(d, sentence, fallback) != target {
			continue
		}
		kept = append(kept, sentence)
	}
	return kept
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// Option configures a Filter.
type Option func(*Filter)

// WithDetector replaces the whatlanggo detector.
func WithDetector(d Detector) Option {
	return func(f *Filter) {
		if d != nil {
			f.detector = d
		}
	}
}

// WithStemmer stems the kept sentences.
func WithStemmer(s Stemmer) Option {
	return func(f *Filter) {
		f.stemmer = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Filter) {
		if l != nil {
			f.logger = l
		}
	}
}

// Filter is the relevance stage.
type Filter struct {
	terms    []string
	target   string
	fallback string
	detector Detector
	stemmer  Stemmer
	logger   *slog.Logger
}

// NewFilter creates a Filter for the target language. fallback is assumed
// when detection fails; it defaults to target.
func NewFilter(keywords model.KeywordMap, target, fallback string, opts ...Option) *Filter {
	if fallback == "" {
		fallback = target
	}
	f := &Filter{
		terms:    keywords.Terms(),
		target:   target,
		fallback: fallback,
		detector: WhatlangDetector{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Apply returns a copy of result where every page holds only its relevant
// sentences, space-joined (and stemmed when a stemmer is set). Pages with
// no relevant sentence and seeds left empty are removed. Language counts
// per page are recorded in the stats.
func (f *Filter) Apply(result *model.CrawlResult) (*model.CrawlResult, model.StageStats) {
	start := time.Now()
	stats := model.NewStageStats(model.StageFilter)
	stats.Input = result.Len()
	stats.Languages = make(map[string]int)

	out := model.NewCrawlResult()
	for _, p := range result.Pages() {
		if strings.TrimSpace(p.Text) == "" {
			stats.Drop(DropIrrelevant, 1)
			continue
		}
		stats.Languages[DetectOrFallback(f.detector, p.Text, f.fallback)]++

		kept := filterSentences(f.detector, p.Text, f.terms, f.target, f.fallback)
		if f.stemmer != nil {
			for i, s := range kept {
				kept[i] = StemText(f.stemmer, s)
			}
		}
		text := strings.TrimSpace(strings.Join(kept, " "))
		if text == "" {
			stats.Drop(DropIrrelevant, 1)
			continue
		}
		out.Set(p.Seed, p.URL, text)
	}

	stats.Output = out.Len()
	stats.Duration = time.Since(start)
	f.logger.Info("relevance filter finished",
		"input", stats.Input,
		"output", stats.Output,
		"irrelevant", stats.Dropped[DropIrrelevant],
		"languages", stats.Languages,
	)
	return out, stats
}
