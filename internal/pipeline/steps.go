package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/sitesift/internal/crawler"
	"github.com/nao1215/sitesift/internal/model"
	"github.com/nao1215/sitesift/internal/translate"
)

// Drop reason recorded by the crawl step.
const (
	DropFetchFailed = "fetch_failed"
	DropRobots      = "robots_disallowed"
)

// CrawlStep fetches every seed with a Spider, several seeds at a time when
// concurrency is above one. Subpages already in the state keep their text;
// only the pages their seeds are still missing are fetched.
type CrawlStep struct {
	spider      *crawler.Spider
	concurrency int
	onSeedDone  func(seed model.Seed, result *model.CrawlResult)
	logger      *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlConcurrency sets how many seeds are crawled at once.
func WithCrawlConcurrency(n int) CrawlStepOption {
	return func(s *CrawlStep) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithCrawlProgress calls fn with the merged result after each seed.
func WithCrawlProgress(fn func(seed model.Seed, result *model.CrawlResult)) CrawlStepOption {
	return func(s *CrawlStep) {
		s.onSeedDone = fn
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step around spider.
func NewCrawlStep(spider *crawler.Spider, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		spider:      spider,
		concurrency: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return string(model.StageCrawl)
}

// Do executes the crawl step.
func (s *CrawlStep) Do(ctx context.Context, st *State) error {
	start := time.Now()
	stats := model.NewStageStats(model.StageCrawl)
	stats.Input = len(st.Seeds)
	s.spider.Reset()

	batch := NewBatchProcessor(
		func(ctx context.Context, seed model.Seed, existing *model.CrawlResult) (*model.CrawlResult, error) {
			return s.spider.Crawl(ctx, []model.Seed{seed}, existing)
		},
		WithConcurrency(s.concurrency),
		WithSeedDone(s.onSeedDone),
		WithBatchLogger(s.logger),
	)
	result, err := batch.ProcessBatch(ctx, st.Seeds, st.Result)
	if result != nil {
		st.Result = result
	}

	spiderStats := s.spider.Stats()
	stats.Output = st.Result.Len()
	stats.Drop(DropFetchFailed, spiderStats.PagesFailed)
	stats.Drop(DropRobots, spiderStats.PagesSkipped)
	stats.Duration = time.Since(start)
	st.AddStats(stats)

	if errors.Is(spiderStats.Err(), crawler.ErrBudgetExhausted) {
		s.logger.Warn("crawl stopped early", "reason", crawler.ErrBudgetExhausted)
	}
	s.logger.Info("crawl finished",
		"seeds", st.Result.SeedCount(),
		"pages", st.Result.Len(),
		"fetched", spiderStats.PagesFetched,
		"failed", spiderStats.PagesFailed,
	)
	return err
}

// Cleaner is the clean stage.
type Cleaner interface {
	Clean(result *model.CrawlResult) (*model.CrawlResult, model.StageStats)
}

// CleanStep normalizes and deduplicates the result.
type CleanStep struct {
	cleaner Cleaner
}

// NewCleanStep creates a clean step.
func NewCleanStep(c Cleaner) *CleanStep {
	return &CleanStep{cleaner: c}
}

// Name returns the step name.
func (s *CleanStep) Name() string {
	return string(model.StageClean)
}

// Do executes the clean step.
func (s *CleanStep) Do(_ context.Context, st *State) error {
	out, stats := s.cleaner.Clean(st.Result)
	st.Result = out
	st.AddStats(stats)
	return nil
}

// Filter is the relevance stage.
type Filter interface {
	Apply(result *model.CrawlResult) (*model.CrawlResult, model.StageStats)
}

// FilterStep keeps the relevant sentences of every page.
type FilterStep struct {
	filter Filter
}

// NewFilterStep creates a filter step.
func NewFilterStep(f Filter) *FilterStep {
	return &FilterStep{filter: f}
}

// Name returns the step name.
func (s *FilterStep) Name() string {
	return string(model.StageFilter)
}

// Do executes the filter step.
func (s *FilterStep) Do(_ context.Context, st *State) error {
	out, stats := s.filter.Apply(st.Result)
	st.Result = out
	st.AddStats(stats)
	return nil
}

// TranslateStep translates the result through a checkpointed Translator.
type TranslateStep struct {
	translator *translate.Translator
}

// NewTranslateStep creates a translate step.
func NewTranslateStep(t *translate.Translator) *TranslateStep {
	return &TranslateStep{translator: t}
}

// Name returns the step name.
func (s *TranslateStep) Name() string {
	return string(model.StageTranslate)
}

// Do executes the translate step. On failure the state keeps whatever was
// translated and checkpointed.
func (s *TranslateStep) Do(ctx context.Context, st *State) error {
	start := time.Now()
	stats := model.NewStageStats(model.StageTranslate)
	stats.Input = st.Result.Len()

	out, err := s.translator.Run(ctx, st.Result)
	if out != nil {
		st.Result = out
	}
	stats.Output = st.Result.Len()
	if left := stats.Input - stats.Output; left > 0 && err != nil {
		stats.Drop("untranslated", left)
	}
	stats.Duration = time.Since(start)
	st.AddStats(stats)
	return err
}
