package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitesift/internal/model"
)

// CrawlFunc crawls one seed. existing holds the subpages already known
// for that seed and may be empty.
type CrawlFunc func(ctx context.Context, seed model.Seed, existing *model.CrawlResult) (*model.CrawlResult, error)

// BatchProcessor crawls seeds concurrently and merges their results. Each
// seed is its own unit: one seed failing to fetch never cancels another.
type BatchProcessor struct {
	crawl       CrawlFunc
	concurrency int
	onSeedDone  func(seed model.Seed, result *model.CrawlResult)
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of seeds crawled at once.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithSeedDone calls fn with the merged result after each seed finishes.
// Calls are serialized.
func WithSeedDone(fn func(seed model.Seed, result *model.CrawlResult)) BatchOption {
	return func(b *BatchProcessor) {
		b.onSeedDone = fn
	}
}

// NewBatchProcessor creates a BatchProcessor around crawl.
func NewBatchProcessor(crawl CrawlFunc, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		crawl:       crawl,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch crawls every seed and merges the per-seed results into a
// copy of existing. The merged result is returned even when an error ends
// the batch: a cancelled context or a crawl error such as a failing
// archive.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []model.Seed, existing *model.CrawlResult) (*model.CrawlResult, error) {
	bp.logger.Info("starting batch crawl",
		"total_seeds", len(seeds),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	merged := model.NewCrawlResult()
	if existing != nil {
		merged = existing.Clone()
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		if gctx.Err() != nil {
			break
		}
		mu.Lock()
		prior := seedSlice(merged, seed.URL)
		mu.Unlock()

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bp.logger.Debug("crawling seed", "seed", seed.URL, "index", i+1, "total", len(seeds))

			result, err := bp.crawl(gctx, seed, prior)

			mu.Lock()
			if result != nil {
				merged.Merge(result)
			}
			if bp.onSeedDone != nil {
				bp.onSeedDone(seed, merged)
			}
			mu.Unlock()

			if err != nil {
				bp.logger.Warn("seed crawl stopped", "seed", seed.URL, "error", err)
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	bp.logger.Info("batch crawl complete",
		"total_seeds", len(seeds),
		"pages", merged.Len(),
		"elapsed", time.Since(startTime),
	)
	return merged, err
}

// seedSlice returns the part of result that belongs to seed.
func seedSlice(result *model.CrawlResult, seed string) *model.CrawlResult {
	out := model.NewCrawlResult()
	for _, u := range result.Subpages(seed) {
		text, _ := result.Get(seed, u)
		out.Set(seed, u, text)
	}
	return out
}
