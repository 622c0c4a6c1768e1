package main

import (
	"fmt"

	"github.com/nao1215/sitesift/internal/checkpoint"
	"github.com/nao1215/sitesift/internal/config"
	"github.com/nao1215/sitesift/internal/database"
	"github.com/nao1215/sitesift/internal/model"
	"github.com/nao1215/sitesift/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Collect the visible text of seed sites and their subpages",
		Long: `Crawl fetches every seed homepage, discovers same-site subpages in the
target locale and records their visible text.

Subpages belong to the seed they were found from. Pages that cannot be
fetched are recorded with an empty text so they are not retried on resume.

Examples:
  # Crawl two sites, writing the result to stdout
  sitesift crawl https://www.example.fi https://www.example.com/fi

  # Crawl the URL column of a CSV file and keep a resumable result file
  sitesift crawl --seeds companies.csv --seed-column Website -o crawl.json --resume

  # Render JavaScript-heavy sites with headless Chrome
  sitesift crawl --strategy browser https://app.example.fi

  # Stop after 30 minutes and keep what was fetched
  sitesift crawl --seeds seeds.txt --max-duration 30m -o crawl.json`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}
	addCrawlFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, args, func(cfg *config.Config) error {
		cfg.CrawlOutputPath = cfg.OutputPath
		return cfg.ValidateCrawl()
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context(), a.logger)
	defer cancel()

	seeds, err := a.loadSeeds(ctx)
	if err != nil {
		return err
	}
	existing, err := a.resumeInput()
	if err != nil {
		return err
	}

	runID := database.NewRunID()
	step, release := a.newCrawlStep(runID)
	defer release()

	return a.executeStages(ctx, runID, seeds, existing, step)
}

// resumeInput returns the partial crawl result to continue from, or nil
// when --resume is not set.
func (a *app) resumeInput() (*model.CrawlResult, error) {
	if !a.cfg.Resume {
		return nil, nil
	}
	existing, err := checkpoint.Read(a.cfg.CrawlOutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read crawl output for resume: %w", err)
	}
	if existing.SeedCount() > 0 {
		a.logger.Info("resuming crawl", "path", a.cfg.CrawlOutputPath,
			"seeds", existing.SeedCount(), "pages", existing.Len())
	}
	return existing, nil
}

// newCrawlStep builds the crawl step. When a crawl output file is set, the
// merged result is flushed to it after every seed so an interrupted crawl
// can be resumed.
func (a *app) newCrawlStep(runID string) (*pipeline.CrawlStep, func()) {
	spider, release := a.newSpider(runID)

	opts := []pipeline.CrawlStepOption{
		pipeline.WithCrawlConcurrency(a.cfg.Workers),
		pipeline.WithCrawlLogger(a.logger),
	}
	if path := a.cfg.CrawlOutputPath; path != "" {
		if err := ensureDir(path); err != nil {
			a.logger.Warn("crawl progress will not be saved", "error", err)
		}
		opts = append(opts, pipeline.WithCrawlProgress(func(seed model.Seed, result *model.CrawlResult) {
			if err := checkpoint.WriteAtomic(path, result); err != nil {
				a.logger.Warn("failed to save crawl progress", "seed", seed.URL, "error", err)
				return
			}
			a.logger.Debug("crawl progress saved", "seed", seed.URL, "pages", result.Len())
		}))
	}
	return pipeline.NewCrawlStep(spider, opts...), release
}
