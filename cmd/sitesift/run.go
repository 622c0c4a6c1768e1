package main

import (
	"github.com/nao1215/sitesift/internal/config"
	"github.com/nao1215/sitesift/internal/database"
	"github.com/nao1215/sitesift/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [seed-url...]",
		Short: "Crawl, clean, filter and optionally translate in one go",
		Long: `Run executes the stages in order: crawl, clean, filter and, with
--translate, translate. Only the final result is written to --output; use
--crawl-output to also keep the raw crawl, which makes --resume possible.

An interrupted run still writes what the finished stages produced and is
recorded as interrupted in the crawl archive.

Examples:
  # Full pipeline with a keyword file
  sitesift run --seeds companies.csv -k keywords.txt -o result.json

  # Keep the raw crawl and resume it after an interruption
  sitesift run --seeds seeds.txt -k keywords.txt --crawl-output crawl.json --resume -o result.json

  # Crawl and clean only
  sitesift run --no-filter https://www.example.fi -o clean.json

  # Everything, translated to English with DeepL
  sitesift run --seeds seeds.txt -k keywords.txt --translate --backend deepl -o result.json`,
		Args: cobra.ArbitraryArgs,
		RunE: runRunCmd,
	}
	addCrawlFlags(cmd)
	addCleanFlags(cmd)
	addFilterFlags(cmd)
	addTranslateFlags(cmd)
	addOutputFlags(cmd)
	cmd.Flags().String("crawl-output", "", "Also keep the raw crawl result in this file")
	cmd.Flags().Bool("no-filter", false, "Skip the relevance filter")
	cmd.Flags().Bool("translate", false, "Translate the filtered result")
	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string) error {
	translate := flagBool(cmd, "translate")
	a, err := newApp(cmd, args, func(cfg *config.Config) error {
		if err := cfg.ValidateCrawl(); err != nil {
			return err
		}
		if translate {
			return cfg.ValidateTranslate()
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context(), a.logger)
	defer cancel()

	steps := make([]pipeline.Step, 0, 4)
	runID := database.NewRunID()

	crawl, releaseBrowser := a.newCrawlStep(runID)
	defer releaseBrowser()
	steps = append(steps, crawl, pipeline.NewCleanStep(a.newCleaner()))

	if !flagBool(cmd, "no-filter") {
		filter, err := a.newFilter()
		if err != nil {
			return err
		}
		steps = append(steps, pipeline.NewFilterStep(filter))
	}

	if translate {
		step, releaseCheckpoint, err := a.newTranslateStep()
		if err != nil {
			return err
		}
		defer releaseCheckpoint()
		steps = append(steps, step)
	}

	seeds, err := a.loadSeeds(ctx)
	if err != nil {
		return err
	}
	existing, err := a.resumeInput()
	if err != nil {
		return err
	}
	return a.executeStages(ctx, runID, seeds, existing, steps...)
}
