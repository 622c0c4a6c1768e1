package main

import (
	"github.com/nao1215/sitesift/internal/config"
	"github.com/nao1215/sitesift/internal/database"
	"github.com/nao1215/sitesift/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewCleanCmd creates the clean command.
func NewCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Normalize crawled text and drop duplicate, short and error pages",
		Long: `Clean normalizes the text of every subpage and removes:
- boilerplate phrases such as cookie banners
- soft error pages ("page not found", "sivua ei löytynyt", ...)
- pages with fewer than --min-words words
- exact duplicates, across all seeds or per domain (--dedup-scope)
- near duplicates within a seed (Jaccard similarity >= --similarity)

Examples:
  # Clean a crawl result file
  sitesift clean -i crawl.json -o clean.json

  # Clean the pages archived by an earlier crawl
  sitesift clean --from-run 0193a5c4-... -o clean.json

  # Stricter near-duplicate detection, Markdown summary
  sitesift clean -i crawl.json -o clean.json --similarity 0.6 --report clean.md`,
		Args: cobra.NoArgs,
		RunE: runCleanCmd,
	}
	addInputFlags(cmd)
	addCleanFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}

// runCleanCmd executes the clean command.
func runCleanCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, args, (*config.Config).Validate)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context(), a.logger)
	defer cancel()

	input, err := a.readInput(ctx, cmd)
	if err != nil {
		return err
	}
	return a.executeStages(ctx, database.NewRunID(), nil, input, pipeline.NewCleanStep(a.newCleaner()))
}
