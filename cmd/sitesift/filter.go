package main

import (
	"github.com/nao1215/sitesift/internal/config"
	"github.com/nao1215/sitesift/internal/database"
	"github.com/nao1215/sitesift/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewFilterCmd creates the filter command.
func NewFilterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Keep sentences in the target language that mention a keyword",
		Long: `Filter splits every subpage into sentences and keeps a sentence when it is
written in --target-lang and contains at least one keyword. Subpages left
without a sentence are dropped.

Keyword files hold one "Group keyword_with_underscores" entry per line;
underscores stand for spaces. Keywords can also be listed under
keywords.groups in the configuration file.

Examples:
  # Filter a cleaned result with a keyword file
  sitesift filter -i clean.json -k keywords.txt -o filtered.json

  # Keep English sentences and reduce them to word stems
  sitesift filter -i clean.json -k keywords.txt --target-lang en --stem`,
		Args: cobra.NoArgs,
		RunE: runFilterCmd,
	}
	addInputFlags(cmd)
	addFilterFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}

// runFilterCmd executes the filter command.
func runFilterCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, args, (*config.Config).Validate)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context(), a.logger)
	defer cancel()

	filter, err := a.newFilter()
	if err != nil {
		return err
	}
	input, err := a.readInput(ctx, cmd)
	if err != nil {
		return err
	}
	return a.executeStages(ctx, database.NewRunID(), nil, input, pipeline.NewFilterStep(filter))
}
