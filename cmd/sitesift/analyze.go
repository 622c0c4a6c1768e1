package main

import (
	"errors"
	"io"

	"github.com/nao1215/sitesift/internal/config"
	"github.com/nao1215/sitesift/internal/report"
	"github.com/spf13/cobra"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Count keyword frequencies and co-occurrences in a result",
		Long: `Analyze counts, for every keyword, the subpages that mention it, sums the
counts per keyword group and lists the keyword pairs that appear together
most often with their correlation.

A keyword matches a subpage when all of its words occur in the text,
ignoring case and punctuation.

Examples:
  # Plain text analysis of a filtered result
  sitesift analyze -i filtered.json -k keywords.txt

  # Markdown report with Mermaid charts
  sitesift analyze -i filtered.json -k keywords.txt --report analysis.md

  # JSON, including keywords that matched nothing
  sitesift analyze -i filtered.json -k keywords.txt --json --show-empty`,
		Args: cobra.NoArgs,
		RunE: runAnalyzeCmd,
	}
	addInputFlags(cmd)
	addKeywordFlags(cmd)
	cmd.Flags().String("report", "", "Write the analysis to this file (default: stdout)")
	cmd.Flags().BoolP("markdown", "m", false, "Write Markdown (mutually exclusive with --json)")
	cmd.Flags().BoolP("json", "j", false, "Write JSON (mutually exclusive with --markdown)")
	cmd.MarkFlagsMutuallyExclusive("markdown", "json")
	cmd.Flags().Bool("show-empty", false, "Also list keywords that matched no subpage")
	cmd.Flags().Int("top", 20, "Number of co-occurring keyword pairs in Markdown output")
	return cmd
}

// runAnalyzeCmd executes the analyze command.
func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, args, (*config.Config).Validate)
	if err != nil {
		return err
	}
	defer a.Close()

	keywords, err := a.loadKeywords()
	if err != nil {
		return err
	}
	input, err := a.readInput(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	analysis := report.AnalyzeKeywords(input, keywords)
	a.logger.Info("keyword analysis done", "pages", analysis.Pages, "matched", analysis.MatchedPages)

	var (
		w       io.Writer = a.out
		closeFn           = func() error { return nil }
	)
	if a.cfg.ReportFile != "" {
		if w, closeFn, err = a.openReport(); err != nil {
			return err
		}
	}

	top, err := cmd.Flags().GetInt("top")
	if err != nil {
		return err
	}
	writer := a.summaryWriter(w,
		[]report.SimpleWriterOption{report.WithShowEmpty(flagBool(cmd, "show-empty"))},
		[]report.MarkdownWriterOption{report.WithTopPairs(top)},
	)
	_, werr := writer.WriteAnalysis(analysis)
	return errors.Join(werr, closeFn())
}
