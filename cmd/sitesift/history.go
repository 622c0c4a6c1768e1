package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitesift/internal/config"
	"github.com/nao1215/sitesift/internal/model"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is how many runs history lists by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// It reads runs and pages recorded in the crawl archive.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect runs and pages recorded in the crawl archive",
		Long: `History lists the runs recorded in the crawl archive, newest first.

Every crawl stores the pages it fetched and every command records its run,
unless --no-db is given. The subcommands show a run, export the pages of a
crawl, print the latest text of a URL and compare two crawls.

Examples:
  # List the last 20 runs
  sitesift history

  # Show the summary of one run as Markdown
  sitesift history show 0193a5c4-... --markdown

  # Export the pages of a crawl as a result file
  sitesift history export 0193a5c4-... -o crawl.json

  # Print the latest archived text of a page
  sitesift history page https://www.example.fi/fi/palvelut

  # Compare what two crawls collected
  sitesift history compare 0193a5c4-... 0193b7e1-...`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Number of runs to list (0: all)")

	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryExportCmd())
	cmd.AddCommand(newHistoryPageCmd())
	cmd.AddCommand(NewCompareCmd())
	return cmd
}

// openArchive sets up the app and requires the crawl archive.
func openArchive(cmd *cobra.Command) (*app, error) {
	a, err := newApp(cmd, nil, (*config.Config).Validate)
	if err != nil {
		return nil, err
	}
	if a.db == nil {
		return nil, errors.New("the crawl archive is disabled (drop --no-db)")
	}
	return a, nil
}

// runHistoryCmd lists recorded runs.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	a, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	runs, err := a.db.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	return listRuns(a.out, runs)
}

// listRuns prints runs as a table.
func listRuns(w io.Writer, runs []*model.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found in the crawl archive.")
		fmt.Fprintln(w, "\nUse 'sitesift crawl' or 'sitesift run' to collect pages.")
		return nil
	}

	fmt.Fprintf(w, "Runs (%d):\n\n", len(runs))
	fmt.Fprintf(w, "  %-36s  %-19s  %-11s  %6s  %8s  %s\n", "ID", "Started", "Status", "Seeds", "Subpages", "Stages")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 110))
	for _, run := range runs {
		fmt.Fprintf(w, "  %-36s  %-19s  %-11s  %6d  %8d  %s\n",
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Status,
			run.SeedCount,
			run.PageCount,
			formatStages(run.Stages),
		)
	}
	fmt.Fprintln(w, "\nUse 'sitesift history show <id>' to see the details of a run.")
	return nil
}

// formatStages joins stage names, or "-" when none finished.
func formatStages(stages []model.Stage) string {
	if len(stages) == 0 {
		return "-"
	}
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = string(s)
	}
	return strings.Join(names, ",")
}

// getRun loads a run by ID and fails when it does not exist.
func (a *app) getRun(ctx context.Context, id string) (*model.Run, error) {
	run, err := a.db.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run not found: %s (use 'sitesift history' to list runs)", id)
	}
	return run, nil
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the summary of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.getRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.cfg.Verbose = true
			_, err = a.summaryWriter(a.out, nil, nil).Write(run)
			return err
		},
	}
	cmd.Flags().BoolP("markdown", "m", false, "Show the run as Markdown (mutually exclusive with --json)")
	cmd.Flags().BoolP("json", "j", false, "Show the run as JSON (mutually exclusive with --markdown)")
	cmd.MarkFlagsMutuallyExclusive("markdown", "json")
	return cmd
}

func newHistoryExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Write the pages archived by a run as a result file",
		Long: `Export rebuilds the crawl result of a run from the pages it archived.
Seeds whose pages all failed are kept with no subpage, as in the original
crawl output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.getRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			result, err := a.db.ResultForRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.writeResult(result)
		},
	}
	cmd.Flags().StringP("output", "o", "", "Write the result JSON to this file (default: stdout)")
	return cmd
}

func newHistoryPageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "page <url>",
		Short: "Print the latest archived text of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			url, err := model.NormalizeRawURL(args[0])
			if err != nil {
				return err
			}
			page, err := a.db.LatestPage(cmd.Context(), url)
			if err != nil {
				return err
			}
			if page == nil {
				return fmt.Errorf("no archived text for %s", url)
			}
			printPage(a.out, page)
			return nil
		},
	}
}

// printPage prints a page record with its metadata.
func printPage(w io.Writer, page *model.PageRecord) {
	fmt.Fprintf(w, "URL:        %s\n", page.URL)
	if page.Title != "" {
		fmt.Fprintf(w, "Title:      %s\n", page.Title)
	}
	fmt.Fprintf(w, "Seed:       %s\n", page.Seed)
	fmt.Fprintf(w, "Run:        %s\n", page.RunID)
	fmt.Fprintf(w, "Fetched:    %s\n", page.FetchedAt.Local().Format(time.DateTime))
	if page.StatusCode != 0 {
		fmt.Fprintf(w, "Status:     %d\n", page.StatusCode)
	}
	if page.Strategy != "" {
		fmt.Fprintf(w, "Strategy:   %s\n", page.Strategy)
	}
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintln(w, page.Text)
}
