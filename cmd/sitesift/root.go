package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sitesift.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitesift",
		Short: "Crawl, clean, filter and translate company website text",
		Long: `sitesift collects the visible text of company websites for text analysis.

Starting from a list of seed homepages it discovers same-site subpages in the
target locale, extracts their text, removes duplicates, boilerplate and error
pages, keeps the sentences that are in the target language and mention a
keyword, and optionally translates the result.

Every stage reads and writes the same JSON shape: seed URL -> subpage URL -> text.
Stages can run one by one (crawl, clean, filter, translate) or together (run).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .sitesift in current or home directory)")
	cmd.PersistentFlags().String("env-file", ".env", "File with SITESIFT_* secrets")
	cmd.PersistentFlags().Bool("no-db", false, "Do not record pages and runs in the crawl archive")
	cmd.PersistentFlags().String("db-dir", "", "Crawl archive directory (default: XDG data directory)")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewCleanCmd())
	cmd.AddCommand(NewFilterCmd())
	cmd.AddCommand(NewTranslateCmd())
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
