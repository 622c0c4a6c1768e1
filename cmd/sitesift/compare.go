package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/sitesift/internal/database"
	"github.com/nao1215/sitesift/internal/model"
	"github.com/spf13/cobra"
)

// NewCompareCmd creates the compare command.
// It compares the pages two crawls archived.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <previous-run-id> <current-run-id>",
		Short: "Compare the pages collected by two crawls",
		Long: `Compare shows how two crawls recorded in the crawl archive differ:
- Subpages found only by the current crawl
- Subpages the current crawl no longer found
- Subpages whose text changed
- Per-stage page counts of both runs

Examples:
  # Compare two crawls
  sitesift history compare 0193a5c4-... 0193b7e1-...

  # Output the comparison as JSON
  sitesift history compare --json 0193a5c4-... 0193b7e1-...`,
		Args: cobra.ExactArgs(2),
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.MarkFlagsMutuallyExclusive("markdown", "json")

	return cmd
}

// RunSummary is the part of a run shown in a comparison.
type RunSummary struct {
	ID        string          `json:"id"`
	StartedAt time.Time       `json:"started_at"`
	Status    model.RunStatus `json:"status"`
	Seeds     int             `json:"seeds"`
	Pages     int             `json:"pages"`
	Failed    int             `json:"failed"`
}

// StageDelta compares the output of one stage in two runs.
type StageDelta struct {
	Stage    model.Stage `json:"stage"`
	Previous int         `json:"previous"`
	Current  int         `json:"current"`
}

// ComparisonResult holds the differences between two crawls.
type ComparisonResult struct {
	Previous       RunSummary   `json:"previous"`
	Current        RunSummary   `json:"current"`
	Stages         []StageDelta `json:"stages,omitempty"`
	NewPages       []string     `json:"new_pages"`
	RemovedPages   []string     `json:"removed_pages"`
	ChangedPages   []string     `json:"changed_pages"`
	UnchangedCount int          `json:"unchanged_count"`
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	a, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := runComparison(cmd.Context(), a.db, args[0], args[1])
	if err != nil {
		return err
	}

	switch {
	case flagBool(cmd, "json"):
		return outputComparisonJSON(a.out, result)
	case flagBool(cmd, "markdown"):
		return outputComparisonMarkdown(a.out, result)
	default:
		return outputComparisonText(a.out, result)
	}
}

// archivedRun is a run with its pages keyed by URL.
type archivedRun struct {
	run   *model.Run
	pages map[string]*model.PageRecord
}

func loadArchivedRun(ctx context.Context, db *database.CrawlDB, id string) (*archivedRun, error) {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run not found: %s (use 'sitesift history' to list runs)", id)
	}
	pages, err := db.ListPages(ctx, id)
	if err != nil {
		return nil, err
	}
	ar := &archivedRun{run: run, pages: make(map[string]*model.PageRecord, len(pages))}
	for _, p := range pages {
		ar.pages[p.URL] = p
	}
	return ar, nil
}

// runComparison loads both runs and compares them.
func runComparison(ctx context.Context, db *database.CrawlDB, previousID, currentID string) (*ComparisonResult, error) {
	previous, err := loadArchivedRun(ctx, db, previousID)
	if err != nil {
		return nil, err
	}
	current, err := loadArchivedRun(ctx, db, currentID)
	if err != nil {
		return nil, err
	}
	return compareRuns(previous, current), nil
}

// compareRuns diffs the successful pages of two runs by URL and text hash.
// Pages that failed in a run count as absent from it.
func compareRuns(previous, current *archivedRun) *ComparisonResult {
	result := &ComparisonResult{
		Previous:     summarizeRun(previous),
		Current:      summarizeRun(current),
		Stages:       stageDeltas(previous.run, current.run),
		NewPages:     []string{},
		RemovedPages: []string{},
		ChangedPages: []string{},
	}

	for url, cur := range current.pages {
		if cur.Failed() {
			continue
		}
		prev, ok := previous.pages[url]
		switch {
		case !ok || prev.Failed():
			result.NewPages = append(result.NewPages, url)
		case prev.Hash != cur.Hash:
			result.ChangedPages = append(result.ChangedPages, url)
		default:
			result.UnchangedCount++
		}
	}
	for url, prev := range previous.pages {
		if prev.Failed() {
			continue
		}
		if cur, ok := current.pages[url]; !ok || cur.Failed() {
			result.RemovedPages = append(result.RemovedPages, url)
		}
	}

	slices.Sort(result.NewPages)
	slices.Sort(result.RemovedPages)
	slices.Sort(result.ChangedPages)
	return result
}

func summarizeRun(ar *archivedRun) RunSummary {
	s := RunSummary{
		ID:        ar.run.ID,
		StartedAt: ar.run.StartedAt,
		Status:    ar.run.Status,
	}
	seeds := make(map[string]struct{})
	for _, p := range ar.pages {
		seeds[p.Seed] = struct{}{}
		if p.Failed() {
			s.Failed++
		} else {
			s.Pages++
		}
	}
	s.Seeds = len(seeds)
	return s
}

// stageDeltas pairs the output counts of stages present in either run, in
// pipeline order.
func stageDeltas(previous, current *model.Run) []StageDelta {
	order := []model.Stage{model.StageCrawl, model.StageClean, model.StageFilter, model.StageTranslate}
	output := func(run *model.Run, stage model.Stage) (int, bool) {
		for _, s := range run.Stats {
			if s.Stage == stage {
				return s.Output, true
			}
		}
		return 0, false
	}

	var deltas []StageDelta
	for _, stage := range order {
		prev, okPrev := output(previous, stage)
		cur, okCur := output(current, stage)
		if okPrev || okCur {
			deltas = append(deltas, StageDelta{Stage: stage, Previous: prev, Current: cur})
		}
	}
	return deltas
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(w io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(w io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(w)

	md.H1("Crawl Comparison")
	md.PlainText("")

	rows := [][]string{
		{"Run", "`" + result.Previous.ID + "`", "`" + result.Current.ID + "`", "-"},
		{"Started", result.Previous.StartedAt.Format("2006-01-02 15:04"), result.Current.StartedAt.Format("2006-01-02 15:04"), "-"},
		{"Seeds", strconv.Itoa(result.Previous.Seeds), strconv.Itoa(result.Current.Seeds), formatDelta(result.Current.Seeds - result.Previous.Seeds)},
		{"Subpages", strconv.Itoa(result.Previous.Pages), strconv.Itoa(result.Current.Pages), formatDelta(result.Current.Pages - result.Previous.Pages)},
		{"Failed fetches", strconv.Itoa(result.Previous.Failed), strconv.Itoa(result.Current.Failed), formatDelta(result.Current.Failed - result.Previous.Failed)},
	}
	for _, s := range result.Stages {
		rows = append(rows, []string{"Output of " + string(s.Stage), strconv.Itoa(s.Previous), strconv.Itoa(s.Current), formatDelta(s.Current - s.Previous)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows:   rows,
	})
	md.PlainText("")

	writeURLSection := func(title string, urls []string) {
		if len(urls) == 0 {
			return
		}
		md.H2(fmt.Sprintf("%s (%d)", title, len(urls)))
		md.PlainText("")
		md.BulletList(urls...)
		md.PlainText("")
	}
	writeURLSection("New Subpages", result.NewPages)
	writeURLSection("Removed Subpages", result.RemovedPages)
	writeURLSection("Changed Subpages", result.ChangedPages)

	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d subpages unchanged*", result.UnchangedCount)
	}
	return md.Build()
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(w io.Writer, result *ComparisonResult) error {
	fmt.Fprintln(w, "Crawl Comparison")
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintf(w, "\nPrevious run: %s (%s)\n", result.Previous.ID, result.Previous.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Current run:  %s (%s)\n", result.Current.ID, result.Current.StartedAt.Format("2006-01-02 15:04:05"))

	fmt.Fprintln(w, "\nSummary:")
	fmt.Fprintf(w, "  %-18s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 53))
	row := func(name string, prev, cur int) {
		fmt.Fprintf(w, "  %-18s  %-10d  %-10d  %-10s\n", name, prev, cur, formatDelta(cur-prev))
	}
	row("Seeds", result.Previous.Seeds, result.Current.Seeds)
	row("Subpages", result.Previous.Pages, result.Current.Pages)
	row("Failed fetches", result.Previous.Failed, result.Current.Failed)
	for _, s := range result.Stages {
		row(string(s.Stage)+" output", s.Previous, s.Current)
	}

	if len(result.NewPages) > 0 {
		fmt.Fprintf(w, "\nNew Subpages (%d):\n", len(result.NewPages))
		for _, u := range result.NewPages {
			fmt.Fprintf(w, "  [+] %s\n", u)
		}
	}
	if len(result.RemovedPages) > 0 {
		fmt.Fprintf(w, "\nRemoved Subpages (%d):\n", len(result.RemovedPages))
		for _, u := range result.RemovedPages {
			fmt.Fprintf(w, "  [-] %s\n", u)
		}
	}
	if len(result.ChangedPages) > 0 {
		fmt.Fprintf(w, "\nChanged Subpages (%d):\n", len(result.ChangedPages))
		for _, u := range result.ChangedPages {
			fmt.Fprintf(w, "  [~] %s\n", u)
		}
	}
	if result.UnchangedCount > 0 {
		fmt.Fprintf(w, "\nUnchanged: %d subpages\n", result.UnchangedCount)
	}
	return nil
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	} else if delta < 0 {
		return strconv.Itoa(delta)
	}
	return "0"
}
