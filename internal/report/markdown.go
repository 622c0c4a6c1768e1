package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitesift/internal/model"
)

// defaultTopPairs is how many co-occurring keyword pairs a Markdown
// analysis lists.
const defaultTopPairs = 20

// MarkdownWriter outputs runs and keyword analyses as Markdown, with Mermaid
// pie charts for drop reasons and keyword groups.
type MarkdownWriter struct {
	baseWriter

	topPairs int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithTopPairs sets how many co-occurring keyword pairs are listed.
func WithTopPairs(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		if n > 0 {
			w.topPairs = n
		}
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		topPairs:   defaultTopPairs,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Sitesift Run Report")
	md.PlainText("")
	w.writeRunInfo(md, run)
	w.writeRunAlert(md, run)
	w.writeStages(md, run)
	w.writeDrops(md, run)
	w.writeLanguages(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeRunInfo(md *markdown.Markdown, run *model.Run) {
	stages := make([]string, 0, len(run.Stages))
	for _, s := range run.Stages {
		stages = append(stages, string(s))
	}
	rows := [][]string{
		{"Run ID", "`" + run.ID + "`"},
		{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Stages", strings.Join(stages, " → ")},
		{"Seeds", strconv.Itoa(run.SeedCount)},
		{"Subpages", strconv.Itoa(run.PageCount)},
		{"Status", markdownStatus(run)},
	}
	if d := run.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.Round(time.Second).String()})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func markdownStatus(run *model.Run) string {
	switch run.Status {
	case model.RunCompleted:
		return "✅ Complete"
	case model.RunInterrupted:
		return "⚠️ Interrupted (partial results)"
	case model.RunFailed:
		return "❌ Failed"
	default:
		return string(run.Status)
	}
}

func (w *MarkdownWriter) writeRunAlert(md *markdown.Markdown, run *model.Run) {
	switch {
	case run.Status == model.RunFailed && run.Error != "":
		md.Cautionf("The run failed: %s", escapeCell(run.Error))
	case run.Status == model.RunFailed:
		md.Caution("The run failed.")
	case run.Status == model.RunInterrupted:
		md.Warning("The run was interrupted. Completed subpages were saved and the run can be resumed.")
	case run.PageCount == 0:
		md.Important("The run finished without any subpage left.")
	default:
		md.Tipf("%d subpages from %d seeds are ready.", run.PageCount, run.SeedCount)
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeStages(md *markdown.Markdown, run *model.Run) {
	md.H2("Stages")
	md.PlainText("")

	if len(run.Stats) == 0 {
		md.PlainText("No stage finished.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(run.Stats))
	for _, s := range run.Stats {
		rows = append(rows, []string{
			string(s.Stage),
			strconv.Itoa(s.Input),
			strconv.Itoa(s.Output),
			strconv.Itoa(s.TotalDropped()),
			s.Duration.Round(time.Millisecond).String(),
		})
	}
	md.Table(markdown.TableSet{
		Header:    []string{"Stage", "In", "Out", "Dropped", "Duration"},
		Rows:      rows,
		Alignment: []markdown.TableAlignment{markdown.AlignLeft, markdown.AlignRight, markdown.AlignRight, markdown.AlignRight, markdown.AlignRight},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeDrops(md *markdown.Markdown, run *model.Run) {
	totals := make(map[string]int)
	var rows [][]string
	for _, s := range run.Stats {
		for _, reason := range slices.Sorted(maps.Keys(s.Dropped)) {
			n := s.Dropped[reason]
			totals[reason] += n
			rows = append(rows, []string{string(s.Stage), reason, strconv.Itoa(n)})
		}
	}
	if len(rows) == 0 {
		return
	}

	md.H2("Dropped Subpages")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Stage", "Reason", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Drop Reasons"),
		piechart.WithShowData(true),
	)
	for _, reason := range slices.Sorted(maps.Keys(totals)) {
		chart.LabelAndIntValue(reason, uint64(totals[reason])) //nolint:gosec // counts are never negative
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeLanguages(md *markdown.Markdown, run *model.Run) {
	langs := make(map[string]int)
	for _, s := range run.Stats {
		for lang, n := range s.Languages {
			langs[lang] += n
		}
	}
	if len(langs) == 0 {
		return
	}

	md.H2("Detected Languages")
	md.PlainText("")
	keys := slices.Sorted(maps.Keys(langs))
	slices.SortStableFunc(keys, func(a, b string) int { return langs[b] - langs[a] })
	rows := make([][]string, 0, len(keys))
	for _, lang := range keys {
		rows = append(rows, []string{lang, strconv.Itoa(langs[lang])})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Language", "Sentences"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteAnalysis outputs the keyword analysis in Markdown format.
func (w *MarkdownWriter) WriteAnalysis(a *KeywordAnalysis) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Keyword Analysis")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Subpages analyzed", strconv.Itoa(a.Pages)},
			{"Subpages with keywords", strconv.Itoa(a.MatchedPages)},
			{"Keywords", strconv.Itoa(len(a.Terms))},
			{"Groups", strconv.Itoa(len(a.Groups))},
		},
	})
	md.PlainText("")

	if a.MatchedPages == 0 {
		md.Note("No keyword was found in any subpage.")
		md.PlainText("")
	}

	w.writeGroups(md, a)
	w.writeKeywords(md, a)
	w.writePairs(md, a)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeGroups(md *markdown.Markdown, a *KeywordAnalysis) {
	md.H2("Keyword Groups")
	md.PlainText("")

	rows := make([][]string, 0, len(a.Groups))
	hits := false
	for _, g := range a.Groups {
		rows = append(rows, []string{escapeCell(g.Group), strconv.Itoa(g.Terms), strconv.Itoa(g.Frequency)})
		hits = hits || g.Frequency > 0
	}
	md.Table(markdown.TableSet{
		Header: []string{"Group", "Keywords", "Frequency"},
		Rows:   rows,
	})
	md.PlainText("")

	if !hits {
		return
	}
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Frequency of Keywords by Group"),
		piechart.WithShowData(true),
	)
	for _, g := range a.Groups {
		if g.Frequency > 0 {
			chart.LabelAndIntValue(g.Group, uint64(g.Frequency)) //nolint:gosec // counts are never negative
		}
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeKeywords(md *markdown.Markdown, a *KeywordAnalysis) {
	md.H2("Keywords")
	md.PlainText("")

	var rows [][]string
	for _, term := range a.Terms {
		if n := a.TermCount(term); n > 0 {
			rows = append(rows, []string{escapeCell(term), escapeCell(a.TermGroups[term]), strconv.Itoa(n)})
		}
	}
	if len(rows) == 0 {
		md.PlainText("No keyword matched.")
		md.PlainText("")
		return
	}
	md.Table(markdown.TableSet{
		Header: []string{"Keyword", "Group", "Subpages"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writePairs(md *markdown.Markdown, a *KeywordAnalysis) {
	pairs := a.TopPairs(w.topPairs)
	if len(pairs) == 0 {
		return
	}

	md.H2("Co-occurring Keywords")
	md.PlainText("")
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{
			escapeCell(p.A),
			escapeCell(p.B),
			strconv.Itoa(p.Count),
			fmt.Sprintf("%.2f", p.Correlation),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Keyword", "Keyword", "Subpages", "Correlation"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [sitesift](https://github.com/nao1215/sitesift)*")
}

// escapeCell keeps a value on one table row.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
