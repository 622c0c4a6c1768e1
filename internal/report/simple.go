package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/sitesift/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs plain text summaries for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty lists keywords that matched no page.
	showEmpty bool

	// verbose adds stage durations, detected languages and per-page
	// keyword matches.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty lists keywords that matched no page.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary in human-readable format.
func (w *SimpleWriter) Write(run *model.Run) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "SITESIFT RUN")
	fmt.Fprintf(&sb, "Run ID:     %s\n", run.ID)
	fmt.Fprintf(&sb, "Started:    %s\n", run.StartedAt.Format(time.DateTime))
	if d := run.Duration(); d > 0 {
		fmt.Fprintf(&sb, "Duration:   %s\n", d.Round(time.Second))
	}
	fmt.Fprintf(&sb, "Seeds:      %d\n", run.SeedCount)
	fmt.Fprintf(&sb, "Subpages:   %d\n", run.PageCount)
	fmt.Fprintf(&sb, "Status:     %s\n", statusText(run))
	sb.WriteString("\n")

	if len(run.Stats) > 0 {
		writeSection(&sb, "STAGES")
		for _, stats := range run.Stats {
			w.writeStage(&sb, stats)
		}
	}

	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeStage(sb *strings.Builder, stats model.StageStats) {
	fmt.Fprintf(sb, "[%s] %d -> %d subpages", stats.Stage, stats.Input, stats.Output)
	if w.verbose {
		fmt.Fprintf(sb, " in %s", stats.Duration.Round(time.Millisecond))
	}
	sb.WriteString("\n")

	for _, reason := range slices.Sorted(maps.Keys(stats.Dropped)) {
		fmt.Fprintf(sb, "  - %-20s %d\n", reason, stats.Dropped[reason])
	}
	if w.verbose && len(stats.Languages) > 0 {
		var langs []string
		for _, lang := range slices.Sorted(maps.Keys(stats.Languages)) {
			langs = append(langs, fmt.Sprintf("%s=%d", lang, stats.Languages[lang]))
		}
		fmt.Fprintf(sb, "  languages: %s\n", strings.Join(langs, " "))
	}
	sb.WriteString("\n")
}

// WriteAnalysis outputs keyword frequencies in human-readable format.
func (w *SimpleWriter) WriteAnalysis(a *KeywordAnalysis) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "KEYWORD ANALYSIS")
	fmt.Fprintf(&sb, "Subpages analyzed:      %d\n", a.Pages)
	fmt.Fprintf(&sb, "Subpages with keywords: %d\n", a.MatchedPages)
	fmt.Fprintf(&sb, "Keywords:               %d\n\n", len(a.Terms))

	writeSection(&sb, "GROUPS")
	for _, g := range a.Groups {
		fmt.Fprintf(&sb, "  %-24s %6d hits  (%d keywords)\n", g.Group, g.Frequency, g.Terms)
	}
	sb.WriteString("\n")

	writeSection(&sb, "KEYWORDS")
	for _, term := range a.Terms {
		n := a.TermCount(term)
		if n == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(&sb, "  %-32s %-16s %d\n", term, a.TermGroups[term], n)
	}
	sb.WriteString("\n")

	if pairs := a.TopPairs(10); len(pairs) > 0 {
		writeSection(&sb, "TOP CO-OCCURRENCES")
		for _, p := range pairs {
			fmt.Fprintf(&sb, "  %s + %s: %d (r=%.2f)\n", p.A, p.B, p.Count, p.Correlation)
		}
		sb.WriteString("\n")
	}

	if w.verbose && len(a.PageMatches) > 0 {
		writeSection(&sb, "SUBPAGES")
		for _, m := range a.PageMatches {
			fmt.Fprintf(&sb, "  %s\n    %s\n", m.URL, strings.Join(m.Keywords, ", "))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	return w.output.Write([]byte(sb.String()))
}

func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "%*s\n", (ruleWidth+len(title))/2, title)
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

// statusText describes how a run ended.
func statusText(run *model.Run) string {
	switch run.Status {
	case model.RunCompleted:
		return "Complete"
	case model.RunInterrupted:
		return "INTERRUPTED (partial results saved)"
	case model.RunFailed:
		if run.Error != "" {
			return "FAILED - " + run.Error
		}
		return "FAILED"
	default:
		return strings.ToUpper(string(run.Status))
	}
}
