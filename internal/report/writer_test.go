package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitesift/internal/model"
)

// createTestRun creates a finished run with stats from every stage.
func createTestRun() *model.Run {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	crawl := model.NewStageStats(model.StageCrawl)
	crawl.Input, crawl.Output = 2, 40
	crawl.Drop("fetch_failed", 3)
	clean := model.NewStageStats(model.StageClean)
	clean.Input, clean.Output = 40, 31
	clean.Drop("near_duplicate", 6)
	clean.Drop("short", 3)
	filter := model.NewStageStats(model.StageFilter)
	filter.Input, filter.Output = 31, 20
	filter.Drop("irrelevant", 11)
	filter.Languages = map[string]int{"fi": 120, "en": 30}

	return &model.Run{
		ID:         "8b1f6c52-run",
		Stages:     []model.Stage{model.StageCrawl, model.StageClean, model.StageFilter},
		Status:     model.RunCompleted,
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		SeedCount:  2,
		PageCount:  20,
		Stats:      []model.StageStats{crawl, clean, filter},
	}
}

// createTestAnalysis analyzes a small result against two keyword groups.
func createTestAnalysis() *KeywordAnalysis {
	keywords := model.KeywordMap{}
	keywords.Add("sustainability", "renewable_energy")
	keywords.Add("sustainability", "recycling")
	keywords.Add("technology", "cloud")
	keywords.Add("technology", "blockchain")

	result := model.NewCrawlResult()
	result.Set("https://a.example/", "https://a.example/fi/palvelut", "We use renewable, ENERGY sources and Cloud services.")
	result.Set("https://a.example/", "https://a.example/fi/ymparisto", "Recycling! is important to us.")
	result.Set("https://b.example/", "https://b.example/fi", "Energy only, and clouds.")
	return AnalyzeKeywords(result, keywords)
}

func TestAnalyzeKeywords(t *testing.T) {
	t.Parallel()

	a := createTestAnalysis()

	t.Run("counts analyzed and matched pages", func(t *testing.T) {
		t.Parallel()

		if a.Pages != 3 {
			t.Errorf("expected 3 pages, got %d", a.Pages)
		}
		if a.MatchedPages != 2 {
			t.Errorf("expected 2 matched pages, got %d", a.MatchedPages)
		}
	})

	t.Run("matches every word of a keyword as a whole word", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			term string
			want int
		}{
			{"renewable energy", 1},
			{"recycling", 1},
			{"cloud", 1},
			{"blockchain", 0},
			{"unknown", 0},
		}
		for _, tt := range tests {
			if got := a.TermCount(tt.term); got != tt.want {
				t.Errorf("%s: expected %d pages, got %d", tt.term, tt.want, got)
			}
		}
	})

	t.Run("counts group frequencies per keyword hit", func(t *testing.T) {
		t.Parallel()

		want := map[string]GroupFrequency{
			"sustainability": {Group: "sustainability", Frequency: 2, Terms: 2},
			"technology":     {Group: "technology", Frequency: 1, Terms: 2},
		}
		if len(a.Groups) != len(want) {
			t.Fatalf("expected %d groups, got %v", len(want), a.Groups)
		}
		for _, g := range a.Groups {
			if g != want[g.Group] {
				t.Errorf("expected %+v, got %+v", want[g.Group], g)
			}
		}
	})

	t.Run("builds a symmetric co-occurrence matrix", func(t *testing.T) {
		t.Parallel()

		// Terms: blockchain, cloud, recycling, renewable energy.
		if a.Terms[1] != "cloud" || a.Terms[3] != "renewable energy" {
			t.Fatalf("unexpected term order %v", a.Terms)
		}
		if a.CoOccurrence[1][3] != 1 || a.CoOccurrence[3][1] != 1 {
			t.Errorf("expected cloud and renewable energy together once, got %v", a.CoOccurrence)
		}
		if a.CoOccurrence[1][2] != 0 {
			t.Errorf("expected cloud and recycling never together, got %d", a.CoOccurrence[1][2])
		}
	})

	t.Run("records keywords per page", func(t *testing.T) {
		t.Parallel()

		if len(a.PageMatches) != 2 {
			t.Fatalf("expected 2 page matches, got %v", a.PageMatches)
		}
		first := a.PageMatches[0]
		if first.URL != "https://a.example/fi/palvelut" || strings.Join(first.Keywords, ",") != "cloud,renewable energy" {
			t.Errorf("unexpected match %+v", first)
		}
	})

	t.Run("empty result", func(t *testing.T) {
		t.Parallel()

		empty := AnalyzeKeywords(model.NewCrawlResult(), model.KeywordMap{"cloud": "technology"})
		if empty.Pages != 0 || empty.MatchedPages != 0 || len(empty.TopPairs(0)) != 0 {
			t.Errorf("unexpected analysis %+v", empty)
		}
	})
}

func TestKeywordAnalysisCorrelation(t *testing.T) {
	t.Parallel()

	a := createTestAnalysis()
	corr := a.Correlation()

	approx := func(got, want float64) bool { return math.Abs(got-want) < 1e-9 }

	if !approx(corr[1][3], 1) {
		t.Errorf("expected cloud and renewable energy to correlate fully, got %f", corr[1][3])
	}
	if !approx(corr[1][2], -1/math.Sqrt(3)) || !approx(corr[2][1], corr[1][2]) {
		t.Errorf("expected symmetric negative correlation, got %f and %f", corr[1][2], corr[2][1])
	}
	if corr[0][1] != 0 {
		t.Errorf("expected 0 for a keyword never seen, got %f", corr[0][1])
	}
}

func TestKeywordAnalysisTopPairs(t *testing.T) {
	t.Parallel()

	keywords := model.KeywordMap{}
	keywords.Add("g", "alpha")
	keywords.Add("g", "beta")
	keywords.Add("g", "gamma")

	result := model.NewCrawlResult()
	result.Set("s", "1", "alpha beta gamma")
	result.Set("s", "2", "alpha beta")
	result.Set("s", "3", "beta")
	a := AnalyzeKeywords(result, keywords)

	pairs := a.TopPairs(0)
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %v", pairs)
	}
	if pairs[0].A != "alpha" || pairs[0].B != "beta" || pairs[0].Count != 2 {
		t.Errorf("expected alpha+beta first, got %+v", pairs[0])
	}
	if got := a.TopPairs(1); len(got) != 1 {
		t.Errorf("expected limit to apply, got %d pairs", len(got))
	}
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes run summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"SITESIFT RUN", "8b1f6c52-run", "Complete", "[clean] 40 -> 31 subpages", "near_duplicate", "Duration:   1m30s"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if strings.Contains(output, "languages:") {
			t.Error("expected languages only in verbose mode")
		}
	})

	t.Run("verbose adds languages", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "languages: en=30 fi=120") {
			t.Errorf("expected language counts, got:\n%s", buf.String())
		}
	})

	t.Run("shows failure reason", func(t *testing.T) {
		t.Parallel()

		run := createTestRun()
		run.Status = model.RunFailed
		run.Error = "checkpoint is locked"

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "FAILED - checkpoint is locked") {
			t.Error("expected failure reason")
		}
	})

	t.Run("writes keyword analysis", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteAnalysis(createTestAnalysis()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{"KEYWORD ANALYSIS", "sustainability", "renewable energy", "cloud + renewable energy: 1"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if strings.Contains(output, "blockchain") {
			t.Error("expected unmatched keywords to be hidden")
		}
	})

	t.Run("show empty lists unmatched keywords", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithShowEmpty(true)).WriteAnalysis(createTestAnalysis()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "blockchain") {
			t.Error("expected unmatched keyword to be listed")
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes run report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewMarkdownWriter(&buf).Write(createTestRun())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected %d bytes reported, got %d", buf.Len(), n)
		}

		output := buf.String()
		for _, want := range []string{
			"# Sitesift Run Report",
			"| Run ID | `8b1f6c52-run` |",
			"crawl → clean → filter",
			"> [!TIP]",
			"## Dropped Subpages",
			"| clean | near_duplicate | 6 |",
			"```mermaid",
			`"irrelevant" : 11`,
			"## Detected Languages",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("alerts on failure and interruption", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			status model.RunStatus
			want   string
		}{
			{model.RunFailed, "> [!CAUTION]"},
			{model.RunInterrupted, "> [!WARNING]"},
		}
		for _, tt := range tests {
			run := createTestRun()
			run.Status = tt.status
			var buf bytes.Buffer
			if _, err := NewMarkdownWriter(&buf).Write(run); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("%s: expected %q alert", tt.status, tt.want)
			}
		}
	})

	t.Run("omits empty sections", func(t *testing.T) {
		t.Parallel()

		run := &model.Run{ID: "r", Status: model.RunCompleted}
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if strings.Contains(output, "mermaid") || strings.Contains(output, "Detected Languages") {
			t.Error("expected no charts or language table without stats")
		}
		if !strings.Contains(output, "No stage finished.") {
			t.Error("expected empty stage notice")
		}
	})

	t.Run("writes keyword analysis", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf, WithTopPairs(5)).WriteAnalysis(createTestAnalysis()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{
			"# Keyword Analysis",
			"| sustainability | 2 | 2 |",
			"Frequency of Keywords by Group",
			"| renewable energy | sustainability | 1 |",
			"| cloud | renewable energy | 1 | 1.00 |",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("notes when nothing matched", func(t *testing.T) {
		t.Parallel()

		result := model.NewCrawlResult()
		result.Set("s", "u", "nothing relevant")
		var buf bytes.Buffer
		_, err := NewMarkdownWriter(&buf).WriteAnalysis(AnalyzeKeywords(result, model.KeywordMap{"cloud": "technology"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "> [!NOTE]") {
			t.Error("expected a note")
		}
	})
}

func TestEscapeCell(t *testing.T) {
	t.Parallel()

	if got := escapeCell("a|b\n c"); got != `a\|b c` {
		t.Errorf("expected escaped cell, got %q", got)
	}
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes compact run", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected single-line output")
		}

		var decoded model.Run
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if decoded.ID != "8b1f6c52-run" || len(decoded.Stats) != 3 {
			t.Errorf("unexpected run %+v", decoded)
		}
	})

	t.Run("writes analysis with top pairs", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).WriteAnalysis(createTestAnalysis()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var decoded struct {
			Pages    int        `json:"pages"`
			Terms    []string   `json:"terms"`
			TopPairs []TermPair `json:"top_pairs"`
		}
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if decoded.Pages != 3 || len(decoded.Terms) != 4 || len(decoded.TopPairs) != 1 {
			t.Errorf("unexpected analysis %+v", decoded)
		}
	})

	t.Run("writes result in file layout", func(t *testing.T) {
		t.Parallel()

		result := model.NewCrawlResult()
		result.Set("https://a.example/", "https://a.example/fi", "hei")

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).WriteResult(result); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "{\n    \"https://a.example/\": {\n        \"https://a.example/fi\": \"hei\"\n    }\n}\n"
		if buf.String() != want {
			t.Errorf("expected %q, got %q", want, buf.String())
		}
	})
}

// failWriter is a Writer that always fails.
type failWriter struct{ err error }

func (f failWriter) Write(*model.Run) (int, error)               { return 0, f.err }
func (f failWriter) WriteAnalysis(*KeywordAnalysis) (int, error) { return 0, f.err }

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to every writer", func(t *testing.T) {
		t.Parallel()

		var text, md bytes.Buffer
		w := NewMultiWriter(NewSimpleWriter(&text), NewMarkdownWriter(&md))
		n, err := w.Write(createTestRun())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+md.Len() {
			t.Errorf("expected %d total bytes, got %d", text.Len()+md.Len(), n)
		}
		if text.Len() == 0 || md.Len() == 0 {
			t.Error("expected both outputs")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("disk full")
		var after bytes.Buffer
		w := NewMultiWriter(failWriter{err: boom}, NewSimpleWriter(&after))
		if _, err := w.WriteAnalysis(createTestAnalysis()); !errors.Is(err, boom) {
			t.Fatalf("expected write error, got %v", err)
		}
		if after.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})
}
