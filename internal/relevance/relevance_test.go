package relevance

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/sitesift/internal/model"
)

// markerDetector calls a sentence Finnish when it contains ä, ö or å and
// English otherwise.
type markerDetector struct{}

func (markerDetector) Detect(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrDetect
	}
	if strings.ContainsAny(strings.ToLower(text), "äöå") {
		return "fi", nil
	}
	return "en", nil
}

// failingDetector never detects anything.
type failingDetector struct{}

func (failingDetector) Detect(string) (string, error) { return "", ErrDetect }

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "basic punctuation",
			input:    "Hei maailma. Tämä on testi! Onko näin? Loppu",
			expected: []string{"Hei maailma.", "Tämä on testi!", "Onko näin?", "Loppu"},
		},
		{
			name:     "abbreviations and lowercase continuation",
			input:    "Tarjoamme mm. Kuljetuksia. Versio 2.0 on valmis. katso lisää",
			expected: []string{"Tarjoamme mm. Kuljetuksia.", "Versio 2.0 on valmis. katso lisää"},
		},
		{
			name:     "quotes after the stop",
			input:    `Hän sanoi "Hei." Sitten lähti.`,
			expected: []string{`Hän sanoi "Hei."`, "Sitten lähti."},
		},
		{
			name:     "blank",
			input:    "   ",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := SplitSentences(tt.input); !slices.Equal(got, tt.expected) {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestFilterSentences(t *testing.T) {
	t.Parallel()

	keywords := model.KeywordMap{}
	keywords.Add("Environmental", "energia")
	keywords.Add("Environmental", "energy")
	text := "Käytämme uusiutuvaa Energiaa. We use renewable energy. Meillä on hyvä kahvi."

	got := FilterSentences(markerDetector{}, text, keywords, "fi", "fi")
	if expected := []string{"Käytämme uusiutuvaa Energiaa."}; !slices.Equal(got, expected) {
		t.Errorf("expected %q, got %q", expected, got)
	}

	got = FilterSentences(markerDetector{}, text, keywords, "en", "fi")
	if expected := []string{"We use renewable energy."}; !slices.Equal(got, expected) {
		t.Errorf("expected %q, got %q", expected, got)
	}

	t.Run("detection failure falls back", func(t *testing.T) {
		t.Parallel()

		if got := FilterSentences(failingDetector{}, text, keywords, "fi", "fi"); len(got) != 2 {
			t.Errorf("expected both keyword sentences under fallback fi, got %q", got)
		}
		if got := FilterSentences(failingDetector{}, text, keywords, "fi", "en"); len(got) != 0 {
			t.Errorf("expected nothing under fallback en, got %q", got)
		}
	})
}

func TestWhatlangDetector(t *testing.T) {
	t.Parallel()

	d := WhatlangDetector{}
	fi := "Tämä on suomenkielinen lause, joka kertoo yrityksen palveluista ja tuotteista asiakkaille."
	if lang, err := d.Detect(fi); err != nil || lang != "fi" {
		t.Errorf("expected fi, got %q (%v)", lang, err)
	}
	en := "This is an English sentence that describes the services and products of the company."
	if lang, err := d.Detect(en); err != nil || lang != "en" {
		t.Errorf("expected en, got %q (%v)", lang, err)
	}
	if _, err := d.Detect(""); !errors.Is(err, ErrDetect) {
		t.Errorf("expected ErrDetect for empty text, got %v", err)
	}
	if got := DetectOrFallback(d, "", "fi"); got != "fi" {
		t.Errorf("expected fallback fi, got %q", got)
	}

	// No guess reaches a confidence above 1.
	strict := WhatlangDetector{MinConfidence: 1.01}
	if _, err := strict.Detect(en); !errors.Is(err, ErrDetect) {
		t.Errorf("expected ErrDetect below the minimum confidence, got %v", err)
	}
	if got := DetectOrFallback(strict, en, "fi"); got != "fi" {
		t.Errorf("expected fallback fi for an unsure guess, got %q", got)
	}
}

func TestSnowballStemmer(t *testing.T) {
	t.Parallel()

	en, err := NewSnowballStemmer("EN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := en.Stem("Connections"); got != "connect" {
		t.Errorf("expected connect, got %q", got)
	}
	if got := StemText(en, "Running, fast!"); got != "run fast" {
		t.Errorf("expected 'run fast', got %q", got)
	}

	fi, err := NewSnowballStemmer("fi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fi.Stem("Palvelut") != fi.Stem("palvelut") || fi.Stem("palvelut") == "" {
		t.Error("expected case-insensitive, non-empty Finnish stems")
	}

	if _, err := NewSnowballStemmer("xx"); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("expected ErrUnsupportedLanguage, got %v", err)
	}
}

func TestLoadKeywords(t *testing.T) {
	t.Parallel()

	t.Run("group first", func(t *testing.T) {
		t.Parallel()

		input := "Environmental co2_neutral\nTechnology AI\n# Comment line\nlonely\n\nEnvironmental low impact\n"
		keywords, err := LoadKeywords(strings.NewReader(input), GroupFirst)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expected := map[string]string{
			"co2 neutral": "Environmental",
			"ai":          "Technology",
			"low impact":  "Environmental",
		}
		if len(keywords) != len(expected) {
			t.Fatalf("expected %d keywords, got %v", len(expected), keywords)
		}
		for term, group := range expected {
			if keywords[term] != group {
				t.Errorf("expected %q in %q, got %q", term, group, keywords[term])
			}
		}
	})

	t.Run("term first", func(t *testing.T) {
		t.Parallel()

		keywords, err := LoadKeywords(strings.NewReader("co2_neutral Environmental\nmachine learning Technology\n"), TermFirst)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if keywords["co2 neutral"] != "Environmental" || keywords["machine learning"] != "Technology" {
			t.Errorf("unexpected keywords %v", keywords)
		}
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		if _, err := LoadKeywords(strings.NewReader("# nothing\n"), GroupFirst); !errors.Is(err, ErrNoKeywords) {
			t.Errorf("expected ErrNoKeywords, got %v", err)
		}
	})

	t.Run("formats", func(t *testing.T) {
		t.Parallel()

		for in, expected := range map[string]KeywordFormat{"": GroupFirst, "Term-First": TermFirst} {
			if got, err := ParseKeywordFormat(in); err != nil || got != expected {
				t.Errorf("ParseKeywordFormat(%q) = %q, %v", in, got, err)
			}
		}
		if _, err := ParseKeywordFormat("csv"); err == nil {
			t.Error("expected an error for an unknown format")
		}
	})

	t.Run("inline groups", func(t *testing.T) {
		t.Parallel()

		keywords := KeywordsFromGroups(map[string][]string{"Technology": {"Robotics", "3d_printing"}})
		if keywords["3d printing"] != "Technology" || keywords["robotics"] != "Technology" {
			t.Errorf("unexpected keywords %v", keywords)
		}
	})
}

func TestFilterApply(t *testing.T) {
	t.Parallel()

	keywords := model.KeywordMap{}
	keywords.Add("Technology", "connection")

	input := model.NewCrawlResult()
	input.Set("s", "s/1", "Fast connections matter. Nothing here.")
	input.Set("s", "s/2", "Nothing relevant at all.")
	input.Set("t", "t/1", "No keywords here either.")
	input.Set("t", "t/2", "")

	en, err := NewSnowballStemmer("en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := NewFilter(keywords, "en", "", WithDetector(markerDetector{}), WithStemmer(en))
	out, stats := f.Apply(input)

	if got, _ := out.Get("s", "s/1"); got != "fast connect matter" {
		t.Errorf("expected stemmed sentence, got %q", got)
	}
	if out.Len() != 1 || out.SeedCount() != 1 {
		t.Errorf("expected one page under one seed, got %v", out.Pages())
	}
	if stats.Dropped[DropIrrelevant] != 3 || stats.Input != 4 || stats.Output != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Languages["en"] != 3 {
		t.Errorf("expected 3 English pages, got %v", stats.Languages)
	}
	if input.Len() != 4 {
		t.Error("expected the input to be left unchanged")
	}
}
