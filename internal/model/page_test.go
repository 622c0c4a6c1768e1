package model

import (
	"errors"
	"testing"
)

func TestPageRecordComputeHash(t *testing.T) {
	t.Parallel()

	t.Run("computes SHA256 of the text", func(t *testing.T) {
		t.Parallel()

		p := &PageRecord{Text: "Hello, World!"}
		p.ComputeHash()

		expected := "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f"
		if p.Hash != expected {
			t.Errorf("got %q, expected %q", p.Hash, expected)
		}
	})

	t.Run("empty text produces empty hash", func(t *testing.T) {
		t.Parallel()

		p := &PageRecord{Hash: "stale"}
		p.ComputeHash()
		if p.Hash != "" {
			t.Errorf("expected empty hash, got %q", p.Hash)
		}
	})
}

func TestPageRecordIsHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		expected    bool
	}{
		{"text/html", true},
		{"text/html; charset=iso-8859-1", true},
		{"Application/XHTML+XML", true},
		{"", true},
		{"application/pdf", false},
		{"image/png", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			t.Parallel()

			p := &PageRecord{ContentType: tt.contentType}
			if got := p.IsHTML(); got != tt.expected {
				t.Errorf("IsHTML() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNormalizeSeed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		wantURL  string
		wantHost string
		wantErr  bool
	}{
		{name: "adds scheme and root path", raw: "  Example.FI ", wantURL: "http://example.fi/", wantHost: "example.fi"},
		{name: "keeps https and path", raw: "https://www.example.com/fi/", wantURL: "https://www.example.com/fi/", wantHost: "www.example.com"},
		{name: "drops fragment", raw: "https://example.fi/page#top", wantURL: "https://example.fi/page", wantHost: "example.fi"},
		{name: "keeps port in host", raw: "http://localhost:8080", wantURL: "http://localhost:8080/", wantHost: "localhost:8080"},
		{name: "empty is rejected", raw: "   ", wantErr: true},
		{name: "ftp is rejected", raw: "ftp://example.fi", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			seed, err := NormalizeSeed(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSeed) {
					t.Errorf("expected ErrInvalidSeed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if seed.URL != tt.wantURL {
				t.Errorf("expected URL %q, got %q", tt.wantURL, seed.URL)
			}
			if seed.Host != tt.wantHost {
				t.Errorf("expected host %q, got %q", tt.wantHost, seed.Host)
			}
		})
	}
}

func TestKeywordMap(t *testing.T) {
	t.Parallel()

	k := KeywordMap{}
	k.Add("Climate", "Hiili_neutraali")
	k.Add("Climate", "päästöt")
	k.Add("Energy", "aurinkovoima")
	k.Add("Energy", "  ")
	k.Add("", "orphan")

	if got := k["hiili neutraali"]; got != "Climate" {
		t.Errorf("expected normalized term in Climate, got %q", got)
	}
	if got := k.Terms(); len(got) != 3 {
		t.Errorf("expected 3 terms, got %v", got)
	}
	if got := k.Groups(); len(got) != 2 || got[0] != "Climate" || got[1] != "Energy" {
		t.Errorf("expected [Climate Energy], got %v", got)
	}
	if got := k.TermsOf("Climate"); len(got) != 2 || got[0] != "hiili neutraali" {
		t.Errorf("expected sorted Climate terms, got %v", got)
	}
}
