package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// PageRecord is one fetched page as stored in the crawl archive.
// Failed fetches are recorded too, with an empty Text and the error message.
type PageRecord struct {
	// RunID identifies the pipeline run that fetched the page.
	RunID string `json:"run_id"`

	// Seed is the seed URL the page was discovered from.
	Seed string `json:"seed"`

	// URL is the normalized page URL.
	URL string `json:"url"`

	// StatusCode is the HTTP status, or 0 when no response was received
	// (network errors, browser rendering).
	StatusCode int `json:"status_code,omitempty"`

	// ContentType is the response Content-Type.
	ContentType string `json:"content_type,omitempty"`

	// Strategy names the fetcher that produced the page ("http" or "browser").
	Strategy string `json:"strategy,omitempty"`

	// Title is the text of the page's <title> element.
	Title string `json:"title,omitempty"`

	// Text is the extracted visible text.
	Text string `json:"text"`

	// Links are the in-scope links discovered on the page. A resumed crawl
	// reads them back instead of fetching a recorded page again. Nil means
	// they were never recorded.
	Links []string `json:"links,omitempty"`

	// Hash is the SHA-256 of Text, hex encoded. Empty when Text is empty.
	Hash string `json:"hash,omitempty"`

	// Error holds the fetch or parse error for failed pages.
	Error string `json:"error,omitempty"`

	// FetchedAt is when the fetch finished.
	FetchedAt time.Time `json:"fetched_at"`

	// Raw is the response body. It is never persisted.
	Raw []byte `json:"-"`
}

// ComputeHash sets Hash from Text.
func (p *PageRecord) ComputeHash() {
	if p.Text == "" {
		p.Hash = ""
		return
	}
	sum := sha256.Sum256([]byte(p.Text))
	p.Hash = hex.EncodeToString(sum[:])
}

// Failed reports whether the page was recorded because its fetch failed.
func (p *PageRecord) Failed() bool {
	return p.Error != ""
}

// IsHTML reports whether ContentType names an HTML document. An empty
// content type counts as HTML because rendered browser pages carry none.
func (p *PageRecord) IsHTML() bool {
	ct := strings.ToLower(p.ContentType)
	return ct == "" ||
		strings.HasPrefix(ct, "text/html") ||
		strings.HasPrefix(ct, "application/xhtml+xml")
}
