package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidSeed is returned when a seed cannot be turned into an absolute
// http(s) URL with a host.
var ErrInvalidSeed = errors.New("invalid seed URL")

// Seed is a starting URL for a crawl. All subpages discovered from a seed
// share its Host.
type Seed struct {
	// URL is the normalized seed URL. It is the key used in CrawlResult.
	URL string `json:"url"`

	// Host is the lowercased network location (host[:port]) of URL.
	Host string `json:"host"`
}

// NormalizeSeed trims raw, adds an http:// scheme when none is present and
// normalizes the result with NormalizeURL.
func NormalizeSeed(raw string) (Seed, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Seed{}, fmt.Errorf("%w: empty", ErrInvalidSeed)
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Seed{}, fmt.Errorf("%w: %q: %w", ErrInvalidSeed, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Seed{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSeed, u.Scheme)
	}
	if u.Host == "" {
		return Seed{}, fmt.Errorf("%w: %q has no host", ErrInvalidSeed, raw)
	}

	normalized := NormalizeURL(u)
	return Seed{URL: normalized.String(), Host: normalized.Host}, nil
}

// NormalizeURL returns a copy of u with the fragment removed, scheme and host
// lowercased and an empty path replaced by "/". Two URLs that only differ in
// those respects normalize to the same string.
func NormalizeURL(u *url.URL) *url.URL {
	n := *u
	n.Fragment = ""
	n.RawFragment = ""
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	if n.Path == "" {
		n.Path = "/"
	}
	return &n
}

// NormalizeRawURL parses raw and normalizes it. It is a convenience for
// callers holding URL strings.
func NormalizeRawURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return NormalizeURL(u).String(), nil
}
