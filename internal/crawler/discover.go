package crawler

import (
	"context"
	"net/url"
	"slices"
	"strings"

	"github.com/nao1215/sitesift/internal/fetcher"
	"github.com/nao1215/sitesift/internal/model"
)

// DiscoverLinks parses body, the HTML of the page at pageURL, and returns
// the sorted, deduplicated set of normalized links that stay on the seed's
// host and pass accept. A nil accept keeps every same-host link.
func DiscoverLinks(body []byte, pageURL string, seed model.Seed, accept LinkFilter) ([]string, error) {
	_, links, err := discoverPage(body, pageURL, seed, accept)
	return links, err
}

// discoverPage is DiscoverLinks that also returns the page title.
func discoverPage(body []byte, pageURL string, seed model.Seed, accept LinkFilter) (string, []string, error) {
	parser, err := NewParser(pageURL)
	if err != nil {
		return "", nil, err
	}
	parsed, err := parser.ParseBytes(body)
	if err != nil {
		return "", nil, err
	}
	if accept == nil {
		accept = AcceptAll
	}

	seen := make(map[string]struct{}, len(parsed.Links))
	links := make([]string, 0, len(parsed.Links))
	for _, link := range parsed.Links {
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		if !strings.EqualFold(u.Host, seed.Host) || !accept(u) {
			continue
		}
		normalized := model.NormalizeURL(u).String()
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
	}
	slices.Sort(links)
	return parsed.Title, links, nil
}

// Discoverer fetches a seed page and lists its in-scope subpages.
type Discoverer struct {
	fetcher fetcher.Fetcher
	accept  LinkFilter
}

// NewDiscoverer creates a Discoverer. A nil accept keeps every same-host link.
func NewDiscoverer(f fetcher.Fetcher, accept LinkFilter) *Discoverer {
	if accept == nil {
		accept = AcceptAll
	}
	return &Discoverer{fetcher: f, accept: accept}
}

// Discover fetches seedURL and returns its same-host, in-scope links.
// It fails with a fetcher.FetchError when the fetch fails and with ErrParse
// when the body is not HTML.
func (d *Discoverer) Discover(ctx context.Context, seedURL string) ([]string, error) {
	seed, err := model.NormalizeSeed(seedURL)
	if err != nil {
		return nil, err
	}
	resp, err := d.fetcher.Fetch(ctx, seed.URL)
	if err != nil {
		return nil, err
	}
	return DiscoverLinks(resp.Body, resp.URL, seed, d.accept)
}
