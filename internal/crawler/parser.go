package crawler

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Parser extracts the title and anchor links from an HTML page.
// Relative hrefs are resolved against the page URL, or against the
// document's <base href> when present.
type Parser struct {
	// baseURL is the URL of the page being parsed.
	baseURL *url.URL
}

// ParseResult holds what a Parser found in one page.
type ParseResult struct {
	// Title is the text of the <title> element.
	Title string

	// Links are absolute http(s) URLs in document order, duplicates kept.
	Links []string
}

// NewParser creates a Parser for the page at pageURL.
func NewParser(pageURL string) (*Parser, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: page URL %q: %w", ErrParse, pageURL, err)
	}
	return &Parser{baseURL: u}, nil
}

// Parse reads an HTML document and collects its links.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	result := &ParseResult{Links: make([]string, 0)}
	base := p.baseURL
	var hrefs []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "base":
				if href := getAttr(n, "href"); href != "" {
					if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
						base = p.baseURL.ResolveReference(u)
					}
				}
			case "a", "area":
				if href := getAttr(n, "href"); href != "" {
					hrefs = append(hrefs, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, href := range hrefs {
		if resolved := resolveURL(base, href); resolved != "" {
			result.Links = append(result.Links, resolved)
		}
	}
	return result, nil
}

// ParseBytes is Parse over an in-memory body.
func (p *Parser) ParseBytes(body []byte) (*ParseResult, error) {
	return p.Parse(bytes.NewReader(body))
}

// resolveURL resolves href against base. It returns "" for hrefs that do
// not lead to a crawlable http(s) document.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:", "ftp:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
