package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// LinkFilter decides whether a same-host link belongs to the crawl scope.
type LinkFilter func(u *url.URL) bool

// AcceptAll keeps every link.
func AcceptAll(*url.URL) bool { return true }

// LocaleFilter keeps links that look like they belong to the given locale:
// the path contains "/<code>/" or ends with "/<code>", or the host contains
// ".<code>". An empty code accepts every link.
func LocaleFilter(code string) LinkFilter {
	code = strings.ToLower(strings.Trim(code, "/. "))
	if code == "" {
		return AcceptAll
	}
	segment := "/" + code
	return func(u *url.URL) bool {
		p := strings.ToLower(u.Path)
		return strings.Contains(p, segment+"/") ||
			strings.HasSuffix(p, segment) ||
			strings.Contains(strings.ToLower(u.Host), "."+code)
	}
}

// PathRules restricts crawling by URL path.
type PathRules struct {
	// Ignore lists glob patterns for paths that are never crawled.
	Ignore []string

	// Follow, when non-empty, lists the only path patterns that are crawled.
	Follow []string
}

// Allows reports whether u passes the rules. Ignore patterns win over follow
// patterns.
func (r PathRules) Allows(u *url.URL) bool {
	p := u.Path
	if p == "" {
		p = "/"
	}
	for _, pattern := range r.Ignore {
		if matchPattern(pattern, p) {
			return false
		}
	}
	if len(r.Follow) == 0 {
		return true
	}
	for _, pattern := range r.Follow {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard" and "/admin/users/1"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") && strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
		return true
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Bare globs like "*.pdf" or "print?" also match the last path segment.
	if strings.ContainsAny(pattern, "*?") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}
	return false
}
