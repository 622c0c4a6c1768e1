package relevance

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nao1215/sitesift/internal/model"
)

// KeywordFormat is the column order of a keyword file line.
type KeywordFormat string

const (
	// GroupFirst lines read "Group keyword_with_underscores".
	GroupFirst KeywordFormat = "group-first"
	// TermFirst lines read "keyword_with_underscores Group".
	TermFirst KeywordFormat = "term-first"
)

// ErrNoKeywords is returned when a keyword source defines no terms.
var ErrNoKeywords = errors.New("no keywords defined")

// ParseKeywordFormat accepts "", "group-first" and "term-first".
func ParseKeywordFormat(s string) (KeywordFormat, error) {
	switch KeywordFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", GroupFirst:
		return GroupFirst, nil
	case TermFirst:
		return TermFirst, nil
	}
	return "", fmt.Errorf("unknown keyword format %q", s)
}

// LoadKeywords reads keyword lines from r. Blank lines, lines starting with
// "#" and lines without a separating space are skipped.
func LoadKeywords(r io.Reader, format KeywordFormat) (model.KeywordMap, error) {
	keywords := make(model.KeywordMap)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if format == TermFirst {
			last := len(fields) - 1
			keywords.Add(fields[last], strings.Join(fields[:last], " "))
		} else {
			keywords.Add(fields[0], strings.Join(fields[1:], " "))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read keywords: %w", err)
	}
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}
	return keywords, nil
}

// LoadKeywordFile reads a keyword file.
func LoadKeywordFile(path string, format KeywordFormat) (model.KeywordMap, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied keyword file
	if err != nil {
		return nil, fmt.Errorf("open keyword file: %w", err)
	}
	defer f.Close()
	return LoadKeywords(f, format)
}

// KeywordsFromGroups builds a map from inline group → terms lists.
func KeywordsFromGroups(groups map[string][]string) model.KeywordMap {
	keywords := make(model.KeywordMap)
	for group, terms := range groups {
		for _, term := range terms {
			keywords.Add(group, term)
		}
	}
	return keywords
}
