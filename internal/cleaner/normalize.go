package cleaner

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	symbolPattern = regexp.MustCompile(`[©™®]`)
	emailPattern  = regexp.MustCompile(`[\p{L}\p{N}._%+\-]+@[\p{L}\p{N}.\-]+\.\p{L}{2,}`)
	urlPattern    = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
)

// Normalizer cleans extracted page text.
// It is safe for concurrent use.
type Normalizer struct {
	policy      *bluemonday.Policy
	boilerplate []*regexp.Regexp
}

// NewNormalizer creates a Normalizer that also removes the given
// boilerplate phrases. Phrases match case-insensitively on word boundaries.
func NewNormalizer(boilerplate []string) *Normalizer {
	n := &Normalizer{policy: bluemonday.StrictPolicy()}
	for _, phrase := range boilerplate {
		if re := phrasePattern(phrase); re != nil {
			n.boilerplate = append(n.boilerplate, re)
		}
	}
	return n
}

// Normalize strips copyright glyphs, markup leftovers, e-mail addresses,
// URLs and boilerplate phrases, collapses whitespace and drops a word that
// immediately repeats the previous one.
func (n *Normalizer) Normalize(text string) string {
	text = symbolPattern.ReplaceAllString(text, "")
	if strings.ContainsAny(text, "<&") {
		text = html.UnescapeString(n.policy.Sanitize(text))
	}
	text = emailPattern.ReplaceAllString(text, " ")
	text = urlPattern.ReplaceAllString(text, " ")
	for _, re := range n.boilerplate {
		text = removePhrase(text, re)
	}
	return collapseRepeats(strings.Fields(text))
}

// Normalize applies a Normalizer without boilerplate phrases.
func Normalize(text string) string {
	return defaultNormalizer.Normalize(text)
}

var defaultNormalizer = NewNormalizer(nil)

// collapseRepeats joins words with single spaces, skipping a word equal
// (ignoring case) to the one before it.
func collapseRepeats(words []string) string {
	var b strings.Builder
	prev := ""
	for _, w := range words {
		if prev != "" && strings.EqualFold(w, prev) {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
		prev = w
	}
	return b.String()
}

// phrasePattern matches the words of phrase separated by any whitespace,
// ignoring case. Word boundaries are checked by removePhrase.
func phrasePattern(phrase string) *regexp.Regexp {
	fields := strings.Fields(phrase)
	if len(fields) == 0 {
		return nil
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(quoted, `\s+`))
}

// removePhrase replaces every whole-word match of re in text with a space.
// RE2 has no lookaround and its \b only knows ASCII, so the runes around
// each match are checked here. A rejected match resumes the search one rune
// later, and an accepted one leaves its neighbours for the next match.
func removePhrase(text string, re *regexp.Regexp) string {
	var b strings.Builder
	last, pos := 0, 0
	for pos <= len(text) {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end == start {
			break
		}
		if !isWordRuneBefore(text, start) && !isWordRuneAt(text, end) {
			b.WriteString(text[last:start])
			b.WriteByte(' ')
			last, pos = end, end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		pos = start + size
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

func isWordRuneBefore(text string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return isWordRune(r)
}

func isWordRuneAt(text string, i int) bool {
	if i >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return isWordRune(r)
}
