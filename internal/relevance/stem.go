package relevance

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/danish"
	"github.com/blevesearch/snowballstem/dutch"
	"github.com/blevesearch/snowballstem/english"
	"github.com/blevesearch/snowballstem/finnish"
	"github.com/blevesearch/snowballstem/french"
	"github.com/blevesearch/snowballstem/german"
	"github.com/blevesearch/snowballstem/norwegian"
	"github.com/blevesearch/snowballstem/russian"
	"github.com/blevesearch/snowballstem/spanish"
	"github.com/blevesearch/snowballstem/swedish"
)

// ErrUnsupportedLanguage is returned for a language without a stemmer.
var ErrUnsupportedLanguage = errors.New("no stemmer for language")

// Stemmer reduces a word to its stem.
type Stemmer interface {
	Stem(word string) string
}

var snowballStemmers = map[string]func(*snowballstem.Env) bool{
	"da": danish.Stem,
	"de": german.Stem,
	"en": english.Stem,
	"es": spanish.Stem,
	"fi": finnish.Stem,
	"fr": french.Stem,
	"nl": dutch.Stem,
	"no": norwegian.Stem,
	"ru": russian.Stem,
	"sv": swedish.Stem,
}

// SnowballStemmer stems words with the Snowball algorithm of one language.
type SnowballStemmer struct {
	stem func(*snowballstem.Env) bool
}

// NewSnowballStemmer returns the stemmer for an ISO 639-1 code.
func NewSnowballStemmer(lang string) (*SnowballStemmer, error) {
	fn, ok := snowballStemmers[strings.ToLower(lang)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	return &SnowballStemmer{stem: fn}, nil
}

// Stem lowercases word and returns its stem.
func (s *SnowballStemmer) Stem(word string) string {
	env := snowballstem.NewEnv(strings.ToLower(word))
	s.stem(env)
	return env.Current()
}

// StemText stems every word of text and joins the stems with single
// spaces. Punctuation around words is dropped.
func StemText(s Stemmer, text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '-'
	})
	stems := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, "-")
		if w == "" {
			continue
		}
		stems = append(stems, s.Stem(w))
	}
	return strings.Join(stems, " ")
}
