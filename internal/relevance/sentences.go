package relevance

import (
	"strings"
	"unicode"
)

// abbreviations end with a period but do not end a sentence.
var abbreviations = map[string]struct{}{
	"esim.": {}, "mm.": {}, "ns.": {}, "ks.": {}, "jne.": {}, "yms.": {}, "tms.": {},
	"n.": {}, "noin.": {}, "klo.": {}, "puh.": {}, "p.": {}, "s.": {}, "nro.": {},
	"e.g.": {}, "i.e.": {}, "etc.": {}, "vs.": {}, "mr.": {}, "mrs.": {}, "dr.": {}, "no.": {},
}

// SplitSentences splits text after '.', '!', '?' or '…' followed by
// whitespace, unless the word before is a known abbreviation or the next
// word starts with a lowercase letter. Sentences are trimmed; blank ones are
// dropped.
func SplitSentences(text string) []string {
	words := strings.Fields(text)
	var sentences []string
	var current []string
	for i, w := range words {
		current = append(current, w)
		if !endsSentence(w) {
			continue
		}
		if i+1 < len(words) && !startsSentence(words[i+1]) {
			continue
		}
		sentences = append(sentences, strings.Join(current, " "))
		current = current[:0]
	}
	if len(current) > 0 {
		sentences = append(sentences, strings.Join(current, " "))
	}
	return sentences
}

func endsSentence(word string) bool {
	trimmed := strings.TrimRight(word, `"')]”’»`)
	if trimmed == "" {
		return false
	}
	last, _ := lastRune(trimmed)
	switch last {
	case '!', '?', '…':
		return true
	case '.':
		_, abbr := abbreviations[strings.ToLower(trimmed)]
		return !abbr
	}
	return false
}

func startsSentence(word string) bool {
	for _, r := range word {
		if unicode.IsLetter(r) {
			return !unicode.IsLower(r)
		}
		if unicode.IsDigit(r) {
			return true
		}
	}
	return true
}

func lastRune(s string) (rune, bool) {
	rs := []rune(s)
	if len(rs) == 0 {
		return 0, false
	}
	return rs[len(rs)-1], true
}
