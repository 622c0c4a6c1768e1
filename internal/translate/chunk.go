package translate

import (
	"strings"
	"unicode"
)

// Chunk splits text into pieces of at most maxChars characters (runes).
// Each piece ends at the last whitespace within the limit; a word is cut
// only when the window holds no whitespace at all. Whitespace at chunk
// boundaries is dropped, so joining the chunks with single spaces yields
// the original words in order.
func Chunk(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if maxChars <= 0 || len(runes) <= maxChars {
		return []string{text}
	}

	var chunks []string
	for len(runes) > maxChars {
		cut := -1
		for i := maxChars; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		var piece []rune
		if cut > 0 {
			piece, runes = runes[:cut], runes[cut+1:]
		} else {
			piece, runes = runes[:maxChars], runes[maxChars:]
		}
		if s := strings.TrimSpace(string(piece)); s != "" {
			chunks = append(chunks, s)
		}
		for len(runes) > 0 && unicode.IsSpace(runes[0]) {
			runes = runes[1:]
		}
	}
	if s := strings.TrimSpace(string(runes)); s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}
