package fetcher

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// ToUTF8 converts body to UTF-8. The encoding is taken from the
// Content-Type header, a BOM or <meta charset>, in the order defined by the
// HTML5 sniffing algorithm. It returns the converted body and the encoding
// name. Bodies that fail to convert are returned unchanged.
func ToUTF8(body []byte, contentType string) ([]byte, string) {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return body, name
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return body, name
	}
	return out, name
}

// DecodeText converts text of unknown origin, such as a seed file, to UTF-8.
// Valid UTF-8 (with or without BOM) is kept; anything else is sniffed like an
// HTML document, which falls back to windows-1252.
func DecodeText(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return data
	}
	out, _ := ToUTF8(data, "text/plain")
	return out
}
