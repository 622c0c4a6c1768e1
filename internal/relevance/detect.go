package relevance

import (
	"errors"

	"github.com/abadojack/whatlanggo"
)

// ErrDetect is returned by a Detector that cannot tell the language.
var ErrDetect = errors.New("language detection failed")

// Detector guesses the ISO 639-1 language code of a text.
type Detector interface {
	Detect(text string) (string, error)
}

// WhatlangDetector detects languages with whatlanggo.
type WhatlangDetector struct {
	// MinConfidence rejects guesses below this confidence. Zero accepts
	// every guess.
	MinConfidence float64
}

// Detect returns the language code of text.
func (d WhatlangDetector) Detect(text string) (string, error) {
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" {
		return "", ErrDetect
	}
	if d.MinConfidence > 0 && info.Confidence < d.MinConfidence {
		return "", ErrDetect
	}
	return code, nil
}

// DetectOrFallback returns the detected language of text, or fallback when
// detection fails.
func DetectOrFallback(d Detector, text, fallback string) string {
	code, err := d.Detect(text)
	if err != nil || code == "" {
		return fallback
	}
	return code
}
