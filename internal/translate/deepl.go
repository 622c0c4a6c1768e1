package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DeepL endpoints. Free-plan keys end in ":fx".
const (
	DeepLFreeURL = "https://api-free.deepl.com"
	DeepLProURL  = "https://api.deepl.com"
)

// statusQuotaExceeded is DeepL's "quota exceeded" status.
const statusQuotaExceeded = 456

// DeepLBackend uses the DeepL v2 API.
type DeepLBackend struct {
	endpoint string
	authKey  string
	client   *http.Client
}

// NewDeepLBackend creates a DeepL backend. An empty baseURL picks the free
// or pro endpoint from the key.
func NewDeepLBackend(baseURL, authKey string, client *http.Client) *DeepLBackend {
	if baseURL == "" {
		baseURL = DeepLProURL
		if strings.HasSuffix(authKey, ":fx") {
			baseURL = DeepLFreeURL
		}
	}
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &DeepLBackend{
		endpoint: strings.TrimRight(baseURL, "/") + "/v2/translate",
		authKey:  authKey,
		client:   client,
	}
}

// Name implements Backend.
func (b *DeepLBackend) Name() string { return "deepl" }

type deeplRequest struct {
	Text       []string `json:"text"`
	SourceLang string   `json:"source_lang,omitempty"`
	TargetLang string   `json:"target_lang"`
}

type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
	Message string `json:"message"`
}

// deeplTarget maps plain codes to the regional variants DeepL requires.
func deeplTarget(lang string) string {
	switch l := strings.ToUpper(lang); l {
	case "EN":
		return "EN-GB"
	case "PT":
		return "PT-PT"
	default:
		return l
	}
}

// deeplSource strips a region, which DeepL rejects for source languages.
func deeplSource(lang string) string {
	l := strings.ToUpper(lang)
	if i := strings.IndexByte(l, '-'); i > 0 {
		l = l[:i]
	}
	return l
}

// Translate implements Backend.
func (b *DeepLBackend) Translate(ctx context.Context, text, source, target string) (string, error) {
	payload, err := json.Marshal(deeplRequest{
		Text:       []string{text},
		SourceLang: deeplSource(source),
		TargetLang: deeplTarget(target),
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %w", ErrTranslation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranslation, err)
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+b.authKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranslation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrTranslation, err)
	}

	var out deeplResponse
	decodeErr := json.Unmarshal(body, &out)
	switch {
	case resp.StatusCode == statusQuotaExceeded:
		return "", fmt.Errorf("%w: DeepL quota exceeded", ErrTranslation)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		if decodeErr == nil && out.Message != "" {
			return "", statusError(resp, out.Message)
		}
		return "", statusError(resp, excerpt(body))
	case decodeErr != nil:
		return "", fmt.Errorf("%w: decode response: %w", ErrTranslation, decodeErr)
	case len(out.Translations) == 0:
		return "", fmt.Errorf("%w: empty response", ErrTranslation)
	}
	return out.Translations[0].Text, nil
}
