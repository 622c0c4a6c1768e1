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

// LibreBackend talks to a LibreTranslate-compatible /translate endpoint.
type LibreBackend struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewLibreBackend creates a backend for baseURL, e.g.
// "http://127.0.0.1:5000". apiKey is optional.
func NewLibreBackend(baseURL, apiKey string, client *http.Client) *LibreBackend {
	endpoint := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(endpoint, "/translate") {
		endpoint += "/translate"
	}
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &LibreBackend{endpoint: endpoint, apiKey: apiKey, client: client}
}

// Name implements Backend.
func (b *LibreBackend) Name() string { return "libretranslate" }

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

// Translate implements Backend.
func (b *LibreBackend) Translate(ctx context.Context, text, source, target string) (string, error) {
	payload, err := json.Marshal(libreRequest{
		Q:      text,
		Source: strings.ToLower(source),
		Target: strings.ToLower(target),
		Format: "text",
		APIKey: b.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %w", ErrTranslation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranslation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranslation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrTranslation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var out libreResponse
		if json.Unmarshal(body, &out) == nil && out.Error != "" {
			return "", statusError(resp, out.Error)
		}
		return "", statusError(resp, excerpt(body))
	}

	var out libreResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrTranslation, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrTranslation, out.Error)
	}
	return out.TranslatedText, nil
}

func excerpt(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}
