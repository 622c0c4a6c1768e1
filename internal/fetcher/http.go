package fetcher

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"time"
)

// HTTPFetcher fetches pages with net/http.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	headers     HeaderFunc
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize limits how many bytes of a body are read.
func WithMaxBodySize(n int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithHeaders adds per-host headers to every request.
func WithHeaders(fn HeaderFunc) HTTPOption {
	return func(f *HTTPFetcher) {
		f.headers = fn
	}
}

// WithClient replaces the HTTP client. Tests use it to talk to httptest
// servers.
func WithClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// NewHTTPClient returns the client used for crawling. insecure disables
// certificate verification; it must only be used for crawling, never for
// translation backends.
func NewHTTPClient(timeout time.Duration, insecure bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for crawling sites with broken certificates
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// NewHTTPFetcher returns an HTTPFetcher with a 30s client and a 10MB body cap.
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:      NewHTTPClient(30*time.Second, false),
		maxBodySize: 10 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns "http".
func (f *HTTPFetcher) Name() string { return "http" }

// Fetch performs a GET request and returns the UTF-8 body.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "fi,en;q=0.8")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if f.headers != nil {
		for k, v := range f.headers(req.URL.Host) {
			req.Header.Set(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if err := StatusError(rawURL, resp.StatusCode); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}

	contentType := resp.Header.Get("Content-Type")
	decoded, encoding := ToUTF8(body, contentType)

	return &Response{
		URL:         finalURL(resp, rawURL),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Encoding:    encoding,
		Body:        decoded,
	}, nil
}

func finalURL(resp *http.Response, fallback string) string {
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return fallback
}
