package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrFetch is matched by every *FetchError.
var ErrFetch = errors.New("fetch failed")

// Response is a fetched page.
type Response struct {
	// URL is the final URL after redirects.
	URL string

	// StatusCode is the HTTP status of the document, 0 when unknown.
	StatusCode int

	// ContentType is the declared media type.
	ContentType string

	// Encoding is the charset the body was decoded from ("utf-8" when it
	// already was UTF-8).
	Encoding string

	// Body is the document, converted to UTF-8.
	Body []byte
}

// Fetcher fetches one URL.
type Fetcher interface {
	// Fetch returns the page at url. It fails with *FetchError on network
	// errors and non-2xx statuses.
	Fetch(ctx context.Context, url string) (*Response, error)

	// Name identifies the strategy in logs and the crawl archive.
	Name() string
}

// HeaderFunc returns extra request headers for a host. It lets per-site
// configuration (cookies, auth headers) reach the fetcher without the
// fetcher knowing about config files.
type HeaderFunc func(host string) map[string]string

// FetchError describes a failed fetch.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && (e.StatusCode < 200 || e.StatusCode >= 300):
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return "fetch " + e.URL + " failed"
}

// Unwrap exposes both the cause and ErrFetch to errors.Is.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetch}
	}
	return []error{e.Err, ErrFetch}
}

// Throttled reports whether the server asked the client to slow down or
// was temporarily unavailable. Such fetches are worth retrying later.
func (e *FetchError) Throttled() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsThrottled reports whether err is a throttled *FetchError.
func IsThrottled(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Throttled()
}

// StatusError returns a *FetchError for a non-2xx status, or nil.
func StatusError(url string, status int) error {
	if status >= 200 && status < 300 {
		return nil
	}
	return &FetchError{URL: url, StatusCode: status, Err: errors.New(http.StatusText(status))}
}
