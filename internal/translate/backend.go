package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrRateLimited marks a transient refusal; the same request may be
	// retried after a wait.
	ErrRateLimited = errors.New("translation rate limited")

	// ErrTranslation marks a failure that retrying will not fix.
	ErrTranslation = errors.New("translation failed")
)

// Backend translates one piece of text.
type Backend interface {
	// Translate returns text translated from source to target. It fails
	// with an error matching ErrRateLimited or ErrTranslation.
	Translate(ctx context.Context, text, source, target string) (string, error)

	// Name identifies the backend in logs.
	Name() string
}

// RateLimitError is returned when the backend answers 429.
type RateLimitError struct {
	// RetryAfter is the wait the server asked for, zero when it gave none.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%v (retry after %v)", ErrRateLimited, e.RetryAfter)
	}
	return ErrRateLimited.Error()
}

// Is makes errors.Is(err, ErrRateLimited) true.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// statusError classifies a non-2xx response. body is a short excerpt used
// in the message.
func statusError(resp *http.Response, body string) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return fmt.Errorf("%w: status %d", ErrTranslation, resp.StatusCode)
	}
	return fmt.Errorf("%w: status %d: %s", ErrTranslation, resp.StatusCode, body)
}

// parseRetryAfter reads delay-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// NewHTTPClient returns the client used by translation backends. TLS
// verification is always on.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
