package crawler

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"

	"github.com/nao1215/sitesift/internal/fetcher"
)

// RobotsChecker answers robots.txt questions, fetching each host's file
// once. A missing or unreachable robots.txt allows everything.
type RobotsChecker struct {
	fetcher fetcher.Fetcher
	agent   string
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// NewRobotsChecker creates a checker. f should be a plain HTTP fetcher; agent
// is the user agent matched against robots.txt groups.
func NewRobotsChecker(f fetcher.Fetcher, agent string, logger *slog.Logger) *RobotsChecker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RobotsChecker{
		fetcher: f,
		agent:   agent,
		logger:  logger,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether u may be crawled.
func (r *RobotsChecker) Allowed(ctx context.Context, u *url.URL) bool {
	data := r.data(ctx, u)
	if data == nil {
		return true
	}
	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return data.TestAgent(target, r.agent)
}

func (r *RobotsChecker) data(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := strings.ToLower(u.Scheme + "://" + u.Host)

	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.cache[key]; ok {
		return d
	}

	data, err := r.load(ctx, key+"/robots.txt")
	if err != nil {
		r.logger.Debug("robots.txt unavailable", "host", u.Host, "error", err)
		if ctx.Err() != nil {
			// Not cached so the next crawl asks again.
			return nil
		}
		r.cache[key] = nil
		return nil
	}
	r.cache[key] = data
	return data
}

func (r *RobotsChecker) load(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	resp, err := r.fetcher.Fetch(ctx, robotsURL)
	if err != nil {
		var fe *fetcher.FetchError
		if errors.As(err, &fe) && fe.StatusCode != 0 {
			return robotstxt.FromStatusAndBytes(fe.StatusCode, nil)
		}
		return nil, err
	}
	return robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
}
