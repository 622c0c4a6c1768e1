package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nao1215/sitesift/internal/backoff"
	"github.com/nao1215/sitesift/internal/fetcher"
	"github.com/nao1215/sitesift/internal/model"
)

// PageSink receives every page the Spider fetches, failed ones included.
type PageSink interface {
	SavePage(ctx context.Context, page *model.PageRecord) error
}

// LinkSource looks up pages archived by an earlier crawl.
type LinkSource interface {
	LatestPage(ctx context.Context, url string) (*model.PageRecord, error)
}

// Spider crawls seed sites breadth-first and records the visible text of
// every in-scope page under its seed.
//
// A Spider holds no per-crawl state besides its counters, so one Spider may
// run Crawl for several seeds concurrently. The page budget is shared by
// all of them.
type Spider struct {
	fetcher    fetcher.Fetcher
	fetcherFor func(host string) fetcher.Fetcher
	limiter    *HostLimiter
	robots     *RobotsChecker
	accept     LinkFilter
	rules      func(host string) PathRules

	maxPages    int
	maxDuration time.Duration
	retries     int
	retry       backoff.Policy

	sink   PageSink
	links  LinkSource
	runID  string
	logger *slog.Logger
	now    func() time.Time

	fetched   atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	revisited atomic.Int64
	exhausted atomic.Bool
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxPages limits the number of fetches across all seeds. Zero or
// negative means unlimited.
func WithMaxPages(n int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = n
	}
}

// WithMaxDuration limits the wall-clock time of one Crawl call. Zero means
// unlimited.
func WithMaxDuration(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.maxDuration = d
	}
}

// WithDelay sets the minimum interval between requests to one host.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.limiter = NewHostLimiter(d, nil)
	}
}

// WithHostLimiter replaces the politeness limiter, e.g. to apply per-site
// delays.
func WithHostLimiter(l *HostLimiter) SpiderOption {
	return func(s *Spider) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithLinkFilter sets the scope predicate for discovered links.
func WithLinkFilter(f LinkFilter) SpiderOption {
	return func(s *Spider) {
		if f != nil {
			s.accept = f
		}
	}
}

// WithPathRules sets ignore/follow patterns per host.
func WithPathRules(fn func(host string) PathRules) SpiderOption {
	return func(s *Spider) {
		s.rules = fn
	}
}

// WithFetcherFor picks a fetcher per host. Returning nil falls back to the
// default fetcher.
func WithFetcherFor(fn func(host string) fetcher.Fetcher) SpiderOption {
	return func(s *Spider) {
		s.fetcherFor = fn
	}
}

// WithRobots makes the Spider skip URLs disallowed by robots.txt.
func WithRobots(r *RobotsChecker) SpiderOption {
	return func(s *Spider) {
		s.robots = r
	}
}

// WithRetry retries throttled fetches (429, 502, 503, 504) up to retries
// times, waiting according to policy.
func WithRetry(retries int, policy backoff.Policy) SpiderOption {
	return func(s *Spider) {
		s.retries = retries
		s.retry = policy
	}
}

// WithPageSink archives every fetched page under runID.
func WithPageSink(sink PageSink, runID string) SpiderOption {
	return func(s *Spider) {
		s.sink = sink
		s.runID = runID
	}
}

// WithLinkSource lets a resumed crawl read the links of recorded pages
// from src instead of fetching those pages again.
func WithLinkSource(src LinkSource) SpiderOption {
	return func(s *Spider) {
		s.links = src
	}
}

// WithSpiderLogger sets the logger.
func WithSpiderLogger(l *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSpider creates a Spider that fetches with f.
func NewSpider(f fetcher.Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher: f,
		limiter: NewHostLimiter(0, nil),
		accept:  AcceptAll,
		retry:   backoff.Policy{Base: 5 * time.Second, Multiplier: 2, Cap: time.Minute},
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// queueItem is a URL waiting to be fetched for a seed.
type queueItem struct {
	url  string
	seed model.Seed
}

// Crawl visits every seed and the same-host, in-scope pages reachable from
// it. Texts are recorded under their seed; pages that fail are recorded
// with an empty text.
//
// Subpages already in existing keep their text and are not recorded again.
// Their links are still followed, so a seed cut off mid-crawl is completed
// on the next call: the links come from the LinkSource when it has them,
// otherwise the page is fetched again for its links only. Recorded pages
// with an empty text failed before and are not retried.
//
// Crawl returns the partial result together with ctx.Err() when ctx ends,
// and the partial result with a nil error when the page or time budget runs
// out. Only a failing PageSink aborts the crawl with another error.
func (s *Spider) Crawl(ctx context.Context, seeds []model.Seed, existing *model.CrawlResult) (*model.CrawlResult, error) {
	result := model.NewCrawlResult()
	if existing != nil {
		result = existing.Clone()
	}

	var deadline time.Time
	if s.maxDuration > 0 {
		deadline = s.now().Add(s.maxDuration)
	}

	visited := NewVisitedSet()
	queued := make(map[string]struct{})
	queue := make([]queueItem, 0, len(seeds))
	// scope maps a seed URL to the host its links must stay on. It starts as
	// the seed host and follows a redirect of the seed page itself.
	scope := make(map[string]model.Seed, len(seeds))

	for _, seed := range seeds {
		if n := len(result.Subpages(seed.URL)); n > 0 {
			s.logger.Info("resuming seed", "seed", seed.URL, "recorded", n)
		}
		result.AddSeed(seed.URL)
		scope[seed.URL] = seed
		if _, dup := queued[seed.URL]; dup {
			continue
		}
		queued[seed.URL] = struct{}{}
		queue = append(queue, queueItem{url: seed.URL, seed: seed})
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if s.budgetExhausted(deadline) {
			s.exhausted.Store(true)
			s.logger.Warn("crawl budget exhausted", "pending", len(queue), "max_pages", s.maxPages, "max_duration", s.maxDuration)
			break
		}

		item := queue[0]
		queue = queue[1:]
		if !visited.MarkIfNotVisited(item.url) {
			continue
		}

		u, err := url.Parse(item.url)
		if err != nil {
			continue
		}
		if s.robots != nil && !s.robots.Allowed(ctx, u) {
			s.skipped.Add(1)
			s.logger.Debug("disallowed by robots.txt", "url", item.url)
			continue
		}

		if text, ok := result.Get(item.seed.URL, item.url); ok {
			if text == "" {
				continue
			}
			v, err := s.recordedLinks(ctx, item, scope[item.seed.URL])
			if err != nil {
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				s.logger.Debug("links of recorded page unavailable", "url", item.url, "error", err)
			}
			if v.scope.Host != "" {
				scope[item.seed.URL] = v.scope
			}
			queue = s.enqueue(queue, queued, visited, item.seed, v.links)
			continue
		}

		v, err := s.visit(ctx, item, scope[item.seed.URL])
		page := v.page
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			s.failed.Add(1)
			s.logger.Warn("page failed", "seed", item.seed.URL, "url", item.url, "error", err)
			page.Error = err.Error()
		} else {
			s.fetched.Add(1)
			s.logger.Debug("page fetched", "url", item.url, "links", len(v.links), "chars", len(page.Text))
		}
		result.Set(item.seed.URL, item.url, page.Text)

		if s.sink != nil {
			if err := s.sink.SavePage(ctx, page); err != nil {
				return result, fmt.Errorf("archive %s: %w", item.url, err)
			}
		}

		if v.scope.Host != "" {
			scope[item.seed.URL] = v.scope
		}
		queue = s.enqueue(queue, queued, visited, item.seed, v.links)
	}
	return result, nil
}

// enqueue appends the links not yet visited or queued.
func (s *Spider) enqueue(queue []queueItem, queued map[string]struct{}, visited *VisitedSet, seed model.Seed, links []string) []queueItem {
	for _, link := range links {
		if visited.Has(link) {
			continue
		}
		if _, dup := queued[link]; dup {
			continue
		}
		queued[link] = struct{}{}
		queue = append(queue, queueItem{url: link, seed: seed})
	}
	return queue
}

// recordedLinks returns the links of a page an earlier crawl recorded.
// Archived links are checked against the current path rules; without them
// the page is fetched again and only its links and scope are used.
func (s *Spider) recordedLinks(ctx context.Context, item queueItem, scope model.Seed) (visitResult, error) {
	if s.links != nil {
		rec, err := s.links.LatestPage(ctx, item.url)
		switch {
		case err != nil:
			s.logger.Debug("archived page lookup failed", "url", item.url, "error", err)
		case rec != nil && rec.Links != nil:
			var v visitResult
			for _, link := range rec.Links {
				if u, err := url.Parse(link); err == nil && s.allow(u) {
					v.links = append(v.links, link)
				}
			}
			return v, nil
		}
	}
	s.revisited.Add(1)
	return s.visit(ctx, item, scope)
}

// visitResult is what one fetch yields.
type visitResult struct {
	page  *model.PageRecord
	links []string
	// scope is set when the seed page redirected to another host.
	scope model.Seed
}

// visit fetches one URL and returns its record and in-scope links. On
// failure the record is still returned with an empty text.
func (s *Spider) visit(ctx context.Context, item queueItem, scope model.Seed) (visitResult, error) {
	v := visitResult{page: &model.PageRecord{
		RunID: s.runID,
		Seed:  item.seed.URL,
		URL:   item.url,
	}}
	page := v.page
	if scope.Host == "" {
		scope = item.seed
	}

	u, err := url.Parse(item.url)
	if err != nil {
		return v, err
	}
	f := s.fetcherForHost(u.Host)
	page.Strategy = f.Name()

	resp, err := s.fetch(ctx, f, u)
	page.FetchedAt = s.now()
	if err != nil {
		var fe *fetcher.FetchError
		if errors.As(err, &fe) {
			page.StatusCode = fe.StatusCode
		}
		return v, err
	}

	page.StatusCode = resp.StatusCode
	page.ContentType = resp.ContentType
	page.Raw = resp.Body
	if !page.IsHTML() {
		return v, fmt.Errorf("%w: unsupported content type %q", ErrParse, resp.ContentType)
	}

	page.Text = Extract(resp.Body)
	page.ComputeHash()
	page.Links = []string{}

	// A seed like example.fi often redirects to www.example.fi; its links
	// then live on the final host.
	if item.url == item.seed.URL {
		if final, err := url.Parse(resp.URL); err == nil && final.Host != "" && !strings.EqualFold(final.Host, scope.Host) {
			scope = model.Seed{URL: item.seed.URL, Host: strings.ToLower(final.Host)}
			v.scope = scope
			s.logger.Info("seed redirected", "seed", item.seed.URL, "host", scope.Host)
		}
	}

	title, links, err := discoverPage(resp.Body, resp.URL, scope, s.allow)
	if err != nil {
		// The text is still usable; the page just yields no links.
		s.logger.Debug("link discovery failed", "url", item.url, "error", err)
		return v, nil
	}
	page.Title = title
	page.Links = links
	v.links = links
	return v, nil
}

// fetch waits for the host's politeness slot and fetches u, retrying
// throttled responses.
func (s *Spider) fetch(ctx context.Context, f fetcher.Fetcher, u *url.URL) (*fetcher.Response, error) {
	var resp *fetcher.Response
	op := func() error {
		if err := s.limiter.Wait(ctx, u.Host); err != nil {
			return backoff.Permanent(err)
		}
		r, err := f.Fetch(ctx, u.String())
		if err != nil {
			if fetcher.IsThrottled(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Info("throttled, retrying", "url", u.String(), "wait", wait, "error", err)
	}
	if err := s.retry.Retry(ctx, s.retries, op, notify); err != nil {
		return nil, err
	}
	return resp, nil
}

// allow combines the link filter with the per-host path rules.
func (s *Spider) allow(u *url.URL) bool {
	if !s.accept(u) {
		return false
	}
	if s.rules == nil {
		return true
	}
	return s.rules(strings.ToLower(u.Host)).Allows(u)
}

func (s *Spider) fetcherForHost(host string) fetcher.Fetcher {
	if s.fetcherFor != nil {
		if f := s.fetcherFor(strings.ToLower(host)); f != nil {
			return f
		}
	}
	return s.fetcher
}

func (s *Spider) budgetExhausted(deadline time.Time) bool {
	if s.maxPages > 0 && s.fetched.Load()+s.failed.Load()+s.revisited.Load() >= int64(s.maxPages) {
		return true
	}
	return !deadline.IsZero() && !s.now().Before(deadline)
}

// Stats returns counters accumulated since the Spider was created or Reset.
func (s *Spider) Stats() SpiderStats {
	return SpiderStats{
		PagesFetched:    int(s.fetched.Load()),
		PagesFailed:     int(s.failed.Load()),
		PagesSkipped:    int(s.skipped.Load()),
		PagesRevisited:  int(s.revisited.Load()),
		BudgetExhausted: s.exhausted.Load(),
	}
}

// Reset clears the counters.
func (s *Spider) Reset() {
	s.fetched.Store(0)
	s.failed.Store(0)
	s.skipped.Store(0)
	s.revisited.Store(0)
	s.exhausted.Store(false)
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// PagesFetched is the number of pages fetched and extracted.
	PagesFetched int

	// PagesFailed is the number of pages recorded empty after an error.
	PagesFailed int

	// PagesSkipped is the number of URLs skipped because of robots.txt.
	PagesSkipped int

	// PagesRevisited is the number of recorded pages fetched again on
	// resume to find their links.
	PagesRevisited int

	// BudgetExhausted is set when a crawl stopped on the page or time limit.
	BudgetExhausted bool
}

// Err returns ErrBudgetExhausted when the crawl was cut short.
func (st SpiderStats) Err() error {
	if st.BudgetExhausted {
		return ErrBudgetExhausted
	}
	return nil
}
