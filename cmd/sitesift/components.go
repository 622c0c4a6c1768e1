package main

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/nao1215/sitesift/internal/backoff"
	"github.com/nao1215/sitesift/internal/checkpoint"
	"github.com/nao1215/sitesift/internal/cleaner"
	"github.com/nao1215/sitesift/internal/config"
	"github.com/nao1215/sitesift/internal/crawler"
	"github.com/nao1215/sitesift/internal/fetcher"
	"github.com/nao1215/sitesift/internal/model"
	"github.com/nao1215/sitesift/internal/relevance"
	"github.com/nao1215/sitesift/internal/seedfile"
	"github.com/nao1215/sitesift/internal/translate"
)

// fetchRetryPolicy spaces out retries of throttled page fetches.
var fetchRetryPolicy = backoff.Policy{
	Base:       5 * time.Second,
	Multiplier: config.DefaultBackoffMultiplier,
	Cap:        time.Minute,
	Jitter:     0.1,
}

// siteHeaders returns the request headers configured for host, including
// its cookie.
func (a *app) siteHeaders(host string) map[string]string {
	site := a.cfg.SiteConfigs.GetSiteConfig(host)
	if site.Cookie == "" && len(site.Headers) == 0 {
		return nil
	}
	headers := maps.Clone(site.Headers)
	if headers == nil {
		headers = make(map[string]string, 1)
	}
	if site.Cookie != "" {
		headers["Cookie"] = site.Cookie
	}
	return headers
}

// wantsBrowser reports whether the default strategy or any site entry
// asks for the browser fetcher.
func (a *app) wantsBrowser() bool {
	if a.cfg.Strategy == config.StrategyBrowser {
		return true
	}
	if a.cfg.SiteConfigs == nil {
		return false
	}
	if a.cfg.SiteConfigs.Defaults.Strategy == config.StrategyBrowser {
		return true
	}
	for _, site := range a.cfg.SiteConfigs.Sites {
		if site.Strategy == config.StrategyBrowser {
			return true
		}
	}
	return false
}

// newSpider builds the crawler for runID. The returned function releases
// the browser, if one was started.
func (a *app) newSpider(runID string) (*crawler.Spider, func()) {
	cfg := a.cfg

	httpFetcher := fetcher.NewHTTPFetcher(
		fetcher.WithClient(fetcher.NewHTTPClient(cfg.Timeout, cfg.InsecureTLS)),
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithHeaders(a.siteHeaders),
	)

	var browser *fetcher.BrowserFetcher
	release := func() {}
	if a.wantsBrowser() {
		browser = fetcher.NewBrowserFetcher(
			fetcher.WithBrowserBin(cfg.BrowserBin),
			fetcher.WithControlURL(cfg.BrowserURL),
			fetcher.WithBrowserUserAgent(cfg.UserAgent),
			fetcher.WithBrowserInsecureTLS(cfg.InsecureTLS),
			fetcher.WithBrowserTimeout(cfg.Timeout),
			fetcher.WithBrowserHeaders(a.siteHeaders),
			fetcher.WithBrowserLogger(a.logger),
		)
		release = func() {
			if err := browser.Close(); err != nil {
				a.logger.Warn("failed to close browser", "error", err)
			}
		}
	}

	var defaultFetcher fetcher.Fetcher = httpFetcher
	if cfg.Strategy == config.StrategyBrowser {
		defaultFetcher = browser
	}

	opts := []crawler.SpiderOption{
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithMaxDuration(cfg.MaxDuration),
		crawler.WithHostLimiter(crawler.NewHostLimiter(cfg.CrawlDelay, func(host string) time.Duration {
			return cfg.SiteConfigs.GetSiteConfig(host).Delay
		})),
		crawler.WithFetcherFor(func(host string) fetcher.Fetcher {
			switch cfg.SiteConfigs.GetSiteConfig(host).Strategy {
			case config.StrategyBrowser:
				return browser
			case config.StrategyHTTP:
				return httpFetcher
			}
			return nil
		}),
		crawler.WithPathRules(func(host string) crawler.PathRules {
			site := cfg.SiteConfigs.GetSiteConfig(host)
			return crawler.PathRules{Ignore: site.IgnorePatterns, Follow: site.FollowPatterns}
		}),
		crawler.WithRetry(cfg.FetchRetries, fetchRetryPolicy),
		crawler.WithSpiderLogger(a.logger),
	}
	if cfg.Locale != "" {
		opts = append(opts, crawler.WithLinkFilter(crawler.LocaleFilter(cfg.Locale)))
	}
	if cfg.RespectRobots {
		opts = append(opts, crawler.WithRobots(crawler.NewRobotsChecker(httpFetcher, cfg.UserAgent, a.logger)))
	}
	if a.db != nil {
		opts = append(opts, crawler.WithPageSink(a.db, runID), crawler.WithLinkSource(a.db))
	}

	return crawler.NewSpider(defaultFetcher, opts...), release
}

// newCleaner builds the clean stage.
func (a *app) newCleaner() *cleaner.Cleaner {
	return cleaner.New(cleaner.Options{
		Threshold:    a.cfg.SimilarityThreshold,
		Scope:        cleaner.Scope(a.cfg.DedupScope),
		MinWords:     a.cfg.MinWords,
		ErrorPhrases: a.cfg.ErrorPhrases,
		Boilerplate:  a.cfg.BoilerplatePhrases,
	}, a.logger)
}

// loadKeywords reads the keyword file, falling back to the groups listed
// in the config file.
func (a *app) loadKeywords() (model.KeywordMap, error) {
	if a.cfg.KeywordFile != "" {
		format, err := relevance.ParseKeywordFormat(a.cfg.KeywordFormat)
		if err != nil {
			return nil, err
		}
		keywords, err := relevance.LoadKeywordFile(a.cfg.KeywordFile, format)
		if err != nil {
			return nil, fmt.Errorf("failed to load keywords: %w", err)
		}
		return keywords, nil
	}
	if a.cfg.SiteConfigs != nil && len(a.cfg.SiteConfigs.Keywords.Groups) > 0 {
		keywords := relevance.KeywordsFromGroups(a.cfg.SiteConfigs.Keywords.Groups)
		if len(keywords) > 0 {
			return keywords, nil
		}
	}
	return nil, fmt.Errorf("%w: use --keywords or keywords.groups in the config file", relevance.ErrNoKeywords)
}

// newFilter builds the relevance filter.
func (a *app) newFilter() (*relevance.Filter, error) {
	keywords, err := a.loadKeywords()
	if err != nil {
		return nil, err
	}
	opts := []relevance.Option{
		relevance.WithLogger(a.logger),
		relevance.WithDetector(relevance.WhatlangDetector{MinConfidence: a.cfg.MinLanguageConfidence}),
	}
	if a.cfg.Stem {
		stemmer, err := relevance.NewSnowballStemmer(a.cfg.TargetLanguage)
		if err != nil {
			return nil, err
		}
		opts = append(opts, relevance.WithStemmer(stemmer))
	}
	a.logger.Info("keywords loaded", "keywords", len(keywords), "groups", len(keywords.Groups()))
	return relevance.NewFilter(keywords, a.cfg.TargetLanguage, a.cfg.FallbackLanguage, opts...), nil
}

// newTranslator builds the translation stage around the checkpoint store.
func (a *app) newTranslator(store *checkpoint.Store) *translate.Translator {
	cfg := a.cfg
	client := translate.NewHTTPClient(cfg.Timeout)

	var backend translate.Backend
	switch cfg.TranslateBackend {
	case config.BackendDeepL:
		url := cfg.TranslateURL
		if url == config.DefaultTranslateURL {
			url = ""
		}
		backend = translate.NewDeepLBackend(url, cfg.TranslateAPIKey, client)
	default:
		backend = translate.NewLibreBackend(cfg.TranslateURL, cfg.TranslateAPIKey, client)
	}

	return translate.New(backend, store, cfg.SourceLanguage, cfg.DestLanguage,
		translate.WithChunkSize(cfg.ChunkSize),
		translate.WithCooldown(cfg.CooldownEvery, cfg.Cooldown),
		translate.WithBackoff(backoff.Policy{
			Base:       cfg.BackoffBase,
			Multiplier: config.DefaultBackoffMultiplier,
			Cap:        cfg.BackoffCap,
			Jitter:     cfg.BackoffJitter,
		}),
		translate.WithLogger(a.logger),
	)
}

// loadSeeds merges seed arguments with the seed file, keeping the first
// occurrence of each seed, and drops seeds archived within --skip-recent.
func (a *app) loadSeeds(ctx context.Context) ([]model.Seed, error) {
	var seeds []model.Seed
	if len(a.cfg.Seeds) > 0 {
		fromArgs, err := seedfile.FromStrings(a.cfg.Seeds)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, fromArgs...)
	}
	if a.cfg.SeedFile != "" {
		fromFile, err := seedfile.ReadFile(a.cfg.SeedFile, seedfile.Options{
			Column: a.cfg.SeedColumn,
			Logger: a.logger,
		})
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, fromFile...)
	}

	seen := make(map[string]struct{}, len(seeds))
	unique := seeds[:0]
	for _, s := range seeds {
		if _, ok := seen[s.URL]; ok {
			continue
		}
		seen[s.URL] = struct{}{}
		unique = append(unique, s)
	}

	if a.cfg.SkipRecent <= 0 || a.db == nil {
		return unique, nil
	}
	fresh := unique[:0]
	for _, s := range unique {
		recent, err := a.db.HasRecentCrawl(ctx, s.URL, a.cfg.SkipRecent)
		if err != nil {
			return nil, err
		}
		if recent {
			a.logger.Info("seed crawled recently, skipping", "seed", s.URL, "within", a.cfg.SkipRecent)
			continue
		}
		fresh = append(fresh, s)
	}
	return fresh, nil
}
