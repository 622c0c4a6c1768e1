// Package crawler discovers and fetches the subpages of seed sites.
//
// # Components
//
//   - Parser: extracts anchor links from HTML and resolves them
//   - DiscoverLinks / Discoverer: same-host, locale-scoped link discovery
//   - Extract: visible text of a page
//   - Spider: breadth-first crawl over all seeds with a shared FIFO queue
//   - HostLimiter: minimum interval between requests to one host
//   - RobotsChecker: optional robots.txt compliance
//
// # Crawl loop
//
// The Spider pops a URL, skips it when already visited, fetches it, records
// its text under the seed and enqueues the in-scope links it has not seen.
// A page that fails is recorded with an empty text and the crawl goes on.
// The crawl ends when the queue is empty, the page or time budget runs out,
// or the context is cancelled.
//
// # Usage
//
//	spider := crawler.NewSpider(fetcher.NewHTTPFetcher(),
//		crawler.WithLinkFilter(crawler.LocaleFilter("fi")),
//		crawler.WithDelay(12*time.Second),
//		crawler.WithMaxPages(5000))
//	result, err := spider.Crawl(ctx, seeds, nil)
package crawler
