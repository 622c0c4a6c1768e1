// Package model defines the data shared by every stage of sitesift.
//
//   - Seed: a normalized starting URL
//   - CrawlResult: seed URL → subpage URL → text, the value every stage
//     consumes and produces
//   - PageRecord: one fetched page as stored in the crawl archive
//   - Run and StageStats: bookkeeping for a pipeline run
//   - KeywordMap: keyword groups used for relevance filtering and analysis
//
// The types live in their own package so crawler, cleaner, relevance,
// translate, database and report can share them without import cycles.
package model
