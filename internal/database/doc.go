// Package database is the crawl archive: a SQLite file that keeps every
// page the crawler fetched, failed fetches included, and one row per
// pipeline run with its per-stage statistics.
//
// The archive is separate from the JSON outputs the pipeline stages pass
// along. It answers "what did this URL look like last time" and feeds the
// history command.
package database
