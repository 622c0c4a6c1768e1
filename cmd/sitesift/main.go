// Package main provides the entry point for the sitesift CLI.
//
// sitesift crawls company websites, keeps the text of their localized
// subpages, cleans and filters that text by language and keyword relevance,
// and machine-translates it for later analysis.
//
// Usage:
//
//	sitesift run --seeds companies.tsv --keywords keywords.txt -o result.json
//	sitesift crawl https://www.example.fi -o crawl.json
//	sitesift translate -i filtered.json -o translated.json
//
// See --help for all available options.
package main

func main() {
	Execute()
}
