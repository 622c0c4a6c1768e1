// Package report writes pipeline outputs for people and tools.
//
// Writers render a finished run (its stage statistics) and a keyword
// analysis:
//   - SimpleWriter: plain text for the terminal
//   - MarkdownWriter: Markdown with tables and Mermaid charts
//   - JSONWriter: JSON for other tools
//
// AnalyzeKeywords builds the keyword frequency and co-occurrence counts
// rendered by the writers.
package report
