package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/sitesift/internal/model"
)

// JSONWriter outputs runs, analyses and results as JSON.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string.
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON indented by four spaces, the
// layout of result files on disk.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "    ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run in JSON format.
func (w *JSONWriter) Write(run *model.Run) (int, error) {
	return w.writeJSON(run)
}

// WriteAnalysis outputs the keyword analysis in JSON format. The top
// co-occurring pairs are included with their correlation.
func (w *JSONWriter) WriteAnalysis(analysis *KeywordAnalysis) (int, error) {
	return w.writeJSON(struct {
		*KeywordAnalysis
		TopPairs []TermPair `json:"top_pairs"`
	}{analysis, analysis.TopPairs(0)})
}

// WriteResult outputs a crawl result in the same shape as result files.
func (w *JSONWriter) WriteResult(result *model.CrawlResult) (int, error) {
	return w.writeJSON(result)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
