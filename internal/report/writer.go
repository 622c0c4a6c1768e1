package report

import (
	"io"

	"github.com/nao1215/sitesift/internal/model"
)

// Writer renders pipeline outputs.
type Writer interface {
	// Write outputs the summary of a run.
	// Returns the number of bytes written and any error encountered.
	Write(run *model.Run) (int, error)

	// WriteAnalysis outputs a keyword analysis.
	WriteAnalysis(analysis *KeywordAnalysis) (int, error)
}

// MultiWriter writes to several Writers, for example the terminal and a
// Markdown file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the run to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(run *model.Run) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.Write(run) })
}

// WriteAnalysis outputs the analysis to all configured Writers.
func (m *MultiWriter) WriteAnalysis(analysis *KeywordAnalysis) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteAnalysis(analysis) })
}

func (m *MultiWriter) each(write func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := write(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
