// Package seedfile reads seed URL lists.
//
// Three layouts are accepted: a tab-separated or comma-separated table with
// a header row naming the URL column, or a plain list with one URL per line.
// Files in legacy encodings (Windows-1252, Latin-1, UTF-16 with BOM) are
// decoded to UTF-8 first.
package seedfile

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nao1215/sitesift/internal/fetcher"
	"github.com/nao1215/sitesift/internal/model"
)

// DefaultColumn is the header of the URL column in tabular seed files.
const DefaultColumn = "URL"

// Format is the layout of a seed file.
type Format string

const (
	// FormatAuto picks a layout from the first non-blank line.
	FormatAuto Format = ""
	// FormatList is one URL per line; "#" starts a comment line.
	FormatList Format = "list"
	// FormatTSV is a tab-separated table with a header row.
	FormatTSV Format = "tsv"
	// FormatCSV is a comma-separated table with a header row.
	FormatCSV Format = "csv"
)

var (
	// ErrNoColumn is returned when a table has no column with the requested header.
	ErrNoColumn = errors.New("URL column not found")

	// ErrNoSeeds is returned when the input holds no usable seed.
	ErrNoSeeds = errors.New("no valid seeds")
)

// Options controls Read.
type Options struct {
	// Column is the header of the URL column. Matching ignores case.
	// Defaults to DefaultColumn.
	Column string

	// Format forces a layout. FormatAuto detects it.
	Format Format

	// Logger receives warnings about skipped rows.
	Logger *slog.Logger
}

// ReadFile reads seeds from the file at path.
func ReadFile(path string, opts Options) ([]model.Seed, error) {
	f, err := os.Open(path) //nolint:gosec // path is an operator-supplied seed file
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Read(f, opts)
}

// Read parses seeds from r. Invalid rows are skipped with a warning;
// duplicates are dropped keeping the first occurrence.
func Read(r io.Reader, opts Options) ([]model.Seed, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read seeds: %w", err)
	}
	data := fetcher.DecodeText(raw)

	if opts.Column == "" {
		opts.Column = DefaultColumn
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	format := opts.Format
	if format == FormatAuto {
		format = detect(data, opts.Column)
	}

	var values []string
	switch format {
	case FormatTSV:
		values, err = readTable(data, '\t', opts.Column)
	case FormatCSV:
		values, err = readTable(data, ',', opts.Column)
	case FormatList:
		values = readList(data)
	default:
		return nil, fmt.Errorf("unknown seed file format %q", format)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(values))
	seeds := make([]model.Seed, 0, len(values))
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		seed, err := model.NormalizeSeed(v)
		if err != nil {
			opts.Logger.Warn("skipping invalid seed", "row", i+1, "value", v, "error", err)
			continue
		}
		if _, dup := seen[seed.URL]; dup {
			continue
		}
		seen[seed.URL] = struct{}{}
		seeds = append(seeds, seed)
	}
	if len(seeds) == 0 {
		return nil, ErrNoSeeds
	}
	return seeds, nil
}

// FromStrings normalizes seeds given on the command line.
func FromStrings(values []string) ([]model.Seed, error) {
	var b strings.Builder
	for _, v := range values {
		b.WriteString(v)
		b.WriteByte('\n')
	}
	return Read(strings.NewReader(b.String()), Options{Format: FormatList})
}

// detect looks at the first non-blank line: a table header must contain the
// URL column name next to a separator.
func detect(data []byte, column string) Format {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		switch {
		case strings.Contains(line, "\t") && hasColumn(strings.Split(line, "\t"), column):
			return FormatTSV
		case strings.Contains(line, ",") && hasColumn(strings.Split(line, ","), column):
			return FormatCSV
		case strings.Contains(line, "\t"):
			return FormatTSV
		}
		return FormatList
	}
	return FormatList
}

func hasColumn(header []string, column string) bool {
	return columnIndex(header, column) >= 0
}

func columnIndex(header []string, column string) int {
	for i, h := range header {
		if strings.EqualFold(strings.Trim(strings.TrimSpace(h), `"`), column) {
			return i
		}
	}
	return -1
}

func readTable(data []byte, sep rune, column string) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoSeeds
		}
		return nil, fmt.Errorf("read seed header: %w", err)
	}
	idx := columnIndex(header, column)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q not in %v", ErrNoColumn, column, header)
	}

	var values []string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read seed row: %w", err)
		}
		if idx < len(record) {
			values = append(values, record[idx])
		}
	}
	return values, nil
}

func readList(data []byte) []string {
	var values []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		values = append(values, line)
	}
	return values
}
