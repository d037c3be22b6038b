// Package tabular reads and writes the headered CSV tables exchanged
// between pipeline stages. Header lookup is case and whitespace
// insensitive; writes follow the write-to-temp-then-rename discipline so
// an interrupted run never leaves a partially written table observable.
package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Table holds one in-memory tabular artifact. Headers are stored
// normalized (trimmed, lower-cased); cell values are kept verbatim.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NormalizeHeader maps a raw column name onto its canonical spelling.
func NormalizeHeader(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Index returns the position of the named column, or -1 when absent.
// The lookup tolerates case and surrounding whitespace in both the table
// headers and the requested name.
func (t *Table) Index(name string) int {
	want := NormalizeHeader(name)
	for i, h := range t.Headers {
		if h == want {
			return i
		}
	}
	return -1
}

// Cell returns the value of column col in row, or "" when the row is
// ragged or the column is absent.
func (t *Table) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// ReadCSV parses a headered CSV document. Ragged rows are tolerated; the
// reader does not enforce a fixed field count because raw exports often
// drop trailing empty cells.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("ReadCSV: empty document, no header row")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = NormalizeHeader(h)
	}

	return &Table{Headers: headers, Rows: records[1:]}, nil
}

// Fetcher retrieves the raw bytes of a table from a location. The gcs
// package provides the gs:// implementation; local files are read
// directly.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Load reads a table from a local path or, when the location starts with
// gs://, through the supplied fetcher.
func Load(ctx context.Context, fetch Fetcher, location string) (*Table, error) {
	var data []byte
	var err error

	if strings.HasPrefix(location, "gs://") {
		if fetch == nil {
			return nil, fmt.Errorf("Load: %q requires a GCS fetcher", location)
		}
		data, err = fetch.Fetch(ctx, location)
	} else {
		data, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("Load: reading %q: %w", location, err)
	}

	t, err := ReadCSV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("Load: parsing %q: %w", location, err)
	}
	return t, nil
}

// WriteCSV writes a headered CSV table to path atomically: the content is
// written to a temp file in the same directory and renamed into place.
func WriteCSV(path string, headers []string, rows [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("WriteCSV: creating %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("WriteCSV: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	cw := csv.NewWriter(tmp)
	if err := cw.Write(headers); err != nil {
		tmp.Close()
		return fmt.Errorf("WriteCSV: writing header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("WriteCSV: writing row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("WriteCSV: flushing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("WriteCSV: closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("WriteCSV: renaming into place: %w", err)
	}
	return nil
}
