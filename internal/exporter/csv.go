package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"rowmatch/internal/matching"
	"rowmatch/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes annotated tables as CSV files below a report directory
type CSVWriter struct {
	dir    string
	logger *slog.Logger
}

// NewCSVWriter creates a writer rooted at dir. Relative paths passed to its
// methods resolve against dir.
func NewCSVWriter(dir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CSVWriter{dir: dir, logger: logger}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file with the given options
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	fullPath := w.resolvePath(filePath)

	w.logger.Debug("Writing CSV file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if err := EncodeCSV(file, options); err != nil {
		return err
	}
	return file.Close()
}

// WriteTable writes an annotated table with a BOM so Excel detects UTF-8
func (w *CSVWriter) WriteTable(filePath string, t *domain.Table) error {
	return w.WriteCSV(filePath, TableOptions(t))
}

// WriteResult writes both annotated tables next to each other, named after
// base and the sheet they mirror. It returns the written paths.
func (w *CSVWriter) WriteResult(base string, res *matching.Result) ([]string, error) {
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var written []string
	for _, part := range []struct {
		sheet string
		table *domain.Table
	}{
		{DataSheet, res.AnnotatedData},
		{LookupSheet, res.AnnotatedLookup},
	} {
		name := base + "_" + part.sheet + ".csv"
		if err := w.WriteTable(name, part.table); err != nil {
			return written, err
		}
		written = append(written, w.resolvePath(name))
	}
	return written, nil
}

// TableOptions converts a table to BOM-prefixed CSV records. Nulls become
// empty fields.
func TableOptions(t *domain.Table) WriteOptions {
	opts := WriteOptions{BOMPrefix: true}
	if t == nil {
		return opts
	}
	opts.Headers = t.Columns
	opts.Records = make([][]string, len(t.Rows))
	for i := range t.Rows {
		record := make([]string, len(t.Columns))
		for c := range t.Columns {
			record[c] = t.Cell(i, c).String()
		}
		opts.Records[i] = record
	}
	return opts
}

// EncodeCSV writes headers and records to out
func EncodeCSV(out io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)
	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.dir == "" {
		return filePath
	}
	return filepath.Join(w.dir, filePath)
}
