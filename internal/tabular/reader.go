// Package tabular loads CSV and XLSX files into domain tables.
package tabular

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"rowmatch/pkg/contracts/domain"
)

var (
	// ErrUnsupportedFormat is returned for file types other than CSV and OOXML workbooks
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptyFile is returned when the input has no header row
	ErrEmptyFile = errors.New("file has no header row")
	// ErrTooManyRows is returned when the input exceeds Options.MaxRows
	ErrTooManyRows = errors.New("too many rows")
	// ErrSheetNotFound is returned when Options.Sheet names a missing worksheet
	ErrSheetNotFound = errors.New("sheet not found")
)

// Format identifies an input file type
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Options controls how a file is read
type Options struct {
	// Sheet selects a worksheet by name; the first sheet is used when empty
	Sheet string
	// RawText disables type inference: every non-missing cell is read as text
	RawText bool
	// MaxRows bounds the number of data rows; zero means unlimited
	MaxRows int
}

// FormatFromName picks the reader from a file name's extension
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// Read decodes r in the given format
func Read(r io.Reader, format Format, opts Options) (*domain.Table, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r, opts)
	case FormatXLSX:
		return ReadXLSX(r, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// LoadFile reads the file at path. Surrounding quotes, as left by shells
// and drag-and-drop, are stripped from the path.
func LoadFile(ctx context.Context, path string, opts Options) (*domain.Table, error) {
	path = CleanPath(path)
	format, err := FormatFromName(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, err := Read(bytes.NewReader(data), format, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// CleanPath trims whitespace and one pair of surrounding quotes
func CleanPath(path string) string {
	path = strings.TrimSpace(path)
	if len(path) >= 2 {
		if (path[0] == '"' && path[len(path)-1] == '"') || (path[0] == '\'' && path[len(path)-1] == '\'') {
			path = path[1 : len(path)-1]
		}
	}
	return path
}

// headerNames fills blank names and disambiguates repeats the way
// spreadsheet tools do: "Unnamed: 3", "name.1", "name.2"
func headerNames(raw []string) []string {
	out := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	repeats := make(map[string]int)
	for i, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if used[name] {
			base := name
			for used[name] {
				repeats[base]++
				name = base + "." + strconv.Itoa(repeats[base])
			}
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// missingMarkers are cell texts read as missing values
var missingMarkers = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

func isMissing(s string) bool {
	_, ok := missingMarkers[s]
	return ok
}

// parseNumber accepts plain decimal notation only, and only literals that
// survive conversion digit for digit
func parseNumber(s string) (domain.Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "xXpP_") {
		return domain.Value{}, false
	}
	switch strings.ToLower(strings.TrimLeft(s, "+-")) {
	case "inf", "infinity", "nan":
		return domain.Value{}, false
	}
	return domain.ParseNumber(s)
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "True", "TRUE", "true":
		return true, true
	case "False", "FALSE", "false":
		return false, true
	}
	return false, false
}

// inferColumns converts text cells column by column. A column becomes
// numeric only when every non-missing cell converts exactly, so long digit
// IDs stay text once any of them would round. A column becomes boolean only
// when every non-missing cell is a boolean literal.
func inferColumns(t *domain.Table) {
	for c := range t.Columns {
		numeric, boolean, present := true, true, false
		for _, row := range t.Rows {
			if c >= len(row) || row[c].IsNull() {
				continue
			}
			present = true
			s := row[c].String()
			if numeric {
				_, numeric = parseNumber(s)
			}
			if boolean {
				_, boolean = parseBool(s)
			}
			if !numeric && !boolean {
				break
			}
		}
		if !present || (!numeric && !boolean) {
			continue
		}
		for _, row := range t.Rows {
			if c >= len(row) || row[c].IsNull() {
				continue
			}
			s := row[c].String()
			if numeric {
				row[c], _ = parseNumber(s)
			} else {
				b, _ := parseBool(s)
				row[c] = domain.Bool(b)
			}
		}
	}
}
