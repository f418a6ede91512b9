package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"rowmatch/pkg/contracts/domain"
)

// ReadCSV parses delimited text whose first record is the header. A byte
// order mark selects UTF-8 or UTF-16; input that is not valid UTF-8 is
// decoded as GB18030.
func ReadCSV(r io.Reader, opts Options) (*domain.Table, error) {
	data, err := decodeText(r)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	t := domain.NewTable(headerNames(header))
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(t.Rows)+1, err)
		}
		if len(record) > len(t.Columns) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(t.Columns), len(record))
		}
		if opts.MaxRows > 0 && len(t.Rows) >= opts.MaxRows {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRows, opts.MaxRows)
		}

		row := make([]domain.Value, len(t.Columns))
		for i, cell := range record {
			if isMissing(cell) {
				continue
			}
			row[i] = domain.Text(cell)
		}
		t.Rows = append(t.Rows, row)
	}

	if !opts.RawText {
		inferColumns(t)
	}
	return t, nil
}

func decodeText(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(transform.NewReader(r, unicode.BOMOverride(transform.Nop)))
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, err := simplifiedchinese.GB18030.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode input as GB18030: %w", err)
	}
	return decoded, nil
}
