package tabular

import (
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"rowmatch/pkg/contracts/domain"
)

// ReadXLSX reads one worksheet of an OOXML workbook. Row 1 is the header.
// Cells keep their stored types: numbers, booleans and dates are typed,
// everything else is text.
func ReadXLSX(r io.Reader, opts Options) (*domain.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	sheet := sheets[0]
	if opts.Sheet != "" {
		if !slices.Contains(sheets, opts.Sheet) {
			return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, opts.Sheet)
		}
		sheet = opts.Sheet
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	if opts.MaxRows > 0 && len(rows)-1 > opts.MaxRows {
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRows, opts.MaxRows)
	}

	sr := &sheetReader{file: f, sheet: sheet, dateStyles: map[int]bool{}}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		sr.date1904 = *props.Date1904
	}

	header := rows[0]
	width := len(header)
	for _, row := range rows[1:] {
		width = max(width, len(row))
	}
	if width > len(header) {
		header = append(slices.Clone(header), make([]string, width-len(header))...)
	}

	t := domain.NewTable(headerNames(header))
	t.Rows = make([][]domain.Value, 0, len(rows)-1)
	for i, raw := range rows[1:] {
		row := make([]domain.Value, width)
		for c, text := range raw {
			v, err := sr.cell(c+1, i+2, text, opts.RawText)
			if err != nil {
				return nil, err
			}
			row[c] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

type sheetReader struct {
	file       *excelize.File
	sheet      string
	date1904   bool
	dateStyles map[int]bool
}

func (s *sheetReader) cell(col, row int, raw string, rawText bool) (domain.Value, error) {
	if raw == "" {
		return domain.Null(), nil
	}
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return domain.Null(), err
	}
	kind, err := s.file.GetCellType(s.sheet, ref)
	if err != nil {
		return domain.Null(), fmt.Errorf("cell %s: %w", ref, err)
	}

	switch kind {
	case excelize.CellTypeBool:
		if rawText {
			return s.formatted(ref)
		}
		return domain.Bool(raw == "1" || strings.EqualFold(raw, "true")), nil
	case excelize.CellTypeDate:
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil && !rawText {
			return domain.Time(ts), nil
		}
		return s.formatted(ref)
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return s.text(raw), nil
		}
		if rawText {
			return s.formatted(ref)
		}
		isDate, err := s.isDateCell(ref)
		if err != nil {
			return domain.Null(), err
		}
		if isDate {
			ts, err := excelize.ExcelDateToTime(f, s.date1904)
			if err == nil {
				return domain.Time(ts), nil
			}
		}
		if n, ok := domain.ParseNumber(raw); ok {
			return n, nil
		}
		return domain.Number(f), nil
	default:
		return s.text(raw), nil
	}
}

func (s *sheetReader) text(raw string) domain.Value {
	if isMissing(raw) {
		return domain.Null()
	}
	return domain.Text(raw)
}

// formatted returns the cell as displayed by the workbook's number format
func (s *sheetReader) formatted(ref string) (domain.Value, error) {
	v, err := s.file.GetCellValue(s.sheet, ref)
	if err != nil {
		return domain.Null(), fmt.Errorf("cell %s: %w", ref, err)
	}
	return s.text(v), nil
}

func (s *sheetReader) isDateCell(ref string) (bool, error) {
	id, err := s.file.GetCellStyle(s.sheet, ref)
	if err != nil {
		return false, fmt.Errorf("cell %s: %w", ref, err)
	}
	if known, ok := s.dateStyles[id]; ok {
		return known, nil
	}
	style, err := s.file.GetStyle(id)
	if err != nil {
		return false, fmt.Errorf("style %d: %w", id, err)
	}
	isDate := isDateNumFmt(style.NumFmt)
	if style.CustomNumFmt != nil {
		isDate = isDateFormatCode(*style.CustomNumFmt)
	}
	s.dateStyles[id] = isDate
	return isDate, nil
}

// isDateNumFmt reports whether a built-in number format id renders dates or times
func isDateNumFmt(id int) bool {
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58:
		return true
	}
	return false
}

var formatLiterals = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]|\\.`)

// isDateFormatCode reports whether a custom format code contains date or time tokens
func isDateFormatCode(code string) bool {
	code = strings.ToLower(formatLiterals.ReplaceAllString(code, ""))
	if code == "" || code == "general" || code == "@" {
		return false
	}
	return strings.ContainsAny(code, "ydhs") || strings.Contains(code, "mmm")
}
