package exporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"rowmatch/internal/matching"
	"rowmatch/pkg/contracts/domain"
)

// Sheet names of the comparison workbook
const (
	DataSheet   = "数据表结果"
	LookupSheet = "查找表结果"
)

const columnWidth = 12

// tone is the row coloring applied to one result row
type tone int

const (
	toneNone tone = iota
	toneMatched
	toneDuplicate
	toneUnmatched
)

var palette = map[tone]struct{ fill, font string }{
	toneMatched:   {fill: "#E6F7E6", font: "#006600"},
	toneDuplicate: {fill: "#FFF2CC", font: "#CC6600"},
	toneUnmatched: {fill: "#FFE6E6", font: "#CC0000"},
}

func lookupTone(s domain.MatchStatus) tone {
	switch s {
	case domain.StatusMatched:
		return toneMatched
	case domain.StatusDuplicate:
		return toneDuplicate
	default:
		return toneUnmatched
	}
}

func dataTone(a domain.DataRowAnnotation) tone {
	if a.Matched {
		return toneMatched
	}
	return toneUnmatched
}

// rowStyles holds the style ids of one tone: plain cells, dates and timestamps
type rowStyles struct {
	plain, date, stamp int
}

type styleSet struct {
	header int
	rows   map[tone]rowStyles
}

func newStyleSet(f *excelize.File) (*styleSet, error) {
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	set := &styleSet{header: header, rows: make(map[tone]rowStyles, 4)}

	dateFmt, stampFmt := "yyyy-mm-dd", "yyyy-mm-dd hh:mm:ss"
	for _, t := range []tone{toneNone, toneMatched, toneDuplicate, toneUnmatched} {
		base := excelize.Style{}
		if c, ok := palette[t]; ok {
			base.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{c.fill}}
			base.Font = &excelize.Font{Color: c.font}
		}
		var rs rowStyles
		for _, v := range []struct {
			id   *int
			code *string
		}{{&rs.plain, nil}, {&rs.date, &dateFmt}, {&rs.stamp, &stampFmt}} {
			s := base
			s.CustomNumFmt = v.code
			if *v.id, err = f.NewStyle(&s); err != nil {
				return nil, fmt.Errorf("failed to create row style: %w", err)
			}
		}
		set.rows[t] = rs
	}
	return set, nil
}

func (s *styleSet) cell(t tone, v domain.Value) excelize.Cell {
	rs := s.rows[t]
	style := rs.plain
	if v.Kind() == domain.KindTime {
		ts := v.Interface().(time.Time)
		if h, m, sec := ts.Clock(); h == 0 && m == 0 && sec == 0 && ts.Nanosecond() == 0 {
			style = rs.date
		} else {
			style = rs.stamp
		}
	}
	payload := v.Interface()
	if _, wide := payload.(int64); wide {
		// Excel keeps 15 significant digits, so long IDs go in as text
		payload = v.String()
	}
	return excelize.Cell{StyleID: style, Value: payload}
}

// BuildWorkbook renders both annotated tables into a new workbook. The
// caller owns the returned file and must close it.
func BuildWorkbook(res *matching.Result) (*excelize.File, error) {
	f := excelize.NewFile()
	styles, err := newStyleSet(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := f.SetSheetName(f.GetSheetName(0), DataSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	dataTones := make([]tone, len(res.Annotations))
	for i, a := range res.Annotations {
		dataTones[i] = dataTone(a)
	}
	if err := writeSheet(f, DataSheet, res.AnnotatedData, dataTones, styles); err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.NewSheet(LookupSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to add sheet: %w", err)
	}
	lookupTones := make([]tone, len(res.Records))
	for i, r := range res.Records {
		lookupTones[i] = lookupTone(r.Status)
	}
	if err := writeSheet(f, LookupSheet, res.AnnotatedLookup, lookupTones, styles); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, t *domain.Table, tones []tone, styles *styleSet) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open sheet %s: %w", sheet, err)
	}
	if t == nil {
		return sw.Flush()
	}

	if n := len(t.Columns); n > 0 {
		if err := sw.SetColWidth(1, n, columnWidth); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	header := make([]any, len(t.Columns))
	for i, name := range t.Columns {
		header[i] = excelize.Cell{StyleID: styles.header, Value: name}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", sheet, err)
	}

	for i := range t.Rows {
		rowTone := toneNone
		if i < len(tones) {
			rowTone = tones[i]
		}
		cells := make([]any, len(t.Columns))
		for c := range t.Columns {
			cells[c] = styles.cell(rowTone, t.Cell(i, c))
		}
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(ref, cells); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, sheet, err)
		}
	}
	return sw.Flush()
}

// WriteWorkbook encodes the comparison workbook to w
func WriteWorkbook(w io.Writer, res *matching.Result) error {
	f, err := BuildWorkbook(res)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveWorkbook writes the comparison workbook to path, creating parent directories
func SaveWorkbook(path string, res *matching.Result) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	f, err := BuildWorkbook(res)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// DefaultReportName returns the workbook file name for a run started at now
func DefaultReportName(now time.Time) string {
	return "精确比对结果_" + now.Format("20060102_150405") + ".xlsx"
}
