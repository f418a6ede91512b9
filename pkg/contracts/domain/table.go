package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ValueKind identifies the dynamic type held by a Value
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindText
	KindNumber
	KindBool
	KindTime
)

// String returns the kind name
func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return "null"
	}
}

const (
	// DateTimeLayout is used when rendering time cells as text
	DateTimeLayout = "2006-01-02 15:04:05"
	// DateLayout is used for time cells that fall exactly on midnight
	DateLayout = "2006-01-02"
)

// Value is a single table cell. The zero Value is Null.
type Value struct {
	kind ValueKind
	text string
	num  float64
	flag bool
	// whole holds integers beyond float64 precision, flagged by wide
	whole int64
	wide  bool
	at   time.Time
}

// Null returns the missing value
func Null() Value { return Value{} }

// Text wraps a string cell
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number wraps a numeric cell. NaN is treated as missing.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Bool wraps a boolean cell
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Time wraps a date or datetime cell
func Time(t time.Time) Value {
	if t.IsZero() {
		return Value{}
	}
	return Value{kind: KindTime, at: t}
}

// ValueOf converts a Go value into a Value. Unknown types are rendered with %v.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case string:
		return Text(x)
	case bool:
		return Bool(x)
	case int:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case float32:
		return Number(float64(x))
	case float64:
		return Number(x)
	case json.Number:
		if n, ok := ParseNumber(x.String()); ok {
			return n
		}
		return Text(x.String())
	case time.Time:
		return Time(x)
	default:
		return Text(fmt.Sprintf("%v", x))
	}
}

// Row builds a row from plain Go values
func Row(values ...any) []Value {
	row := make([]Value, len(values))
	for i, v := range values {
		row[i] = ValueOf(v)
	}
	return row
}

// Kind returns the dynamic type of the value
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is missing
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric payload and whether the value is a number
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// String renders the value as text. Null renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		if v.wide {
			return strconv.FormatInt(v.whole, 10)
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		if v.flag {
			return "True"
		}
		return "False"
	case KindTime:
		h, m, s := v.at.Clock()
		if h == 0 && m == 0 && s == 0 && v.at.Nanosecond() == 0 {
			return v.at.Format(DateLayout)
		}
		return v.at.Format(DateTimeLayout)
	default:
		return ""
	}
}

// Interface returns the payload as a plain Go value, nil for Null
func (v Value) Interface() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		if v.wide {
			return v.whole
		}
		return v.num
	case KindBool:
		return v.flag
	case KindTime:
		return v.at
	default:
		return nil
	}
}

// MarshalJSON encodes the value as null, string, number or bool.
// Times are emitted in their text form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if v.wide {
			return json.Marshal(v.whole)
		}
		if math.IsInf(v.num, 0) {
			return json.Marshal(v.String())
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.flag)
	case KindText, KindTime:
		return json.Marshal(v.String())
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes null, string, number or bool scalars. Numbers that
// cannot be stored without losing digits decode as text.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil, string, bool, json.Number:
		*v = ValueOf(x)
		return nil
	default:
		return fmt.Errorf("cell must be a scalar, got %T", raw)
	}
}

// Table is an ordered set of named columns and rows of cells.
// A row shorter than the column list reads as Null for the missing cells.
type Table struct {
	Columns []string  `json:"columns"`
	Rows    [][]Value `json:"rows"`
}

// NewTable creates a table with the given header and rows
func NewTable(columns []string, rows ...[]Value) *Table {
	return &Table{Columns: columns, Rows: rows}
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column or -1
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table has the named column
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Cell returns the value at row, col. Out of range cells are Null.
func (t *Table) Cell(row, col int) Value {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return Null()
	}
	r := t.Rows[row]
	if col >= len(r) {
		return Null()
	}
	return r[col]
}

// RowMap returns row i keyed by column name
func (t *Table) RowMap(i int) map[string]Value {
	m := make(map[string]Value, len(t.Columns))
	for c, name := range t.Columns {
		m[name] = t.Cell(i, c)
	}
	return m
}

// Clone returns a deep copy whose rows are padded to the column count
func (t *Table) Clone() *Table {
	return t.cloneWithExtra(0)
}

// WithColumns returns a copy of the table with extra columns appended.
// values(i) must return exactly len(names) cells for row i.
func (t *Table) WithColumns(names []string, values func(row int) []Value) *Table {
	out := t.cloneWithExtra(len(names))
	out.Columns = append(out.Columns, names...)
	for i := range out.Rows {
		out.Rows[i] = append(out.Rows[i], values(i)...)
	}
	return out
}

func (t *Table) cloneWithExtra(extra int) *Table {
	width := len(t.Columns)
	out := &Table{
		Columns: make([]string, width, width+extra),
		Rows:    make([][]Value, len(t.Rows)),
	}
	copy(out.Columns, t.Columns)
	for i := range t.Rows {
		row := make([]Value, width, width+extra)
		copy(row, t.Rows[i])
		out.Rows[i] = row
	}
	return out
}

// Validate checks that column names are unique and non-empty and that no
// row is wider than the header
func (t *Table) Validate() error {
	seen := make(map[string]struct{}, len(t.Columns))
	for i, name := range t.Columns {
		if name == "" {
			return fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate column name %q", name)
		}
		seen[name] = struct{}{}
	}
	for i, row := range t.Rows {
		if len(row) > len(t.Columns) {
			return fmt.Errorf("row %d has %d cells but the table has %d columns", i, len(row), len(t.Columns))
		}
	}
	return nil
}
