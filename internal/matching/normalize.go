package matching

import (
	"strings"

	"rowmatch/pkg/contracts/domain"
)

// NullSentinel is how a missing value is rendered in logs and reports
const NullSentinel = "__NULL__"

// NormalizedValue is the comparable form of a cell: trimmed text, or the
// null sentinel. The sentinel is a flag, so no text can collide with it.
type NormalizedValue struct {
	text string
	null bool
}

// NullValue returns the sentinel
func NullValue() NormalizedValue { return NormalizedValue{null: true} }

// IsNull reports whether v is the sentinel
func (v NormalizedValue) IsNull() bool { return v.null }

// String returns the text, or NullSentinel for the sentinel
func (v NormalizedValue) String() string {
	if v.null {
		return NullSentinel
	}
	return v.text
}

// NormalizeValue converts a cell into its comparable form. Empty text after
// trimming is indistinguishable from a missing cell and maps to the sentinel.
func NormalizeValue(v domain.Value) NormalizedValue {
	if v.IsNull() {
		return NullValue()
	}
	s := strings.TrimSpace(v.String())
	if s == "" {
		return NullValue()
	}
	return NormalizedValue{text: s}
}

// NormalizeColumns projects the named columns of t into normalized form.
// The result is column-major: out[c][row] belongs to columns[c].
func NormalizeColumns(t *domain.Table, columns []string) ([][]NormalizedValue, error) {
	return normalizeSide(t, columns, "")
}

func normalizeSide(t *domain.Table, columns []string, side string) ([][]NormalizedValue, error) {
	idx := make([]int, len(columns))
	for c, name := range columns {
		i := t.ColumnIndex(name)
		if i < 0 {
			return nil, &ColumnError{Table: side, Column: name}
		}
		idx[c] = i
	}

	out := make([][]NormalizedValue, len(columns))
	for c, col := range idx {
		values := make([]NormalizedValue, t.Len())
		for row := range values {
			values[row] = NormalizeValue(t.Cell(row, col))
		}
		out[c] = values
	}
	return out, nil
}
