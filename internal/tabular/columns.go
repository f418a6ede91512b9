package tabular

import (
	"strconv"
	"strings"

	"rowmatch/internal/matching"
	"rowmatch/pkg/contracts/domain"
)

// SplitColumns splits a comma separated column list and trims each entry.
// Empty entries are dropped.
func SplitColumns(spec string) []string {
	var out []string
	for _, tok := range strings.Split(spec, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// ResolveColumns maps user column references to header names. When every
// reference is a non-negative integer they select columns by 0-based
// position, otherwise they are header names.
func ResolveColumns(t *domain.Table, side string, refs []string) ([]string, error) {
	if len(refs) == 0 {
		return nil, matching.ErrEmptyPairing
	}

	positions := make([]int, len(refs))
	byPosition := true
	for i, ref := range refs {
		n, err := strconv.Atoi(ref)
		if err != nil || n < 0 {
			byPosition = false
			break
		}
		positions[i] = n
	}

	out := make([]string, len(refs))
	for i, ref := range refs {
		if byPosition && !t.HasColumn(ref) {
			if positions[i] >= len(t.Columns) {
				return nil, &matching.ColumnError{Table: side, Column: ref}
			}
			out[i] = t.Columns[positions[i]]
			continue
		}
		if !t.HasColumn(ref) {
			return nil, &matching.ColumnError{Table: side, Column: ref}
		}
		out[i] = ref
	}
	return out, nil
}
