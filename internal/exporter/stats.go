package exporter

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"rowmatch/internal/matching"
	"rowmatch/pkg/contracts/domain"
)

const ruleWidth = 50

// WriteStatistics prints the comparison statistics as a framed block. Row
// totals are printed as is; the other counts also show their share of the
// lookup rows.
func WriteStatistics(w io.Writer, stats domain.MatchStatistics) error {
	rule := strings.Repeat("=", ruleWidth)
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n比对结果统计\n%s\n", rule, rule)
	for _, e := range stats.Entries() {
		if e.Total {
			fmt.Fprintf(&b, "%s: %d\n", e.Label, e.Value)
			continue
		}
		fmt.Fprintf(&b, "%s: %d (%.1f%%)\n", e.Label, e.Value, stats.Percent(e.Value))
	}
	b.WriteString(rule + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteTablePreview prints the first n rows of t as aligned columns
func WriteTablePreview(w io.Writer, t *domain.Table, columns []string, n int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	idx := make([]int, len(columns))
	for i, name := range columns {
		idx[i] = t.ColumnIndex(name)
	}

	fmt.Fprintln(tw, "\t"+strings.Join(columns, "\t"))
	for r := 0; r < min(n, t.Len()); r++ {
		cells := make([]string, len(idx))
		for i, c := range idx {
			cells[i] = t.Cell(r, c).String()
		}
		fmt.Fprintf(tw, "%d\t%s\n", r, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// WritePreview prints the first n annotated lookup rows: the three
// annotation columns followed by up to three of the original columns.
func WritePreview(w io.Writer, res *matching.Result, n int) error {
	_, lookupCols := res.AnnotationColumns()
	t := res.AnnotatedLookup
	original := t.Columns[:len(t.Columns)-len(lookupCols)]
	columns := append(slices.Clone(lookupCols), original[:min(3, len(original))]...)
	return WriteTablePreview(w, t, columns, n)
}
