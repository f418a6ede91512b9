package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"rowmatch/pkg/contracts/domain"
)

// ErrInvalidTable is returned when an input table is malformed
var ErrInvalidTable = errors.New("invalid table")

// DefaultProgressEvery is the default number of lookup rows between progress callbacks
const DefaultProgressEvery = 100

const searchPrefix = "查找条件: "

// Progress reports how many lookup rows have been scanned
type Progress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// Option configures a Compare call
type Option func(*options)

type options struct {
	progress func(Progress)
	every    int
	logger   *slog.Logger
}

// WithProgress registers a callback invoked while lookup rows are scanned
func WithProgress(fn func(Progress)) Option {
	return func(o *options) { o.progress = fn }
}

// WithProgressEvery sets how many lookup rows pass between progress callbacks.
// The last row always reports.
func WithProgressEvery(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.every = n
	}
}

// WithLogger enables debug logging of the scan
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Result is the complete outcome of a comparison
type Result struct {
	AnnotatedData   *domain.Table              `json:"annotated_data"`
	AnnotatedLookup *domain.Table              `json:"annotated_lookup"`
	Records         []domain.MatchRecord       `json:"lookup_records"`
	Annotations     []domain.DataRowAnnotation `json:"data_annotations"`
	Statistics      domain.MatchStatistics     `json:"statistics"`
	Pairing         domain.ColumnPairing       `json:"pairing"`
}

// NewPairing zips the two column lists into a pairing
func NewPairing(dataColumns, lookupColumns []string) (domain.ColumnPairing, error) {
	if len(dataColumns) != len(lookupColumns) {
		return nil, fmt.Errorf("%w: %d data columns, %d lookup columns",
			ErrColumnCountMismatch, len(dataColumns), len(lookupColumns))
	}
	if len(dataColumns) == 0 {
		return nil, ErrEmptyPairing
	}
	pairing := make(domain.ColumnPairing, len(dataColumns))
	for i := range dataColumns {
		pairing[i] = domain.ColumnPair{DataColumn: dataColumns[i], LookupColumn: lookupColumns[i]}
	}
	return pairing, nil
}

// Compare matches every lookup row against every data row on the paired
// columns. Rows are scanned in ascending order; a lookup row matches a data
// row only when all paired normalized values are equal. Either a complete
// Result is returned or an error, never both.
func Compare(ctx context.Context, data, lookup *domain.Table, pairing domain.ColumnPairing, opts ...Option) (*Result, error) {
	o := options{every: DefaultProgressEvery}
	for _, opt := range opts {
		opt(&o)
	}

	if len(pairing) == 0 {
		return nil, ErrEmptyPairing
	}
	if data == nil {
		data = &domain.Table{}
	}
	if lookup == nil {
		lookup = &domain.Table{}
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("%w: data table: %v", ErrInvalidTable, err)
	}
	if err := lookup.Validate(); err != nil {
		return nil, fmt.Errorf("%w: lookup table: %v", ErrInvalidTable, err)
	}

	dataNorm, err := normalizeSide(data, pairing.DataColumns(), SideData)
	if err != nil {
		return nil, err
	}
	lookupColumns := pairing.LookupColumns()
	lookupNorm, err := normalizeSide(lookup, lookupColumns, SideLookup)
	if err != nil {
		return nil, err
	}

	total, width := lookup.Len(), data.Len()
	if o.logger != nil {
		o.logger.DebugContext(ctx, "comparison started",
			slog.Int("lookup_rows", total),
			slog.Int("data_rows", width),
			slog.Int("columns", len(pairing)))
	}

	records := make([]domain.MatchRecord, total)
	counts := make([]int, width)
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("comparison stopped after %d of %d lookup rows: %w", i, total, err)
		}

		hits := []int{}
		for j := 0; j < width; j++ {
			if rowsEqual(lookupNorm, i, dataNorm, j) {
				hits = append(hits, j)
				counts[j]++
			}
		}
		records[i] = newRecord(i, hits, lookupColumns, lookupNorm)

		processed := i + 1
		if processed%o.every == 0 || processed == total {
			if o.progress != nil {
				o.progress(Progress{Processed: processed, Total: total})
			}
			if o.logger != nil {
				o.logger.DebugContext(ctx, "comparison progress",
					slog.Int("processed", processed),
					slog.Int("total", total))
			}
		}
	}

	annotations := make([]domain.DataRowAnnotation, width)
	for j, n := range counts {
		annotations[j] = domain.DataRowAnnotation{DataRow: j, Matched: n > 0, MatchCount: n}
	}

	return &Result{
		AnnotatedData:   annotateData(data, annotations),
		AnnotatedLookup: annotateLookup(lookup, records),
		Records:         records,
		Annotations:     annotations,
		Statistics:      summarize(records, annotations),
		Pairing:         pairing,
	}, nil
}

func rowsEqual(lookup [][]NormalizedValue, i int, data [][]NormalizedValue, j int) bool {
	for c := range lookup {
		if lookup[c][i] != data[c][j] {
			return false
		}
	}
	return true
}

func newRecord(row int, hits []int, columns []string, norm [][]NormalizedValue) domain.MatchRecord {
	rec := domain.MatchRecord{LookupRow: row, DataRows: hits}

	parts := make([]string, 0, len(columns))
	for c, name := range columns {
		if v := norm[c][row]; !v.IsNull() {
			parts = append(parts, name+"="+v.text)
		}
	}
	detail := strings.Join(parts, "; ")

	switch len(hits) {
	case 0:
		rec.Status = domain.StatusUnmatched
		rec.Detail = searchPrefix + detail
	case 1:
		rec.Status = domain.StatusMatched
		rec.RowLabel = RowLabel(hits)
		rec.Detail = detail
	default:
		rec.Status = domain.StatusDuplicate
		rec.RowLabel = RowLabel(hits)
		rec.Detail = detail
	}
	return rec
}

// RowLabel renders 0-based data row indices as a 1-based label such as 第3行 or 第1,4行
func RowLabel(rows []int) string {
	if len(rows) == 0 {
		return ""
	}
	nums := make([]string, len(rows))
	for i, r := range rows {
		nums[i] = strconv.Itoa(r + 1)
	}
	return "第" + strings.Join(nums, ",") + "行"
}

func summarize(records []domain.MatchRecord, annotations []domain.DataRowAnnotation) domain.MatchStatistics {
	stats := domain.MatchStatistics{LookupRows: len(records), DataRows: len(annotations)}
	for _, r := range records {
		switch r.Status {
		case domain.StatusMatched:
			stats.Matched++
		case domain.StatusDuplicate:
			stats.Duplicate++
		default:
			stats.Unmatched++
		}
	}
	for _, a := range annotations {
		if !a.Matched {
			stats.DataUnmatched++
		}
	}
	return stats
}

func annotateLookup(t *domain.Table, records []domain.MatchRecord) *domain.Table {
	names := annotationNames(t.Columns, domain.ColumnMatchStatus, domain.ColumnMatchRows, domain.ColumnMatchDetail)
	return t.WithColumns(names, func(i int) []domain.Value {
		r := records[i]
		label := domain.Null()
		if r.RowLabel != "" {
			label = domain.Text(r.RowLabel)
		}
		return []domain.Value{domain.Text(r.Status.Label()), label, domain.Text(r.Detail)}
	})
}

func annotateData(t *domain.Table, annotations []domain.DataRowAnnotation) *domain.Table {
	names := annotationNames(t.Columns, domain.ColumnMatchedState, domain.ColumnMatchedCount)
	return t.WithColumns(names, func(j int) []domain.Value {
		a := annotations[j]
		return []domain.Value{domain.Text(a.Label()), domain.Number(float64(a.MatchCount))}
	})
}

// annotationNames returns the wanted column names, suffixed with _1, _2 ...
// where they would clash with an existing column
func annotationNames(existing []string, wanted ...string) []string {
	taken := make(map[string]struct{}, len(existing)+len(wanted))
	for _, c := range existing {
		taken[c] = struct{}{}
	}
	out := make([]string, len(wanted))
	for i, name := range wanted {
		candidate := name
		for n := 1; ; n++ {
			if _, clash := taken[candidate]; !clash {
				break
			}
			candidate = name + "_" + strconv.Itoa(n)
		}
		taken[candidate] = struct{}{}
		out[i] = candidate
	}
	return out
}

// AnnotationColumns returns the names Compare appends to the data and lookup tables
func (r *Result) AnnotationColumns() (data, lookup []string) {
	nd := len(r.AnnotatedData.Columns)
	nl := len(r.AnnotatedLookup.Columns)
	return r.AnnotatedData.Columns[nd-2:], r.AnnotatedLookup.Columns[nl-3:]
}
