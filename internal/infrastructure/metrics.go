package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"rowmatch/pkg/contracts/domain"
)

// Comparison outcomes recorded on rowmatch_comparisons_total
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeCanceled = "canceled"
	OutcomeError    = "error"
)

// CompareMetrics holds the instruments recorded per comparison
type CompareMetrics struct {
	Comparisons   metric.Int64Counter
	Duration      metric.Float64Histogram
	RowsCompared  metric.Int64Counter
	LookupResults metric.Int64Counter
}

// NewCompareMetrics creates the comparison instruments on meter
func NewCompareMetrics(meter metric.Meter) (*CompareMetrics, error) {
	comparisons, err := meter.Int64Counter(
		"rowmatch_comparisons_total",
		metric.WithDescription("Total number of comparisons by outcome"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"rowmatch_compare_duration_seconds",
		metric.WithDescription("Comparison duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	rows, err := meter.Int64Counter(
		"rowmatch_rows_compared_total",
		metric.WithDescription("Total number of input rows compared by table side"),
	)
	if err != nil {
		return nil, err
	}

	lookup, err := meter.Int64Counter(
		"rowmatch_lookup_rows_total",
		metric.WithDescription("Total number of lookup rows by match status"),
	)
	if err != nil {
		return nil, err
	}

	return &CompareMetrics{
		Comparisons:   comparisons,
		Duration:      duration,
		RowsCompared:  rows,
		LookupResults: lookup,
	}, nil
}

// RecordComparison records one finished comparison. stats is nil when the
// comparison failed.
func (m *CompareMetrics) RecordComparison(ctx context.Context, outcome string, elapsed time.Duration, stats *domain.MatchStatistics) {
	if m == nil {
		return
	}

	outcomeAttr := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Comparisons.Add(ctx, 1, outcomeAttr)
	m.Duration.Record(ctx, elapsed.Seconds(), outcomeAttr)

	if stats == nil {
		return
	}
	m.RowsCompared.Add(ctx, int64(stats.DataRows), metric.WithAttributes(attribute.String("side", "data")))
	m.RowsCompared.Add(ctx, int64(stats.LookupRows), metric.WithAttributes(attribute.String("side", "lookup")))
	for _, s := range []struct {
		status domain.MatchStatus
		n      int
	}{
		{domain.StatusMatched, stats.Matched},
		{domain.StatusDuplicate, stats.Duplicate},
		{domain.StatusUnmatched, stats.Unmatched},
	} {
		if s.n > 0 {
			m.LookupResults.Add(ctx, int64(s.n), metric.WithAttributes(attribute.String("status", s.status.String())))
		}
	}
}
