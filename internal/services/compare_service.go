package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"rowmatch/internal/config"
	apierrors "rowmatch/internal/errors"
	"rowmatch/internal/exporter"
	"rowmatch/internal/infrastructure"
	"rowmatch/internal/matching"
	"rowmatch/internal/tabular"
	"rowmatch/pkg/contracts/domain"
)

// Comparer is what the shells need from the comparison service
type Comparer interface {
	LoadFiles(ctx context.Context, data, lookup FileSource) (*domain.Table, *domain.Table, error)
	LoadSources(ctx context.Context, data, lookup Source) (*domain.Table, *domain.Table, error)
	Compare(ctx context.Context, req CompareInput) (*matching.Result, error)
}

// Source is an uploaded input file
type Source struct {
	// Name is the client file name; its extension selects the reader
	Name   string
	Reader io.Reader
	Sheet  string
}

// FileSource is an input file on disk
type FileSource struct {
	Path  string
	Sheet string
}

// CompareInput describes one comparison. Column references are header
// names, or 0-based positions when every reference is a number.
type CompareInput struct {
	Data          *domain.Table
	Lookup        *domain.Table
	DataColumns   []string
	LookupColumns []string
	// Progress, when set, is called while lookup rows are scanned
	Progress func(matching.Progress)
}

// CompareService runs comparisons for every shell
type CompareService struct {
	cfg     config.MatchingConfig
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.CompareMetrics
}

// Option configures a CompareService
type Option func(*CompareService)

// WithTracer records a span per load and comparison
func WithTracer(tracer trace.Tracer) Option {
	return func(s *CompareService) { s.tracer = tracer }
}

// WithMetrics records comparison metrics
func WithMetrics(m *infrastructure.CompareMetrics) Option {
	return func(s *CompareService) { s.metrics = m }
}

// NewCompareService creates the service
func NewCompareService(cfg config.MatchingConfig, logger *slog.Logger, opts ...Option) *CompareService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &CompareService{
		cfg:    cfg,
		logger: infrastructure.WithComponent(logger, "compare_service"),
		tracer: noop.NewTracerProvider().Tracer(infrastructure.InstrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CompareService) readOptions(sheet string) tabular.Options {
	return tabular.Options{Sheet: sheet, MaxRows: s.cfg.MaxRows}
}

// LoadFiles reads both input files concurrently
func (s *CompareService) LoadFiles(ctx context.Context, data, lookup FileSource) (*domain.Table, *domain.Table, error) {
	ctx, span := s.tracer.Start(ctx, "compare.load_files")
	defer span.End()

	var dataTable, lookupTable *domain.Table
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := tabular.LoadFile(gctx, data.Path, s.readOptions(data.Sheet))
		if err != nil {
			return apierrors.NewParsingError("failed to load data file", err).WithContext("path", data.Path)
		}
		dataTable = t
		return nil
	})
	g.Go(func() error {
		t, err := tabular.LoadFile(gctx, lookup.Path, s.readOptions(lookup.Sheet))
		if err != nil {
			return apierrors.NewParsingError("failed to load lookup file", err).WithContext("path", lookup.Path)
		}
		lookupTable = t
		return nil
	})
	if err := g.Wait(); err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "Input files loaded",
		slog.String("data_path", data.Path),
		slog.Int("data_rows", dataTable.Len()),
		slog.String("lookup_path", lookup.Path),
		slog.Int("lookup_rows", lookupTable.Len()))
	return dataTable, lookupTable, nil
}

// LoadSources decodes two uploaded files concurrently
func (s *CompareService) LoadSources(ctx context.Context, data, lookup Source) (*domain.Table, *domain.Table, error) {
	ctx, span := s.tracer.Start(ctx, "compare.load_sources")
	defer span.End()

	var dataTable, lookupTable *domain.Table
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.readSource(gctx, data)
		if err != nil {
			return apierrors.NewParsingError("failed to read data file", err).WithContext("file", data.Name)
		}
		dataTable = t
		return nil
	})
	g.Go(func() error {
		t, err := s.readSource(gctx, lookup)
		if err != nil {
			return apierrors.NewParsingError("failed to read lookup file", err).WithContext("file", lookup.Name)
		}
		lookupTable = t
		return nil
	})
	if err := g.Wait(); err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "Uploaded files loaded",
		slog.String("data", data.String()),
		slog.Int("data_rows", dataTable.Len()),
		slog.String("lookup", lookup.String()),
		slog.Int("lookup_rows", lookupTable.Len()))
	return dataTable, lookupTable, nil
}

func (s *CompareService) readSource(ctx context.Context, src Source) (*domain.Table, error) {
	format, err := tabular.FormatFromName(src.Name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return tabular.Read(src.Reader, format, s.readOptions(src.Sheet))
}

// Compare resolves the column references and runs the matcher. Pairing
// errors are reported before column lookups, so an empty or uneven
// selection wins over an unknown column.
func (s *CompareService) Compare(ctx context.Context, req CompareInput) (*matching.Result, error) {
	ctx, span := s.tracer.Start(ctx, "compare.run")
	defer span.End()
	start := time.Now()

	res, err := s.compare(ctx, req)
	elapsed := time.Since(start)

	outcome := infrastructure.OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = infrastructure.OutcomeCanceled
	case isInvalidInput(err):
		outcome = infrastructure.OutcomeInvalid
	default:
		outcome = infrastructure.OutcomeError
	}

	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.metrics.RecordComparison(ctx, outcome, elapsed, nil)
		s.logger.WarnContext(ctx, "Comparison failed",
			slog.String("outcome", outcome),
			slog.String("error", err.Error()))
		return nil, err
	}

	stats := res.Statistics
	span.SetAttributes(
		attribute.Int("compare.lookup_rows", stats.LookupRows),
		attribute.Int("compare.data_rows", stats.DataRows),
		attribute.Int("compare.matched", stats.Matched),
		attribute.Int("compare.duplicate", stats.Duplicate),
		attribute.Int("compare.unmatched", stats.Unmatched),
	)
	s.metrics.RecordComparison(ctx, outcome, elapsed, &stats)
	s.logger.InfoContext(ctx, "Comparison completed",
		slog.Int("lookup_rows", stats.LookupRows),
		slog.Int("data_rows", stats.DataRows),
		slog.Int("matched", stats.Matched),
		slog.Int("duplicate", stats.Duplicate),
		slog.Int("unmatched", stats.Unmatched),
		slog.Duration("duration", elapsed))
	return res, nil
}

func (s *CompareService) compare(ctx context.Context, req CompareInput) (*matching.Result, error) {
	if _, err := matching.NewPairing(req.DataColumns, req.LookupColumns); err != nil {
		return nil, err
	}

	data, lookup := req.Data, req.Lookup
	if data == nil {
		data = &domain.Table{}
	}
	if lookup == nil {
		lookup = &domain.Table{}
	}

	dataCols, err := tabular.ResolveColumns(data, matching.SideData, req.DataColumns)
	if err != nil {
		return nil, err
	}
	lookupCols, err := tabular.ResolveColumns(lookup, matching.SideLookup, req.LookupColumns)
	if err != nil {
		return nil, err
	}
	pairing, err := matching.NewPairing(dataCols, lookupCols)
	if err != nil {
		return nil, err
	}

	opts := []matching.Option{
		matching.WithProgressEvery(s.cfg.ProgressEvery),
		matching.WithLogger(s.logger),
	}
	if req.Progress != nil {
		opts = append(opts, matching.WithProgress(req.Progress))
	}
	return matching.Compare(ctx, data, lookup, pairing, opts...)
}

func isInvalidInput(err error) bool {
	return errors.Is(err, matching.ErrInvalidColumn) ||
		errors.Is(err, matching.ErrColumnCountMismatch) ||
		errors.Is(err, matching.ErrEmptyPairing) ||
		errors.Is(err, matching.ErrInvalidTable)
}

// ReportStore writes comparison reports below the configured output directory
type ReportStore struct {
	cfg    *config.Config
	csv    *exporter.CSVWriter
	logger *slog.Logger
}

// NewReportStore creates a store for cfg.Report
func NewReportStore(cfg *config.Config, logger *slog.Logger) *ReportStore {
	logger = infrastructure.WithComponent(logger, "report_store")
	return &ReportStore{
		cfg:    cfg,
		csv:    exporter.NewCSVWriter("", logger),
		logger: logger,
	}
}

// Save writes the workbook to name, resolved against the output directory,
// plus the CSV exports when enabled. It returns every written path.
func (r *ReportStore) Save(ctx context.Context, name string, res *matching.Result) ([]string, error) {
	path := r.cfg.ReportPath(name)
	if err := exporter.SaveWorkbook(path, res); err != nil {
		return nil, apierrors.NewStorageError("failed to save workbook", err).WithContext("path", path)
	}
	written := []string{path}

	if r.cfg.Report.WriteCSV {
		paths, err := r.csv.WriteResult(path, res)
		if err != nil {
			return written, apierrors.NewStorageError("failed to write csv export", err).WithContext("path", path)
		}
		written = append(written, paths...)
	}

	r.logger.InfoContext(ctx, "Report saved", slog.Any("paths", written))
	return written, nil
}

// String describes the source for log records
func (s Source) String() string {
	if s.Sheet == "" {
		return s.Name
	}
	return fmt.Sprintf("%s[%s]", s.Name, s.Sheet)
}
