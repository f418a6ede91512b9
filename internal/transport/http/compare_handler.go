package http

import (
	"bytes"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"rowmatch/internal/config"
	apierrors "rowmatch/internal/errors"
	"rowmatch/internal/exporter"
	"rowmatch/internal/matching"
	"rowmatch/internal/middleware"
	"rowmatch/internal/services"
	"rowmatch/internal/tabular"
	api "rowmatch/pkg/contracts/api/v1"
)

// ContentTypeXLSX is the media type of workbook reports
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// multipartMemory is how much of an upload is kept in memory before spilling to disk
const multipartMemory = 8 << 20

// CompareHandlerConfig carries the limits the compare routes enforce
type CompareHandlerConfig struct {
	RequestTimeout time.Duration
	MaxUploadBytes int64
	AllowedOrigins []string
	WebSocket      config.WebSocketConfig
}

// CompareHandler serves comparisons
type CompareHandler struct {
	service      services.Comparer
	cfg          CompareHandlerConfig
	validator    *middleware.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	now          func() time.Time
}

// NewCompareHandler creates a new compare handler
func NewCompareHandler(service services.Comparer, cfg CompareHandlerConfig, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *CompareHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompareHandler{
		service:      service,
		cfg:          cfg,
		validator:    middleware.NewValidator(),
		logger:       logger.With(slog.String("handler", "compare")),
		errorHandler: errorHandler,
		now:          time.Now,
	}
}

// Routes returns the compare routes
func (h *CompareHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if h.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(h.cfg.RequestTimeout))
		}
		r.Use(middleware.MaxBodySize(h.cfg.MaxUploadBytes))
		r.Post("/", h.Compare)
		r.Post("/upload", h.Upload)
	})
	r.Get("/ws", h.Stream)

	return r
}

// Compare handles POST /api/v1/compare with both tables inline
func (h *CompareHandler) Compare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CompareRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	res, err := h.service.Compare(ctx, services.CompareInput{
		Data:          req.Data,
		Lookup:        req.Lookup,
		DataColumns:   req.DataColumns,
		LookupColumns: req.LookupColumns,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, api.Response{Status: "success", Data: NewCompareResponse(res)})
}

// Upload handles POST /api/v1/compare/upload. The report is returned as a
// workbook attachment unless format=json is given.
func (h *CompareHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	format := r.FormValue(api.FormFormat)
	if format != "" && format != "json" && format != "xlsx" {
		h.errorHandler.HandleError(w, r, apierrors.NewValidationErrors([]apierrors.ValidationError{
			{Field: api.FormFormat, Message: "format must be one of: xlsx, json"},
		}))
		return
	}

	dataFile, dataHeader, err := r.FormFile(api.FormDataFile)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.MissingField(api.FormDataFile))
		return
	}
	defer dataFile.Close()
	lookupFile, lookupHeader, err := r.FormFile(api.FormLookupFile)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.MissingField(api.FormLookupFile))
		return
	}
	defer lookupFile.Close()

	data, lookup, err := h.service.LoadSources(ctx,
		services.Source{Name: dataHeader.Filename, Reader: dataFile, Sheet: r.FormValue(api.FormDataSheet)},
		services.Source{Name: lookupHeader.Filename, Reader: lookupFile, Sheet: r.FormValue(api.FormLookupSheet)},
	)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	res, err := h.service.Compare(ctx, services.CompareInput{
		Data:          data,
		Lookup:        lookup,
		DataColumns:   tabular.SplitColumns(r.FormValue(api.FormDataColumns)),
		LookupColumns: tabular.SplitColumns(r.FormValue(api.FormLookupColumns)),
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if format == "json" {
		render.JSON(w, r, api.Response{Status: "success", Data: NewCompareResponse(res)})
		return
	}

	var buf bytes.Buffer
	if err := exporter.WriteWorkbook(&buf, res); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewStorageError("failed to render workbook", err))
		return
	}

	name := exporter.DefaultReportName(h.now())
	w.Header().Set("Content-Type", ContentTypeXLSX)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(ctx, "failed to send workbook", slog.String("error", err.Error()))
	}
}

// NewCompareResponse converts a result to its JSON contract
func NewCompareResponse(res *matching.Result) api.CompareResponse {
	return api.CompareResponse{
		Statistics:      res.Statistics,
		Summary:         res.Statistics.Entries(),
		LookupRecords:   res.Records,
		DataAnnotations: res.Annotations,
		AnnotatedData:   res.AnnotatedData,
		AnnotatedLookup: res.AnnotatedLookup,
		Pairing:         res.Pairing,
	}
}
