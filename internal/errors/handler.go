package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	"rowmatch/internal/matching"
	"rowmatch/internal/tabular"
)

// ErrorHandler converts errors to problem responses
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	problem.WithExtension("trace_id", reqID)
	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}
	problem.Write(w)
}

// ErrorToProblem maps err onto a problem. Matching failures are 422, input
// file failures 400 or 415, context expiry 504 and anything unknown 500.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	instance := r.URL.Path

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			instance,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErrorToProblem(apiErr, instance)
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return apiErrorToProblem(PayloadTooLarge(maxBytes.Limit), instance)
	}

	if problem := matchingProblem(err, instance); problem != nil {
		return problem
	}
	if problem := inputProblem(err, instance); problem != nil {
		return problem
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case ErrTypeValidation, ErrTypeParsing:
			return NewProblemDetails(http.StatusBadRequest, TypeValidation, "Bad Request", appErr.Message, instance).
				WithExtension("error_code", string(appErr.Type))
		case ErrTypeNotFound:
			return NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found", appErr.Message, instance).
				WithExtension("error_code", string(appErr.Type))
		}
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		instance,
	).WithExtension("error_code", CodeInternal)
}

func matchingProblem(err error, instance string) *ProblemDetails {
	var problem *ProblemDetails
	switch {
	case errors.Is(err, matching.ErrInvalidColumn):
		problem = NewProblemDetails(http.StatusUnprocessableEntity, TypeInvalidColumn, "Invalid Column", err.Error(), instance).
			WithExtension("error_code", CodeInvalidColumn)
		var colErr *matching.ColumnError
		if errors.As(err, &colErr) {
			problem.WithExtension("table", colErr.Table).WithExtension("column", colErr.Column)
		}
	case errors.Is(err, matching.ErrColumnCountMismatch):
		problem = NewProblemDetails(http.StatusUnprocessableEntity, TypeColumnCount, "Column Count Mismatch", err.Error(), instance).
			WithExtension("error_code", CodeColumnCountMismatch)
	case errors.Is(err, matching.ErrEmptyPairing):
		problem = NewProblemDetails(http.StatusUnprocessableEntity, TypeEmptyPairing, "Empty Pairing", err.Error(), instance).
			WithExtension("error_code", CodeEmptyPairing)
	case errors.Is(err, matching.ErrInvalidTable):
		problem = NewProblemDetails(http.StatusUnprocessableEntity, TypeInvalidTable, "Invalid Table", err.Error(), instance).
			WithExtension("error_code", CodeInvalidTable)
	}
	return problem
}

func inputProblem(err error, instance string) *ProblemDetails {
	switch {
	case errors.Is(err, tabular.ErrUnsupportedFormat):
		return NewProblemDetails(http.StatusUnsupportedMediaType, TypeUnsupportedFormat, "Unsupported Media Type", err.Error(), instance).
			WithExtension("error_code", CodeUnsupportedFormat)
	case errors.Is(err, tabular.ErrEmptyFile):
		return NewProblemDetails(http.StatusBadRequest, TypeInvalidInput, "Bad Request", err.Error(), instance).
			WithExtension("error_code", CodeEmptyFile)
	case errors.Is(err, tabular.ErrTooManyRows):
		return NewProblemDetails(http.StatusBadRequest, TypeInvalidInput, "Bad Request", err.Error(), instance).
			WithExtension("error_code", CodeTooManyRows)
	case errors.Is(err, tabular.ErrSheetNotFound):
		return NewProblemDetails(http.StatusBadRequest, TypeInvalidInput, "Bad Request", err.Error(), instance).
			WithExtension("error_code", CodeSheetNotFound)
	}
	return nil
}

func apiErrorToProblem(apiErr *APIError, instance string) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case CodeValidationFailed, CodeInvalidRequest, CodeWebSocketUpgrade:
		problemType = TypeValidation
	case CodeNotFound:
		problemType = TypeNotFound
	case CodeRateLimitExceeded:
		problemType = TypeRateLimit
	case CodePayloadTooLarge:
		problemType = TypePayloadTooLarge
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		instance,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// HandlePanic logs a recovered panic and responds with a 500 problem
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered any) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID).WithExtension("error_code", CodeInternal)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}
	problem.Write(w)
}

// NotFound returns a standard 404 problem
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context())).Write(w)
}

// MethodNotAllowed returns a standard 405 problem
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodNotAllowed,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context())).Write(w)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
