package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowmatch/internal/matching"
	"rowmatch/internal/shared/testutil"
	"rowmatch/internal/tabular"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, ContentTypeProblem, rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNewErrorHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)
	assert.True(t, h.includeStack)
	assert.NotNil(t, h.logger)
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantType string
		wantErr  string
	}{
		{
			name:     "deadline exceeded",
			err:      fmt.Errorf("compare: %w", context.DeadlineExceeded),
			wantCode: http.StatusGatewayTimeout,
			wantType: TypeTimeout,
		},
		{
			name:     "canceled",
			err:      context.Canceled,
			wantCode: http.StatusGatewayTimeout,
			wantType: TypeTimeout,
		},
		{
			name:     "api error",
			err:      ErrInvalidRequest,
			wantCode: http.StatusBadRequest,
			wantType: TypeValidation,
			wantErr:  CodeInvalidRequest,
		},
		{
			name:     "column error",
			err:      &matching.ColumnError{Table: matching.SideLookup, Column: "id"},
			wantCode: http.StatusUnprocessableEntity,
			wantType: TypeInvalidColumn,
			wantErr:  CodeInvalidColumn,
		},
		{
			name:     "column count mismatch",
			err:      fmt.Errorf("%w: 2 data columns, 1 lookup columns", matching.ErrColumnCountMismatch),
			wantCode: http.StatusUnprocessableEntity,
			wantType: TypeColumnCount,
			wantErr:  CodeColumnCountMismatch,
		},
		{
			name:     "empty pairing",
			err:      matching.ErrEmptyPairing,
			wantCode: http.StatusUnprocessableEntity,
			wantType: TypeEmptyPairing,
			wantErr:  CodeEmptyPairing,
		},
		{
			name:     "invalid table",
			err:      matching.ErrInvalidTable,
			wantCode: http.StatusUnprocessableEntity,
			wantType: TypeInvalidTable,
			wantErr:  CodeInvalidTable,
		},
		{
			name:     "matching error wrapped in app error",
			err:      NewMatchingError("compare failed", matching.ErrEmptyPairing),
			wantCode: http.StatusUnprocessableEntity,
			wantType: TypeEmptyPairing,
			wantErr:  CodeEmptyPairing,
		},
		{
			name:     "unsupported format",
			err:      fmt.Errorf("%w: .xls", tabular.ErrUnsupportedFormat),
			wantCode: http.StatusUnsupportedMediaType,
			wantType: TypeUnsupportedFormat,
			wantErr:  CodeUnsupportedFormat,
		},
		{
			name:     "empty file",
			err:      NewParsingError("read data file", tabular.ErrEmptyFile),
			wantCode: http.StatusBadRequest,
			wantType: TypeInvalidInput,
			wantErr:  CodeEmptyFile,
		},
		{
			name:     "too many rows",
			err:      tabular.ErrTooManyRows,
			wantCode: http.StatusBadRequest,
			wantType: TypeInvalidInput,
			wantErr:  CodeTooManyRows,
		},
		{
			name:     "sheet not found",
			err:      tabular.ErrSheetNotFound,
			wantCode: http.StatusBadRequest,
			wantType: TypeInvalidInput,
			wantErr:  CodeSheetNotFound,
		},
		{
			name:     "body too large",
			err:      &http.MaxBytesError{Limit: 10},
			wantCode: http.StatusRequestEntityTooLarge,
			wantType: TypePayloadTooLarge,
			wantErr:  CodePayloadTooLarge,
		},
		{
			name:     "app validation error",
			err:      NewAppValidationError("bad input"),
			wantCode: http.StatusBadRequest,
			wantType: TypeValidation,
			wantErr:  string(ErrTypeValidation),
		},
		{
			name:     "unknown error",
			err:      fmt.Errorf("disk on fire"),
			wantCode: http.StatusInternalServerError,
			wantType: TypeInternal,
			wantErr:  CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/compare", nil)
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-1"))
			rec := httptest.NewRecorder()

			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantCode, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantCode), body["status"])
			assert.Equal(t, "/api/v1/compare", body["instance"])
			assert.Equal(t, "req-1", body["trace_id"])
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, body["error_code"])
			}
			assert.NotContains(t, body, "stack")
		})
	}
}

func TestErrorHandler_HandleErrorNil(t *testing.T) {
	logger, capture := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	rec := httptest.NewRecorder()

	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Zero(t, rec.Body.Len())
	assert.Empty(t, capture.Records())
}

func TestErrorHandler_ColumnErrorExtensions(t *testing.T) {
	logger, capture := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	rec := httptest.NewRecorder()

	err := fmt.Errorf("resolve: %w", &matching.ColumnError{Table: matching.SideData, Column: "code"})
	h.HandleError(rec, httptest.NewRequest(http.MethodPost, "/", nil), err)

	body := decodeProblem(t, rec)
	assert.Equal(t, "data", body["table"])
	assert.Equal(t, "code", body["column"])
	assert.Contains(t, body["detail"], `"code" not found in data table`)

	record := testutil.AssertLogged(t, capture, "request failed")
	assert.Equal(t, int64(http.StatusUnprocessableEntity), record.Attrs["status"])
}

func TestErrorHandler_ValidationDetails(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	rec := httptest.NewRecorder()

	h.HandleError(rec, httptest.NewRequest(http.MethodPost, "/", nil), NewValidationErrors([]ValidationError{
		{Field: "data_columns", Message: "data_columns is required"},
	}))

	body := decodeProblem(t, rec)
	assert.Equal(t, CodeValidationFailed, body["error_code"])
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	errs, ok := details["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "data_columns", errs[0].(map[string]any)["field"])
}

func TestErrorHandler_StackOnServerErrors(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)

	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("boom"))
	assert.Contains(t, decodeProblem(t, rec), "stack")

	rec = httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), matching.ErrEmptyPairing)
	assert.NotContains(t, decodeProblem(t, rec), "stack")
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	logger, capture := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)
	rec := httptest.NewRecorder()

	h.HandlePanic(rec, httptest.NewRequest(http.MethodGet, "/panic", nil), "kaboom")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, "kaboom", body["panic"])
	assert.True(t, strings.Contains(body["stack"].(string), "goroutine"))
	testutil.AssertLogged(t, capture, "panic recovered")
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, rec)["type"])

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/compare", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method DELETE is not allowed for this endpoint", decodeProblem(t, rec)["detail"])
}
