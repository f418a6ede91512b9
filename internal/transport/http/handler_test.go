package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"rowmatch/internal/config"
	apierrors "rowmatch/internal/errors"
	"rowmatch/internal/exporter"
	"rowmatch/internal/matching"
	"rowmatch/internal/middleware"
	"rowmatch/internal/services"
	"rowmatch/internal/tabular"
	"rowmatch/pkg/contracts/domain"
	"rowmatch/pkg/contracts/events"
)

// MockComparer is a mock implementation of services.Comparer
type MockComparer struct {
	mock.Mock
}

func (m *MockComparer) LoadFiles(ctx context.Context, data, lookup services.FileSource) (*domain.Table, *domain.Table, error) {
	args := m.Called(ctx, data, lookup)
	return tableArg(args, 0), tableArg(args, 1), args.Error(2)
}

func (m *MockComparer) LoadSources(ctx context.Context, data, lookup services.Source) (*domain.Table, *domain.Table, error) {
	args := m.Called(ctx, data, lookup)
	return tableArg(args, 0), tableArg(args, 1), args.Error(2)
}

func (m *MockComparer) Compare(ctx context.Context, req services.CompareInput) (*matching.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*matching.Result), args.Error(1)
}

func tableArg(args mock.Arguments, i int) *domain.Table {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).(*domain.Table)
}

func sampleTables() (data, lookup *domain.Table) {
	data = domain.NewTable([]string{"name", "code"}, domain.Row("a", 1), domain.Row("b", 2), domain.Row("a", 1))
	lookup = domain.NewTable([]string{"key", "num"}, domain.Row("a", "1"), domain.Row("c", 3))
	return data, lookup
}

func sampleResult(t *testing.T) *matching.Result {
	t.Helper()
	data, lookup := sampleTables()
	pairing, err := matching.NewPairing([]string{"name", "code"}, []string{"key", "num"})
	require.NoError(t, err)
	res, err := matching.Compare(context.Background(), data, lookup, pairing)
	require.NoError(t, err)
	return res
}

func setupRouter(t *testing.T) (chi.Router, *MockComparer) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	errorHandler := apierrors.NewErrorHandler(logger, false)
	comparer := &MockComparer{}

	cfg := config.Default()
	compare := NewCompareHandler(comparer, CompareHandlerConfig{
		RequestTimeout: time.Minute,
		MaxUploadBytes: 1 << 20,
		AllowedOrigins: cfg.Security.AllowedOrigins,
		WebSocket:      cfg.WebSocket,
	}, logger, errorHandler)
	compare.now = func() time.Time { return time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC) }

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	apiRouter := NewHealthHandler(services.NewHealthService()).Routes()
	apiRouter.Mount("/v1/compare", compare.Routes())
	r.Mount("/api", apiRouter)
	return r, comparer
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

const compareJSON = `{
	"data": {"columns": ["name", "code"], "rows": [["a", 1], ["b", 2], ["a", 1]]},
	"lookup": {"columns": ["key", "num"], "rows": [["a", "1"], ["c", 3]]},
	"data_columns": ["name", "code"],
	"lookup_columns": ["key", "num"]
}`

func TestCompareHandler_Compare(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(m *MockComparer)
		wantStatus int
		validate   func(t *testing.T, body map[string]any)
	}{
		{
			name: "success",
			body: compareJSON,
			setup: func(m *MockComparer) {
				m.On("Compare", mock.Anything, mock.MatchedBy(func(in services.CompareInput) bool {
					return in.Data.Len() == 3 && in.Lookup.Len() == 2 &&
						assert.ObjectsAreEqual([]string{"key", "num"}, in.LookupColumns)
				})).Return(sampleResult(t), nil)
			},
			wantStatus: http.StatusOK,
			validate: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "success", body["status"])
				data := body["data"].(map[string]any)
				stats := data["statistics"].(map[string]any)
				assert.Equal(t, float64(1), stats["duplicate"])
				assert.Equal(t, float64(1), stats["unmatched"])
				records := data["lookup_records"].([]any)
				require.Len(t, records, 2)
				assert.Len(t, data["summary"], 6)
			},
		},
		{
			name:       "malformed json",
			body:       `{"data": `,
			wantStatus: http.StatusBadRequest,
			validate: func(t *testing.T, body map[string]any) {
				assert.Equal(t, apierrors.CodeInvalidRequest, body["error_code"])
			},
		},
		{
			name:       "missing columns",
			body:       `{"data": {"columns": ["a"], "rows": []}, "lookup": {"columns": ["b"], "rows": []}}`,
			wantStatus: http.StatusBadRequest,
			validate: func(t *testing.T, body map[string]any) {
				assert.Equal(t, apierrors.CodeValidationFailed, body["error_code"])
				assert.Contains(t, rawJSON(t, body["details"]), "data_columns is required")
			},
		},
		{
			name: "uneven columns reach the matcher",
			body: strings.Replace(compareJSON, `"lookup_columns": ["key", "num"]`, `"lookup_columns": ["key"]`, 1),
			setup: func(m *MockComparer) {
				m.On("Compare", mock.Anything, mock.Anything).Return(nil, matching.ErrColumnCountMismatch)
			},
			wantStatus: http.StatusUnprocessableEntity,
			validate: func(t *testing.T, body map[string]any) {
				assert.Equal(t, apierrors.CodeColumnCountMismatch, body["error_code"])
			},
		},
		{
			name: "unknown column",
			body: compareJSON,
			setup: func(m *MockComparer) {
				m.On("Compare", mock.Anything, mock.Anything).
					Return(nil, &matching.ColumnError{Table: matching.SideLookup, Column: "num"})
			},
			wantStatus: http.StatusUnprocessableEntity,
			validate: func(t *testing.T, body map[string]any) {
				assert.Equal(t, apierrors.CodeInvalidColumn, body["error_code"])
				assert.Equal(t, "lookup", body["table"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, comparer := setupRouter(t)
			if tt.setup != nil {
				tt.setup(comparer)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/compare", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			tt.validate(t, decodeBody(t, rec))
			comparer.AssertExpectations(t)
			if tt.setup == nil {
				comparer.AssertNotCalled(t, "Compare", mock.Anything, mock.Anything)
			}
		})
	}
}

func rawJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func uploadRequest(t *testing.T, files map[string]string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, name := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		io.WriteString(fw, "placeholder")
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/compare/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestCompareHandler_Upload(t *testing.T) {
	files := map[string]string{"data_file": "data.csv", "lookup_file": "lookup.xlsx"}
	fields := map[string]string{"data_columns": "name, code", "lookup_columns": "0,1", "lookup_sheet": "Sheet1"}

	t.Run("workbook attachment", func(t *testing.T) {
		r, comparer := setupRouter(t)
		data, lookup := sampleTables()
		comparer.On("LoadSources", mock.Anything,
			mock.MatchedBy(func(s services.Source) bool { return s.Name == "data.csv" && s.Sheet == "" }),
			mock.MatchedBy(func(s services.Source) bool { return s.Name == "lookup.xlsx" && s.Sheet == "Sheet1" }),
		).Return(data, lookup, nil)
		comparer.On("Compare", mock.Anything, mock.MatchedBy(func(in services.CompareInput) bool {
			return assert.ObjectsAreEqual([]string{"name", "code"}, in.DataColumns) &&
				assert.ObjectsAreEqual([]string{"0", "1"}, in.LookupColumns)
		})).Return(sampleResult(t), nil)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, uploadRequest(t, files, fields))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, ContentTypeXLSX, rec.Header().Get("Content-Type"))
		_, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
		require.NoError(t, err)
		assert.Equal(t, "精确比对结果_20240203_040506.xlsx", params["filename"])

		f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, []string{exporter.DataSheet, exporter.LookupSheet}, f.GetSheetList())
		comparer.AssertExpectations(t)
	})

	t.Run("json result", func(t *testing.T) {
		r, comparer := setupRouter(t)
		data, lookup := sampleTables()
		comparer.On("LoadSources", mock.Anything, mock.Anything, mock.Anything).Return(data, lookup, nil)
		comparer.On("Compare", mock.Anything, mock.Anything).Return(sampleResult(t), nil)

		withFormat := map[string]string{"format": "json"}
		for k, v := range fields {
			withFormat[k] = v
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, uploadRequest(t, files, withFormat))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "success", decodeBody(t, rec)["status"])
	})

	t.Run("missing lookup file", func(t *testing.T) {
		r, comparer := setupRouter(t)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, uploadRequest(t, map[string]string{"data_file": "data.csv"}, fields))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "lookup_file is required")
		comparer.AssertNotCalled(t, "LoadSources", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unsupported file", func(t *testing.T) {
		r, comparer := setupRouter(t)
		comparer.On("LoadSources", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, nil, apierrors.NewParsingError("failed to read data file", tabular.ErrUnsupportedFormat))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, uploadRequest(t, files, fields))

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Equal(t, apierrors.CodeUnsupportedFormat, decodeBody(t, rec)["error_code"])
	})

	t.Run("unknown format", func(t *testing.T) {
		r, _ := setupRouter(t)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, uploadRequest(t, files, map[string]string{"format": "pdf"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		r, _ := setupRouter(t)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/compare/upload", strings.NewReader("x")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCompareHandler_CompareTooLarge(t *testing.T) {
	r, comparer := setupRouter(t)
	body := `{"data": {"columns": ["` + strings.Repeat("x", 2<<20) + `"]}}`

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/compare", strings.NewReader(body)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, apierrors.CodePayloadTooLarge, decodeBody(t, rec)["error_code"])
	comparer.AssertNotCalled(t, "Compare", mock.Anything, mock.Anything)
}

func dialStream(t *testing.T, r http.Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/compare/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

type streamedMessage struct {
	Type    events.MessageType `json:"type"`
	TraceID string             `json:"trace_id"`
	Data    json.RawMessage    `json:"data"`
}

func readAll(t *testing.T, conn *websocket.Conn) []streamedMessage {
	t.Helper()
	var out []streamedMessage
	for {
		var msg streamedMessage
		if err := conn.ReadJSON(&msg); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			return out
		}
		out = append(out, msg)
	}
}

func TestCompareHandler_Stream(t *testing.T) {
	r, comparer := setupRouter(t)
	comparer.On("Compare", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			in := args.Get(1).(services.CompareInput)
			in.Progress(matching.Progress{Processed: 1, Total: 2})
			in.Progress(matching.Progress{Processed: 2, Total: 2})
		}).
		Return(sampleResult(t), nil)

	conn := dialStream(t, r)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(compareJSON)))

	msgs := readAll(t, conn)
	require.Len(t, msgs, 3)
	assert.Equal(t, events.MessageTypeProgress, msgs[0].Type)
	assert.NotEmpty(t, msgs[0].TraceID)

	var progress events.ProgressData
	require.NoError(t, json.Unmarshal(msgs[1].Data, &progress))
	assert.Equal(t, events.ProgressData{Processed: 2, Total: 2, Percent: 100}, progress)

	assert.Equal(t, events.MessageTypeResult, msgs[2].Type)
	var result struct {
		Statistics domain.MatchStatistics `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(msgs[2].Data, &result))
	assert.Equal(t, 2, result.Statistics.LookupRows)
}

func TestCompareHandler_StreamErrors(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		err        error
		wantCode   string
		wantStatus int
	}{
		{
			name:       "matching error",
			payload:    compareJSON,
			err:        &matching.ColumnError{Table: matching.SideData, Column: "code"},
			wantCode:   apierrors.CodeInvalidColumn,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "invalid json",
			payload:    `{"data":`,
			wantCode:   apierrors.CodeInvalidRequest,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "validation",
			payload:    `{"data": {"columns": [], "rows": []}}`,
			wantCode:   apierrors.CodeValidationFailed,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, comparer := setupRouter(t)
			if tt.err != nil {
				comparer.On("Compare", mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			conn := dialStream(t, r)
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.payload)))

			msgs := readAll(t, conn)
			require.Len(t, msgs, 1)
			assert.Equal(t, events.MessageTypeError, msgs[0].Type)
			var data events.ErrorData
			require.NoError(t, json.Unmarshal(msgs[0].Data, &data))
			assert.Equal(t, tt.wantCode, data.Code)
			assert.Equal(t, tt.wantStatus, data.Status)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	r, _ := setupRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", decodeBody(t, rec)["api_version"])
}
