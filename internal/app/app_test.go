package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowmatch/internal/config"
	apierrors "rowmatch/internal/errors"
)

func newTestApplication(t *testing.T) *Application {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	app, err := NewApplication(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { app.OTelProviders.Shutdown(context.Background()) })
	return app
}

func serve(app *Application, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestNewApplication(t *testing.T) {
	app := newTestApplication(t)

	require.NotNil(t, app.Router)
	require.NotNil(t, app.Services.Compare)
	assert.Equal(t, "127.0.0.1:0", app.Server.Addr)
	assert.Equal(t, app.Config.Server.ReadTimeout, app.Server.ReadTimeout)
}

func TestNewApplicationRequiresConfig(t *testing.T) {
	_, err := NewApplication(nil, nil)
	assert.Error(t, err)
}

func TestRoutes(t *testing.T) {
	app := newTestApplication(t)

	tests := []struct {
		name        string
		method      string
		target      string
		wantStatus  int
		contentType string
	}{
		{name: "health", method: http.MethodGet, target: "/api/health", wantStatus: http.StatusOK, contentType: "application/json"},
		{name: "version", method: http.MethodGet, target: "/api/version", wantStatus: http.StatusOK, contentType: "application/json"},
		{name: "unknown path", method: http.MethodGet, target: "/nope", wantStatus: http.StatusNotFound, contentType: apierrors.ContentTypeProblem},
		{name: "wrong method", method: http.MethodPost, target: "/api/health", wantStatus: http.StatusMethodNotAllowed, contentType: apierrors.ContentTypeProblem},
		{name: "metrics", method: http.MethodGet, target: "/metrics", wantStatus: http.StatusOK, contentType: "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(app, tt.method, tt.target, "")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), tt.contentType)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestCompareEndToEnd(t *testing.T) {
	app := newTestApplication(t)

	rec := serve(app, http.MethodPost, "/api/v1/compare", `{
		"data": {"columns": ["name", "code"], "rows": [["a", 1], ["b", 2], ["a", 1]]},
		"lookup": {"columns": ["key", "num"], "rows": [["a", "1"], ["c", 3], [" b ", 2.0]]},
		"data_columns": ["0", "1"],
		"lookup_columns": ["key", "num"]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Status string `json:"status"`
		Data   struct {
			Statistics map[string]int `json:"statistics"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, map[string]int{
		"lookup_rows": 3, "data_rows": 3, "matched": 1, "unmatched": 1, "duplicate": 1, "data_unmatched": 0,
	}, body.Data.Statistics)

	rec = serve(app, http.MethodPost, "/api/v1/compare", `{
		"data": {"columns": ["name"], "rows": [["a"]]},
		"lookup": {"columns": ["key"], "rows": [["a"]]},
		"data_columns": ["missing"],
		"lookup_columns": ["key"]
	}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), apierrors.CodeInvalidColumn)

	metrics := serve(app, http.MethodGet, "/metrics", "").Body.String()
	assert.Contains(t, metrics, "rowmatch_comparisons_total")
	assert.Contains(t, metrics, `outcome="success"`)
	assert.Contains(t, metrics, `outcome="invalid"`)
	assert.Contains(t, metrics, "rowmatch_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApplication(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/compare", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:8080", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartStop(t *testing.T) {
	app := newTestApplication(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, app.Start(ctx, cancel))
	assert.NoError(t, app.Stop(ctx))
	assert.NoError(t, ctx.Err(), "a clean shutdown does not cancel the context")
}
