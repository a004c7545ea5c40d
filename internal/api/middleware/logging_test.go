package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/wxoverlay/internal/api/middleware"
)

// loggedRouter serves handler on pattern and returns the router plus the
// buffer the request log is written to.
func loggedRouter(pattern string, handler http.HandlerFunc, extra ...func(http.Handler) http.Handler) (http.Handler, *bytes.Buffer) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(extra...)
	r.Use(middleware.Logger(zerolog.New(&buf)))
	r.HandleFunc(pattern, handler)
	return r, &buf
}

func logEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_RecordsRequest(t *testing.T) {
	router, buf := loggedRouter("/v1/animation/layer", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"layer":"radar"}`))
	})

	req := httptest.NewRequest(http.MethodPut, "/v1/animation/layer", http.NoBody)
	req.Header.Set("User-Agent", "kiosk/1.0")
	router.ServeHTTP(httptest.NewRecorder(), req)

	entry := logEntry(t, buf)
	assert.Equal(t, "http request", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "PUT", entry["method"])
	assert.Equal(t, "/v1/animation/layer", entry["path"])
	assert.Equal(t, "/v1/animation/layer", entry["route"])
	assert.EqualValues(t, 200, entry["status"])
	assert.EqualValues(t, 17, entry["bytes"])
	assert.Equal(t, "kiosk/1.0", entry["user_agent"])
	assert.Contains(t, entry["request_id"], "req_")
	assert.Contains(t, entry, "duration")
	assert.NotContains(t, entry, "operator")
	assert.NotContains(t, entry, "trace_id")
}

func TestLogger_UsesRoutePattern(t *testing.T) {
	router, buf := loggedRouter("/v1/animation/tiles/{z}/{x}/{y}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/animation/tiles/30/1/1", http.NoBody))

	entry := logEntry(t, buf)
	assert.Equal(t, "/v1/animation/tiles/30/1/1", entry["path"])
	assert.Equal(t, "/v1/animation/tiles/{z}/{x}/{y}", entry["route"])
}

func TestLogger_IncludesTraceContext(t *testing.T) {
	setupTestTracer(t)

	router, buf := loggedRouter("/v1/animation", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, middleware.Tracing())

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/animation", http.NoBody))

	entry := logEntry(t, buf)
	assert.Len(t, entry["trace_id"], 32)
	assert.Len(t, entry["span_id"], 16)
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
		level  string
	}{
		{"overlay poll", http.MethodGet, "/v1/animation/overlay", http.StatusOK, "debug"},
		{"tile redirect", http.MethodGet, "/v1/animation/tiles/1/2/3", http.StatusFound, "debug"},
		{"command", http.MethodPut, "/v1/animation/layer", http.StatusOK, "info"},
		{"client error on poll", http.MethodGet, "/v1/animation/tiles/1/2/3", http.StatusBadRequest, "info"},
		{"server error", http.MethodPost, "/v1/animation/refresh", http.StatusBadGateway, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, http.NoBody))

			assert.Equal(t, tt.level, logEntry(t, &buf)["level"])
		})
	}
}

func TestLogger_DefaultsToOK(t *testing.T) {
	var buf bytes.Buffer
	handler := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	entry := logEntry(t, &buf)
	assert.EqualValues(t, 200, entry["status"])
	assert.Equal(t, "unmatched", entry["route"])
}
