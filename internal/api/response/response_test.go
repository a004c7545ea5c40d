package response_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/wxoverlay/internal/api/middleware"
	"github.com/breatheroute/wxoverlay/internal/api/models"
	"github.com/breatheroute/wxoverlay/internal/api/response"
)

// tracedRequest returns a request whose context carries requestID, as set by
// the RequestID middleware.
func tracedRequest(t *testing.T, method, path, requestID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, requestID)

	var traced *http.Request
	middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		traced = r
	})).ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, traced)
	return traced
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p models.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p
}

func TestJSON(t *testing.T) {
	req := tracedRequest(t, http.MethodGet, "/v1/animation", "req_json")
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusAccepted, map[string]int{"frame": 3})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req_json", rec.Header().Get(middleware.RequestIDHeader))
	assert.JSONEq(t, `{"frame":3}`, rec.Body.String())
}

func TestJSON_NilDataAndNoRequestID(t *testing.T) {
	rec := httptest.NewRecorder()

	response.JSON(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody), http.StatusOK, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())
	assert.Empty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestRedirect(t *testing.T) {
	const location = "https://tilecache.rainviewer.com/v2/radar/1700000000/256/3/4/2/2/1_1.png"
	req := tracedRequest(t, http.MethodGet, "/v1/animation/tiles/3/4/2", "req_tile")
	rec := httptest.NewRecorder()

	response.Redirect(rec, req, location)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, location, rec.Header().Get("Location"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "req_tile", rec.Header().Get(middleware.RequestIDHeader))
}

func TestProblemWriters(t *testing.T) {
	tests := []struct {
		name     string
		write    func(http.ResponseWriter, *http.Request, string)
		status   int
		wantType string
	}{
		{"unauthorized", response.Unauthorized, http.StatusUnauthorized, models.ProblemTypeUnauthorized},
		{"not found", response.NotFound, http.StatusNotFound, models.ProblemTypeNotFound},
		{"internal", response.InternalError, http.StatusInternalServerError, models.ProblemTypeInternal},
		{"bad gateway", response.BadGateway, http.StatusBadGateway, models.ProblemTypeFeed},
		{"unavailable", response.ServiceUnavailable, http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tracedRequest(t, http.MethodPost, "/v1/animation/refresh", "req_problem")
			rec := httptest.NewRecorder()

			tt.write(rec, req, "detail text")

			assert.Equal(t, tt.status, rec.Code)
			p := decode(t, rec)
			assert.Equal(t, tt.wantType, p.Type)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, "detail text", p.Detail)
			assert.Equal(t, "/v1/animation/refresh", p.Instance)
			assert.Equal(t, "req_problem", p.TraceID)
		})
	}
}

func TestBadRequest_CarriesFields(t *testing.T) {
	req := tracedRequest(t, http.MethodPut, "/v1/animation/opacity", "req_bad")
	rec := httptest.NewRecorder()

	response.BadRequest(rec, req, "invalid opacity", []models.FieldError{{Field: "opacity", Message: "is required"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	p := decode(t, rec)
	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "opacity", p.Errors[0].Field)
}

func TestValidationFailed_ReportsFields(t *testing.T) {
	type body struct {
		Type     string `validate:"required"`
		TileSize int    `validate:"oneof=256 512"`
		Interval int    `validate:"gt=0"`
	}
	err := validator.New().Struct(body{TileSize: 1024, Interval: -1})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	response.ValidationFailed(rec, tracedRequest(t, http.MethodPut, "/v1/animation/resolution", "req_v"), err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	p := decode(t, rec)
	require.Len(t, p.Errors, 3)

	codes := map[string]string{}
	for _, fe := range p.Errors {
		codes[fe.Field] = fe.Code
	}
	assert.Equal(t, map[string]string{
		"Type":     "REQUIRED",
		"TileSize": "UNSUPPORTED_VALUE",
		"Interval": "OUT_OF_RANGE",
	}, codes)
}

func TestValidationFailed_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	response.ValidationFailed(rec, tracedRequest(t, http.MethodPut, "/v1/animation/layer", "req_p"), errors.New("malformed JSON body"))

	p := decode(t, rec)
	assert.Equal(t, "malformed JSON body", p.Detail)
	assert.Empty(t, p.Errors)
}
