// Package response provides utilities for HTTP response handling.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/breatheroute/wxoverlay/internal/api/middleware"
	"github.com/breatheroute/wxoverlay/internal/api/models"
)

// JSON writes data as a JSON body with the given status.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Redirect writes a 302 Found response pointing at location.
func Redirect(w http.ResponseWriter, r *http.Request, location string) {
	setRequestID(w, r)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusFound)
}

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
}

// Error writes a Problem+JSON error response.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func problem(w http.ResponseWriter, r *http.Request, code int, detail string) {
	Error(w, r, models.New(code, middleware.GetRequestID(r.Context()), detail))
}

// BadRequest writes a 400 problem, optionally with field errors.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, fields []models.FieldError) {
	Error(w, r, models.NewValidation(middleware.GetRequestID(r.Context()), detail, fields))
}

// ValidationFailed writes a 400 response for a struct validation error.
// validator.ValidationErrors are reported per field.
func ValidationFailed(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		BadRequest(w, r, err.Error(), nil)
		return
	}

	fields := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, models.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Code:    fieldCode(fe.Tag()),
		})
	}
	BadRequest(w, r, "request validation failed", fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}

func fieldCode(tag string) string {
	switch tag {
	case "required":
		return "REQUIRED"
	case "oneof":
		return "UNSUPPORTED_VALUE"
	case "gt", "gte", "lte":
		return "OUT_OF_RANGE"
	default:
		return "INVALID"
	}
}

// Unauthorized writes a 401 problem.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	problem(w, r, http.StatusUnauthorized, detail)
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	problem(w, r, http.StatusNotFound, detail)
}

// InternalError writes a 500 problem.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	problem(w, r, http.StatusInternalServerError, detail)
}

// BadGateway writes a 502 problem for a failed frame feed.
func BadGateway(w http.ResponseWriter, r *http.Request, detail string) {
	problem(w, r, http.StatusBadGateway, detail)
}

// ServiceUnavailable writes a 503 problem.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	problem(w, r, http.StatusServiceUnavailable, detail)
}
