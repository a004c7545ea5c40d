package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/breatheroute/wxoverlay/internal/api/middleware"
	"github.com/breatheroute/wxoverlay/internal/api/response"
	"github.com/breatheroute/wxoverlay/internal/layers"
)

// maxBodyBytes bounds command request bodies.
const maxBodyBytes = 4 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in validation errors.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// OperatorFrom returns the operator that authenticated the request.
func OperatorFrom(ctx context.Context) string {
	return middleware.OperatorFrom(ctx)
}

// decodeCommand reads a JSON body into dst and validates it. It writes the
// problem response and returns false on failure.
func decodeCommand(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		response.ValidationFailed(w, r, err)
		return false
	}
	return true
}

// writeEngineError maps engine input errors to 400 and anything else to 500.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, layers.ErrUnknownLayer),
		errors.Is(err, layers.ErrUnknownMode),
		errors.Is(err, layers.ErrInvalidTileSize):
		response.BadRequest(w, r, err.Error(), nil)
	default:
		response.InternalError(w, r, "animation command failed")
	}
}
