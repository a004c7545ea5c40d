package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC7807 error body, served as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem type URIs.
const (
	ProblemTypeValidation       = "https://wxoverlay.dev/problems/validation-error"
	ProblemTypeUnauthorized     = "https://wxoverlay.dev/problems/unauthorized"
	ProblemTypeTLSRequired      = "https://wxoverlay.dev/problems/tls-required"
	ProblemTypeNotFound         = "https://wxoverlay.dev/problems/not-found"
	ProblemTypeUnsupportedMedia = "https://wxoverlay.dev/problems/unsupported-media-type"
	ProblemTypeTooManyRequests  = "https://wxoverlay.dev/problems/too-many-requests"
	ProblemTypeInternal         = "https://wxoverlay.dev/problems/internal-error"
	ProblemTypeFeed             = "https://wxoverlay.dev/problems/feed-unavailable"
	ProblemTypeUnavailable      = "https://wxoverlay.dev/problems/service-unavailable"
)

type problemKind struct {
	typ   string
	title string
}

// kinds maps each status the API emits to its problem type. A 403 is only
// ever raised for plain-HTTP requests to a TLS-only deployment.
var kinds = map[int]problemKind{
	http.StatusBadRequest:           {ProblemTypeValidation, "Validation error"},
	http.StatusUnauthorized:         {ProblemTypeUnauthorized, "Unauthorized"},
	http.StatusForbidden:            {ProblemTypeTLSRequired, "TLS required"},
	http.StatusNotFound:             {ProblemTypeNotFound, "Not found"},
	http.StatusUnsupportedMediaType: {ProblemTypeUnsupportedMedia, "Unsupported media type"},
	http.StatusTooManyRequests:      {ProblemTypeTooManyRequests, "Too many requests"},
	http.StatusInternalServerError:  {ProblemTypeInternal, "Internal server error"},
	http.StatusBadGateway:           {ProblemTypeFeed, "Frame feed unavailable"},
	http.StatusServiceUnavailable:   {ProblemTypeUnavailable, "Service unavailable"},
}

// New builds the problem for status. Statuses outside the catalogue get
// type about:blank and the standard status text as title.
func New(status int, traceID, detail string) *Problem {
	kind, ok := kinds[status]
	if !ok {
		kind = problemKind{typ: "about:blank", title: http.StatusText(status)}
	}
	return &Problem{
		Type:    kind.typ,
		Title:   kind.title,
		Status:  status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// NewValidation builds a 400 problem carrying per-field errors.
func NewValidation(traceID, detail string, fields []FieldError) *Problem {
	p := New(http.StatusBadRequest, traceID, detail)
	p.Errors = fields
	return p
}

// Write serializes the problem and sets its status.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
