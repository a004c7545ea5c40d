package middleware

import (
	"mime"
	"net/http"
)

// ContentTypeJSON defaults the response Content-Type to application/json.
// Handlers that write something else set their own.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON rejects command bodies declared as anything but JSON. A
// missing Content-Type is accepted since most commands carry no body.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hasBody(r.Method) {
			if ct := r.Header.Get("Content-Type"); ct != "" {
				if media, _, err := mime.ParseMediaType(ct); err != nil || media != "application/json" {
					writeProblem(w, r, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}
