package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/breatheroute/wxoverlay/internal/auth"
)

type operatorKey struct{}

// ControlAuth rejects requests without a valid control bearer token and
// stores the token's operator in the request context. Without a signing
// key every request passes.
func ControlAuth(tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !tokens.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, detail := bearerToken(r.Header.Get("Authorization"))
			if detail != "" {
				writeProblem(w, r, http.StatusUnauthorized, detail)
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				detail := "invalid control token"
				if errors.Is(err, auth.ErrTokenExpired) {
					detail = "control token has expired"
				}
				writeProblem(w, r, http.StatusUnauthorized, detail)
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey{}, claims.Operator())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an Authorization header. A non-empty
// detail explains why the header was rejected.
func bearerToken(header string) (token, detail string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "authorization header must use the Bearer scheme"
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

// OperatorFrom returns the authenticated operator, or "" when the request
// carried no control token.
func OperatorFrom(ctx context.Context) string {
	op, _ := ctx.Value(operatorKey{}).(string)
	return op
}
