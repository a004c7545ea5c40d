package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// Requests per minute allowed for each route class.
const (
	// RefreshPerMinute bounds on-demand feed refreshes.
	RefreshPerMinute = 10
	// CommandPerMinute bounds animation commands. Manual stepping issues one
	// request per frame.
	CommandPerMinute = 120
	// PollPerMinute bounds read endpoints, which map clients poll once per
	// frame interval.
	PollPerMinute = 300
)

const rateWindow = time.Minute

// LimitByIP limits requests per client IP, as resolved by chi's RealIP.
func LimitByIP(perMinute int) func(http.Handler) http.Handler {
	return limit(perMinute, httprate.KeyByRealIP)
}

// LimitByOperator limits requests per control-token operator, falling back
// to the client IP for unauthenticated requests.
func LimitByOperator(perMinute int) func(http.Handler) http.Handler {
	return limit(perMinute, func(r *http.Request) (string, error) {
		if op := OperatorFrom(r.Context()); op != "" {
			return "operator:" + op, nil
		}
		return httprate.KeyByRealIP(r)
	})
}

func limit(perMinute int, key httprate.KeyFunc) func(http.Handler) http.Handler {
	return httprate.Limit(
		perMinute,
		rateWindow,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(limitExceeded),
	)
}

func limitExceeded(w http.ResponseWriter, r *http.Request) {
	// httprate does not expose the window reset; one window is the upper bound.
	w.Header().Set("Retry-After", strconv.Itoa(int(rateWindow.Seconds())))
	writeProblem(w, r, http.StatusTooManyRequests, "rate limit exceeded, retry later")
}
