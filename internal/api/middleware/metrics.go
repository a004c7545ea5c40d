package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/breatheroute/wxoverlay/internal/telemetry"
)

// instrumentationName names the middleware tracer and meter.
const instrumentationName = "github.com/breatheroute/wxoverlay/internal/api/middleware"

// Metrics records HTTP server instruments.
type Metrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	active   metric.Int64UpDownCounter
	bodySize metric.Int64Histogram
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := telemetry.Meter(instrumentationName)
	m := &Metrics{}
	var err error

	if m.duration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.requests, err = meter.Int64Counter("http.server.request.count",
		metric.WithDescription("HTTP server requests by route and status"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.active, err = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("HTTP server requests in flight"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.bodySize, err = meter.Int64Histogram("http.server.response.body.size",
		metric.WithDescription("Size of HTTP response bodies"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	return m, nil
}

// Middleware records each request. Attributes use the chi route pattern so
// tile coordinates stay out of metric labels.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()

			method := metric.WithAttributes(attribute.String("http.request.method", r.Method))
			m.active.Add(ctx, 1, method)
			defer m.active.Add(ctx, -1, method)

			rec := record(w)
			next.ServeHTTP(rec, r)

			attrs := metric.WithAttributeSet(attribute.NewSet(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", RoutePattern(r)),
				attribute.Int("http.response.status_code", rec.status),
			))
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.requests.Add(ctx, 1, attrs)
			m.bodySize.Record(ctx, rec.bytes, attrs)
		})
	}
}

// RoutePattern returns the matched chi route pattern, or "unmatched" when
// the request did not go through a chi router or matched no route.
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
