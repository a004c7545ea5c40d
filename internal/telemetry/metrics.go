package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/breatheroute/wxoverlay/internal/telemetry"

// ProviderMetrics holds metrics for frame feed calls.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
}

// NewProviderMetrics creates metrics for monitoring frame feed calls.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"feed.request.duration",
		metric.WithDescription("Duration of frame feed requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"feed.request.total",
		metric.WithDescription("Total number of frame feed requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

// RecordRequest records metrics for one feed request.
func (m *ProviderMetrics) RecordRequest(ctx context.Context, provider, operation string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
		attribute.Bool("error", err != nil),
	)

	// The request context may already be cancelled; metrics must still land.
	ctx = context.WithoutCancel(ctx)
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
	m.requestTotal.Add(ctx, 1, attrs)
}

// EngineMetrics holds metrics for the layer animation engine.
type EngineMetrics struct {
	refreshTotal  metric.Int64Counter
	frameCount    metric.Int64Gauge
	renderChanges metric.Int64Counter
}

// NewEngineMetrics creates metrics for the layer animation engine.
func NewEngineMetrics() (*EngineMetrics, error) {
	meter := Meter(meterName)

	refreshTotal, err := meter.Int64Counter(
		"animation.refresh.total",
		metric.WithDescription("Frame catalog refreshes by outcome"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, err
	}

	frameCount, err := meter.Int64Gauge(
		"animation.frames",
		metric.WithDescription("Frames available per layer after the last refresh"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return nil, err
	}

	renderChanges, err := meter.Int64Counter(
		"animation.render_state.changes",
		metric.WithDescription("Effective render state transitions"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		refreshTotal:  refreshTotal,
		frameCount:    frameCount,
		renderChanges: renderChanges,
	}, nil
}

// RecordRefresh records a refresh outcome ("applied", "failed" or "stale").
func (m *EngineMetrics) RecordRefresh(outcome string) {
	m.refreshTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordFrames records the frame count of one layer.
func (m *EngineMetrics) RecordFrames(layer string, count int) {
	m.frameCount.Record(context.Background(), int64(count),
		metric.WithAttributes(attribute.String("layer", layer)))
}

// RecordRenderChange records a transition of the effective render state.
func (m *EngineMetrics) RecordRenderChange(from, to string) {
	m.renderChanges.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		))
}
