package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/breatheroute/wxoverlay/internal/layers"
	"github.com/breatheroute/wxoverlay/internal/telemetry"
)

const tracerName = "github.com/breatheroute/wxoverlay/internal/feed"

// Fetcher defines the raw payload source for frame metadata.
type Fetcher interface {
	// GetWeatherMaps fetches the bulk radar + satellite metadata.
	GetWeatherMaps(ctx context.Context) ([]byte, error)

	// GetSatelliteMaps fetches the satellite-only metadata.
	GetSatelliteMaps(ctx context.Context) ([]byte, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the feed service.
type ServiceConfig struct {
	// Fetcher is the payload source.
	Fetcher Fetcher

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics records provider call outcomes (optional).
	Metrics *telemetry.ProviderMetrics
}

// Service builds frame catalogs from the remote feeds.
type Service struct {
	fetcher Fetcher
	logger  zerolog.Logger
	metrics *telemetry.ProviderMetrics
}

// NewService creates a new feed service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		fetcher: cfg.Fetcher,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// FetchCatalog fetches both feeds and builds one frame set per layer, each
// capped at maxFrames. A failure of the bulk feed fails the whole refresh;
// a failure of the satellite fallback only empties the satellite family.
func (s *Service) FetchCatalog(ctx context.Context, maxFrames int) (*layers.Catalog, error) {
	payload, err := s.call(ctx, "weather_maps", s.fetcher.GetWeatherMaps)
	if err != nil {
		s.logger.Error().Err(err).
			Str("provider", s.fetcher.Name()).
			Msg("failed to fetch weather maps")
		return nil, err
	}

	radar := NormalizeRadar(payload, maxFrames)
	satellite := NormalizeSatellite(SatelliteNode(payload), maxFrames)

	issues := make(map[layers.Type]string)
	if satellite.IsEmpty() {
		s.logger.Debug().Msg("weather maps omitted satellite frames, using satellite endpoint")

		satellite, err = s.fetchSatellite(ctx, maxFrames)
		if err != nil {
			s.logger.Warn().Err(err).Msg("satellite fallback failed")
			for _, t := range layers.AllTypes() {
				if t.SatelliteFamily() {
					issues[t] = err.Error()
				}
			}
		}
	}

	var generatedAt time.Time
	if ts := gjson.GetBytes(payload, "generated"); ts.Type == gjson.Number {
		generatedAt = time.Unix(ts.Int(), 0).UTC()
	}

	catalog := layers.NewCatalog(map[layers.Type]layers.FrameSet{
		layers.Radar:       radar,
		layers.Satellite:   satellite,
		layers.Clouds:      satellite,
		layers.Temperature: satellite,
	}, generatedAt)

	for _, t := range layers.AllTypes() {
		if _, ok := issues[t]; !ok && catalog.Set(t).IsEmpty() {
			issues[t] = layers.ErrNoFramesForLayer.Error()
		}
	}
	catalog.Issues = issues

	s.logger.Info().
		Str("catalog_id", catalog.ID).
		Int("radar_frames", radar.Len()).
		Int("satellite_frames", satellite.Len()).
		Int("max_frames", maxFrames).
		Msg("frame catalog built")

	return catalog, nil
}

func (s *Service) fetchSatellite(ctx context.Context, maxFrames int) (layers.FrameSet, error) {
	payload, err := s.call(ctx, "satellite_maps", s.fetcher.GetSatelliteMaps)
	if err != nil {
		return layers.FrameSet{}, err
	}

	set := NormalizeSatellite(gjson.ParseBytes(payload), maxFrames)
	if set.IsEmpty() {
		return set, fmt.Errorf("satellite endpoint: %w", layers.ErrNoFramesForLayer)
	}
	return set, nil
}

func (s *Service) call(ctx context.Context, op string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "feed."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("provider.name", s.fetcher.Name())),
	)
	defer span.End()

	start := time.Now()
	payload, err := fn(ctx)
	if s.metrics != nil {
		s.metrics.RecordRequest(ctx, s.fetcher.Name(), op, time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "feed request failed")
		if !errors.Is(err, layers.ErrFeedUnavailable) && !errors.Is(err, layers.ErrFeedMalformed) {
			err = fmt.Errorf("%w: %w", layers.ErrFeedUnavailable, err)
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int("feed.payload.size", len(payload)))
	return payload, nil
}
