// Package feed fetches animated frame metadata from the remote weather map
// feeds and normalizes it into per-layer frame sets.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/breatheroute/wxoverlay/internal/layers"
	"github.com/breatheroute/wxoverlay/internal/provider/resilience"
)

const (
	// ProviderName identifies the frame feed provider.
	ProviderName = "rainviewer"

	// DefaultMapsURL is the bulk metadata endpoint with radar and satellite indices.
	DefaultMapsURL = "https://api.rainviewer.com/public/weather-maps.json"

	// DefaultSatelliteURL is the satellite-only endpoint used as fallback.
	DefaultSatelliteURL = "https://api.rainviewer.com/public/satellite-maps.json"

	// maxPayloadBytes caps how much of a feed response is read.
	maxPayloadBytes = 4 << 20
)

// ClientConfig holds configuration for the feed client.
type ClientConfig struct {
	// MapsURL is the bulk metadata endpoint (optional).
	MapsURL string

	// SatelliteURL is the secondary satellite endpoint (optional).
	SatelliteURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client fetches raw frame metadata payloads.
type Client struct {
	mapsURL      string
	satelliteURL string
	httpClient   *resilience.Client
	logger       zerolog.Logger
}

// NewClient creates a new feed client.
func NewClient(cfg ClientConfig) *Client {
	mapsURL := cfg.MapsURL
	if mapsURL == "" {
		mapsURL = DefaultMapsURL
	}

	satelliteURL := cfg.SatelliteURL
	if satelliteURL == "" {
		satelliteURL = DefaultSatelliteURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		mapsURL:      mapsURL,
		satelliteURL: satelliteURL,
		httpClient:   httpClient,
		logger:       cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetWeatherMaps fetches the bulk metadata payload.
func (c *Client) GetWeatherMaps(ctx context.Context) ([]byte, error) {
	return c.get(ctx, c.mapsURL)
}

// GetSatelliteMaps fetches the satellite-only payload.
func (c *Client) GetSatelliteMaps(ctx context.Context) ([]byte, error) {
	return c.get(ctx, c.satelliteURL)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", layers.ErrFeedUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %w", layers.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code: %d", layers.ErrFeedUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", layers.ErrFeedUnavailable, err)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: response is not valid JSON", layers.ErrFeedMalformed)
	}

	c.logger.Debug().
		Str("url", url).
		Int("bytes", len(body)).
		Msg("fetched frame feed")

	return body, nil
}
