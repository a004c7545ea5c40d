// Package config loads process configuration from the environment, an
// optional .env file and an optional YAML override file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/breatheroute/wxoverlay/internal/budget"
	"github.com/breatheroute/wxoverlay/internal/database"
	"github.com/breatheroute/wxoverlay/internal/feed"
	"github.com/breatheroute/wxoverlay/internal/layers"
	"github.com/breatheroute/wxoverlay/internal/tiles"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds the settings shared by the API server and the worker.
type Config struct {
	Environment string
	Port        string
	LogLevel    string

	OTelEnabled  bool
	OTLPEndpoint string

	Feed   FeedConfig
	Tiles  tiles.Templates
	Engine EngineConfig

	// RefreshInterval is how often frame catalogs are refreshed.
	RefreshInterval time.Duration

	// WarmStartMaxAge is the oldest stored catalog the API starts from.
	WarmStartMaxAge time.Duration

	// StoreDriver selects the frame store ("memory" or "postgres").
	StoreDriver string

	// Database is read only by the postgres store driver.
	Database database.Config

	// ControlSigningKey enables control-token auth on mutating routes.
	// Empty disables auth.
	ControlSigningKey string

	PubSubProjectID    string
	PubSubSubscription string

	// RequireTLS rejects requests a load balancer forwarded over plain HTTP.
	RequireTLS bool
}

// FeedConfig holds frame feed endpoints and client settings.
type FeedConfig struct {
	MapsURL      string        `yaml:"mapsUrl"`
	SatelliteURL string        `yaml:"satelliteUrl"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"maxRetries"`
}

// EngineConfig holds the initial animation state.
type EngineConfig struct {
	Layer     layers.Type        `yaml:"layer"`
	Mode      layers.DisplayMode `yaml:"mode"`
	TileSize  int                `yaml:"tileSize"`
	Opacity   float64            `yaml:"opacity"`
	MaxFrames int                `yaml:"maxFrames"`

	// Device describes the rendering device when MaxFrames is 0.
	DeviceMemoryGB float64 `yaml:"deviceMemoryGb"`
	Mobile         bool    `yaml:"mobile"`
}

// EffectiveMaxFrames returns the configured frame cap, or the device budget
// when none is set.
func (c EngineConfig) EffectiveMaxFrames() int {
	if c.MaxFrames > 0 {
		return budget.ClampMaxFrames(c.MaxFrames)
	}
	return budget.Recommend(budget.DeviceProfile{MemoryGB: c.DeviceMemoryGB, Mobile: c.Mobile})
}

// fileOverrides is the layout of the YAML override file.
type fileOverrides struct {
	Feed   *FeedConfig      `yaml:"feed"`
	Tiles  *tiles.Templates `yaml:"tiles"`
	Engine *EngineConfig    `yaml:"engine"`
}

// Load reads configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Environment:        getEnvOrDefault("APP_ENV", "development"),
		Port:               getEnvOrDefault("APP_PORT", "8080"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		OTelEnabled:        os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		StoreDriver:        getEnvOrDefault("WXO_STORE", StoreMemory),
		ControlSigningKey:  os.Getenv("WXO_CONTROL_SIGNING_KEY"),
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: getEnvOrDefault("PUBSUB_SUBSCRIPTION", "wxoverlay-jobs"),
		RequireTLS:         os.Getenv("REQUIRE_TLS") == "true",
		Feed: FeedConfig{
			MapsURL:      getEnvOrDefault("WXO_MAPS_URL", feed.DefaultMapsURL),
			SatelliteURL: getEnvOrDefault("WXO_SATELLITE_URL", feed.DefaultSatelliteURL),
		},
		Tiles: tiles.DefaultTemplates(),
		Engine: EngineConfig{
			Layer: layers.Type(getEnvOrDefault("WXO_LAYER", string(layers.Radar))),
			Mode:  layers.DisplayMode(getEnvOrDefault("WXO_MODE", string(layers.ModeAuto))),
		},
	}

	var err error
	if cfg.Database, err = loadDatabase(); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getDuration("WXO_REFRESH_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.WarmStartMaxAge, err = getDuration("WXO_WARM_START_MAX_AGE", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Feed.Timeout, err = getDuration("WXO_FEED_TIMEOUT", 8*time.Second); err != nil {
		return nil, err
	}
	if cfg.Feed.MaxRetries, err = getInt("WXO_FEED_MAX_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.Engine.TileSize, err = getInt("WXO_TILE_SIZE", layers.TileSize256); err != nil {
		return nil, err
	}
	if cfg.Engine.MaxFrames, err = getInt("WXO_MAX_FRAMES", 0); err != nil {
		return nil, err
	}
	if cfg.Engine.Opacity, err = getFloat("WXO_OPACITY", layers.DefaultOpacity); err != nil {
		return nil, err
	}
	if cfg.Engine.DeviceMemoryGB, err = getFloat("WXO_DEVICE_MEMORY_GB", 0); err != nil {
		return nil, err
	}
	cfg.Engine.Mobile = os.Getenv("WXO_MOBILE") == "true"

	if path := os.Getenv("WXO_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile merges the non-zero values of a YAML override file.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var o fileOverrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if f := o.Feed; f != nil {
		c.Feed.MapsURL = firstNonEmpty(f.MapsURL, c.Feed.MapsURL)
		c.Feed.SatelliteURL = firstNonEmpty(f.SatelliteURL, c.Feed.SatelliteURL)
		if f.Timeout > 0 {
			c.Feed.Timeout = f.Timeout
		}
		if f.MaxRetries > 0 {
			c.Feed.MaxRetries = f.MaxRetries
		}
	}

	if t := o.Tiles; t != nil {
		c.Tiles.Host = firstNonEmpty(t.Host, c.Tiles.Host)
		c.Tiles.Radar = firstNonEmpty(t.Radar, c.Tiles.Radar)
		c.Tiles.Visible = firstNonEmpty(t.Visible, c.Tiles.Visible)
		c.Tiles.Infrared = firstNonEmpty(t.Infrared, c.Tiles.Infrared)
		for lt, tmpl := range t.Static {
			c.Tiles.Static[lt] = tmpl
		}
		for lt, text := range t.Attribution {
			c.Tiles.Attribution[lt] = text
		}
	}

	if e := o.Engine; e != nil {
		if e.Layer != "" {
			c.Engine.Layer = e.Layer
		}
		if e.Mode != "" {
			c.Engine.Mode = e.Mode
		}
		if e.TileSize != 0 {
			c.Engine.TileSize = e.TileSize
		}
		if e.Opacity != 0 {
			c.Engine.Opacity = e.Opacity
		}
		if e.MaxFrames != 0 {
			c.Engine.MaxFrames = e.MaxFrames
		}
		if e.DeviceMemoryGB != 0 {
			c.Engine.DeviceMemoryGB = e.DeviceMemoryGB
		}
		c.Engine.Mobile = c.Engine.Mobile || e.Mobile
	}
	return nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	if !c.Engine.Layer.Valid() {
		return fmt.Errorf("invalid WXO_LAYER %q: %w", c.Engine.Layer, layers.ErrUnknownLayer)
	}
	if _, err := layers.ParseMode(string(c.Engine.Mode)); err != nil {
		return fmt.Errorf("invalid WXO_MODE %q: %w", c.Engine.Mode, err)
	}
	if !layers.ValidTileSize(c.Engine.TileSize) {
		return fmt.Errorf("invalid WXO_TILE_SIZE %d: %w", c.Engine.TileSize, layers.ErrInvalidTileSize)
	}
	if c.StoreDriver != StoreMemory && c.StoreDriver != StorePostgres {
		return fmt.Errorf("invalid WXO_STORE %q", c.StoreDriver)
	}
	if c.RefreshInterval < time.Minute {
		return fmt.Errorf("WXO_REFRESH_INTERVAL must be at least 1m, got %s", c.RefreshInterval)
	}
	if c.StoreDriver == StorePostgres {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func loadDatabase() (database.Config, error) {
	db := database.Defaults()
	db.URL = os.Getenv("DATABASE_URL")
	db.Host = getEnvOrDefault("DB_HOST", db.Host)
	db.User = getEnvOrDefault("DB_USER", db.User)
	db.Password = getEnvOrDefault("DB_PASSWORD", db.Password)
	db.Name = getEnvOrDefault("DB_NAME", db.Name)
	db.SSLMode = getEnvOrDefault("DB_SSL_MODE", db.SSLMode)

	var err error
	if db.Port, err = getInt("DB_PORT", db.Port); err != nil {
		return db, err
	}
	if db.MaxConns, err = getInt("DB_MAX_CONNS", db.MaxConns); err != nil {
		return db, err
	}
	if db.MinConns, err = getInt("DB_MIN_CONNS", db.MinConns); err != nil {
		return db, err
	}
	if db.MaxConnLifetime, err = getDuration("DB_CONN_MAX_LIFETIME", db.MaxConnLifetime); err != nil {
		return db, err
	}
	return db, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
