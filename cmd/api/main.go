// Package main provides the entrypoint for the weather overlay API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/wxoverlay/internal/animation"
	"github.com/breatheroute/wxoverlay/internal/api"
	"github.com/breatheroute/wxoverlay/internal/api/middleware"
	"github.com/breatheroute/wxoverlay/internal/auth"
	"github.com/breatheroute/wxoverlay/internal/config"
	"github.com/breatheroute/wxoverlay/internal/database"
	"github.com/breatheroute/wxoverlay/internal/feed"
	"github.com/breatheroute/wxoverlay/internal/framestore"
	"github.com/breatheroute/wxoverlay/internal/mapbinding"
	"github.com/breatheroute/wxoverlay/internal/provider/resilience"
	"github.com/breatheroute/wxoverlay/internal/scheduler"
	"github.com/breatheroute/wxoverlay/internal/telemetry"
	"github.com/breatheroute/wxoverlay/internal/tiles"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "wxoverlay-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Environment).
		Msg("starting weather overlay API")

	// Initialize OpenTelemetry
	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}
	engineMetrics, err := telemetry.NewEngineMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize engine metrics")
	}

	// Frame feed
	registry := resilience.NewRegistry()
	clientCfg := resilience.DefaultClientConfig(feed.ProviderName)
	clientCfg.Timeout = cfg.Feed.Timeout
	clientCfg.MaxRetries = uint64(cfg.Feed.MaxRetries) //nolint:gosec // validated non-negative
	clientCfg.Logger = log
	clientCfg.Registry = registry

	feedService := feed.NewService(feed.ServiceConfig{
		Fetcher: feed.NewClient(feed.ClientConfig{
			MapsURL:      cfg.Feed.MapsURL,
			SatelliteURL: cfg.Feed.SatelliteURL,
			HTTPClient:   resilience.NewClient(clientCfg),
			Logger:       log,
		}),
		Logger:  log,
		Metrics: providerMetrics,
	})

	// Animation engine
	overlay := mapbinding.NewSnapshot(log)
	engine := animation.NewEngine(animation.Config{
		Binding:   overlay,
		Resolver:  tiles.NewResolver(cfg.Tiles),
		Logger:    log,
		Metrics:   engineMetrics,
		Layer:     cfg.Engine.Layer,
		Mode:      cfg.Engine.Mode,
		TileSize:  cfg.Engine.TileSize,
		Opacity:   cfg.Engine.Opacity,
		MaxFrames: cfg.Engine.EffectiveMaxFrames(),
	})
	defer engine.Close()

	// Frame store
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open frame store")
	}
	defer closeStore()

	warmStart(ctx, engine, store, cfg.WarmStartMaxAge, log)

	refresh := scheduler.New(scheduler.Config{
		Name:     "frames_refresh",
		Interval: cfg.RefreshInterval,
		Job: func(ctx context.Context) error {
			catalog, err := engine.Refresh(ctx, feedService)
			if err != nil || catalog == nil || catalog.Empty() {
				return err
			}
			return store.Save(ctx, catalog)
		},
		Logger: log,
	})
	if err := refresh.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start refresh scheduler")
	}
	defer refresh.Stop()

	tokens := auth.NewTokens(auth.Config{Key: cfg.ControlSigningKey})
	if !tokens.Enabled() {
		log.Warn().Msg("no control signing key set - control routes are unauthenticated")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:    Version,
		BuildTime:  BuildTime,
		Logger:     log,
		Metrics:    metrics,
		Engine:     engine,
		Overlay:    overlay,
		Source:     feedService,
		Store:      store,
		Registry:   registry,
		Tokens:     tokens,
		RequireTLS: cfg.RequireTLS,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	refresh.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

// openStore returns the configured frame store and a function releasing it.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (framestore.Repository, func(), error) {
	if cfg.StoreDriver != config.StorePostgres {
		log.Info().Msg("using in-memory frame store")
		return framestore.NewInMemoryRepository(), func() {}, nil
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("target", database.Target(pool)).Msg("database connected")

	repo := framestore.NewPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo, pool.Close, nil
}

// warmStart loads a recent stored catalog into the engine. The scheduler's
// first run refreshes from the feed either way.
func warmStart(ctx context.Context, engine *animation.Engine, store framestore.Repository, maxAge time.Duration, log zerolog.Logger) {
	stored, err := store.Latest(ctx)
	switch {
	case errors.Is(err, framestore.ErrCatalogNotFound):
		return
	case err != nil:
		log.Warn().Err(err).Msg("reading stored catalog failed")
		return
	}

	if age := stored.Age(time.Now()); age > maxAge {
		log.Info().Dur("age", age).Msg("stored catalog too old for warm start")
		return
	}
	if engine.ApplyCatalog(engine.Ticket(), stored.Catalog(), nil) {
		log.Info().Str("catalog_id", stored.ID).Msg("warm started from stored catalog")
	}
}
