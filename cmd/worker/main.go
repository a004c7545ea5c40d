// Package main provides the entrypoint for the frame refresh worker.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/breatheroute/wxoverlay/internal/api/response"
	"github.com/breatheroute/wxoverlay/internal/config"
	"github.com/breatheroute/wxoverlay/internal/database"
	"github.com/breatheroute/wxoverlay/internal/feed"
	"github.com/breatheroute/wxoverlay/internal/framestore"
	"github.com/breatheroute/wxoverlay/internal/provider/resilience"
	"github.com/breatheroute/wxoverlay/internal/scheduler"
	"github.com/breatheroute/wxoverlay/internal/telemetry"
	"github.com/breatheroute/wxoverlay/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// keepCatalogs is how many stored catalogs survive a prune.
const keepCatalogs = 48

func main() {
	const serviceName = "wxoverlay-worker"

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

	log.Info().Str("build_time", BuildTime).Msg("starting frame refresh worker")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	clientCfg := resilience.DefaultClientConfig(feed.ProviderName)
	clientCfg.Timeout = cfg.Feed.Timeout
	clientCfg.MaxRetries = uint64(cfg.Feed.MaxRetries) //nolint:gosec // validated non-negative
	clientCfg.Logger = log

	source := feed.NewService(feed.ServiceConfig{
		Fetcher: feed.NewClient(feed.ClientConfig{
			MapsURL:      cfg.Feed.MapsURL,
			SatelliteURL: cfg.Feed.SatelliteURL,
			HTTPClient:   resilience.NewClient(clientCfg),
			Logger:       log,
		}),
		Logger:  log,
		Metrics: providerMetrics,
	})

	var (
		store  framestore.Repository = framestore.NewInMemoryRepository()
		pruner *framestore.PostgresRepository
	)
	if cfg.StoreDriver == config.StorePostgres {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		pruner = framestore.NewPostgresRepository(pool)
		if err := pruner.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare frame store schema")
		}
		store = pruner
	} else {
		log.Warn().Msg("worker using in-memory frame store - catalogs are not shared")
	}

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.DefaultRefreshConfig(),
		Logger: log,
		Source: source,
		Store:  store,
	})

	refresh := scheduler.New(scheduler.Config{
		Name:     worker.JobFramesRefresh,
		Interval: cfg.RefreshInterval,
		Job: func(ctx context.Context) error {
			result := job.Run(ctx)
			if result.Err != nil {
				return result.Err
			}
			if result.Saved && pruner != nil {
				if _, err := pruner.Prune(ctx, keepCatalogs); err != nil {
					log.Warn().Err(err).Msg("pruning stored catalogs failed")
				}
			}
			return nil
		},
		Logger: log,
	})
	if err := refresh.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start refresh scheduler")
	}
	defer refresh.Stop()

	if cfg.PubSubProjectID != "" {
		sub, err := worker.NewSubscriber(ctx, worker.SubscriberConfig{
			ProjectID:    cfg.PubSubProjectID,
			Subscription: cfg.PubSubSubscription,
			Dispatcher:   worker.NewDispatcher(job, log),
			Logger:       log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub subscriber")
		}
		defer sub.Close()

		go func() {
			if err := sub.Run(ctx); err != nil {
				log.Error().Err(err).Msg("pubsub receive stopped")
			}
		}()
	}

	// Worker also exposes health endpoints for Cloud Run
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{
			"status":  "healthy",
			"version": Version,
		})
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, job.Stats())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	refresh.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
