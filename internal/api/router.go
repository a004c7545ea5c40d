// Package api provides the HTTP command API for the weather overlay engine.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/breatheroute/wxoverlay/internal/animation"
	"github.com/breatheroute/wxoverlay/internal/api/handler"
	"github.com/breatheroute/wxoverlay/internal/api/middleware"
	"github.com/breatheroute/wxoverlay/internal/auth"
	"github.com/breatheroute/wxoverlay/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	// Engine is the animation state machine the commands drive.
	Engine handler.Controller

	// Overlay exposes the map binding snapshot.
	Overlay handler.OverlayViewer

	// Source serves on-demand refreshes (optional).
	Source animation.CatalogSource

	// Store receives refreshed catalogs (optional).
	Store handler.CatalogSaver

	// Registry reports feed provider health (optional).
	Registry *resilience.Registry

	// Tokens guards mutating routes. Nil or keyless disables the check.
	Tokens *auth.Tokens

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// The request ID must exist before spans and logs read it.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Catalog:   cfg.Engine,
	})
	animationHandler := handler.NewAnimationHandler(handler.AnimationConfig{
		Engine:  cfg.Engine,
		Overlay: cfg.Overlay,
		Source:  cfg.Source,
		Store:   cfg.Store,
		Logger:  cfg.Logger,
	})
	budgetHandler := handler.NewBudgetHandler()

	controlAuth := middleware.ControlAuth(cfg.Tokens)

	pollLimit := middleware.LimitByIP(middleware.PollPerMinute)
	commandLimit := middleware.LimitByOperator(middleware.CommandPerMinute)
	refreshLimit := middleware.LimitByOperator(middleware.RefreshPerMinute)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.With(pollLimit).Get("/budget", budgetHandler.Recommend)

		r.Route("/animation", func(r chi.Router) {
			// Projections (public) - polled by map clients
			r.Group(func(r chi.Router) {
				r.Use(pollLimit)
				r.Get("/", animationHandler.GetState)
				r.Get("/overlay", animationHandler.GetOverlay)
				r.Get("/frames", animationHandler.GetFrames)
				r.Get("/tiles/{z}/{x}/{y}", animationHandler.RedirectTile)
			})

			// Commands (control token)
			r.Group(func(r chi.Router) {
				r.Use(controlAuth)
				r.Use(middleware.RequireJSON)
				r.Use(commandLimit)

				r.Put("/layer", animationHandler.SelectLayer)
				r.Put("/mode", animationHandler.SelectMode)
				r.Put("/resolution", animationHandler.SetResolution)
				r.Put("/opacity", animationHandler.SetOpacity)
				r.Put("/interval", animationHandler.SetFrameInterval)
				r.Put("/max-frames", animationHandler.SetMaxFrames)
				r.Put("/frame", animationHandler.ScrubTo)
				r.Post("/play", animationHandler.Play)
				r.Post("/pause", animationHandler.Pause)
				r.Post("/step", animationHandler.Step)
			})

			r.With(controlAuth, refreshLimit).Post("/refresh", animationHandler.Refresh)
		})
	})

	return r
}
