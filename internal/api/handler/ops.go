// Package handler provides HTTP handlers for the overlay command API.
package handler

import (
	"net/http"
	"time"

	"github.com/breatheroute/wxoverlay/internal/api/models"
	"github.com/breatheroute/wxoverlay/internal/api/response"
	"github.com/breatheroute/wxoverlay/internal/layers"
	"github.com/breatheroute/wxoverlay/internal/provider/resilience"
)

// CatalogReporter exposes the frame catalog the engine is animating.
type CatalogReporter interface {
	Catalog() *layers.Catalog
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	catalog   CatalogReporter
}

// OpsConfig holds the dependencies of the ops endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Registry reports feed provider health (optional).
	Registry *resilience.Registry

	// Catalog reports the loaded frame catalog (optional).
	Catalog CatalogReporter
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		registry:  cfg.Registry,
		catalog:   cfg.Catalog,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		Version:   h.version,
		BuildTime: h.buildTime,
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The service is ready once a
// catalog with frames is loaded; without one it still serves static
// overlays and reports DEGRADED.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	if h.catalog != nil {
		catalog := h.catalog.Catalog()
		if catalog.Empty() {
			health.Status = models.HealthStatusDegraded
			health.Reason = "no frames loaded"
		}
		if catalog != nil && !catalog.FetchedAt.IsZero() {
			health.Catalog = &models.CatalogRef{ID: catalog.ID, FetchedAt: models.Timestamp(catalog.FetchedAt)}
		}
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and per-layer status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		Layers:    []models.LayerStatus{},
		Providers: []models.ProviderStatus{},
	}
	degrade := func(flag string) {
		status.Status = models.HealthStatusDegraded
		status.Degraded = append(status.Degraded, flag)
	}

	if h.registry != nil {
		for _, ph := range h.registry.All() {
			ps := models.ProviderStatus{
				Provider:            ph.Name,
				Status:              providerStatus(ph),
				Circuit:             ph.CircuitState.String(),
				ConsecutiveFailures: ph.ConsecutiveFailures,
				LastSuccessAt:       models.TimestampPtr(ph.LastSuccessAt),
				LastFailureAt:       models.TimestampPtr(ph.LastFailureAt),
				Message:             ph.LastError,
			}
			status.Providers = append(status.Providers, ps)
			if ps.Status != models.HealthStatusOK {
				degrade("provider_" + ph.Name)
			}
		}
	}

	if h.catalog != nil {
		catalog := h.catalog.Catalog()
		for _, t := range layers.AllTypes() {
			ls := models.LayerStatus{
				Layer:  string(t),
				Status: models.HealthStatusOK,
				Frames: catalog.Set(t).Len(),
				Detail: catalogIssue(catalog, t),
			}
			if ls.Detail != "" {
				ls.Status = models.HealthStatusDegraded
				degrade("frames_" + string(t))
			}
			status.Layers = append(status.Layers, ls)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func providerStatus(ph resilience.ProviderHealth) models.HealthStatus {
	switch ph.Status() {
	case resilience.StatusDown:
		return models.HealthStatusFail
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

func catalogIssue(c *layers.Catalog, t layers.Type) string {
	if c != nil {
		if issue := c.Issues[t]; issue != "" {
			return issue
		}
	}
	if c.Set(t).IsEmpty() {
		return layers.ErrNoFramesForLayer.Error()
	}
	return ""
}
