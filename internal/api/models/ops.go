package models

// Health is the body of the liveness and readiness checks.
type Health struct {
	Status    HealthStatus `json:"status"`
	Time      Timestamp    `json:"time"`
	Version   string       `json:"version,omitempty"`
	BuildTime string       `json:"buildTime,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Catalog   *CatalogRef  `json:"catalog,omitempty"`
}

// CatalogRef identifies the frame catalog the engine is animating.
type CatalogRef struct {
	ID        string    `json:"id"`
	FetchedAt Timestamp `json:"fetchedAt"`
}

// SystemStatus is the body of GET /v1/ops/status. Degraded lists a flag
// per unhealthy layer ("frames_<layer>") or provider ("provider_<name>").
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Layers    []LayerStatus    `json:"layers"`
	Providers []ProviderStatus `json:"providers"`
	Degraded  []string         `json:"degraded,omitempty"`
}

// LayerStatus reports the frames loaded for one layer.
type LayerStatus struct {
	Layer  string       `json:"layer"`
	Status HealthStatus `json:"status"`
	Frames int          `json:"frames"`
	Detail string       `json:"detail,omitempty"`
}

// ProviderStatus reports the health of one frame feed provider.
type ProviderStatus struct {
	Provider            string       `json:"provider"`
	Status              HealthStatus `json:"status"`
	Circuit             string       `json:"circuit"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	Message             string       `json:"message,omitempty"`
}
