// Package worker provides background frame catalog refreshes for the
// overlay service.
package worker

import (
	"time"

	"github.com/breatheroute/wxoverlay/internal/budget"
)

// Job types carried in Pub/Sub messages.
const (
	JobFramesRefresh = "frames_refresh"
	JobHealthCheck   = "health_check"
)

// RefreshConfig holds configuration for the frame refresh job.
type RefreshConfig struct {
	// MaxFrames is the frame cap used when fetching.
	// Default: the overall frame ceiling, so any client budget can be served
	// from the stored catalog.
	MaxFrames int

	// Timeout is the timeout for one refresh.
	// Default: 30 seconds
	Timeout time.Duration

	// SaveEmpty stores catalogs without any frames.
	// Default: false, an empty catalog would evict the last good one.
	SaveEmpty bool
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		MaxFrames: budget.FrameCeiling,
		Timeout:   30 * time.Second,
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	def := DefaultRefreshConfig()
	if c.MaxFrames <= 0 {
		c.MaxFrames = def.MaxFrames
	}
	c.MaxFrames = budget.ClampMaxFrames(c.MaxFrames)
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}
