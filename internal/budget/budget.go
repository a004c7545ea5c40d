// Package budget computes resource ceilings for frame animation from device
// constraints and clamps user-supplied settings into their allowed ranges.
package budget

import (
	"time"

	"github.com/breatheroute/wxoverlay/internal/layers"
)

// MemoryTier is a coarse device memory classification.
type MemoryTier string

const (
	TierLow  MemoryTier = "LOW"
	TierMid  MemoryTier = "MID"
	TierHigh MemoryTier = "HIGH"
)

// Frame ceilings per device class.
const (
	MobileFrames  = 24
	HighMemFrames = 48
	MidMemFrames  = 36
	LowMemFrames  = 24
	FrameCeiling  = 60
)

// DeviceProfile describes the client device the animation is budgeted for.
type DeviceProfile struct {
	// MemoryGB is the approximate device memory hint (0 if unknown).
	MemoryGB float64

	// Mobile is true for phones and tablets.
	Mobile bool
}

// Tier returns the memory tier for the profile. Unknown memory is mid tier.
func (p DeviceProfile) Tier() MemoryTier {
	switch {
	case p.MemoryGB <= 0:
		return TierMid
	case p.MemoryGB >= 8:
		return TierHigh
	case p.MemoryGB >= 4:
		return TierMid
	default:
		return TierLow
	}
}

// Recommend returns the recommended max frame count for a device.
func Recommend(p DeviceProfile) int {
	n := MidMemFrames
	switch {
	case p.Mobile:
		n = MobileFrames
	case p.Tier() == TierHigh:
		n = HighMemFrames
	case p.Tier() == TierLow:
		n = LowMemFrames
	}
	return min(n, FrameCeiling)
}

// ClampMaxFrames clamps a max frame override into the allowed range.
func ClampMaxFrames(n int) int {
	return max(layers.MinMaxFrames, min(n, layers.MaxMaxFrames))
}

// ClampOpacity clamps an opacity value into the allowed range.
func ClampOpacity(v float64) float64 {
	if v != v { // NaN
		return layers.DefaultOpacity
	}
	return max(layers.MinOpacity, min(v, layers.MaxOpacity))
}

// ClampFrameInterval clamps a playback interval into the allowed range.
func ClampFrameInterval(d time.Duration) time.Duration {
	return max(layers.MinFrameInterval, min(d, layers.MaxFrameInterval))
}
