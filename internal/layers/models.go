// Package layers defines the domain model shared by the layer animation engine:
// layer types, display modes, frames and frame catalogs.
package layers

import (
	"errors"
	"strconv"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Layer errors.
var (
	ErrFeedUnavailable        = errors.New("frame feed unavailable")
	ErrFeedMalformed          = errors.New("frame feed malformed")
	ErrNoFramesForLayer       = errors.New("no frames for layer")
	ErrScheduleAlreadyRunning = errors.New("playback schedule already running")
	ErrUnknownLayer           = errors.New("unknown layer type")
	ErrUnknownMode            = errors.New("unknown display mode")
	ErrInvalidTileSize        = errors.New("invalid tile size")
)

// Type is the weather data category displayed on the map.
type Type string

const (
	Radar       Type = "radar"
	Satellite   Type = "satellite"
	Clouds      Type = "clouds"
	Temperature Type = "temperature"
)

// AllTypes lists every layer type in display order.
func AllTypes() []Type {
	return []Type{Radar, Satellite, Clouds, Temperature}
}

// ParseType converts a string to a layer type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", ErrUnknownLayer
	}
	return t, nil
}

// Valid reports whether t is a known layer type.
func (t Type) Valid() bool {
	switch t {
	case Radar, Satellite, Clouds, Temperature:
		return true
	default:
		return false
	}
}

// SatelliteFamily reports whether the layer is fed by satellite path tokens.
func (t Type) SatelliteFamily() bool {
	return t == Satellite || t == Clouds || t == Temperature
}

var titleCaser = cases.Title(language.English)

// Label returns a human readable name for the layer.
func (t Type) Label() string {
	return titleCaser.String(string(t))
}

// DisplayMode is the user-selected overlay policy.
type DisplayMode string

const (
	ModeAuto     DisplayMode = "auto"
	ModeAnimated DisplayMode = "animated"
	ModeStatic   DisplayMode = "static"
	ModeOff      DisplayMode = "off"
)

// ParseMode converts a string to a display mode.
func ParseMode(s string) (DisplayMode, error) {
	switch m := DisplayMode(s); m {
	case ModeAuto, ModeAnimated, ModeStatic, ModeOff:
		return m, nil
	default:
		return "", ErrUnknownMode
	}
}

// RenderState is the overlay that is actually shown.
type RenderState string

const (
	RenderOff      RenderState = "off"
	RenderStatic   RenderState = "static"
	RenderAnimated RenderState = "animated"
)

// ResolveRenderState derives the effective render state from the display mode
// and the number of frames available for the active layer. Animated with no
// frames falls back to static so the map never goes blank on a feed error.
func ResolveRenderState(mode DisplayMode, frameCount int) RenderState {
	switch mode {
	case ModeOff:
		return RenderOff
	case ModeStatic:
		return RenderStatic
	default:
		if frameCount > 0 {
			return RenderAnimated
		}
		return RenderStatic
	}
}

// Tile sizes supported by the animated tile servers.
const (
	TileSize256 = 256
	TileSize512 = 512
)

// ValidTileSize reports whether size is a supported tile size.
func ValidTileSize(size int) bool {
	return size == TileSize256 || size == TileSize512
}

// DefaultFrameInterval returns the playback interval tied to a tile size.
// Larger tiles load slower, so they get a longer interval.
func DefaultFrameInterval(size int) time.Duration {
	if size == TileSize512 {
		return 650 * time.Millisecond
	}
	return 450 * time.Millisecond
}

// Bounds for the adjustable animation settings.
const (
	MinOpacity       = 0.20
	MaxOpacity       = 1.00
	DefaultOpacity   = 0.70
	MinFrameInterval = 120 * time.Millisecond
	MaxFrameInterval = 800 * time.Millisecond
	MinMaxFrames     = 6
	MaxMaxFrames     = 60
)

// Frame is one renderable instant of animated imagery.
type Frame struct {
	// Token identifies the frame on the tile server: decimal epoch seconds for
	// radar, an opaque path for the satellite family.
	Token string `json:"token"`

	// Time is the frame time in epoch seconds (0 if unknown).
	Time int64 `json:"time"`
}

// RadarFrame builds a radar frame keyed by its timestamp.
func RadarFrame(ts int64) Frame {
	return Frame{Token: strconv.FormatInt(ts, 10), Time: ts}
}

// Timestamp returns the frame time, or the zero time when unknown.
func (f Frame) Timestamp() time.Time {
	if f.Time == 0 {
		return time.Time{}
	}
	return time.Unix(f.Time, 0).UTC()
}
