package tiles

import (
	"errors"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"

	"github.com/breatheroute/wxoverlay/internal/layers"
)

// ErrInvalidTile is returned when tile coordinates are out of range for the zoom.
var ErrInvalidTile = errors.New("invalid tile coordinates")

// Resolver maps (layer, frame, tile size) to tile URL templates.
type Resolver struct {
	templates Templates
}

// NewResolver creates a resolver. Empty template fields use the defaults.
func NewResolver(t Templates) *Resolver {
	return &Resolver{templates: t.withDefaults()}
}

// AnimatedURL returns the animated tile template for one frame of a layer.
// The result keeps the {z}/{x}/{y} placeholders.
func (r *Resolver) AnimatedURL(layer layers.Type, frame layers.Frame, size int) (string, error) {
	if !layers.ValidTileSize(size) {
		return "", layers.ErrInvalidTileSize
	}

	var tmpl string
	switch layer {
	case layers.Radar:
		tmpl = r.templates.Radar
	case layers.Satellite:
		tmpl = r.templates.Visible
	case layers.Clouds, layers.Temperature:
		// Same infrared imagery, offered as two user-facing choices.
		tmpl = r.templates.Infrared
	default:
		return "", layers.ErrUnknownLayer
	}

	return strings.NewReplacer(
		"{host}", r.templates.Host,
		"{token}", frame.Token,
		"{size}", strconv.Itoa(size),
	).Replace(tmpl), nil
}

// StaticURL returns the static fallback template for a layer.
func (r *Resolver) StaticURL(layer layers.Type) (string, error) {
	if !layer.Valid() {
		return "", layers.ErrUnknownLayer
	}
	return r.templates.Static[layer], nil
}

// Attribution returns the attribution text for a layer.
func (r *Resolver) Attribution(layer layers.Type) string {
	return r.templates.Attribution[layer]
}

// Expand substitutes the placeholders of a template for one concrete tile.
func Expand(template string, tile maptile.Tile) (string, error) {
	if !tile.Valid() {
		return "", ErrInvalidTile
	}
	return strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(tile.Z), 10),
		"{x}", strconv.FormatUint(uint64(tile.X), 10),
		"{y}", strconv.FormatUint(uint64(tile.Y), 10),
	).Replace(template), nil
}
