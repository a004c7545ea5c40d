package animation

import "github.com/breatheroute/wxoverlay/internal/layers"

// Overlay describes one map overlay as the engine wants it displayed.
type Overlay struct {
	Kind        layers.RenderState `json:"kind"`
	Layer       layers.Type        `json:"layer"`
	URL         string             `json:"url"`
	Attribution string             `json:"attribution"`
	Opacity     float64            `json:"opacity"`
	TileSize    int                `json:"tileSize"`

	// FrameToken and FrameTime identify the displayed frame (animated only).
	FrameToken string `json:"frameToken,omitempty"`
	FrameTime  int64  `json:"frameTime,omitempty"`
}

// Binding is the map-viewport side of the engine. Implementations mirror the
// calls into whatever map library renders the overlays.
type Binding interface {
	// ShowStatic attaches the static fallback overlay.
	ShowStatic(o Overlay)

	// HideStatic detaches the static overlay.
	HideStatic()

	// ShowAnimated creates the animated overlay if none exists, or re-attaches
	// the existing one with the given URL.
	ShowAnimated(o Overlay)

	// UpdateAnimatedURL swaps the URL of the existing animated overlay in
	// place, without recreating it.
	UpdateAnimatedURL(url string, frame layers.Frame)

	// HideAnimated detaches the animated overlay but keeps the object.
	HideAnimated()

	// DropAnimated discards the animated overlay object.
	DropAnimated()

	// SetOpacity applies opacity to the attached overlays.
	SetOpacity(v float64)
}

type nopBinding struct{}

func (nopBinding) ShowStatic(Overlay)                     {}
func (nopBinding) HideStatic()                            {}
func (nopBinding) ShowAnimated(Overlay)                   {}
func (nopBinding) UpdateAnimatedURL(string, layers.Frame) {}
func (nopBinding) HideAnimated()                          {}
func (nopBinding) DropAnimated()                          {}
func (nopBinding) SetOpacity(float64)                     {}
