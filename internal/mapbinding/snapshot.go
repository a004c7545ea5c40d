// Package mapbinding provides map-side implementations of the animation
// engine's overlay binding.
package mapbinding

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/breatheroute/wxoverlay/internal/animation"
	"github.com/breatheroute/wxoverlay/internal/layers"
)

// AnimatedView is the animated overlay as last commanded.
type AnimatedView struct {
	animation.Overlay

	// Attached is false while the overlay object is kept but hidden.
	Attached bool `json:"attached"`

	// Generation is bumped each time the overlay object is created.
	Generation uint64 `json:"generation"`

	// URLUpdates counts in-place URL swaps on the current object.
	URLUpdates uint64 `json:"urlUpdates"`
}

// View is a copy of the binding state, safe to hand to other goroutines.
type View struct {
	Static   *animation.Overlay `json:"static"`
	Animated *AnimatedView      `json:"animated"`
	Opacity  float64            `json:"opacity"`
	Revision uint64             `json:"revision"`
}

// Rendered returns the overlay that is visible on the map, if any.
func (v View) Rendered() (animation.Overlay, bool) {
	if v.Animated != nil && v.Animated.Attached {
		return v.Animated.Overlay, true
	}
	if v.Static != nil {
		return *v.Static, true
	}
	return animation.Overlay{}, false
}

// Snapshot records overlay commands so remote map clients can poll and
// mirror them.
type Snapshot struct {
	mu         sync.RWMutex
	logger     zerolog.Logger
	static     *animation.Overlay
	animated   *AnimatedView
	generation uint64
	opacity    float64
	revision   uint64
}

// NewSnapshot creates an empty snapshot binding.
func NewSnapshot(logger zerolog.Logger) *Snapshot {
	return &Snapshot{
		logger:  logger,
		opacity: layers.DefaultOpacity,
	}
}

var _ animation.Binding = (*Snapshot)(nil)

// ShowStatic implements animation.Binding.
func (s *Snapshot) ShowStatic(o animation.Overlay) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.static = &o
	s.opacity = o.Opacity
	s.revision++
}

// HideStatic implements animation.Binding.
func (s *Snapshot) HideStatic() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.static = nil
	s.revision++
}

// ShowAnimated implements animation.Binding.
func (s *Snapshot) ShowAnimated(o animation.Overlay) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.animated == nil {
		s.generation++
		s.animated = &AnimatedView{Generation: s.generation}
	}
	s.animated.Overlay = o
	s.animated.Attached = true
	s.opacity = o.Opacity
	s.revision++
}

// UpdateAnimatedURL implements animation.Binding.
func (s *Snapshot) UpdateAnimatedURL(url string, frame layers.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.animated == nil {
		s.logger.Warn().Str("url", url).Msg("URL update without an animated overlay")
		return
	}
	s.animated.URL = url
	s.animated.FrameToken = frame.Token
	s.animated.FrameTime = frame.Time
	s.animated.URLUpdates++
	s.revision++
}

// HideAnimated implements animation.Binding.
func (s *Snapshot) HideAnimated() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.animated != nil {
		s.animated.Attached = false
		s.revision++
	}
}

// DropAnimated implements animation.Binding.
func (s *Snapshot) DropAnimated() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.animated = nil
	s.revision++
}

// SetOpacity implements animation.Binding.
func (s *Snapshot) SetOpacity(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opacity = v
	if s.static != nil {
		s.static.Opacity = v
	}
	if s.animated != nil {
		s.animated.Opacity = v
	}
	s.revision++
}

// View returns a copy of the current binding state.
func (s *Snapshot) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{Opacity: s.opacity, Revision: s.revision}
	if s.static != nil {
		st := *s.static
		v.Static = &st
	}
	if s.animated != nil {
		an := *s.animated
		v.Animated = &an
	}
	return v
}
