package mapbinding_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/wxoverlay/internal/animation"
	"github.com/breatheroute/wxoverlay/internal/layers"
	"github.com/breatheroute/wxoverlay/internal/mapbinding"
)

func TestSnapshot_StaticLifecycle(t *testing.T) {
	s := mapbinding.NewSnapshot(zerolog.Nop())

	view := s.View()
	assert.Nil(t, view.Static)
	assert.Nil(t, view.Animated)
	assert.Zero(t, view.Revision)

	s.ShowStatic(animation.Overlay{Kind: layers.RenderStatic, Layer: layers.Radar, URL: "static/{z}/{x}/{y}", Opacity: 0.5})

	view = s.View()
	require.NotNil(t, view.Static)
	assert.Equal(t, "static/{z}/{x}/{y}", view.Static.URL)
	assert.InDelta(t, 0.5, view.Opacity, 1e-9)

	rendered, ok := view.Rendered()
	require.True(t, ok)
	assert.Equal(t, layers.RenderStatic, rendered.Kind)

	s.HideStatic()
	assert.Nil(t, s.View().Static)
}

func TestSnapshot_AnimatedLifecycle(t *testing.T) {
	s := mapbinding.NewSnapshot(zerolog.Nop())

	s.ShowAnimated(animation.Overlay{Kind: layers.RenderAnimated, URL: "a/1"})
	view := s.View()
	require.NotNil(t, view.Animated)
	assert.True(t, view.Animated.Attached)
	assert.Equal(t, uint64(1), view.Animated.Generation)

	s.UpdateAnimatedURL("a/2", layers.RadarFrame(2))
	view = s.View()
	assert.Equal(t, "a/2", view.Animated.URL)
	assert.Equal(t, "2", view.Animated.FrameToken)
	assert.Equal(t, uint64(1), view.Animated.URLUpdates)
	assert.Equal(t, uint64(1), view.Animated.Generation)

	s.HideAnimated()
	view = s.View()
	assert.False(t, view.Animated.Attached)
	_, ok := view.Rendered()
	assert.False(t, ok)

	s.ShowAnimated(animation.Overlay{Kind: layers.RenderAnimated, URL: "a/3"})
	view = s.View()
	assert.True(t, view.Animated.Attached)
	assert.Equal(t, uint64(1), view.Animated.Generation, "re-attached, not recreated")

	s.DropAnimated()
	assert.Nil(t, s.View().Animated)

	s.ShowAnimated(animation.Overlay{Kind: layers.RenderAnimated, URL: "a/4"})
	assert.Equal(t, uint64(2), s.View().Animated.Generation)
}

func TestSnapshot_UpdateWithoutOverlayIgnored(t *testing.T) {
	s := mapbinding.NewSnapshot(zerolog.Nop())

	s.UpdateAnimatedURL("x", layers.RadarFrame(1))

	assert.Nil(t, s.View().Animated)
	assert.Zero(t, s.View().Revision)
}

func TestSnapshot_RenderedPrefersAttachedAnimated(t *testing.T) {
	s := mapbinding.NewSnapshot(zerolog.Nop())
	s.ShowStatic(animation.Overlay{Kind: layers.RenderStatic, URL: "s"})
	s.ShowAnimated(animation.Overlay{Kind: layers.RenderAnimated, URL: "a"})

	rendered, ok := s.View().Rendered()
	require.True(t, ok)
	assert.Equal(t, "a", rendered.URL)
}

func TestSnapshot_SetOpacity(t *testing.T) {
	s := mapbinding.NewSnapshot(zerolog.Nop())
	s.ShowStatic(animation.Overlay{URL: "s", Opacity: 0.7})
	s.ShowAnimated(animation.Overlay{URL: "a", Opacity: 0.7})

	s.SetOpacity(0.3)

	view := s.View()
	assert.InDelta(t, 0.3, view.Opacity, 1e-9)
	assert.InDelta(t, 0.3, view.Static.Opacity, 1e-9)
	assert.InDelta(t, 0.3, view.Animated.Opacity, 1e-9)
}

func TestSnapshot_ViewIsCopy(t *testing.T) {
	s := mapbinding.NewSnapshot(zerolog.Nop())
	s.ShowStatic(animation.Overlay{URL: "s"})

	view := s.View()
	view.Static.URL = "mutated"

	assert.Equal(t, "s", s.View().Static.URL)
}
