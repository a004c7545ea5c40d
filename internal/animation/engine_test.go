package animation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/wxoverlay/internal/animation"
	"github.com/breatheroute/wxoverlay/internal/layers"
	"github.com/breatheroute/wxoverlay/internal/mapbinding"
)

// manualClock is a Clock whose tickers only fire on demand.
type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

type manualTicker struct {
	interval time.Duration
	fn       func()
	stopped  bool
}

func (t *manualTicker) Stop() { t.stopped = true }

func (c *manualClock) Every(d time.Duration, fn func()) animation.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{interval: d, fn: fn}
	c.tickers = append(c.tickers, t)
	return t
}

// Fire triggers every live ticker once.
func (c *manualClock) Fire() {
	c.mu.Lock()
	live := make([]*manualTicker, 0, len(c.tickers))
	for _, t := range c.tickers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	c.mu.Unlock()

	for _, t := range live {
		t.fn()
	}
}

func (c *manualClock) Live() []*manualTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	var live []*manualTicker
	for _, t := range c.tickers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	return live
}

type staticSource struct {
	catalog *layers.Catalog
	err     error
	calls   []int
}

func (s *staticSource) FetchCatalog(_ context.Context, maxFrames int) (*layers.Catalog, error) {
	s.calls = append(s.calls, maxFrames)
	return s.catalog, s.err
}

func radarSet(ts ...int64) layers.FrameSet {
	frames := make([]layers.Frame, len(ts))
	for i, t := range ts {
		frames[i] = layers.RadarFrame(t)
	}
	return layers.NewFrameSet(layers.Radar, frames)
}

func satelliteSet(paths ...string) layers.FrameSet {
	frames := make([]layers.Frame, len(paths))
	for i, p := range paths {
		frames[i] = layers.Frame{Token: p, Time: int64(i + 1)}
	}
	return layers.NewFrameSet(layers.Satellite, frames)
}

func catalogOf(radar, satellite layers.FrameSet) *layers.Catalog {
	return layers.NewCatalog(map[layers.Type]layers.FrameSet{
		layers.Radar:       radar,
		layers.Satellite:   satellite,
		layers.Clouds:      satellite,
		layers.Temperature: satellite,
	}, time.Unix(1700000000, 0))
}

type fixture struct {
	engine  *animation.Engine
	binding *mapbinding.Snapshot
	clock   *manualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	binding := mapbinding.NewSnapshot(zerolog.Nop())
	clock := &manualClock{}
	engine := animation.NewEngine(animation.Config{
		Binding: binding,
		Clock:   clock,
		Logger:  zerolog.Nop(),
	})
	t.Cleanup(engine.Close)
	return &fixture{engine: engine, binding: binding, clock: clock}
}

func (f *fixture) load(t *testing.T, c *layers.Catalog) {
	t.Helper()
	require.True(t, f.engine.ApplyCatalog(f.engine.Ticket(), c, nil))
}

func TestNewEngine_Defaults(t *testing.T) {
	f := newFixture(t)

	st := f.engine.State()
	assert.Equal(t, layers.Radar, st.Layer)
	assert.Equal(t, layers.ModeAuto, st.Mode)
	assert.Equal(t, layers.RenderStatic, st.Render, "no frames yet")
	assert.Equal(t, -1, st.FrameIndex)
	assert.Equal(t, layers.TileSize256, st.TileSize)
	assert.Equal(t, 450*time.Millisecond, st.FrameInterval)
	assert.InDelta(t, layers.DefaultOpacity, st.Opacity, 1e-9)
	assert.Equal(t, 36, st.MaxFrames)

	view := f.binding.View()
	require.NotNil(t, view.Static, "map is never blank")
	assert.Equal(t, layers.Radar, view.Static.Layer)
	assert.Nil(t, view.Animated)
}

func TestAdvance_WrapsAround(t *testing.T) {
	f := newFixture(t)
	f.load(t, catalogOf(radarSet(10, 20, 30, 40), satelliteSet("a")))

	assert.Equal(t, 3, f.engine.State().FrameIndex, "starts at last frame")

	f.engine.Advance(+1)
	assert.Equal(t, 0, f.engine.State().FrameIndex)

	f.engine.Advance(-1)
	assert.Equal(t, 3, f.engine.State().FrameIndex)

	f.engine.Advance(-1)
	assert.Equal(t, 2, f.engine.State().FrameIndex)
}

func TestAdvance_UpdatesURLInPlace(t *testing.T) {
	f := newFixture(t)
	f.load(t, catalogOf(radarSet(10, 20, 30), satelliteSet("a")))

	before := f.binding.View()
	require.NotNil(t, before.Animated)
	require.True(t, before.Animated.Attached)
	assert.Contains(t, before.Animated.URL, "/30/")
	assert.Nil(t, before.Static, "only one overlay kind attached")

	f.engine.Advance(+1)

	after := f.binding.View()
	assert.Equal(t, before.Animated.Generation, after.Animated.Generation, "overlay not recreated")
	assert.Equal(t, before.Animated.URLUpdates+1, after.Animated.URLUpdates)
	assert.Contains(t, after.Animated.URL, "/10/")
	assert.Equal(t, "10", after.Animated.FrameToken)
}

func TestAdvance_EmptySetIsNoop(t *testing.T) {
	f := newFixture(t)

	f.engine.Advance(+1)

	assert.Equal(t, -1, f.engine.State().FrameIndex)
	assert.Nil(t, f.binding.View().Animated)
}

func TestAdvance_CreatesOverlayOnlyWhenAnimating(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.SelectMode(layers.ModeStatic))
	f.load(t, catalogOf(radarSet(10, 20), satelliteSet("a")))

	f.engine.Advance(+1)
	assert.Nil(t, f.binding.View().Animated, "static mode creates no animated overlay")

	require.NoError(t, f.engine.SelectMode(layers.ModeAnimated))
	view := f.binding.View()
	require.NotNil(t, view.Animated)
	assert.True(t, view.Animated.Attached)
	assert.Nil(t, view.Static)
}

func TestSelectLayer_ResetsToLastFrame(t *testing.T) {
	f := newFixture(t)
	f.load(t, catalogOf(radarSet(10, 20, 30), satelliteSet("a", "b", "c", "d", "e")))
	f.engine.Advance(+1)

	require.NoError(t, f.engine.SelectLayer(layers.Clouds))

	st := f.engine.State()
	assert.Equal(t, layers.Clouds, st.Layer)
	assert.Equal(t, 4, st.FrameIndex)
	assert.Equal(t, 5, st.FrameCount)
	assert.False(t, st.Playing)

	view := f.binding.View()
	require.NotNil(t, view.Animated)
	assert.Equal(t, layers.Clouds, view.Animated.Layer)
	assert.Contains(t, view.Animated.URL, "e/256/{z}/{x}/{y}/0/0_0.png")
}

func TestSelectLayer_ResumesPlaybackOnlyIfRunning(t *testing.T) {
	f := newFixture(t)
	f.load(t, catalogOf(radarSet(10, 20, 30), satelliteSet("a", "b")))

	require.NoError(t, f.engine.Play())
	require.NoError(t, f.engine.SelectLayer(layers.Satellite))
	assert.True(t, f.engine.IsPlaying(), "resumes after the switch")
	assert.Len(t, f.clock.Live(), 1, "exactly one timer")

	f.engine.Pause()
	require.NoError(t, f.engine.SelectLayer(layers.Radar))
	assert.False(t, f.engine.IsPlaying())
	assert.Empty(t, f.clock.Live())
}

func TestSelectLayer_DoesNotResumeOnEmptySet(t *testing.T) {
	f := newFixture(t)
	f.load(t, catalogOf(radarSet(10, 20), layers.FrameSet{}))

	require.NoError(t, f.engine.Play())
	require.NoError(t, f.engine.SelectLayer(layers.Temperature))

	st := f.engine.State()
	assert.False(t, st.Playing)
	assert.Equal(t, -1, st.FrameIndex)
	assert.Equal(t, layers.RenderStatic, st.Render)

	view := f.binding.View()
	require.NotNil(t, view.Static)
	assert.Equal(t, layers.Temperature, view.Static.Layer)
	assert.Nil(t, view.Animated, "previous layer's overlay dropped")
}

func TestSelectLayer_Unknown(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.engine.SelectLayer("snow"), layers.ErrUnknownLayer)
}

func TestSelectMode_OffThenStatic(t *testing.T) {
	f := newFixture(t)
	f.load(t, catalogOf(radarSet(10, 20), satelliteSet("a")))
	require.Equal(t, layers.RenderAnimated, f.engine.RenderState())

	require.NoError(t, f.engine.SelectMode(layers.ModeOff))
	view := f.binding.View()
	assert.Nil(t, view.Static)
	require.NotNil(t, view.Animated)
	assert.False(t, view.Animated.Attached)
	_, rendered := view.Rendered()
	assert.False(t, rendered)
	assert.Equal(t, layers.RenderOff, f.engine.RenderState())

	require.NoError(t, f.engine.SelectMode(layers.ModeStatic))
	view = f.binding.View()
	assert.NotNil(t, view.Static)
	assert.False(t, view.Animated.Attached)
	assert.Equal(t, layers.RenderStatic, f.engine.RenderState())
}

func TestSelectMode_Unknown(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.engine.SelectMode("sideways"), layers.ErrUnknownMode)
}

func TestAutoMode_FollowsFrameAvailability(t *testing.T) {
	f := newFixture(t)
	f.load(t, catalogOf(radarSet(10, 20), satelliteSet("a")))
	assert.Equal(t, layers.RenderAnimated, f.engine.RenderState())

	// Feed failure.
	require.True(t, f.engine.ApplyCatalog(f.engine.Ticket(), nil, layers.ErrFeedUnavailable))
	assert.Equal(t, layers.RenderStatic, f.engine.RenderState())
	assert.Equal(t, layers.ModeAuto, f.engine.State().Mode)

	// Recovery.
	f.load(t, catalogOf(radarSet(10, 20, 30), satelliteSet("a")))
	assert.Equal(t, layers.RenderAnimated, f.engine.RenderState())
	assert.Equal(t, layers.ModeAuto, f.engine.State().Mode)
	assert.Equal(t, 2, f.engine.State().FrameIndex)
}

func TestSetResolution_RoundTrip(t *testing.T) {
	f := newFixture(t)
	f.load(t, catalogOf(radarSet(10, 20, 30, 40), satelliteSet("a")))
	f.engine.Advance(-1)
	require.Equal(t, 2, f.engine.State().FrameIndex)

	require.NoError(t, f.engine.SetResolution(layers.TileSize512))
	st := f.engine.State()
	assert.Equal(t, 512, st.TileSize)
	assert.Equal(t, 650*time.Millisecond, st.FrameInterval)
	assert.Contains(t, f.binding.View().Animated.URL, "/512/")

	require.NoError(t, f.engine.SetResolution(layers.TileSize256))
	st = f.engine.State()
	assert.Equal(t, 256, st.TileSize)
	assert.Equal(t, 450*time.Millisecond, st.FrameInterval)
	assert.Equal(t, 2, st.FrameIndex)
}

func TestSetResolution_RecreatesOverlay(t *testing.T) {
	f := newFixture(t)
	f.load(t, catalogOf(radarSet(10, 20), satelliteSet("a")))
	gen := f.binding.View().Animated.Generation

	require.NoError(t, f.engine.SetResolution(layers.TileSize512))

	view := f.binding.View()
	require.NotNil(t, view.Animated)
	assert.Greater(t, view.Animated.Generation, gen)
	assert.True(t, view.Animated.Attached)
}

func TestSetResolution_StaticOverlayFollowsSize(t *testing.T) {
	f := newFixture(t)
	f.load(t, catalogOf(radarSet(10, 20), satelliteSet("a")))
	require.NoError(t, f.engine.SelectMode(layers.ModeStatic))
	f.engine.SetOpacity(0.5)

	require.NoError(t, f.engine.SetResolution(layers.TileSize512))

	view := f.binding.View()
	require.NotNil(t, view.Static)
	assert.Equal(t, layers.TileSize512, view.Static.TileSize)
	assert.Equal(t, 0.5, view.Static.Opacity)
	assert.Equal(t, layers.RenderStatic, f.engine.RenderState())
}

func TestSetResolution_ResumesPlayback(t *testing.T) {
	f := newFixture(t)
	f.load(t, catalogOf(radarSet(10, 20), satelliteSet("a")))
	require.NoError(t, f.engine.Play())

	require.NoError(t, f.engine.SetResolution(layers.TileSize512))

	assert.True(t, f.engine.IsPlaying())
	live := f.clock.Live()
	require.Len(t, live, 1)
	assert.Equal(t, 650*time.Millisecond, live[0].interval)
}

func TestSetResolution_Invalid(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.engine.SetResolution(300), layers.ErrInvalidTileSize)
	assert.Equal(t, 256, f.engine.State().TileSize)
}

func TestPlayPause(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.Play())
	assert.False(t, f.engine.IsPlaying(), "no frames, no playback")

	f.load(t, catalogOf(radarSet(10, 20, 30), satelliteSet("a")))

	require.NoError(t, f.engine.Play())
	require.NoError(t, f.engine.Play())
	assert.True(t, f.engine.IsPlaying())
	assert.Len(t, f.clock.Live(), 1, "second play is a no-op")

	f.clock.Fire()
	assert.Equal(t, 0, f.engine.State().FrameIndex)
	f.clock.Fire()
	assert.Equal(t, 1, f.engine.State().FrameIndex)

	f.engine.Pause()
	f.engine.Pause()
	assert.False(t, f.engine.IsPlaying())
	assert.Empty(t, f.clock.Live())
}

func TestPause_IgnoresLateTick(t *testing.T) {
	f := newFixture(t)
	f.load(t, catalogOf(radarSet(10, 20, 30), satelliteSet("a")))
	require.NoError(t, f.engine.Play())
	tick := f.clock.Live()[0].fn

	f.engine.Pause()
	tick()

	assert.Equal(t, 2, f.engine.State().FrameIndex)
}

func TestSetOpacity_Clamps(t *testing.T) {
	f := newFixture(t)

	assert.InDelta(t, 0.20, f.engine.SetOpacity(0.05), 1e-9)
	assert.InDelta(t, 0.20, f.binding.View().Static.Opacity, 1e-9)

	assert.InDelta(t, 1.0, f.engine.SetOpacity(3), 1e-9)
	assert.InDelta(t, 0.55, f.engine.SetOpacity(0.55), 1e-9)
	assert.InDelta(t, 0.55, f.binding.View().Opacity, 1e-9)
}

func TestSetFrameInterval_RestartsTicker(t *testing.T) {
	f := newFixture(t)
	f.load(t, catalogOf(radarSet(10, 20), satelliteSet("a")))

	assert.Equal(t, 120*time.Millisecond, f.engine.SetFrameInterval(10*time.Millisecond))
	assert.Empty(t, f.clock.Live(), "not playing")

	require.NoError(t, f.engine.Play())
	assert.Equal(t, 800*time.Millisecond, f.engine.SetFrameInterval(5*time.Second))

	live := f.clock.Live()
	require.Len(t, live, 1)
	assert.Equal(t, 800*time.Millisecond, live[0].interval)
}

func TestSetMaxFrames(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{3, 6},
		{999, 60},
		{6, 6},
		{60, 60},
		{24, 24},
		{-1, 6},
	}

	for _, tt := range tests {
		f := newFixture(t)
		assert.Equal(t, tt.want, f.engine.SetMaxFrames(tt.in))
		assert.Equal(t, tt.want, f.engine.State().MaxFrames)
	}
}

func TestSetMaxFrames_AppliesOnNextRefresh(t *testing.T) {
	f := newFixture(t)
	f.load(t, catalogOf(radarSet(1, 2, 3, 4, 5, 6, 7, 8), satelliteSet("a")))

	f.engine.SetMaxFrames(6)
	assert.Equal(t, 8, f.engine.FrameCount(), "current set untouched")

	src := &staticSource{catalog: catalogOf(radarSet(1, 2, 3, 4, 5, 6), satelliteSet("a"))}
	_, err := f.engine.Refresh(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []int{6}, src.calls)
	assert.Equal(t, 6, f.engine.FrameCount())
}

func TestScrubTo(t *testing.T) {
	f := newFixture(t)
	f.engine.ScrubTo(2)
	assert.Equal(t, -1, f.engine.State().FrameIndex, "no-op when empty")

	f.load(t, catalogOf(radarSet(10, 20, 30, 40), satelliteSet("a")))
	require.NoError(t, f.engine.Play())

	f.engine.ScrubTo(1)
	assert.Equal(t, 1, f.engine.State().FrameIndex)
	assert.Contains(t, f.binding.View().Animated.URL, "/20/")
	assert.True(t, f.engine.IsPlaying(), "play state unchanged")

	f.engine.ScrubTo(99)
	assert.Equal(t, 3, f.engine.State().FrameIndex)
	f.engine.ScrubTo(-5)
	assert.Equal(t, 0, f.engine.State().FrameIndex)
}

func TestCurrentFrameTimestamp(t *testing.T) {
	f := newFixture(t)

	_, ok := f.engine.CurrentFrameTimestamp()
	assert.False(t, ok)

	f.load(t, catalogOf(radarSet(1700000000, 1700000600), satelliteSet("a")))

	ts, ok := f.engine.CurrentFrameTimestamp()
	require.True(t, ok)
	assert.Equal(t, time.Unix(1700000600, 0).UTC(), ts)
}

func TestFrames(t *testing.T) {
	f := newFixture(t)
	f.load(t, catalogOf(radarSet(10, 20), satelliteSet("a")))

	layer, frames := f.engine.Frames()
	assert.Equal(t, layers.Radar, layer)
	assert.Len(t, frames, 2)
}

func TestClose_StopsTicker(t *testing.T) {
	f := newFixture(t)
	f.load(t, catalogOf(radarSet(10, 20), satelliteSet("a")))
	require.NoError(t, f.engine.Play())

	f.engine.Close()

	assert.False(t, f.engine.IsPlaying())
	assert.Empty(t, f.clock.Live())
}

func TestSystemClock_TicksUntilStopped(t *testing.T) {
	ticks := make(chan struct{}, 10)
	ticker := animation.SystemClock{}.Every(time.Millisecond, func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})

	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("ticker never fired")
	}

	ticker.Stop()
	ticker.Stop()
}

func TestEngine_NoBinding(t *testing.T) {
	engine := animation.NewEngine(animation.Config{Clock: &manualClock{}, Logger: zerolog.Nop()})
	defer engine.Close()

	require.True(t, engine.ApplyCatalog(engine.Ticket(), catalogOf(radarSet(1, 2), satelliteSet("a")), nil))
	engine.Advance(1)
	assert.Equal(t, 0, engine.State().FrameIndex)
	assert.NoError(t, errors.Join(engine.SelectMode(layers.ModeOff), engine.SetResolution(512)))
}
