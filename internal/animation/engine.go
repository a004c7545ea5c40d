// Package animation implements the layer animation engine: the state machine
// that owns the active layer, display mode and playback of weather overlays.
//
// Every public operation takes the engine lock and runs to completion before
// the next one starts. The playback ticker runs on its own goroutine and
// calls back into the engine; ticks from a stopped ticker are ignored.
package animation

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/wxoverlay/internal/budget"
	"github.com/breatheroute/wxoverlay/internal/layers"
	"github.com/breatheroute/wxoverlay/internal/telemetry"
	"github.com/breatheroute/wxoverlay/internal/tiles"
)

// Config holds configuration for the engine.
type Config struct {
	// Binding receives overlay commands (optional, defaults to a no-op).
	Binding Binding

	// Resolver builds tile URLs (optional, defaults to the compiled-in templates).
	Resolver *tiles.Resolver

	// Clock creates the playback timer (optional, defaults to SystemClock).
	Clock Clock

	// Logger for engine operations.
	Logger zerolog.Logger

	// Metrics records refreshes and render changes (optional).
	Metrics *telemetry.EngineMetrics

	// Layer is the initial layer (default: radar).
	Layer layers.Type

	// Mode is the initial display mode (default: auto).
	Mode layers.DisplayMode

	// TileSize is the initial tile size (default: 256).
	TileSize int

	// Opacity is the initial opacity (default: 0.70).
	Opacity float64

	// MaxFrames is the frame cap for refreshes (default: mid-tier budget).
	MaxFrames int
}

// State is a read-only projection of the engine state.
type State struct {
	Layer         layers.Type        `json:"layer"`
	Mode          layers.DisplayMode `json:"mode"`
	Render        layers.RenderState `json:"render"`
	FrameIndex    int                `json:"frameIndex"`
	FrameCount    int                `json:"frameCount"`
	Playing       bool               `json:"playing"`
	TileSize      int                `json:"tileSize"`
	Opacity       float64            `json:"opacity"`
	FrameInterval time.Duration      `json:"-"`
	MaxFrames     int                `json:"maxFrames"`
}

// Engine is the mode/playback state machine.
type Engine struct {
	mu sync.Mutex

	binding  Binding
	resolver *tiles.Resolver
	clock    Clock
	logger   zerolog.Logger
	metrics  *telemetry.EngineMetrics

	layer      layers.Type
	mode       layers.DisplayMode
	frameIndex int // -1 while the active set is empty
	playing    bool
	tileSize   int
	opacity    float64
	interval   time.Duration
	maxFrames  int

	catalog  *layers.Catalog
	degraded string

	// What the binding currently shows.
	render           layers.RenderState
	staticAttached   bool
	animatedExists   bool
	animatedAttached bool

	ticker  Ticker
	tickGen uint64

	lastTicket    uint64
	appliedTicket uint64
}

// NewEngine creates an engine with an empty catalog and shows the static
// overlay of the initial layer.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		binding:    cfg.Binding,
		resolver:   cfg.Resolver,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		layer:      cfg.Layer,
		mode:       cfg.Mode,
		frameIndex: -1,
		tileSize:   cfg.TileSize,
		opacity:    cfg.Opacity,
		maxFrames:  cfg.MaxFrames,
		catalog:    layers.EmptyCatalog(),
		render:     layers.RenderOff,
	}

	if e.binding == nil {
		e.binding = nopBinding{}
	}
	if e.resolver == nil {
		e.resolver = tiles.NewResolver(tiles.DefaultTemplates())
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	if !e.layer.Valid() {
		e.layer = layers.Radar
	}
	if _, err := layers.ParseMode(string(e.mode)); err != nil {
		e.mode = layers.ModeAuto
	}
	if !layers.ValidTileSize(e.tileSize) {
		e.tileSize = layers.TileSize256
	}
	if e.opacity == 0 {
		e.opacity = layers.DefaultOpacity
	}
	e.opacity = budget.ClampOpacity(e.opacity)
	if e.maxFrames == 0 {
		e.maxFrames = budget.Recommend(budget.DeviceProfile{})
	}
	e.maxFrames = budget.ClampMaxFrames(e.maxFrames)
	e.interval = layers.DefaultFrameInterval(e.tileSize)

	e.applyMode()
	return e
}

// SelectLayer switches the active layer. Playback resumes afterwards if it
// was running and the new layer has frames.
func (e *Engine) SelectLayer(t layers.Type) error {
	if !t.Valid() {
		return layers.ErrUnknownLayer
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	wasPlaying := e.playing
	e.pause()

	e.layer = t
	e.frameIndex = e.activeSet().Len() - 1

	// Both overlays are bound to the previous layer's templates.
	e.hideStatic()
	e.dropAnimated()
	e.applyMode()

	if wasPlaying {
		e.play()
	}

	e.logger.Debug().
		Str("layer", string(t)).
		Int("frames", e.activeSet().Len()).
		Bool("playing", e.playing).
		Msg("layer selected")
	return nil
}

// SelectMode sets the display mode and updates the overlays to match.
func (e *Engine) SelectMode(m layers.DisplayMode) error {
	if _, err := layers.ParseMode(string(m)); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.mode = m
	e.applyMode()
	return nil
}

// SetResolution changes the tile size and resets the frame interval to the
// size's default. The frame index is kept.
func (e *Engine) SetResolution(size int) error {
	if !layers.ValidTileSize(size) {
		return layers.ErrInvalidTileSize
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	wasPlaying := e.playing
	e.pause()

	e.tileSize = size
	e.interval = layers.DefaultFrameInterval(size)

	// Both overlays report the tile size; the animated template embeds it.
	e.dropAnimated()
	e.hideStatic()
	e.showFrame()
	e.applyMode()

	if wasPlaying {
		e.play()
	}
	return nil
}

// Advance steps the frame index by dir, wrapping around at both ends.
func (e *Engine) Advance(dir int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.advance(dir)
}

// Play starts playback. It is a no-op when already playing or when the
// active layer has no frames.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.playing || e.activeSet().IsEmpty() {
		return nil
	}
	if err := e.startTicker(); err != nil {
		return err
	}
	e.playing = true
	return nil
}

// Pause stops playback. It is idempotent.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pause()
}

// SetOpacity clamps v into range and applies it to the attached overlays.
// It returns the stored value.
func (e *Engine) SetOpacity(v float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.opacity = budget.ClampOpacity(v)
	if e.staticAttached || e.animatedAttached {
		e.binding.SetOpacity(e.opacity)
	}
	return e.opacity
}

// SetFrameInterval clamps d into range and restarts a running ticker with
// the new interval. It returns the stored value.
func (e *Engine) SetFrameInterval(d time.Duration) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.interval = budget.ClampFrameInterval(d)
	if e.playing {
		e.stopTicker()
		if err := e.startTicker(); err != nil {
			e.logger.Error().Err(err).Msg("failed to restart playback")
			e.playing = false
		}
	}
	return e.interval
}

// SetMaxFrames clamps n into range. The new cap applies from the next
// refresh; the current frame sets are left untouched. It returns the stored
// value.
func (e *Engine) SetMaxFrames(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.maxFrames = budget.ClampMaxFrames(n)
	return e.maxFrames
}

// ScrubTo jumps to frame i, clamped into range. Play state is unchanged.
func (e *Engine) ScrubTo(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.activeSet().Len()
	if n == 0 {
		return
	}
	e.frameIndex = max(0, min(i, n-1))
	e.showFrame()
}

// Close stops playback.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pause()
}

// State returns a snapshot of the engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return State{
		Layer:         e.layer,
		Mode:          e.mode,
		Render:        e.render,
		FrameIndex:    e.frameIndex,
		FrameCount:    e.activeSet().Len(),
		Playing:       e.playing,
		TileSize:      e.tileSize,
		Opacity:       e.opacity,
		FrameInterval: e.interval,
		MaxFrames:     e.maxFrames,
	}
}

// CurrentFrameTimestamp returns the time of the displayed frame. ok is false
// when there is no frame or its time is unknown.
func (e *Engine) CurrentFrameTimestamp() (ts time.Time, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, ok := e.activeSet().At(e.frameIndex)
	if !ok || f.Time == 0 {
		return time.Time{}, false
	}
	return f.Timestamp(), true
}

// FrameCount returns the number of frames of the active layer.
func (e *Engine) FrameCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.activeSet().Len()
}

// IsPlaying reports whether playback is running.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.playing
}

// RenderState returns the effective render state currently shown.
func (e *Engine) RenderState() layers.RenderState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.render
}

// Catalog returns the cached frame catalog.
func (e *Engine) Catalog() *layers.Catalog {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.catalog
}

// Frames returns the frames of the active layer.
func (e *Engine) Frames() (layers.Type, []layers.Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.layer, e.activeSet().Frames()
}

// The methods below expect e.mu to be held.

func (e *Engine) activeSet() layers.FrameSet {
	return e.catalog.Set(e.layer)
}

func (e *Engine) advance(dir int) {
	n := e.activeSet().Len()
	if n == 0 {
		return
	}
	i := max(e.frameIndex, 0)
	e.frameIndex = ((i+dir)%n + n) % n
	e.showFrame()
}

// showFrame points the animated overlay at the current frame. An existing
// overlay has its URL swapped in place; otherwise one is created only when
// the effective state is animated.
func (e *Engine) showFrame() {
	if e.animatedExists {
		url, frame, ok := e.frameURL()
		if ok {
			e.binding.UpdateAnimatedURL(url, frame)
		}
		return
	}
	if layers.ResolveRenderState(e.mode, e.activeSet().Len()) == layers.RenderAnimated {
		e.showAnimated()
	}
}

// applyMode resolves the effective render state, detaches the overlay that
// does not belong and attaches the one that does.
func (e *Engine) applyMode() {
	target := layers.ResolveRenderState(e.mode, e.activeSet().Len())

	switch target {
	case layers.RenderOff:
		e.hideStatic()
		e.hideAnimated()
	case layers.RenderStatic:
		e.hideAnimated()
		e.showStatic()
	case layers.RenderAnimated:
		e.hideStatic()
		e.showAnimated()
	}

	if target != e.render {
		e.logger.Debug().
			Str("layer", string(e.layer)).
			Str("mode", string(e.mode)).
			Str("from", string(e.render)).
			Str("to", string(target)).
			Msg("render state changed")
		if e.metrics != nil {
			e.metrics.RecordRenderChange(string(e.render), string(target))
		}
		e.render = target
	}
}

func (e *Engine) showStatic() {
	if e.staticAttached {
		return
	}
	url, err := e.resolver.StaticURL(e.layer)
	if err != nil {
		e.logger.Error().Err(err).Str("layer", string(e.layer)).Msg("no static template")
		return
	}
	e.binding.ShowStatic(Overlay{
		Kind:        layers.RenderStatic,
		Layer:       e.layer,
		URL:         url,
		Attribution: e.resolver.Attribution(e.layer),
		Opacity:     e.opacity,
		TileSize:    e.tileSize,
	})
	e.staticAttached = true
}

func (e *Engine) hideStatic() {
	if !e.staticAttached {
		return
	}
	e.binding.HideStatic()
	e.staticAttached = false
}

func (e *Engine) showAnimated() {
	if e.animatedAttached {
		return
	}
	url, frame, ok := e.frameURL()
	if !ok {
		return
	}
	e.binding.ShowAnimated(Overlay{
		Kind:        layers.RenderAnimated,
		Layer:       e.layer,
		URL:         url,
		Attribution: e.resolver.Attribution(e.layer),
		Opacity:     e.opacity,
		TileSize:    e.tileSize,
		FrameToken:  frame.Token,
		FrameTime:   frame.Time,
	})
	e.animatedExists = true
	e.animatedAttached = true
}

func (e *Engine) hideAnimated() {
	if !e.animatedAttached {
		return
	}
	e.binding.HideAnimated()
	e.animatedAttached = false
}

func (e *Engine) dropAnimated() {
	if !e.animatedExists {
		return
	}
	e.binding.DropAnimated()
	e.animatedExists = false
	e.animatedAttached = false
}

func (e *Engine) frameURL() (string, layers.Frame, bool) {
	frame, ok := e.activeSet().At(e.frameIndex)
	if !ok {
		return "", layers.Frame{}, false
	}
	url, err := e.resolver.AnimatedURL(e.layer, frame, e.tileSize)
	if err != nil {
		e.logger.Error().Err(err).
			Str("layer", string(e.layer)).
			Int("tile_size", e.tileSize).
			Msg("failed to resolve animated tile URL")
		return "", layers.Frame{}, false
	}
	return url, frame, true
}

func (e *Engine) play() {
	if e.playing || e.activeSet().IsEmpty() {
		return
	}
	if err := e.startTicker(); err != nil {
		e.logger.Error().Err(err).Msg("failed to resume playback")
		return
	}
	e.playing = true
}

func (e *Engine) pause() {
	e.stopTicker()
	e.playing = false
}

func (e *Engine) startTicker() error {
	if e.ticker != nil {
		return layers.ErrScheduleAlreadyRunning
	}
	e.tickGen++
	gen := e.tickGen
	e.ticker = e.clock.Every(e.interval, func() { e.tick(gen) })
	return nil
}

func (e *Engine) stopTicker() {
	if e.ticker == nil {
		return
	}
	e.ticker.Stop()
	e.ticker = nil
	e.tickGen++
}

func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.playing || gen != e.tickGen {
		return
	}
	e.advance(+1)
}
