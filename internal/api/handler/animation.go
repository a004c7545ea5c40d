package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog"

	"github.com/breatheroute/wxoverlay/internal/animation"
	"github.com/breatheroute/wxoverlay/internal/api/models"
	"github.com/breatheroute/wxoverlay/internal/api/response"
	"github.com/breatheroute/wxoverlay/internal/layers"
	"github.com/breatheroute/wxoverlay/internal/mapbinding"
	"github.com/breatheroute/wxoverlay/internal/tiles"
)

// MaxTileZoom is the deepest zoom the tile redirect accepts.
const MaxTileZoom = 22

// Controller is the animation engine as driven by the HTTP layer.
type Controller interface {
	CatalogReporter

	State() animation.State
	CurrentFrameTimestamp() (time.Time, bool)
	DiagnosticSummary() string
	Frames() (layers.Type, []layers.Frame)

	SelectLayer(t layers.Type) error
	SelectMode(m layers.DisplayMode) error
	SetResolution(size int) error
	Advance(dir int)
	Play() error
	Pause()
	SetOpacity(v float64) float64
	SetFrameInterval(d time.Duration) time.Duration
	SetMaxFrames(n int) int
	ScrubTo(i int)
	Refresh(ctx context.Context, src animation.CatalogSource) (*layers.Catalog, error)
}

// OverlayViewer exposes the overlays the engine has attached to the map.
type OverlayViewer interface {
	View() mapbinding.View
}

// CatalogSaver persists refreshed catalogs.
type CatalogSaver interface {
	Save(ctx context.Context, catalog *layers.Catalog) error
}

// AnimationHandler handles the animation projection and command endpoints.
type AnimationHandler struct {
	engine  Controller
	overlay OverlayViewer
	source  animation.CatalogSource
	store   CatalogSaver
	logger  zerolog.Logger
}

// AnimationConfig holds the dependencies of the animation endpoints.
type AnimationConfig struct {
	Engine  Controller
	Overlay OverlayViewer

	// Source is used by on-demand refreshes (optional; refresh returns 503 without it).
	Source animation.CatalogSource

	// Store receives successfully refreshed catalogs (optional).
	Store CatalogSaver

	Logger zerolog.Logger
}

// NewAnimationHandler creates a new AnimationHandler.
func NewAnimationHandler(cfg AnimationConfig) *AnimationHandler {
	return &AnimationHandler{
		engine:  cfg.Engine,
		overlay: cfg.Overlay,
		source:  cfg.Source,
		store:   cfg.Store,
		logger:  cfg.Logger,
	}
}

// GetState handles GET /v1/animation.
func (h *AnimationHandler) GetState(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.state())
}

// GetOverlay handles GET /v1/animation/overlay.
func (h *AnimationHandler) GetOverlay(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.overlay.View())
}

// GetFrames handles GET /v1/animation/frames.
func (h *AnimationHandler) GetFrames(w http.ResponseWriter, r *http.Request) {
	layer, frames := h.engine.Frames()

	list := models.FrameList{
		Layer:      string(layer),
		FrameIndex: h.engine.State().FrameIndex,
		Frames:     make([]models.Frame, 0, len(frames)),
	}
	for _, f := range frames {
		list.Frames = append(list.Frames, models.Frame{
			Token: f.Token,
			Time:  models.TimestampPtr(f.Timestamp()),
		})
	}
	if c := h.engine.Catalog(); c != nil {
		list.Issue = c.Issues[layer]
	}

	response.JSON(w, r, http.StatusOK, list)
}

// RedirectTile handles GET /v1/animation/tiles/{z}/{x}/{y}. It redirects to
// the concrete tile of the overlay currently rendered.
func (h *AnimationHandler) RedirectTile(w http.ResponseWriter, r *http.Request) {
	tile, ok := parseTile(r)
	if !ok {
		response.BadRequest(w, r, "invalid tile coordinates", nil)
		return
	}

	overlay, ok := h.overlay.View().Rendered()
	if !ok {
		response.NotFound(w, r, "no overlay is rendered")
		return
	}

	url, err := tiles.Expand(overlay.URL, tile)
	if err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	response.Redirect(w, r, url)
}

func parseTile(r *http.Request) (maptile.Tile, bool) {
	z, err := strconv.ParseUint(chi.URLParam(r, "z"), 10, 32)
	if err != nil || z > MaxTileZoom {
		return maptile.Tile{}, false
	}
	x, err := strconv.ParseUint(chi.URLParam(r, "x"), 10, 32)
	if err != nil {
		return maptile.Tile{}, false
	}
	y, err := strconv.ParseUint(chi.URLParam(r, "y"), 10, 32)
	if err != nil {
		return maptile.Tile{}, false
	}
	return maptile.Tile{X: uint32(x), Y: uint32(y), Z: maptile.Zoom(z)}, true
}

// SelectLayer handles PUT /v1/animation/layer.
func (h *AnimationHandler) SelectLayer(w http.ResponseWriter, r *http.Request) {
	var req models.SelectLayerRequest
	if !decodeCommand(w, r, &req) {
		return
	}
	if err := h.engine.SelectLayer(layers.Type(req.Type)); err != nil {
		writeEngineError(w, r, err)
		return
	}
	h.commandDone(w, r, "select_layer")
}

// SelectMode handles PUT /v1/animation/mode.
func (h *AnimationHandler) SelectMode(w http.ResponseWriter, r *http.Request) {
	var req models.SelectModeRequest
	if !decodeCommand(w, r, &req) {
		return
	}
	if err := h.engine.SelectMode(layers.DisplayMode(req.Mode)); err != nil {
		writeEngineError(w, r, err)
		return
	}
	h.commandDone(w, r, "select_mode")
}

// SetResolution handles PUT /v1/animation/resolution.
func (h *AnimationHandler) SetResolution(w http.ResponseWriter, r *http.Request) {
	var req models.ResolutionRequest
	if !decodeCommand(w, r, &req) {
		return
	}
	if err := h.engine.SetResolution(req.TileSize); err != nil {
		writeEngineError(w, r, err)
		return
	}
	h.commandDone(w, r, "set_resolution")
}

// SetOpacity handles PUT /v1/animation/opacity.
func (h *AnimationHandler) SetOpacity(w http.ResponseWriter, r *http.Request) {
	var req models.OpacityRequest
	if !decodeCommand(w, r, &req) {
		return
	}
	h.engine.SetOpacity(*req.Opacity)
	h.commandDone(w, r, "set_opacity")
}

// SetFrameInterval handles PUT /v1/animation/interval.
func (h *AnimationHandler) SetFrameInterval(w http.ResponseWriter, r *http.Request) {
	var req models.IntervalRequest
	if !decodeCommand(w, r, &req) {
		return
	}
	h.engine.SetFrameInterval(time.Duration(req.IntervalMs) * time.Millisecond)
	h.commandDone(w, r, "set_interval")
}

// SetMaxFrames handles PUT /v1/animation/max-frames.
func (h *AnimationHandler) SetMaxFrames(w http.ResponseWriter, r *http.Request) {
	var req models.MaxFramesRequest
	if !decodeCommand(w, r, &req) {
		return
	}
	h.engine.SetMaxFrames(req.MaxFrames)
	h.commandDone(w, r, "set_max_frames")
}

// Play handles POST /v1/animation/play.
func (h *AnimationHandler) Play(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Play(); err != nil {
		h.logger.Error().Err(err).Msg("failed to start playback")
		writeEngineError(w, r, err)
		return
	}
	h.commandDone(w, r, "play")
}

// Pause handles POST /v1/animation/pause.
func (h *AnimationHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.engine.Pause()
	h.commandDone(w, r, "pause")
}

// Step handles POST /v1/animation/step.
func (h *AnimationHandler) Step(w http.ResponseWriter, r *http.Request) {
	var req models.StepRequest
	if !decodeCommand(w, r, &req) {
		return
	}
	dir := 1
	if req.Direction == models.DirectionBackward {
		dir = -1
	}
	h.engine.Advance(dir)
	h.commandDone(w, r, "step")
}

// ScrubTo handles PUT /v1/animation/frame.
func (h *AnimationHandler) ScrubTo(w http.ResponseWriter, r *http.Request) {
	var req models.FrameRequest
	if !decodeCommand(w, r, &req) {
		return
	}
	h.engine.ScrubTo(*req.Index)
	h.commandDone(w, r, "scrub")
}

// Refresh handles POST /v1/animation/refresh. A failed fetch has already
// degraded the engine to static overlays and is reported as 502.
func (h *AnimationHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		response.ServiceUnavailable(w, r, "frame feed is not configured")
		return
	}

	catalog, err := h.engine.Refresh(r.Context(), h.source)
	if err != nil {
		h.logger.Warn().Err(err).Str("operator", OperatorFrom(r.Context())).Msg("on-demand refresh failed")
		response.BadGateway(w, r, err.Error())
		return
	}

	result := models.RefreshResult{Applied: catalog != nil}
	if catalog != nil {
		result.Counts = make(map[string]int, len(layers.AllTypes()))
		for t, n := range catalog.Counts() {
			result.Counts[string(t)] = n
		}
		h.save(r.Context(), catalog)
	}
	result.State = h.state()

	response.JSON(w, r, http.StatusOK, result)
}

func (h *AnimationHandler) save(ctx context.Context, catalog *layers.Catalog) {
	if h.store == nil {
		return
	}
	if err := h.store.Save(ctx, catalog); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn().Err(err).Str("catalog_id", catalog.ID).Msg("failed to store refreshed catalog")
	}
}

func (h *AnimationHandler) commandDone(w http.ResponseWriter, r *http.Request, command string) {
	state := h.state()
	h.logger.Debug().
		Str("command", command).
		Str("operator", OperatorFrom(r.Context())).
		Str("layer", state.Layer).
		Str("render", state.Render).
		Int("frame_index", state.FrameIndex).
		Msg("animation command applied")
	response.JSON(w, r, http.StatusOK, state)
}

func (h *AnimationHandler) state() models.AnimationState {
	st := h.engine.State()

	out := models.AnimationState{
		Layer:           string(st.Layer),
		LayerLabel:      st.Layer.Label(),
		Mode:            string(st.Mode),
		Render:          string(st.Render),
		FrameIndex:      st.FrameIndex,
		FrameCount:      st.FrameCount,
		Playing:         st.Playing,
		TileSize:        st.TileSize,
		Opacity:         st.Opacity,
		FrameIntervalMs: st.FrameInterval.Milliseconds(),
		MaxFrames:       st.MaxFrames,
		Summary:         h.engine.DiagnosticSummary(),
	}
	if ts, ok := h.engine.CurrentFrameTimestamp(); ok {
		out.FrameTime = models.TimestampPtr(ts)
	}
	if c := h.engine.Catalog(); c != nil && !c.FetchedAt.IsZero() {
		out.CatalogID = c.ID
		out.FetchedAt = models.TimestampPtr(c.FetchedAt)
	}
	return out
}
