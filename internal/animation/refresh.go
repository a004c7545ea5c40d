package animation

import (
	"context"

	"github.com/breatheroute/wxoverlay/internal/layers"
)

// Refresh outcomes recorded in metrics.
const (
	OutcomeApplied = "applied"
	OutcomeFailed  = "failed"
	OutcomeStale   = "stale"
)

// CatalogSource builds frame catalogs, typically from the remote feeds.
type CatalogSource interface {
	FetchCatalog(ctx context.Context, maxFrames int) (*layers.Catalog, error)
}

// Ticket reserves a position in the refresh order. A catalog applied with a
// ticket older than one already applied is discarded.
func (e *Engine) Ticket() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastTicket++
	return e.lastTicket
}

// Refresh fetches a new catalog from src using the current frame cap and
// applies it. The fetch runs without holding the engine lock, so commands
// issued meanwhile are not blocked. It returns the applied catalog, or nil
// with the fetch error (the engine has already degraded to static) or nil
// with no error when a newer refresh won.
func (e *Engine) Refresh(ctx context.Context, src CatalogSource) (*layers.Catalog, error) {
	e.mu.Lock()
	e.lastTicket++
	ticket := e.lastTicket
	maxFrames := e.maxFrames
	e.mu.Unlock()

	catalog, err := src.FetchCatalog(ctx, maxFrames)
	if !e.ApplyCatalog(ticket, catalog, err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

// ApplyCatalog installs the result of a refresh. fetchErr marks a total
// failure: every frame set becomes empty, playback stops and the overlays
// fall back to static. Sets longer than the engine's max frames keep only
// their newest frames. It reports whether the result was applied.
func (e *Engine) ApplyCatalog(ticket uint64, catalog *layers.Catalog, fetchErr error) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ticket <= e.appliedTicket {
		e.logger.Debug().
			Uint64("ticket", ticket).
			Uint64("applied_ticket", e.appliedTicket).
			Msg("discarding stale frame catalog")
		e.recordRefresh(OutcomeStale)
		return false
	}
	e.appliedTicket = ticket
	e.lastTicket = max(e.lastTicket, ticket)

	wasEmpty := e.activeSet().IsEmpty()

	if fetchErr != nil || catalog == nil {
		if fetchErr != nil {
			e.degraded = fetchErr.Error()
		} else {
			e.degraded = layers.ErrFeedMalformed.Error()
		}
		e.logger.Warn().Err(fetchErr).
			Str("layer", string(e.layer)).
			Msg("frame refresh failed, falling back to static overlays")

		e.catalog = layers.EmptyCatalog()
		e.frameIndex = -1
		e.pause()
		e.applyMode()
		e.recordRefresh(OutcomeFailed)
		return true
	}

	// Stored catalogs are fetched at the frame ceiling; keep only what this
	// engine's budget allows.
	catalog = catalog.Capped(e.maxFrames)
	e.catalog = catalog
	e.degraded = ""

	n := e.activeSet().Len()
	switch {
	case n == 0:
		e.frameIndex = -1
		e.pause()
	case wasEmpty || e.frameIndex < 0:
		e.frameIndex = n - 1
	default:
		e.frameIndex = min(e.frameIndex, n-1)
	}

	if wasEmpty != (n == 0) {
		e.applyMode()
	} else if n > 0 {
		e.showFrame()
	}

	e.logger.Info().
		Str("catalog_id", catalog.ID).
		Uint64("ticket", ticket).
		Str("layer", string(e.layer)).
		Int("frames", n).
		Int("frame_index", e.frameIndex).
		Str("render", string(e.render)).
		Msg("frame catalog applied")

	e.recordRefresh(OutcomeApplied)
	if e.metrics != nil {
		for t, count := range catalog.Counts() {
			e.metrics.RecordFrames(string(t), count)
		}
	}
	return true
}

func (e *Engine) recordRefresh(outcome string) {
	if e.metrics != nil {
		e.metrics.RecordRefresh(outcome)
	}
}
