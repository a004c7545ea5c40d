package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/wxoverlay/internal/budget"
	"github.com/breatheroute/wxoverlay/internal/framestore"
	"github.com/breatheroute/wxoverlay/internal/layers"
)

// Refresh errors.
var (
	ErrEmptyCatalog = errors.New("refresh produced no frames")
	ErrNoSource     = errors.New("no catalog source configured")
)

// CatalogSource builds frame catalogs from the remote feeds.
type CatalogSource interface {
	FetchCatalog(ctx context.Context, maxFrames int) (*layers.Catalog, error)
}

// RefreshJobConfig holds the dependencies of a RefreshJob.
type RefreshJobConfig struct {
	Config RefreshConfig
	Logger zerolog.Logger
	Source CatalogSource

	// Store receives refreshed catalogs. Without one, runs only fetch.
	Store framestore.Repository
}

// RefreshJob fetches frame catalogs and stores them. Runs may overlap;
// the store keeps whichever catalog was saved last.
type RefreshJob struct {
	cfg    RefreshConfig
	log    zerolog.Logger
	source CatalogSource
	store  framestore.Repository

	mu    sync.Mutex
	stats Stats
}

// NewRefreshJob creates a refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	return &RefreshJob{
		cfg:    cfg.Config.withDefaults(),
		log:    cfg.Logger.With().Str("job", JobFramesRefresh).Logger(),
		source: cfg.Source,
		store:  cfg.Store,
	}
}

// Result describes one run.
type Result struct {
	Started time.Time
	Took    time.Duration

	CatalogID string
	Frames    map[layers.Type]int
	Issues    map[layers.Type]string
	Saved     bool
	Err       error
}

// Run fetches a catalog at the configured frame cap and saves it.
func (j *RefreshJob) Run(ctx context.Context) *Result {
	return j.run(ctx, j.cfg.MaxFrames, true)
}

// RunCapped is Run with a per-run frame cap, clamped to the budget limits.
func (j *RefreshJob) RunCapped(ctx context.Context, maxFrames int) *Result {
	return j.run(ctx, budget.ClampMaxFrames(maxFrames), true)
}

// Check fetches a catalog without saving it, to verify feed connectivity.
func (j *RefreshJob) Check(ctx context.Context) *Result {
	return j.run(ctx, j.cfg.MaxFrames, false)
}

func (j *RefreshJob) run(ctx context.Context, maxFrames int, save bool) *Result {
	res := &Result{Started: time.Now()}
	res.Err = j.refresh(ctx, maxFrames, save, res)
	res.Took = time.Since(res.Started)
	j.record(res)

	event := j.log.Info()
	if res.Err != nil {
		event = j.log.Error().Err(res.Err)
	}
	event.
		Int("max_frames", maxFrames).
		Bool("save", save).
		Str("catalog_id", res.CatalogID).
		Bool("saved", res.Saved).
		Dur("took", res.Took).
		Msg("frame refresh finished")
	return res
}

func (j *RefreshJob) refresh(ctx context.Context, maxFrames int, save bool, res *Result) error {
	if j.source == nil {
		return ErrNoSource
	}
	ctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	catalog, err := j.source.FetchCatalog(ctx, maxFrames)
	if err != nil {
		return fmt.Errorf("fetching catalog: %w", err)
	}
	res.CatalogID = catalog.ID
	res.Frames = catalog.Counts()
	res.Issues = catalog.Issues

	// An empty catalog would replace the last good one.
	if catalog.Empty() && !j.cfg.SaveEmpty {
		return ErrEmptyCatalog
	}
	if !save || j.store == nil {
		return nil
	}
	if err := j.store.Save(ctx, catalog); err != nil {
		return fmt.Errorf("saving catalog: %w", err)
	}
	res.Saved = true
	return nil
}

// Stats are the counters a RefreshJob keeps across runs.
type Stats struct {
	Runs      int64
	Succeeded int64
	Failed    int64
	Saved     int64

	LastRunAt     time.Time
	LastTook      time.Duration
	TotalTook     time.Duration
	LastCatalogID string
}

// MarshalJSON renders durations as strings for the worker's /metrics page.
func (s Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Runs          int64     `json:"runs"`
		Succeeded     int64     `json:"succeeded"`
		Failed        int64     `json:"failed"`
		Saved         int64     `json:"saved"`
		LastRunAt     time.Time `json:"last_run_at"`
		LastTook      string    `json:"last_took"`
		TotalTook     string    `json:"total_took"`
		LastCatalogID string    `json:"last_catalog_id,omitempty"`
	}{
		s.Runs, s.Succeeded, s.Failed, s.Saved,
		s.LastRunAt, s.LastTook.String(), s.TotalTook.String(), s.LastCatalogID,
	})
}

func (j *RefreshJob) record(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := &j.stats
	s.Runs++
	if res.Err != nil {
		s.Failed++
	} else {
		s.Succeeded++
	}
	if res.Saved {
		s.Saved++
		s.LastCatalogID = res.CatalogID
	}
	s.LastRunAt = res.Started.Add(res.Took)
	s.LastTook = res.Took
	s.TotalTook += res.Took
}

// Stats returns a copy of the job's counters.
func (j *RefreshJob) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}
