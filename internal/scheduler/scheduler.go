// Package scheduler runs frame catalog refreshes on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Job is one scheduled refresh run.
type Job func(ctx context.Context) error

// Config holds configuration for the scheduler.
type Config struct {
	// Name identifies the job in logs.
	Name string

	// Interval between runs. The first run starts immediately.
	Interval time.Duration

	// Timeout bounds a single run (default: 30s).
	Timeout time.Duration

	// Job is the work to run.
	Job Job

	// Logger for scheduler operations.
	Logger zerolog.Logger
}

// Scheduler periodically runs a refresh job. Runs never overlap.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cfg       Config
	logger    zerolog.Logger
}

// New creates a new Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "frames_refresh"
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		cfg:       cfg,
		logger:    cfg.Logger.With().Str("job", cfg.Name).Logger(),
	}
}

// Start schedules the job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("scheduler: invalid interval %s", s.cfg.Interval)
	}
	if s.cfg.Job == nil {
		return fmt.Errorf("scheduler: no job configured")
	}

	_, err := s.scheduler.Every(s.cfg.Interval).SingletonMode().Do(s.run)
	if err != nil {
		return fmt.Errorf("scheduler: scheduling %s: %w", s.cfg.Name, err)
	}

	s.scheduler.StartAsync()
	s.logger.Info().Dur("interval", s.cfg.Interval).Msg("scheduler started")
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	if err := s.cfg.Job(ctx); err != nil {
		s.logger.Warn().Err(err).Dur("duration", time.Since(start)).Msg("scheduled run failed")
		return
	}
	s.logger.Debug().Dur("duration", time.Since(start)).Msg("scheduled run completed")
}
