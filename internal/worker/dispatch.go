package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// JobMessage is the payload of a job message.
type JobMessage struct {
	JobType string `json:"job_type"`

	// MaxFrames overrides the configured frame cap for one refresh.
	MaxFrames int `json:"max_frames,omitempty"`
}

// ErrUnknownJob is returned for messages naming no known job.
var ErrUnknownJob = errors.New("unknown job type")

// Dispatcher runs jobs by type, independent of how messages arrive.
type Dispatcher struct {
	refresh *RefreshJob
	log     zerolog.Logger
}

// NewDispatcher creates a dispatcher for the refresh job.
func NewDispatcher(refresh *RefreshJob, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{refresh: refresh, log: log}
}

// Dispatch runs the job msg names.
func (d *Dispatcher) Dispatch(ctx context.Context, msg JobMessage) error {
	d.log.Debug().Str("job_type", msg.JobType).Int("max_frames", msg.MaxFrames).Msg("dispatching job")

	var res *Result
	switch msg.JobType {
	case JobFramesRefresh:
		if msg.MaxFrames > 0 {
			res = d.refresh.RunCapped(ctx, msg.MaxFrames)
		} else {
			res = d.refresh.Run(ctx)
		}
	case JobHealthCheck:
		if res = d.refresh.Check(ctx); res.Err != nil {
			return fmt.Errorf("health check: %w", res.Err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
	return res.Err
}

// Handle decodes and dispatches one raw message and reports whether it
// should be acked. Unknown jobs are acked so they are not redelivered;
// malformed payloads and failed jobs are not.
func (d *Dispatcher) Handle(ctx context.Context, log zerolog.Logger, data []byte) bool {
	start := time.Now()

	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Msg("malformed job message")
		return false
	}
	log = log.With().Str("job_type", msg.JobType).Logger()

	err := d.Dispatch(ctx, msg)
	switch {
	case errors.Is(err, ErrUnknownJob):
		log.Warn().Msg("dropping unknown job")
		return true
	case err != nil:
		log.Error().Err(err).Msg("job failed")
		return false
	}
	log.Info().Dur("took", time.Since(start)).Msg("job done")
	return true
}
