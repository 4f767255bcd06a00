/*
scheduler.go - Periodic booking expiry sweep

PURPOSE:
  Runs warehousing.Service.ExpireBookings on a fixed interval so that
  bookings whose goods never arrived give their capacity back.

DESIGN:
  - gocron DurationJob in singleton mode: a slow sweep delays the next one
    instead of overlapping it
  - RunNow (admin endpoint, CLI) shares a mutex with the scheduled job
  - The sweep itself is idempotent, so a crash mid-run is repaired by the
    next run

CONFIGURATION (config.SweepConfig):
  - Interval:   How often to sweep (default: 1 hour)
  - Enabled:    Whether the scheduler runs at all
  - RunOnStart: Sweep immediately when started

USAGE:
  sweeper, err := NewExpirySweeper(svc, cfg.Sweep, log)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: TriggerSweep endpoint (manual sweep)
  - warehousing/expiry.go: The expiry rule
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/warp/warehouse-engine/config"
	"github.com/warp/warehouse-engine/warehousing"
)

// ExpirySweeper runs the expiry sweep in the background.
type ExpirySweeper struct {
	Service *warehousing.Service
	Config  config.SweepConfig
	Log     zerolog.Logger

	scheduler gocron.Scheduler
	mu        sync.Mutex // serializes sweeps
	last      *warehousing.SweepResult
}

// NewExpirySweeper creates a sweeper. Nothing runs until Start.
func NewExpirySweeper(svc *warehousing.Service, cfg config.SweepConfig, log zerolog.Logger) (*ExpirySweeper, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, "create scheduler")
	}
	return &ExpirySweeper{
		Service:   svc,
		Config:    cfg,
		Log:       log.With().Str("component", "scheduler").Logger(),
		scheduler: s,
	}, nil
}

// Start registers the sweep job and starts the scheduler.
func (es *ExpirySweeper) Start() error {
	if !es.Config.Enabled {
		es.Log.Info().Msg("[Scheduler] Disabled, not starting")
		return nil
	}

	opts := []gocron.JobOption{
		gocron.WithName("booking-expiry"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if es.Config.RunOnStart {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	_, err := es.scheduler.NewJob(
		gocron.DurationJob(es.Config.Interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), es.Config.Interval)
			defer cancel()
			if _, err := es.RunNow(ctx); err != nil {
				es.Log.Error().Err(err).Msg("[Scheduler] Sweep failed")
			}
		}),
		opts...,
	)
	if err != nil {
		return errors.Wrap(err, "register expiry job")
	}

	es.scheduler.Start()
	es.Log.Info().Dur("interval", es.Config.Interval).Msg("[Scheduler] Started")
	return nil
}

// Stop waits for a running sweep and stops the scheduler.
func (es *ExpirySweeper) Stop() error {
	if err := es.scheduler.Shutdown(); err != nil {
		return errors.Wrap(err, "shutdown scheduler")
	}
	es.Log.Info().Msg("[Scheduler] Stopped")
	return nil
}

// RunNow sweeps immediately, waiting for a sweep already in progress.
func (es *ExpirySweeper) RunNow(ctx context.Context) (warehousing.SweepResult, error) {
	es.mu.Lock()
	defer es.mu.Unlock()

	res, err := es.Service.ExpireBookings(ctx)
	if err != nil {
		return res, err
	}
	es.last = &res
	if len(res.Expired) > 0 {
		es.Log.Info().Strs("expired", res.Expired).Msg("[Scheduler] Bookings expired")
	}
	return res, nil
}

// LastResult returns the most recent completed sweep, if any.
func (es *ExpirySweeper) LastResult() (warehousing.SweepResult, bool) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.last == nil {
		return warehousing.SweepResult{}, false
	}
	return *es.last, true
}

// NextRun returns when the scheduled sweep runs next.
func (es *ExpirySweeper) NextRun() (time.Time, error) {
	jobs := es.scheduler.Jobs()
	if len(jobs) == 0 {
		return time.Time{}, errors.New("sweeper not started")
	}
	return jobs[0].NextRun()
}
