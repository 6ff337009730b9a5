package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/bilgisen/newsbot/internal/metrics"
	"github.com/rs/zerolog"
)

// Scheduler repeats a Runner on a fixed interval.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	cooldown time.Duration
	log      zerolog.Logger

	now   func() time.Time
	sleep SleepFunc
}

// SchedulerOption customises a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock overrides the clock used to measure run time.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithSleep overrides the wait between runs.
func WithSleep(fn SleepFunc) SchedulerOption {
	return func(s *Scheduler) {
		s.sleep = fn
	}
}

func NewScheduler(runner Runner, interval, cooldown time.Duration, log zerolog.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner:   runner,
		interval: interval,
		cooldown: cooldown,
		log:      log,
		now:      time.Now,
		sleep:    sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run loops until ctx is cancelled. A failed or panicking run is logged and
// retried after the cooldown.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")

	for ctx.Err() == nil {
		start := s.now()
		stats, err := s.runOnce(ctx)
		elapsed := s.now().Sub(start)

		wait := max(s.interval-elapsed, 0)
		if err != nil {
			metrics.PipelineRuns.WithLabelValues("error").Inc()
			s.log.Error().Err(err).Dur("cooldown", s.cooldown).Msg("pipeline run failed")
			wait = s.cooldown
		} else {
			metrics.PipelineRuns.WithLabelValues("ok").Inc()
			s.log.Info().
				Int("collected", stats.Collected).
				Int("submitted", stats.Submitted).
				Int("failed", stats.Failed).
				Int("skipped", stats.Skipped).
				Dur("elapsed", elapsed).
				Dur("next_in", wait).
				Msg("pipeline run finished")
		}

		if !s.sleep(ctx, wait) {
			break
		}
	}

	s.log.Info().Msg("scheduler stopped")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) (stats Stats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return s.runner.RunOnce(ctx)
}
