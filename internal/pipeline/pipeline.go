package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilgisen/newsbot/internal/models"
	"github.com/bilgisen/newsbot/internal/storage"
	"github.com/rs/zerolog"
)

// SleepFunc waits for d and reports false if ctx ended first.
type SleepFunc func(ctx context.Context, d time.Duration) bool

// Options holds the pacing between candidates.
type Options struct {
	ItemDelay     time.Duration
	ErrorCooldown time.Duration

	// Sleep replaces the real wait between candidates. Optional.
	Sleep SleepFunc
}

// Stats summarises one run.
type Stats struct {
	Collected int
	Submitted int
	Failed    int
	// Skipped counts candidates another run claimed first.
	Skipped int
}

// Pipeline moves candidates from the feeds to the moderator.
type Pipeline struct {
	collector Collector
	enricher  *Enricher
	submitter Submitter
	opts      Options
	log       zerolog.Logger
}

func New(collector Collector, enricher *Enricher, submitter Submitter, opts Options, log zerolog.Logger) *Pipeline {
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	return &Pipeline{
		collector: collector,
		enricher:  enricher,
		submitter: submitter,
		opts:      opts,
		log:       log,
	}
}

// RunOnce processes every candidate of one collection. Once ctx is cancelled
// no new candidate is started, but the one in flight runs to completion.
func (p *Pipeline) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats

	items, err := p.collector.Collect(ctx)
	if err != nil {
		return stats, fmt.Errorf("collect candidates: %w", err)
	}
	stats.Collected = len(items)
	p.log.Info().Int("candidates", len(items)).Msg("candidates collected")

	for _, c := range items {
		if ctx.Err() != nil {
			break
		}

		pause := p.opts.ItemDelay
		err := p.process(context.WithoutCancel(ctx), c)
		switch {
		case errors.Is(err, storage.ErrAlreadySeen):
			stats.Skipped++
			p.log.Info().Str("url", c.URL).Msg("candidate claimed elsewhere, skipping")
			continue
		case err != nil:
			stats.Failed++
			p.log.Error().Err(err).Str("url", c.URL).Msg("candidate dropped")
			pause = p.opts.ErrorCooldown
		default:
			stats.Submitted++
		}

		if !p.opts.Sleep(ctx, pause) {
			break
		}
	}

	return stats, nil
}

func (p *Pipeline) process(ctx context.Context, c models.Candidate) error {
	// claimed before enrichment: a crash past this point never retries the url
	if err := p.collector.Claim(ctx, c); err != nil {
		return fmt.Errorf("claim: %w", err)
	}

	enriched := p.enricher.Enrich(ctx, c)

	id, err := p.submitter.Submit(ctx, c, enriched)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	p.log.Debug().Str("post_id", id).Str("url", c.URL).Msg("candidate submitted")
	return nil
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
