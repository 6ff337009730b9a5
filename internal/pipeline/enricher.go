package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bilgisen/newsbot/internal/ai"
	"github.com/bilgisen/newsbot/internal/metrics"
	"github.com/bilgisen/newsbot/internal/models"
	"github.com/rs/zerolog"
)

type EnricherOptions struct {
	// Footer closes fallback posts.
	Footer string
	// Watermark is stamped on generated images; empty disables it.
	Watermark string
	// FallbackImage is used when generation fails; nil means text only.
	FallbackImage []byte
}

// Enricher turns a candidate into post text and an illustration. It never
// fails: each step has a fallback.
type Enricher struct {
	rewriter    Rewriter
	illustrator Illustrator
	opts        EnricherOptions
	log         zerolog.Logger
}

func NewEnricher(rewriter Rewriter, illustrator Illustrator, opts EnricherOptions, log zerolog.Logger) *Enricher {
	return &Enricher{
		rewriter:    rewriter,
		illustrator: illustrator,
		opts:        opts,
		log:         log,
	}
}

// LoadFallbackImage reads the fallback illustration. A missing file is not an error.
func LoadFallbackImage(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fallback image: %w", err)
	}
	return data, nil
}

func (e *Enricher) Enrich(ctx context.Context, c models.Candidate) models.Enriched {
	log := e.log.With().Str("url", c.URL).Logger()

	text, err := e.rewriter.Rewrite(ctx, c.Title, c.Description)
	if err != nil {
		log.Warn().Err(err).Msg("rewrite failed, using fallback text")
		metrics.EnrichmentFallbacks.WithLabelValues("text").Inc()
		text = ai.FallbackText(c.Title, c.Description, e.opts.Footer)
	}

	return models.Enriched{Text: text, Image: e.illustrate(ctx, log, c)}
}

func (e *Enricher) illustrate(ctx context.Context, log zerolog.Logger, c models.Candidate) []byte {
	image, err := e.illustrator.Generate(ctx, ai.SafeImagePrompt(c.Title))
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("image generation failed, using fallback image")
	case len(image) == 0:
		log.Warn().Msg("image service returned no image, using fallback image")
	default:
		marked, err := ai.Watermark(image, e.opts.Watermark)
		if err != nil {
			log.Warn().Err(err).Msg("failed to watermark image")
			return image
		}
		return marked
	}

	metrics.EnrichmentFallbacks.WithLabelValues("image").Inc()
	return e.opts.FallbackImage
}
