package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bilgisen/newsbot/internal/metrics"
	"github.com/bilgisen/newsbot/internal/models"
	"github.com/bilgisen/newsbot/internal/storage"
	"github.com/rs/zerolog"
)

// SeenChecker reads the url ledger.
type SeenChecker interface {
	HasSeen(ctx context.Context, url string) (bool, error)
}

// Marker records a url in the ledger and returns once it is committed.
// A url that is already recorded yields storage.ErrAlreadySeen.
type Marker interface {
	MarkSeen(ctx context.Context, url string) error
}

type Processor struct {
	fetcher *Fetcher
	parser  *Parser
	ledger  SeenChecker
	marker  Marker
	feeds   []string
	log     zerolog.Logger
}

func NewProcessor(fetcher *Fetcher, parser *Parser, ledger SeenChecker, marker Marker, feeds []string, log zerolog.Logger) *Processor {
	return &Processor{
		fetcher: fetcher,
		parser:  parser,
		ledger:  ledger,
		marker:  marker,
		feeds:   feeds,
		log:     log,
	}
}

// Collect fetches every feed and returns the unseen candidates, newest first.
func (p *Processor) Collect(ctx context.Context) ([]models.Candidate, error) {
	start := time.Now()
	p.log.Info().
		Int("feeds", len(p.feeds)).
		Msg("Starting to process feeds")

	docs, err := p.fetcher.FetchMultipleFeeds(ctx, p.feeds)
	if err != nil {
		p.log.Warn().
			Err(err).
			Int("ok_feeds", len(docs)).
			Msg("Some feeds could not be fetched")
		if len(docs) == 0 {
			return nil, fmt.Errorf("error fetching feeds: %w", err)
		}
	}

	var items []models.Candidate
	for _, doc := range docs {
		parsed, err := p.parser.Parse(doc)
		if err != nil {
			p.log.Warn().Err(err).Str("feed", doc.URL).Msg("Skipping unparsable feed")
			continue
		}
		items = append(items, parsed...)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	items = dedupeByURL(items)

	fresh, err := p.filterSeen(ctx, items)
	if err != nil {
		return nil, err
	}

	metrics.CandidatesCollected.Add(float64(len(fresh)))
	p.log.Info().
		Int("total_items", len(items)).
		Int("unique_items", len(fresh)).
		Dur("duration", time.Since(start)).
		Msg("Finished processing feeds")

	return fresh, nil
}

// CheckFeeds reports how many configured feeds currently answer.
func (p *Processor) CheckFeeds(ctx context.Context) int {
	return p.fetcher.CheckFeeds(ctx, p.feeds, p.log)
}

// Claim marks the candidate's url as seen before any enrichment happens.
// A crash after Claim loses the item rather than posting it twice. Only the
// first claim of a url succeeds; later ones fail with storage.ErrAlreadySeen.
func (p *Processor) Claim(ctx context.Context, c models.Candidate) error {
	if err := p.marker.MarkSeen(ctx, c.URL); err != nil {
		if errors.Is(err, storage.ErrAlreadySeen) {
			return fmt.Errorf("claim %s: %w", c.URL, storage.ErrAlreadySeen)
		}
		return fmt.Errorf("error marking %s as processed: %w", c.URL, err)
	}
	return nil
}

func dedupeByURL(items []models.Candidate) []models.Candidate {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if _, ok := seen[it.URL]; ok {
			continue
		}
		seen[it.URL] = struct{}{}
		out = append(out, it)
	}
	return out
}

// filterSeen drops items already in the ledger, keeping the input order.
func (p *Processor) filterSeen(ctx context.Context, items []models.Candidate) ([]models.Candidate, error) {
	keep := make([]bool, len(items))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 10)

	for i, item := range items {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, item models.Candidate) {
			defer wg.Done()
			defer func() { <-semaphore }()

			seen, err := p.ledger.HasSeen(ctx, item.URL)
			if err != nil {
				p.log.Error().
					Err(err).
					Str("url", item.URL).
					Msg("Error checking ledger for item")
				return
			}
			if seen {
				p.log.Debug().
					Str("url", item.URL).
					Msg("Skipping already processed item")
				return
			}
			keep[i] = true
		}(i, item)
	}
	wg.Wait()

	fresh := make([]models.Candidate, 0, len(items))
	for i, item := range items {
		if keep[i] {
			fresh = append(fresh, item)
		}
	}
	return fresh, nil
}
