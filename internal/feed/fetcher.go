package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bilgisen/newsbot/internal/metrics"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// FetcherOptions tunes the HTTP client used for feeds.
type FetcherOptions struct {
	Timeout       time.Duration
	RetryCount    int
	RetryWait     time.Duration
	RetryMaxWait  time.Duration
	UserAgent     string
	MaxConcurrent int
}

// DefaultFetcherOptions mirrors the settings used for every outbound client.
func DefaultFetcherOptions() FetcherOptions {
	return FetcherOptions{
		Timeout:       30 * time.Second,
		RetryCount:    3,
		RetryWait:     2 * time.Second,
		RetryMaxWait:  10 * time.Second,
		UserAgent:     "Mozilla/5.0 (compatible; newsbot/1.0)",
		MaxConcurrent: 8,
	}
}

type Fetcher struct {
	client *resty.Client
	limit  int
}

// Document is the raw body of one feed.
type Document struct {
	URL  string
	Body []byte
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		SetHeader("User-Agent", opts.UserAgent).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Fetcher{client: client, limit: opts.MaxConcurrent}
}

// FetchFeed downloads a single RSS or Atom document.
func (f *Fetcher) FetchFeed(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5").
		Get(url)

	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed from %s: %w", url, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode(), url)
	}

	body := resp.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("empty response from %s", url)
	}

	return body, nil
}

// FetchMultipleFeeds fetches every url concurrently. Documents keep the order
// of urls; a failing feed is reported in the joined error and never stops the others.
func (f *Fetcher) FetchMultipleFeeds(ctx context.Context, urls []string) ([]Document, error) {
	bodies, errs := f.fetchAll(ctx, urls)

	docs := make([]Document, 0, len(urls))
	for i, url := range urls {
		if errs[i] != nil {
			metrics.FeedFetches.WithLabelValues("error").Inc()
			continue
		}
		metrics.FeedFetches.WithLabelValues("ok").Inc()
		docs = append(docs, Document{URL: url, Body: bodies[i]})
	}

	return docs, errors.Join(errs...)
}

// CheckFeeds requests every url once, logs which feeds answer and returns
// how many do.
func (f *Fetcher) CheckFeeds(ctx context.Context, urls []string, log zerolog.Logger) int {
	_, errs := f.fetchAll(ctx, urls)

	working := 0
	for i, url := range urls {
		if errs[i] != nil {
			log.Warn().Err(errs[i]).Str("url", url).Msg("feed unavailable")
			continue
		}
		working++
		log.Info().Str("url", url).Msg("feed available")
	}
	log.Info().Int("working", working).Int("total", len(urls)).Msg("feed check finished")
	return working
}

func (f *Fetcher) fetchAll(ctx context.Context, urls []string) ([][]byte, []error) {
	bodies := make([][]byte, len(urls))
	errs := make([]error, len(urls))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, f.limit)

	for i, url := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-semaphore }()

			bodies[i], errs[i] = f.FetchFeed(ctx, u)
		}(i, url)
	}
	wg.Wait()

	return bodies, errs
}
