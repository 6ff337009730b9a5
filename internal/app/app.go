// Package app assembles the bot from its configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bilgisen/newsbot/internal/ai"
	"github.com/bilgisen/newsbot/internal/api"
	"github.com/bilgisen/newsbot/internal/cache"
	"github.com/bilgisen/newsbot/internal/config"
	"github.com/bilgisen/newsbot/internal/feed"
	"github.com/bilgisen/newsbot/internal/logger"
	"github.com/bilgisen/newsbot/internal/moderation"
	"github.com/bilgisen/newsbot/internal/pipeline"
	"github.com/bilgisen/newsbot/internal/storage"
	"github.com/bilgisen/newsbot/internal/telegram"
	"github.com/bilgisen/newsbot/internal/worker"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// App owns every long-lived component.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	db      *gorm.DB
	closers []io.Closer

	worker    *worker.Worker
	processor *feed.Processor
	bot       *telegram.Client
	router    *telegram.Router
	poller    *telegram.Poller
	scheduler *pipeline.Scheduler
	server    *fiber.App
}

// New builds the application. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg, log: logger.Component("app")}

	db, err := storage.Open(cfg.DatabaseURL, logger.Component("storage"))
	if err != nil {
		return nil, err
	}
	a.db = db

	ledger, err := a.openLedger(ctx)
	if err != nil {
		a.release()
		return nil, err
	}

	blobs, err := a.openBlobs(ctx)
	if err != nil {
		a.release()
		return nil, err
	}

	fallback, err := pipeline.LoadFallbackImage(cfg.FallbackImage)
	if err != nil {
		a.release()
		return nil, err
	}
	if fallback == nil {
		a.log.Warn().Str("path", cfg.FallbackImage).Msg("no fallback image, failed generations publish as text")
	}

	posts := storage.NewPostStore(db)
	a.worker = worker.New(posts, ledger, blobs, logger.Component("worker"), worker.Options{
		PollTimeout: cfg.WorkerPollTimeout,
	})

	fetchOpts := feed.DefaultFetcherOptions()
	fetchOpts.Timeout = cfg.HTTPTimeout
	a.processor = feed.NewProcessor(
		feed.NewFetcher(fetchOpts),
		feed.NewParser(cfg.MaxItemsPerFeed),
		ledger,
		a.worker,
		cfg.FeedURLs,
		logger.Component("feed"),
	)

	enricher := pipeline.NewEnricher(
		ai.NewGroqClient(ai.GroqOptions{
			APIKey:   cfg.GroqAPIKey,
			Model:    cfg.GroqModel,
			Endpoint: cfg.GroqEndpoint,
			Timeout:  cfg.AITimeout,
			Footer:   cfg.PostFooter,
		}),
		ai.NewStabilityClient(ai.StabilityOptions{
			APIKey:  cfg.StabilityAPIKey,
			Host:    cfg.StabilityHost,
			Engine:  cfg.StabilityEngine,
			Timeout: cfg.AITimeout,
		}),
		pipeline.EnricherOptions{
			Footer:        cfg.PostFooter,
			Watermark:     cfg.WatermarkText,
			FallbackImage: fallback,
		},
		logger.Component("enricher"),
	)

	a.bot = telegram.NewClient(telegram.Options{
		Token:      cfg.TelegramBotToken,
		BaseURL:    cfg.TelegramAPIURL,
		RatePerSec: cfg.TelegramRatePerSec,
	})
	moderator := telegram.NewModerator(a.bot, cfg.TelegramAdminChatID)
	channel := telegram.NewChannel(a.bot, cfg.TelegramChannelID)

	gateway := moderation.NewGateway(moderator, a.worker, logger.Component("moderation"))
	handler := moderation.NewHandler(posts, a.worker, blobs, moderator, channel, logger.Component("decisions"))

	a.router = telegram.NewRouter(handler, a.bot, cfg.TelegramAdminChatID, logger.Component("telegram"))
	a.poller = telegram.NewPoller(a.bot, a.router, logger.Component("telegram"))

	run := pipeline.New(a.processor, enricher, gateway, pipeline.Options{
		ItemDelay:     cfg.ItemDelay,
		ErrorCooldown: cfg.ErrorCooldown,
	}, logger.Component("pipeline"))
	a.scheduler = pipeline.NewScheduler(run, cfg.CheckInterval, cfg.LoopCooldown, logger.Component("scheduler"))

	var webhookSecret string
	if cfg.TelegramWebhookURL != "" {
		webhookSecret = cfg.TelegramWebhookSecret
	}
	handlers := api.NewHandlers(posts, a.router, func(ctx context.Context) error { return storage.Ping(ctx, db) })
	a.server = api.NewServer(handlers, api.RouteOptions{
		AdminAPIKey:   cfg.AdminAPIKey,
		WebhookSecret: webhookSecret,
	}, cfg.HTTPTimeout)

	return a, nil
}

func (a *App) openLedger(ctx context.Context) (storage.Ledger, error) {
	if a.cfg.LedgerBackend != "redis" {
		return storage.NewSQLLedger(a.db), nil
	}
	ledger, err := cache.NewRedisLedger(ctx, a.cfg.RedisURL, a.cfg.RedisPrefix)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, ledger)
	return ledger, nil
}

func (a *App) openBlobs(ctx context.Context) (storage.BlobStore, error) {
	if a.cfg.BlobBackend != "s3" {
		return storage.NewFileBlobStore(a.cfg.ImageDir)
	}
	return storage.NewS3BlobStore(ctx, storage.S3Config{
		Endpoint:  a.cfg.R2URL(),
		AccessKey: a.cfg.R2AccessKey,
		SecretKey: a.cfg.R2SecretKey,
		Bucket:    a.cfg.R2Bucket,
	})
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. The persistence queue is drained before Run returns.
func (a *App) Run(ctx context.Context) error {
	defer a.release()

	a.worker.Start()
	defer func() {
		if err := a.worker.Close(); err != nil {
			a.log.Error().Err(err).Msg("failed to drain persistence worker")
		}
	}()

	me, err := a.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram bot check: %w", err)
	}
	a.log.Info().Str("bot", me.Username).Msg("telegram bot authorised")

	if a.cfg.TelegramWebhookURL != "" {
		err := a.bot.SetWebhook(ctx, telegram.SetWebhookParams{
			URL:            a.cfg.TelegramWebhookURL,
			SecretToken:    a.cfg.TelegramWebhookSecret,
			AllowedUpdates: []string{"callback_query"},
		})
		if err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		a.log.Info().Str("url", a.cfg.TelegramWebhookURL).Msg("receiving decisions by webhook")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.processor.CheckFeeds(gctx)
		return nil
	})

	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})

	if a.cfg.TelegramWebhookURL == "" {
		g.Go(func() error {
			return a.poller.Run(gctx)
		})
	}

	g.Go(func() error {
		a.log.Info().Str("port", a.cfg.Port).Msg("Starting server")
		if err := a.server.Listen(":" + a.cfg.Port); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.server.ShutdownWithContext(shutdownCtx); err != nil {
			a.log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// release closes storage. It runs after the worker has drained.
func (a *App) release() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close resource")
		}
	}
	a.closers = nil

	if a.db != nil {
		if err := storage.Close(a.db); err != nil {
			a.log.Warn().Err(err).Msg("failed to close database")
		}
		a.db = nil
	}
}
