package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bilgisen/newsbot/internal/app"
	"github.com/bilgisen/newsbot/internal/config"
	"github.com/bilgisen/newsbot/internal/logger"
)

func main() {
	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: "stdout",
		File:   cfg.LogFile,
		Pretty: cfg.LogPretty,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	log := logger.Get()
	log.Info().Str("env", cfg.Env).Int("feeds", len(cfg.FeedURLs)).Msg("Starting application...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialise application")
		logger.Close()
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Application stopped with error")
		logger.Close()
		os.Exit(1)
	}

	log.Info().Msg("Application exited properly")
}
