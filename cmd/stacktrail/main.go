package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stacktrail/stacktrail/internal/config"
	"github.com/stacktrail/stacktrail/internal/engine"
	"github.com/stacktrail/stacktrail/internal/events"
	"github.com/stacktrail/stacktrail/internal/history"
	"github.com/stacktrail/stacktrail/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment before config loads,
	// so config errors are reported through the configured logger.
	level, parseErr := zerolog.ParseLevel(os.Getenv("STACKTRAIL_LOG_LEVEL"))
	if parseErr != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("STACKTRAIL_LOG_FORMAT") == "console" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Backend client. Credentials are explicit; nothing ambient.
	client, err := history.NewClient(cfg.Backend.URL, history.Credentials{Token: cfg.Backend.Token}, cfg.Backend.Timeout)
	if err != nil {
		return err
	}

	// In-process event bus feeding the websocket hub.
	bus := events.NewBus()
	defer bus.Close()

	eng, err := engine.New(engine.Config{
		Source: client,
		Bus:    bus,
		Params: engine.Params{
			WindowHours:  cfg.Query.WindowHours,
			ScopeDomain:  cfg.Query.ScopeDomain,
			SummaryDays:  cfg.Query.SummaryDays,
			RankingLimit: cfg.Query.RankingLimit,
		},
		RefreshInterval: cfg.Query.RefreshInterval,
		// Collapse bursts of parameter changes into one fetch wave.
		MinRefreshGap: time.Second,
	})
	if err != nil {
		return err
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer eng.Close()

	// Create HTTP server with all routes wired.
	srv := server.New(cfg, eng, bus)

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("backend", cfg.Backend.URL).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
