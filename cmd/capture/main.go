// Package main runs the capture daemon: it follows the exchange calendar,
// snapshots the position feed during market hours, and archives settled days.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"options-position-lab/internal/config"
	"options-position-lab/internal/domain"
	"options-position-lab/internal/id"
	"options-position-lab/internal/logging"
	"options-position-lab/internal/market"
	"options-position-lab/internal/observability"
	"options-position-lab/internal/quotes"
	"options-position-lab/internal/session"
	"options-position-lab/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to config.toml (optional; env vars override)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logging.Setup(cfg.App.LogLevel)

	runID := id.New()
	logger := log.With().Str("run_id", runID).Logger()

	// Metrics server
	if cfg.Capture.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})
			logger.Info().Str("addr", cfg.Capture.MetricsAddr).Msg("metrics server listening")
			if err := http.ListenAndServe(cfg.Capture.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	store, err := sqlite.New(sqlite.Options{Dir: cfg.App.DataDir, Logger: &logger})
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.App.DataDir).Msg("open day store failed")
	}
	defer store.Close()

	fetcher := quotes.NewClient(cfg.Capture.FeedURL)

	var calendar market.Calendar = market.NewHTTPCalendar(
		cfg.Capture.TimingsURL,
		market.WithExchange(cfg.Capture.Exchange),
	)
	safeHour := cfg.Capture.SafeHour
	archiveHour := cfg.Capture.ArchiveHour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Simulation.Enabled {
		openIn := time.Duration(cfg.Simulation.OpenDelaySeconds) * time.Second
		duration := time.Duration(cfg.Simulation.DurationSeconds) * time.Second
		archiveDelay := time.Duration(cfg.Simulation.ArchiveDelaySeconds) * time.Second

		calendar = market.NewSimulatedCalendar(openIn, duration)
		// Hour gates make no sense on a seconds-scale session.
		safeHour = -1
		archiveHour = 24

		logger.Info().
			Dur("open_in", openIn).
			Dur("duration", duration).
			Dur("archive_delay", archiveDelay).
			Msg("simulation mode: compressed session")

		// The runner archives a day only on the following trading day, so
		// the simulated day is archived here once the window has passed.
		go func() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(openIn + duration + archiveDelay):
			}
			day := domain.FormatDay(time.Now())
			if err := store.ArchiveDay(ctx, day); err != nil {
				logger.Error().Err(err).Str("day", day).Msg("simulation archive failed")
				return
			}
			logger.Info().Str("day", day).Msg("simulation day archived")
		}()
	}

	runner := session.NewRunner(session.Options{
		Calendar:      calendar,
		Quotes:        fetcher,
		Store:         store,
		Logger:        &logger,
		FetchInterval: time.Duration(cfg.Capture.FetchIntervalSeconds) * time.Second,
		SafeHour:      safeHour,
		ArchiveHour:   archiveHour,
	})

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	logger.Info().
		Str("feed", cfg.Capture.FeedURL).
		Str("timings", cfg.Capture.TimingsURL).
		Str("data_dir", cfg.App.DataDir).
		Int("fetch_interval_s", cfg.Capture.FetchIntervalSeconds).
		Bool("simulation", cfg.Simulation.Enabled).
		Msg("capture daemon started")

	err = runner.Run(ctx)
	done <- err

	if err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("capture daemon failed")
	}
	logger.Info().Msg("shutdown complete")
}
