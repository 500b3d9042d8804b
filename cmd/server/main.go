// Package main serves the read API over captured trading days.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"options-position-lab/internal/api"
	"options-position-lab/internal/config"
	"options-position-lab/internal/logging"
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
	logger := log.Logger

	store, err := sqlite.New(sqlite.Options{Dir: cfg.App.DataDir, Logger: &logger})
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.App.DataDir).Msg("open day store failed")
	}
	defer store.Close()

	var redisClient *redis.Client
	if cfg.Server.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Server.RedisAddr})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Server.RedisAddr).
				Msg("redis unreachable, responses will not be cached")
		}
		cancel()
	}

	srv, err := api.NewServer(api.Options{
		Store:      store,
		DataDir:    cfg.App.DataDir,
		CORSOrigin: cfg.Server.CORSOrigin,
		Redis:      redisClient,
		CacheTTL:   time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		LivePoll:   time.Duration(cfg.Server.LivePollSeconds) * time.Second,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("build api server failed")
	}
	defer srv.Close()

	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: srv}
	go func() {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("data_dir", cfg.App.DataDir).
			Bool("redis", redisClient != nil).
			Msg("api server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("api server failed")
		}
	}()

	// graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutCtx)
	logger.Info().Msg("shutdown complete")
}
