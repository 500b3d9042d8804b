// Package config loads process configuration from a TOML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v10"
)

// Config is the full configuration for the capture and server processes.
type Config struct {
	App struct {
		LogLevel string `toml:"log_level" env:"APP_LOG_LEVEL"`
		DataDir  string `toml:"data_dir" env:"APP_DATA_DIR"`
	} `toml:"app"`

	Capture struct {
		FeedURL              string `toml:"feed_url" env:"CAPTURE_FEED_URL"`
		TimingsURL           string `toml:"timings_url" env:"CAPTURE_TIMINGS_URL"`
		Exchange             string `toml:"exchange" env:"CAPTURE_EXCHANGE"`
		FetchIntervalSeconds int    `toml:"fetch_interval_seconds" env:"CAPTURE_FETCH_INTERVAL_SECONDS"`
		SafeHour             int    `toml:"safe_hour" env:"CAPTURE_SAFE_HOUR"`
		ArchiveHour          int    `toml:"archive_hour" env:"CAPTURE_ARCHIVE_HOUR"`
		MetricsAddr          string `toml:"metrics_addr" env:"CAPTURE_METRICS_ADDR"`
	} `toml:"capture"`

	Server struct {
		Addr            string `toml:"addr" env:"SERVER_ADDR"`
		CORSOrigin      string `toml:"cors_origin" env:"SERVER_CORS_ORIGIN"`
		RedisAddr       string `toml:"redis_addr" env:"SERVER_REDIS_ADDR"`
		CacheTTLSeconds int    `toml:"cache_ttl_seconds" env:"SERVER_CACHE_TTL_SECONDS"`
		LivePollSeconds int    `toml:"live_poll_seconds" env:"SERVER_LIVE_POLL_SECONDS"`
	} `toml:"server"`

	Simulation struct {
		Enabled             bool `toml:"enabled" env:"SIM_ENABLED"`
		OpenDelaySeconds    int  `toml:"open_delay_seconds" env:"SIM_OPEN_DELAY_SECONDS"`
		DurationSeconds     int  `toml:"duration_seconds" env:"SIM_DURATION_SECONDS"`
		ArchiveDelaySeconds int  `toml:"archive_delay_seconds" env:"SIM_ARCHIVE_DELAY_SECONDS"`
	} `toml:"simulation"`
}

// Load reads the config file at path (skipped when empty), applies
// environment overrides, then defaults, then validates.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("decode config file: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.DataDir == "" {
		cfg.App.DataDir = "data"
	}

	if cfg.Capture.FeedURL == "" {
		cfg.Capture.FeedURL = "https://oxide.sensibull.com/v1/compute/verified_by_sensibull/live_positions/snapshot/oculated-toy"
	}
	if cfg.Capture.TimingsURL == "" {
		cfg.Capture.TimingsURL = "https://api.upstox.com/v2/market/timings"
	}
	if cfg.Capture.Exchange == "" {
		cfg.Capture.Exchange = "NSE"
	}
	if cfg.Capture.FetchIntervalSeconds <= 0 {
		cfg.Capture.FetchIntervalSeconds = 15
	}
	if cfg.Capture.SafeHour == 0 {
		cfg.Capture.SafeHour = 9
	}
	if cfg.Capture.ArchiveHour == 0 {
		cfg.Capture.ArchiveHour = 16
	}
	if cfg.Capture.MetricsAddr == "" {
		cfg.Capture.MetricsAddr = ":9090"
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.CORSOrigin == "" {
		cfg.Server.CORSOrigin = "http://localhost:3000"
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}
	if cfg.Server.LivePollSeconds <= 0 {
		cfg.Server.LivePollSeconds = 5
	}

	if cfg.Simulation.OpenDelaySeconds <= 0 {
		cfg.Simulation.OpenDelaySeconds = 10
	}
	if cfg.Simulation.DurationSeconds <= 0 {
		cfg.Simulation.DurationSeconds = 35
	}
	if cfg.Simulation.ArchiveDelaySeconds <= 0 {
		cfg.Simulation.ArchiveDelaySeconds = 5
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.App.DataDir) == "" {
		return errors.New("app.data_dir is empty")
	}
	if cfg.Capture.SafeHour < 0 || cfg.Capture.SafeHour > 23 {
		return errors.New("capture.safe_hour out of range 0-23")
	}
	if cfg.Capture.ArchiveHour < 0 || cfg.Capture.ArchiveHour > 24 {
		return errors.New("capture.archive_hour out of range 0-24")
	}
	if cfg.Capture.ArchiveHour <= cfg.Capture.SafeHour {
		return errors.New("capture.archive_hour must be after capture.safe_hour")
	}
	return nil
}
