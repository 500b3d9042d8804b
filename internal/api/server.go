// Package api serves stored trading days over HTTP: day listings, replayed
// time series with trade markers, summaries, CSV export, and a websocket
// stream of the live day.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"options-position-lab/internal/observability"
	"options-position-lab/internal/replay"
	"options-position-lab/internal/storage"
)

// Defaults for the optional Server knobs.
const (
	DefaultCacheTTL = 60 * time.Second
	DefaultLivePoll = 5 * time.Second
)

// Options configures the API server.
type Options struct {
	// Store is the day store read surface. Required.
	Store storage.SnapshotReader

	// DataDir is reported by the health endpoint.
	DataDir string

	// CORSOrigin is the allowed dashboard origin. "*" allows any.
	CORSOrigin string

	// Redis enables the response cache when non-nil.
	Redis *redis.Client

	// CacheTTL bounds both the redis response cache and the in-process
	// day cache. Defaults to DefaultCacheTTL.
	CacheTTL time.Duration

	// LivePoll is the live-day tail interval. Defaults to DefaultLivePoll.
	LivePoll time.Duration

	// Logger defaults to the global logger.
	Logger *zerolog.Logger

	// Now substitutes the clock, for tests.
	Now func() time.Time
}

// Server is the read API over the day store.
type Server struct {
	router     *gin.Engine
	store      storage.SnapshotReader
	replay     *replay.Service
	logger     zerolog.Logger
	dataDir    string
	corsOrigin string
	redis      *redis.Client
	cacheTTL   time.Duration
	days       *dayCache
	hub        *liveHub
	now        func() time.Time
}

var _ http.Handler = (*Server)(nil)

// NewServer wires the router, replay service, caches, and live hub. The hub
// starts tailing immediately; Close stops it.
func NewServer(opts Options) (*Server, error) {
	logger := zlog.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cacheTTL := opts.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	livePoll := opts.LivePoll
	if livePoll <= 0 {
		livePoll = DefaultLivePoll
	}

	days, err := newDayCache(cacheTTL)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:     gin.New(),
		store:      opts.Store,
		replay:     replay.NewService(replay.Options{Store: opts.Store, Logger: &logger}),
		logger:     logger,
		dataDir:    opts.DataDir,
		corsOrigin: opts.CORSOrigin,
		redis:      opts.Redis,
		cacheTTL:   cacheTTL,
		days:       days,
		hub:        newLiveHub(opts.Store, logger, livePoll, now),
		now:        now,
	}

	s.router.Use(
		requestIDMiddleware(),
		s.requestLogger(),
		metricsMiddleware(),
		gin.Recovery(),
		corsMiddleware(s.corsOrigin),
	)
	s.registerRoutes()
	s.hub.start()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the live tail and releases the day cache.
func (s *Server) Close() {
	s.hub.stop()
	s.days.Close()
}

func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(observability.Handler()))

	api := s.router.Group("/api")
	api.GET("/health", s.health)
	api.POST("/refresh-cache", s.refreshCache)
	api.GET("/live", s.live)
	// CSV replies would come back mistyped from the JSON response cache,
	// so the export stays on the uncached group.
	api.GET("/data/:date/export.csv", s.exportCSV)

	data := s.router.Group("/api")
	if s.redis != nil {
		data.Use(s.cacheMiddleware())
	}
	data.GET("/trading-days", s.tradingDays)
	data.GET("/data/:date", s.dayData)
	data.GET("/data/:date/summary", s.daySummary)
	data.GET("/data/:date/filters", s.dayFilters)
}
