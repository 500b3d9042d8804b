package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"options-position-lab/internal/domain"
	"options-position-lab/internal/replay"
	"options-position-lab/internal/reporting"
	"options-position-lab/internal/storage"
)

// envelope is the uniform response shape. Success responses carry data and
// message; failures carry error.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type tradingDaysResponse struct {
	AvailableDates []string `json:"available_dates"`
	TotalDays      int      `json:"total_days"`
}

type filtersResponse struct {
	Filters []replay.FilterOption `json:"filters"`
}

func writeData(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data, Message: message})
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, envelope{Success: false, Error: msg})
}

// dateParam validates the :date path segment. On failure the 400 is already
// written.
func dateParam(c *gin.Context) (string, bool) {
	day := c.Param("date")
	if _, err := domain.ParseDay(day); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD")
		return "", false
	}
	return day, true
}

// dayError maps store errors for one-day reads: unknown day is a 404,
// anything else logs and turns into an opaque 500.
func (s *Server) dayError(c *gin.Context, day string, err error, what string) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(c, http.StatusNotFound, fmt.Sprintf("No data found for date: %s", day))
		return
	}
	s.logger.Error().Err(err).Str("day", day).Msg("day read failed")
	writeError(c, http.StatusInternalServerError, fmt.Sprintf("Error retrieving %s for %s", what, day))
}

// loadDay serves unfiltered reads of settled days through the day cache.
// The live day and filtered views always hit the store.
func (s *Server) loadDay(ctx context.Context, day string, filters []string) (*replay.TradingDayData, error) {
	cacheable := len(filters) == 0 && day != domain.FormatDay(s.now())
	if cacheable {
		if data, ok := s.days.Get(day); ok {
			return data, nil
		}
	}
	data, err := s.replay.LoadDay(ctx, day, filters)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.days.Set(day, data)
	}
	return data, nil
}

func (s *Server) tradingDays(c *gin.Context) {
	days, err := s.replay.TradingDays(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("day listing failed")
		writeError(c, http.StatusInternalServerError, "Error retrieving trading days")
		return
	}
	if days == nil {
		days = []string{}
	}
	writeData(c, tradingDaysResponse{AvailableDates: days, TotalDays: len(days)},
		fmt.Sprintf("Found %d trading days", len(days)))
}

func (s *Server) dayData(c *gin.Context) {
	day, ok := dateParam(c)
	if !ok {
		return
	}
	data, err := s.loadDay(c.Request.Context(), day, c.QueryArray("filters"))
	if err != nil {
		s.dayError(c, day, err, "data")
		return
	}
	writeData(c, data, fmt.Sprintf("Successfully retrieved data for %s", day))
}

func (s *Server) daySummary(c *gin.Context) {
	day, ok := dateParam(c)
	if !ok {
		return
	}
	summary, err := s.replay.Summary(c.Request.Context(), day)
	if err != nil {
		s.dayError(c, day, err, "summary")
		return
	}
	writeData(c, summary, fmt.Sprintf("Successfully retrieved summary for %s", day))
}

func (s *Server) dayFilters(c *gin.Context) {
	day, ok := dateParam(c)
	if !ok {
		return
	}
	opts, err := s.replay.Filters(c.Request.Context(), day)
	if err != nil {
		s.dayError(c, day, err, "filters")
		return
	}
	writeData(c, filtersResponse{Filters: opts},
		fmt.Sprintf("Found %d filter options for %s", len(opts), day))
}

func (s *Server) exportCSV(c *gin.Context) {
	day, ok := dateParam(c)
	if !ok {
		return
	}
	data, err := s.loadDay(c.Request.Context(), day, c.QueryArray("filters"))
	if err != nil {
		s.dayError(c, day, err, "data")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=positions-%s.csv", day))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(reporting.RenderDayCSV(data)))
}

func (s *Server) refreshCache(c *gin.Context) {
	s.days.Clear()
	if s.redis != nil {
		if err := s.clearResponseCache(c.Request.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("redis cache clear failed")
		}
	}
	writeData(c, gin.H{"cache_cleared": true}, "Cache cleared successfully")
}

func (s *Server) clearResponseCache(ctx context.Context) error {
	iter := s.redis.Scan(ctx, 0, "cache:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *Server) health(c *gin.Context) {
	days, err := s.replay.TradingDays(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("health day listing failed")
	}
	writeData(c, gin.H{
		"status":         "healthy",
		"data_folder":    s.dataDir,
		"available_days": len(days),
	}, "Options position API is running")
}

func (s *Server) live(c *gin.Context) {
	s.hub.serve(c)
}
