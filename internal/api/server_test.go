package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-position-lab/internal/domain"
	"options-position-lab/internal/replay"
	"options-position-lab/internal/storage"
	"options-position-lab/internal/storage/memory"
)

const (
	seededDay = "2024-03-15"
	olderDay  = "2024-03-14"
)

func testPosition(id int64, underlying, expiry string, qty int, pnl, spot float64) domain.Position {
	return domain.Position{
		InstrumentID: id,
		Instrument: domain.Instrument{
			ID:               id,
			Symbol:           underlying + "X" + expiry,
			UnderlyingSymbol: underlying,
			Type:             domain.OptionTypeCall,
			Expiry:           expiry,
		},
		Quantity:        qty,
		AvgPrice:        100,
		UnbookedPnL:     pnl,
		UnderlyingPrice: spot,
	}
}

// seedTwoDays stores one quiet older day and one active day ending in a
// square-up.
func seedTwoDays(t *testing.T) *memory.DayStore {
	t.Helper()
	store := memory.NewDayStore()
	ctx := context.Background()

	require.NoError(t, store.EnsureDay(ctx, olderDay))
	_, err := store.AppendSnapshot(ctx, olderDay, &domain.Snapshot{
		Timestamp: time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC),
		TotalPnL:  50,
	})
	require.NoError(t, err)

	require.NoError(t, store.EnsureDay(ctx, seededDay))
	at := func(minute int) time.Time {
		return time.Date(2024, 3, 15, 9, 30+minute, 0, 0, time.UTC)
	}
	snaps := []*domain.Snapshot{
		{Timestamp: at(0), TotalPnL: 150, Positions: []domain.Position{
			testPosition(1, "NIFTY", "2024-03-28", 50, 100, 22400),
			testPosition(2, "BANKNIFTY", "2024-03-27", 25, 50, 47200),
		}},
		{Timestamp: at(1), TotalPnL: 240, Positions: []domain.Position{
			testPosition(1, "NIFTY", "2024-03-28", 50, 180, 22410),
			testPosition(2, "BANKNIFTY", "2024-03-27", 25, 60, 47210),
		}},
		{Timestamp: at(2), TotalPnL: 260},
	}
	for _, snap := range snaps {
		_, err := store.AppendSnapshot(ctx, seededDay, snap)
		require.NoError(t, err)
	}
	return store
}

// newTestServerAt builds a server with a pinned clock. Handler tests pin a
// date after the seeded days so they read as settled.
func newTestServerAt(t *testing.T, store storage.SnapshotReader, today time.Time) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zerolog.Nop()
	s, err := NewServer(Options{
		Store:      store,
		DataDir:    "/var/lib/capture/data",
		CORSOrigin: "http://localhost:3000",
		LivePoll:   time.Hour,
		Logger:     &logger,
		Now:        func() time.Time { return today },
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func newTestServer(t *testing.T, store storage.SnapshotReader) *Server {
	return newTestServerAt(t, store, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC))
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func doRequest(t *testing.T, s *Server, method, path string) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(method, path, nil))

	var env testEnvelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") && w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestServer_TradingDays(t *testing.T) {
	s := newTestServer(t, seedTwoDays(t))

	w, env := doRequest(t, s, http.MethodGet, "/api/trading-days")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)
	assert.Equal(t, "Found 2 trading days", env.Message)

	var data tradingDaysResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, []string{seededDay, olderDay}, data.AvailableDates)
	assert.Equal(t, 2, data.TotalDays)
}

func TestServer_TradingDays_Empty(t *testing.T) {
	s := newTestServer(t, memory.NewDayStore())

	w, env := doRequest(t, s, http.MethodGet, "/api/trading-days")
	require.Equal(t, http.StatusOK, w.Code)

	var data tradingDaysResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Empty(t, data.AvailableDates)
	assert.Zero(t, data.TotalDays)
}

func TestServer_DayData(t *testing.T) {
	s := newTestServer(t, seedTwoDays(t))

	w, env := doRequest(t, s, http.MethodGet, "/api/data/"+seededDay)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)
	assert.Equal(t, "Successfully retrieved data for "+seededDay, env.Message)

	var data replay.TradingDayData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, seededDay, data.Date)
	assert.Equal(t, 3, data.Summary.TotalSnapshots)
	assert.Equal(t, 260.0, data.Summary.FinalPnL)

	require.Len(t, data.Timeseries, 3)
	assert.Equal(t, 2, data.Timeseries[0].PositionCount)
	require.NotNil(t, data.Timeseries[0].UnderlyingPrice)
	assert.Equal(t, 22400.0, *data.Timeseries[0].UnderlyingPrice)

	last := data.Timeseries[2]
	require.NotNil(t, last.TradeMarker)
	assert.Equal(t, domain.MarkerSquareUp, last.TradeMarker.Kind)
}

func TestServer_DayData_Filtered(t *testing.T) {
	s := newTestServer(t, seedTwoDays(t))

	w, env := doRequest(t, s, http.MethodGet,
		"/api/data/"+seededDay+"?filters=NIFTY%7C2024-03-28")
	require.Equal(t, http.StatusOK, w.Code)

	var data replay.TradingDayData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Timeseries, 3)

	for _, view := range data.Timeseries[:2] {
		require.Len(t, view.Positions, 1)
		assert.Equal(t, "NIFTY", view.Positions[0].Instrument.UnderlyingSymbol)
	}
	assert.Equal(t, 100.0, data.Timeseries[0].TotalPnL)
	assert.Equal(t, 180.0, data.Timeseries[1].TotalPnL)

	// The filtered book still squares up on the final empty snapshot.
	require.NotNil(t, data.Timeseries[2].TradeMarker)
	assert.Equal(t, domain.MarkerSquareUp, data.Timeseries[2].TradeMarker.Kind)
}

func TestServer_DayData_InvalidDate(t *testing.T) {
	s := newTestServer(t, seedTwoDays(t))

	w, env := doRequest(t, s, http.MethodGet, "/api/data/15-03-2024")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Invalid date format. Use YYYY-MM-DD", env.Error)
}

func TestServer_DayData_UnknownDay(t *testing.T) {
	s := newTestServer(t, seedTwoDays(t))

	w, env := doRequest(t, s, http.MethodGet, "/api/data/2024-01-01")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "No data found for date: 2024-01-01", env.Error)
}

func TestServer_DaySummary(t *testing.T) {
	s := newTestServer(t, seedTwoDays(t))

	w, env := doRequest(t, s, http.MethodGet, "/api/data/"+seededDay+"/summary")
	require.Equal(t, http.StatusOK, w.Code)

	var summary replay.DaySummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, seededDay, summary.Date)
	assert.Equal(t, 3, summary.TotalSnapshots)
	assert.Equal(t, 260.0, summary.FinalPnL)
	assert.Equal(t, "09:30:00", summary.MarketOpen)
	assert.Equal(t, "09:32:00", summary.MarketClose)
	// The fast path never loads positions, so trade counts stay zero.
	assert.Zero(t, summary.TotalTrades)
}

func TestServer_DayFilters(t *testing.T) {
	s := newTestServer(t, seedTwoDays(t))

	w, env := doRequest(t, s, http.MethodGet, "/api/data/"+seededDay+"/filters")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Found 2 filter options for "+seededDay, env.Message)

	var data filtersResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Filters, 2)
	assert.Equal(t, "BANKNIFTY|2024-03-27", data.Filters[0].Key)
	assert.Equal(t, "NIFTY|2024-03-28", data.Filters[1].Key)
	assert.Equal(t, "NIFTY", data.Filters[1].UnderlyingSymbol)
	assert.Equal(t, "2024-03-28", data.Filters[1].Expiry)
}

func TestServer_ExportCSV(t *testing.T) {
	s := newTestServer(t, seedTwoDays(t))

	w, _ := doRequest(t, s, http.MethodGet, "/api/data/"+seededDay+"/export.csv")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "positions-2024-03-15.csv")

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "timestamp,total_pnl,underlying_price,symbol"))
	assert.Contains(t, body, "NIFTY")
	assert.Contains(t, body, "square_up")
}

func TestServer_DayCacheServesSettledDays(t *testing.T) {
	store := seedTwoDays(t)
	s := newTestServer(t, store)

	_, env := doRequest(t, s, http.MethodGet, "/api/data/"+seededDay)
	var first replay.TradingDayData
	require.NoError(t, json.Unmarshal(env.Data, &first))
	require.Equal(t, 3, len(first.Timeseries))
	s.days.Wait()

	_, err := store.AppendSnapshot(context.Background(), seededDay, &domain.Snapshot{
		Timestamp: time.Date(2024, 3, 15, 9, 33, 0, 0, time.UTC),
		TotalPnL:  300,
	})
	require.NoError(t, err)

	_, env = doRequest(t, s, http.MethodGet, "/api/data/"+seededDay)
	var cached replay.TradingDayData
	require.NoError(t, json.Unmarshal(env.Data, &cached))
	assert.Equal(t, 3, len(cached.Timeseries), "settled day should come from cache")

	w, env := doRequest(t, s, http.MethodPost, "/api/refresh-cache")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Cache cleared successfully", env.Message)
	var clearData map[string]bool
	require.NoError(t, json.Unmarshal(env.Data, &clearData))
	assert.True(t, clearData["cache_cleared"])

	_, env = doRequest(t, s, http.MethodGet, "/api/data/"+seededDay)
	var fresh replay.TradingDayData
	require.NoError(t, json.Unmarshal(env.Data, &fresh))
	assert.Equal(t, 4, len(fresh.Timeseries))
}

func TestServer_LiveDayBypassesCache(t *testing.T) {
	store := seedTwoDays(t)
	// Pin the clock to the seeded day so it counts as live.
	s := newTestServerAt(t, store, time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC))

	_, env := doRequest(t, s, http.MethodGet, "/api/data/"+seededDay)
	var first replay.TradingDayData
	require.NoError(t, json.Unmarshal(env.Data, &first))
	require.Equal(t, 3, len(first.Timeseries))
	s.days.Wait()

	_, err := store.AppendSnapshot(context.Background(), seededDay, &domain.Snapshot{
		Timestamp: time.Date(2024, 3, 15, 9, 33, 0, 0, time.UTC),
		TotalPnL:  300,
	})
	require.NoError(t, err)

	_, env = doRequest(t, s, http.MethodGet, "/api/data/"+seededDay)
	var second replay.TradingDayData
	require.NoError(t, json.Unmarshal(env.Data, &second))
	assert.Equal(t, 4, len(second.Timeseries), "live day reads must hit the store")
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, seedTwoDays(t))

	w, env := doRequest(t, s, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, "/var/lib/capture/data", data["data_folder"])
	assert.Equal(t, float64(2), data["available_days"])
}

func TestServer_RequestIDHeader(t *testing.T) {
	s := newTestServer(t, seedTwoDays(t))

	w, _ := doRequest(t, s, http.MethodGet, "/api/health")
	rid := w.Header().Get("X-Request-ID")
	assert.Len(t, rid, 26)

	// A caller-provided id is echoed back untouched.
	w2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "caller-supplied-id")
	s.ServeHTTP(w2, req)
	assert.Equal(t, "caller-supplied-id", w2.Header().Get("X-Request-ID"))
}

func TestServer_CORS(t *testing.T) {
	s := newTestServer(t, seedTwoDays(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/trading-days", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	s.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_MetricsEndpoint(t *testing.T) {
	s := newTestServer(t, seedTwoDays(t))

	w, _ := doRequest(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "options_position_lab")
}

func TestResponseCacheKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet,
		"/api/data/2024-03-15?filters=NIFTY%7C2024-03-28", nil)

	got := responseCacheKey(c)
	assert.Equal(t, "cache:GET:/api/data/2024-03-15?filters=NIFTY%7C2024-03-28", got)
}
