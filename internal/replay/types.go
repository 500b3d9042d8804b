package replay

import (
	"time"

	"options-position-lab/internal/domain"
)

// SnapshotView is one snapshot as served to clients, carrying derived fields
// the raw storage rows do not.
type SnapshotView struct {
	Timestamp       time.Time           `json:"timestamp"`
	TotalPnL        float64             `json:"total_pnl"`
	UnderlyingPrice *float64            `json:"underlying_price"`
	PositionCount   int                 `json:"position_count"`
	Positions       []domain.Position   `json:"positions"`
	TradeMarker     *domain.TradeMarker `json:"trade_marker"`
}

// UnderlyingRange tracks the spot price travel across a day.
type UnderlyingRange struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Open  float64 `json:"open"`
	Close float64 `json:"close"`
}

// DaySummary aggregates one trading day for overview listings.
type DaySummary struct {
	Date            string           `json:"date"`
	TotalSnapshots  int              `json:"total_snapshots"`
	TotalTrades     int              `json:"total_trades"`
	FinalPnL        float64          `json:"final_pnl"`
	MarketOpen      string           `json:"market_open,omitempty"`
	MarketClose     string           `json:"market_close,omitempty"`
	MinPnL          float64          `json:"min_pnl"`
	MaxPnL          float64          `json:"max_pnl"`
	UnderlyingRange *UnderlyingRange `json:"underlying_range,omitempty"`
}

// TradingDayData is the complete replay payload for one day.
type TradingDayData struct {
	Date       string         `json:"date"`
	Summary    DaySummary     `json:"summary"`
	Timeseries []SnapshotView `json:"timeseries"`
}

// FilterOption is one selectable underlying and expiry pair.
type FilterOption struct {
	UnderlyingSymbol string `json:"underlying_symbol"`
	Expiry           string `json:"expiry"`
	Key              string `json:"key"`
}

// FilterKey builds the wire key for an underlying and expiry pair.
func FilterKey(underlying, expiry string) string {
	return underlying + "|" + expiry
}
