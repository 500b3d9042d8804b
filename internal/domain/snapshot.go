package domain

import "time"

// Position is one open contract inside a snapshot.
// Corresponds to the position_details table in the per-day SQLite store.
type Position struct {
	InstrumentID    int64      `json:"instrument_id"`
	Instrument      Instrument `json:"instrument"`
	Quantity        int        `json:"quantity"` // signed; negative is short
	AvgPrice        float64    `json:"avg_price"`
	LastPrice       float64    `json:"last_price"`
	UnbookedPnL     float64    `json:"unbooked_pnl"`
	BookedPnL       float64    `json:"booked_pnl"`
	UnderlyingPrice float64    `json:"underlying_price"`
}

// Snapshot is one point-in-time capture of the full position set and the
// aggregate P&L. A day's snapshots form a time-ordered sequence; the marker
// is derived from that sequence by the diff engine and never persisted.
type Snapshot struct {
	ID        int64        `json:"-"` // store sequence, assigned on write
	Timestamp time.Time    `json:"timestamp"`
	TotalPnL  float64      `json:"total_pnl"`
	Positions []Position   `json:"positions"`
	Marker    *TradeMarker `json:"trade_marker,omitempty"`
}

// PnLPoint is the (timestamp, aggregate P&L) projection of a snapshot used
// by summary fast paths that do not need position rows.
type PnLPoint struct {
	Timestamp time.Time
	TotalPnL  float64
}
