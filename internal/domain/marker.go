package domain

// MarkerKind tags a trade marker.
type MarkerKind string

// Marker kinds attached to snapshots by the diff engine.
const (
	MarkerNone       MarkerKind = "none"
	MarkerAdjustment MarkerKind = "adjustment"
	MarkerSquareUp   MarkerKind = "square_up"
)

// Position change types carried by adjustment and square-up markers.
const (
	ChangeNew      = "new"
	ChangeClosed   = "closed"
	ChangeQuantity = "quantity_change"
	ChangePrice    = "price_change"
)

// PositionChange describes how one instrument's position differs between two
// consecutive snapshots. Quantities and prices are zero on the side where the
// position does not exist.
type PositionChange struct {
	InstrumentID     int64       `json:"instrument_id"`
	InstrumentSymbol string      `json:"instrument_symbol"`
	Instrument       *Instrument `json:"instrument,omitempty"`
	ChangeType       string      `json:"change_type"`
	OldQuantity      int         `json:"old_quantity"`
	NewQuantity      int         `json:"new_quantity"`
	OldPrice         float64     `json:"old_price"`
	NewPrice         float64     `json:"new_price"`
}

// TradeMarker annotates a snapshot with the changes detected since the
// previous snapshot in the sequence. Re-running the diff over the same
// sequence always yields the same markers.
type TradeMarker struct {
	Kind    MarkerKind       `json:"type"`
	Changes []PositionChange `json:"changes"`
	Summary string           `json:"summary"`
}
