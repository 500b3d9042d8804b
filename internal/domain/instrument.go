package domain

// Option type codes as stored in the instruments table.
const (
	OptionTypeCall = "CE"
	OptionTypePut  = "PE"
)

// Instrument identifies one tradeable contract within a single trading day.
// Corresponds to the instruments table in the per-day SQLite store. Ids are
// day-scoped: they are assigned when a symbol is first observed and never
// change for the rest of that day.
type Instrument struct {
	ID               int64   `json:"id"`
	Symbol           string  `json:"symbol"` // unique per day
	UnderlyingSymbol string  `json:"underlying_symbol"`
	Type             string  `json:"type"` // OptionTypeCall, OptionTypePut, or the feed value verbatim
	Strike           float64 `json:"strike"`
	Expiry           string  `json:"expiry"` // YYYY-MM-DD as published by the feed
}

// NormalizeOptionType maps feed instrument types to stored codes.
// "CALL" becomes "CE", "PUT" becomes "PE", anything else is kept as is.
func NormalizeOptionType(feedType string) string {
	switch feedType {
	case "CALL":
		return OptionTypeCall
	case "PUT":
		return OptionTypePut
	default:
		return feedType
	}
}
