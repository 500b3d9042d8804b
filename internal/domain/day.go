package domain

import "time"

// DayFormat is the canonical trading-day identifier layout.
const DayFormat = "2006-01-02"

// FormatDay renders t's calendar date as a trading-day key.
func FormatDay(t time.Time) string {
	return t.Format(DayFormat)
}

// ParseDay parses a trading-day key (YYYY-MM-DD).
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DayFormat, s)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
