// Package market resolves trading-session windows for calendar dates.
package market

import (
	"context"
	"fmt"
	"time"
)

// Timings is one day's trading-session window. Capture runs over [Open, Close).
type Timings struct {
	Open  time.Time
	Close time.Time
}

// Contains reports whether t falls inside the session window [Open, Close).
func (w Timings) Contains(t time.Time) bool {
	return !t.Before(w.Open) && t.Before(w.Close)
}

func (w Timings) String() string {
	return fmt.Sprintf("%s-%s", w.Open.Format("15:04:05"), w.Close.Format("15:04:05"))
}

// Calendar resolves the trading-session window for a calendar date.
type Calendar interface {
	// SessionWindow returns the session open/close times for the date, or
	// nil when no session is published for it. Lookup failures come back
	// as errors; callers that cannot act on the difference treat them the
	// same as no session.
	SessionWindow(ctx context.Context, day time.Time) (*Timings, error)
}
