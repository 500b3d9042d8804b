package market

import (
	"context"
	"time"

	"options-position-lab/internal/domain"
)

// SimulatedCalendar publishes a single synthetic session window relative to
// its construction time, so the whole day lifecycle can be exercised in
// seconds against the real state machine.
type SimulatedCalendar struct {
	window Timings
}

// NewSimulatedCalendar creates a calendar whose session opens openIn from now
// and lasts for the given duration.
func NewSimulatedCalendar(openIn, duration time.Duration) *SimulatedCalendar {
	open := time.Now().Add(openIn)
	return &SimulatedCalendar{
		window: Timings{Open: open, Close: open.Add(duration)},
	}
}

var _ Calendar = (*SimulatedCalendar)(nil)

// SessionWindow returns the synthetic window when the queried date matches
// the window's date, and nil otherwise.
func (c *SimulatedCalendar) SessionWindow(_ context.Context, day time.Time) (*Timings, error) {
	if !domain.SameDay(day, c.window.Open) {
		return nil, nil
	}
	w := c.window
	return &w, nil
}
