// Package session drives the per-day capture lifecycle: waiting for the
// session window, polling the quote feed while it is open, and archiving
// completed trading days.
package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"options-position-lab/internal/domain"
	"options-position-lab/internal/market"
	"options-position-lab/internal/observability"
	"options-position-lab/internal/quotes"
	"options-position-lab/internal/storage"
)

// Default configuration values.
const (
	DefaultFetchInterval = 15 * time.Second
	DefaultSafeHour      = 9
	DefaultArchiveHour   = 16
	DefaultPreMarketPoll = 30 * time.Second
	DefaultWaitingPoll   = 1 * time.Second
	DefaultSleepingPoll  = 60 * time.Second
)

// Options configures the Runner. Zero-valued knobs fall back to the defaults.
type Options struct {
	Calendar market.Calendar
	Quotes   quotes.Fetcher
	Store    storage.SnapshotWriter
	Logger   *zerolog.Logger

	// FetchInterval is the capture tick cadence while the session is open.
	FetchInterval time.Duration
	// SafeHour is the earliest hour of day the calendar is queried, so the
	// provider has published the schedule by the time we ask.
	SafeHour int
	// ArchiveHour is the hour of day after which a fresh start skips
	// straight to post-session cleanup instead of capturing.
	ArchiveHour int

	// Poll cadences for the idle states.
	PreMarketPoll time.Duration
	WaitingPoll   time.Duration
	SleepingPoll  time.Duration

	// Now substitutes the wall clock.
	Now func() time.Time
	// OnStateChange is invoked after every state transition, on the
	// runner's own goroutine.
	OnStateChange func(State)
}

// daySession carries everything owned by one calendar day's lifecycle. A new
// value is created at every day boundary; nothing in it survives a rollover.
type daySession struct {
	day         time.Time
	window      *market.Timings  // nil until resolved, stays nil on holidays
	storeReady  bool             // day target created
	instruments map[string]int64 // symbol -> day-scoped id
}

// Runner owns the session state machine. All fields are confined to the
// goroutine running Run; external observation goes through OnStateChange.
type Runner struct {
	calendar market.Calendar
	quotes   quotes.Fetcher
	store    storage.SnapshotWriter
	logger   zerolog.Logger

	fetchInterval time.Duration
	safeHour      int
	archiveHour   int
	preMarketPoll time.Duration
	waitingPoll   time.Duration
	sleepingPoll  time.Duration

	now           func() time.Time
	onStateChange func(State)

	state State
	cur   *daySession

	// prevTradingDay is the last completed day with a session window, kept
	// for the one-day-lagged archive. It does not survive a restart, so the
	// first post-session pass after one archives nothing.
	prevTradingDay *time.Time
}

// NewRunner creates a session runner from the options.
func NewRunner(opts Options) *Runner {
	logger := zlog.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	r := &Runner{
		calendar:      opts.Calendar,
		quotes:        opts.Quotes,
		store:         opts.Store,
		logger:        logger,
		fetchInterval: opts.FetchInterval,
		safeHour:      opts.SafeHour,
		archiveHour:   opts.ArchiveHour,
		preMarketPoll: opts.PreMarketPoll,
		waitingPoll:   opts.WaitingPoll,
		sleepingPoll:  opts.SleepingPoll,
		now:           opts.Now,
		onStateChange: opts.OnStateChange,
		state:         StateInitializing,
	}

	if r.fetchInterval <= 0 {
		r.fetchInterval = DefaultFetchInterval
	}
	if r.safeHour == 0 {
		r.safeHour = DefaultSafeHour
	}
	if r.archiveHour == 0 {
		r.archiveHour = DefaultArchiveHour
	}
	if r.preMarketPoll <= 0 {
		r.preMarketPoll = DefaultPreMarketPoll
	}
	if r.waitingPoll <= 0 {
		r.waitingPoll = DefaultWaitingPoll
	}
	if r.sleepingPoll <= 0 {
		r.sleepingPoll = DefaultSleepingPoll
	}
	if r.now == nil {
		r.now = time.Now
	}

	return r
}

// Run drives the state machine until ctx is cancelled. No external failure
// stops the loop: calendar, fetch and store errors are logged and absorbed.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().Msg("capture loop starting")

	for {
		if err := ctx.Err(); err != nil {
			r.logger.Info().Msg("capture loop stopping")
			return err
		}

		now := r.now()
		if r.cur == nil || !domain.SameDay(r.cur.day, now) {
			if err := r.rollover(ctx, now); err != nil {
				return err
			}
			continue
		}

		switch r.state {
		case StateWaiting:
			if !now.Before(r.cur.window.Open) {
				r.logger.Info().Msg("market open")
				r.setState(StateCapturing)
				continue
			}
			if !r.sleep(ctx, r.waitingPoll) {
				return ctx.Err()
			}
		case StateCapturing:
			if err := r.capture(ctx); err != nil {
				return err
			}
		case StatePostSession:
			r.archivePrevious(ctx)
			r.setState(StateSleeping)
		case StateSleeping:
			if !r.sleep(ctx, r.sleepingPoll) {
				return ctx.Err()
			}
		default:
			if !r.sleep(ctx, r.waitingPoll) {
				return ctx.Err()
			}
		}
	}
}

// rollover starts a new calendar day: it remembers the outgoing day for the
// lagged archive, waits out the pre-market hours, resolves the session
// window, and jumps to whichever state the clock says the day is in.
func (r *Runner) rollover(ctx context.Context, now time.Time) error {
	r.prevTradingDay = nil
	if r.cur != nil && r.cur.window != nil {
		prev := r.cur.day
		r.prevTradingDay = &prev
	}

	r.cur = &daySession{
		day:         now,
		instruments: make(map[string]int64),
	}
	r.setState(StateInitializing)
	r.logger.Info().Str("day", domain.FormatDay(now)).Msg("new day detected")

	// The calendar may not have today's schedule before the safe hour.
	for r.now().Hour() < r.safeHour {
		if !r.sleep(ctx, r.preMarketPoll) {
			return ctx.Err()
		}
	}

	window, err := r.calendar.SessionWindow(ctx, r.cur.day)
	if err != nil {
		// A failed lookup reads the same as a closed market. The log line
		// is the only place the two cases differ.
		r.logger.Warn().Err(err).Msg("calendar lookup failed, treating day as closed")
		observability.RecordCalendarLookup("error")
		window = nil
	} else if window == nil {
		observability.RecordCalendarLookup("no_session")
	} else {
		observability.RecordCalendarLookup("session")
	}

	if window == nil {
		r.logger.Info().Msg("no session today")
		r.setState(StateSleeping)
		return nil
	}

	r.cur.window = window
	r.logger.Info().Str("window", window.String()).Msg("trading day")

	// Catch-up: jump straight to where the clock says we are, so a restart
	// mid-day never replays transitions or double-starts capture.
	now = r.now()
	switch {
	case now.Hour() >= r.archiveHour:
		r.logger.Info().Msg("past archive hour, running post-session cleanup")
		r.archivePrevious(ctx)
		r.setState(StateSleeping)
	case !now.Before(window.Close):
		r.logger.Info().Msg("past market close")
		r.setState(StatePostSession)
	case !now.Before(window.Open):
		r.logger.Info().Msg("mid-session, starting capture")
		r.setState(StateCapturing)
	default:
		r.setState(StateWaiting)
	}
	return nil
}

// capture runs the serial tick loop until the session closes. Ticks never
// overlap: the loop is single-threaded and overdue ticker fires coalesce, so
// a slow tick skips beats instead of queueing them.
func (r *Runner) capture(ctx context.Context) error {
	ticker := time.NewTicker(r.fetchInterval)
	defer ticker.Stop()

	for {
		if !r.now().Before(r.cur.window.Close) {
			r.logger.Info().Msg("market closed")
			r.setState(StatePostSession)
			return nil
		}

		r.tick(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// tick performs one fetch-and-persist cycle. Every failure mode skips the
// tick and leaves the loop running.
func (r *Runner) tick(ctx context.Context) {
	day := domain.FormatDay(r.cur.day)

	// Day target comes up just in time for the first capture tick.
	if !r.cur.storeReady {
		if err := r.store.EnsureDay(ctx, day); err != nil {
			r.logger.Error().Err(err).Str("day", day).Msg("day store setup failed, skipping tick")
			observability.RecordFetchTick("store_error")
			return
		}
		r.cur.storeReady = true
	}

	snap, err := r.quotes.Fetch(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("fetch failed, skipping tick")
		observability.RecordFetchTick("fetch_error")
		return
	}
	if snap == nil {
		r.logger.Debug().Msg("empty book, nothing to persist")
		observability.RecordFetchTick("empty")
		return
	}

	// Resolve instrument ids through the per-day cache, dropping rows the
	// store cannot identify. The rest of the snapshot still gets written.
	kept := snap.Positions[:0]
	for _, pos := range snap.Positions {
		id, ok := r.cur.instruments[pos.Instrument.Symbol]
		if !ok {
			id, err = r.store.ResolveInstrument(ctx, day, &pos.Instrument)
			if err != nil {
				r.logger.Error().Err(err).Str("symbol", pos.Instrument.Symbol).Msg("instrument resolve failed, skipping row")
				continue
			}
			r.cur.instruments[pos.Instrument.Symbol] = id
			observability.RecordInstrumentCreated()
		}
		pos.InstrumentID = id
		pos.Instrument.ID = id
		kept = append(kept, pos)
	}
	snap.Positions = kept

	rows, err := r.store.AppendSnapshot(ctx, day, snap)
	if err != nil {
		r.logger.Error().Err(err).Str("day", day).Msg("snapshot write failed")
		observability.RecordFetchTick("store_error")
		return
	}

	r.logger.Info().Int("rows", rows).Float64("total_pnl", snap.TotalPnL).Msg("snapshot stored")
	observability.RecordFetchTick("stored")
	observability.RecordSnapshotStored(rows)
}

// archivePrevious archives the previous completed trading day, one day
// behind the day that just closed. Right after a restart there is no
// previous day on record and the pass does nothing.
func (r *Runner) archivePrevious(ctx context.Context) {
	if r.prevTradingDay == nil {
		r.logger.Info().Msg("no previous trading day on record, nothing to archive")
		return
	}

	day := domain.FormatDay(*r.prevTradingDay)
	start := time.Now()
	if err := r.store.ArchiveDay(ctx, day); err != nil {
		r.logger.Error().Err(err).Str("day", day).Msg("archive failed")
		observability.RecordArchive("error", time.Since(start).Seconds())
		return
	}
	r.logger.Info().Str("day", day).Msg("previous trading day archived")
	observability.RecordArchive("success", time.Since(start).Seconds())
}

func (r *Runner) setState(s State) {
	if r.state != s {
		r.logger.Info().Str("from", r.state.String()).Str("to", s.String()).Msg("state change")
	}
	r.state = s
	observability.SetSessionState(int(s))
	if r.onStateChange != nil {
		r.onStateChange(s)
	}
}

// sleep waits d or until ctx is done, reporting whether the wait completed.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
