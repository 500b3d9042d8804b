package memory

import (
	"context"
	"sort"
	"sync"

	"options-position-lab/internal/domain"
	"options-position-lab/internal/storage"
)

// DayStore is an in-memory implementation of storage.DayStore.
// Used by tests and simulation runs; data does not survive the process.
type DayStore struct {
	mu   sync.RWMutex
	days map[string]*dayData
}

// dayData holds one trading day's instruments and snapshots.
type dayData struct {
	instruments []*domain.Instrument
	bySymbol    map[string]int64
	snapshots   []*domain.Snapshot
	nextSnapID  int64
	archived    bool
}

// NewDayStore creates a new in-memory day store.
func NewDayStore() *DayStore {
	return &DayStore{
		days: make(map[string]*dayData),
	}
}

var _ storage.DayStore = (*DayStore)(nil)

// EnsureDay creates the day's in-memory target if missing. An archived day
// is sealed and cannot be reopened.
func (s *DayStore) EnsureDay(_ context.Context, day string) error {
	if !validDay(day) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.days[day]; ok {
		if d.archived {
			return storage.ErrDuplicateKey
		}
		return nil
	}
	s.days[day] = &dayData{
		bySymbol:   make(map[string]int64),
		nextSnapID: 1,
	}
	return nil
}

// ResolveInstrument returns the day-scoped id for the instrument, inserting
// it on first observation. First-seen identity wins.
func (s *DayStore) ResolveInstrument(_ context.Context, day string, inst *domain.Instrument) (int64, error) {
	if inst == nil || inst.Symbol == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.days[day]
	if !ok || d.archived {
		return 0, storage.ErrNotFound
	}

	if id, seen := d.bySymbol[inst.Symbol]; seen {
		return id, nil
	}

	c := *inst
	c.ID = int64(len(d.instruments) + 1)
	d.instruments = append(d.instruments, &c)
	d.bySymbol[c.Symbol] = c.ID
	return c.ID, nil
}

// AppendSnapshot writes one snapshot and its position rows.
func (s *DayStore) AppendSnapshot(_ context.Context, day string, snap *domain.Snapshot) (int, error) {
	if snap == nil || snap.Timestamp.IsZero() {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.days[day]
	if !ok || d.archived {
		return 0, storage.ErrNotFound
	}

	c := copySnapshot(snap)
	c.ID = d.nextSnapID
	c.Marker = nil // markers are derived, never stored
	d.nextSnapID++
	d.snapshots = append(d.snapshots, c)
	return len(c.Positions), nil
}

// ArchiveDay marks the day archived. Archiving an unknown or already
// archived day is not an error.
func (s *DayStore) ArchiveDay(_ context.Context, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.days[day]; ok {
		d.archived = true
	}
	return nil
}

// ListDays returns all known trading days, newest first.
func (s *DayStore) ListDays(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	days := make([]string, 0, len(s.days))
	for day := range s.days {
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

// ReadDay returns the day's snapshots ordered by timestamp, insert order
// breaking ties.
func (s *DayStore) ReadDay(_ context.Context, day string) ([]*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.days[day]
	if !ok {
		return nil, storage.ErrNotFound
	}

	out := make([]*domain.Snapshot, len(d.snapshots))
	for i, snap := range d.snapshots {
		out[i] = copySnapshot(snap)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// ReadDayAfter returns the day's snapshots with sequence greater than afterID.
func (s *DayStore) ReadDayAfter(_ context.Context, day string, afterID int64) ([]*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.days[day]
	if !ok {
		return nil, storage.ErrNotFound
	}

	var out []*domain.Snapshot
	for _, snap := range d.snapshots {
		if snap.ID > afterID {
			out = append(out, copySnapshot(snap))
		}
	}
	return out, nil
}

// ReadDayTotals returns the (timestamp, total P&L) series for the day.
func (s *DayStore) ReadDayTotals(_ context.Context, day string) ([]domain.PnLPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.days[day]
	if !ok {
		return nil, storage.ErrNotFound
	}

	points := make([]domain.PnLPoint, len(d.snapshots))
	for i, snap := range d.snapshots {
		points[i] = domain.PnLPoint{Timestamp: snap.Timestamp, TotalPnL: snap.TotalPnL}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

// ReadInstruments returns the day's instruments ordered by id.
func (s *DayStore) ReadInstruments(_ context.Context, day string) ([]*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.days[day]
	if !ok {
		return nil, storage.ErrNotFound
	}

	out := make([]*domain.Instrument, len(d.instruments))
	for i, inst := range d.instruments {
		c := *inst
		out[i] = &c
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *DayStore) Close() error {
	return nil
}

// copySnapshot returns a deep copy to prevent mutation through shared slices.
func copySnapshot(in *domain.Snapshot) *domain.Snapshot {
	out := *in
	if in.Positions != nil {
		out.Positions = make([]domain.Position, len(in.Positions))
		copy(out.Positions, in.Positions)
	}
	return &out
}

// validDay reports whether day is a well-formed trading-day key.
func validDay(day string) bool {
	_, err := domain.ParseDay(day)
	return err == nil
}
