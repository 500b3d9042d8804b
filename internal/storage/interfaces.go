package storage

import (
	"context"

	"options-position-lab/internal/domain"
)

// SnapshotWriter is the capture-side surface of the day store.
type SnapshotWriter interface {
	// EnsureDay creates the day's store target and schema if missing.
	// Safe to call more than once for the same day. Returns ErrDuplicateKey
	// if the day is already archived; a sealed day cannot be reopened.
	EnsureDay(ctx context.Context, day string) error

	// ResolveInstrument returns the day-scoped id for the instrument,
	// inserting it on first observation. The identity written first wins;
	// later metadata for the same symbol is ignored.
	ResolveInstrument(ctx context.Context, day string, inst *domain.Instrument) (int64, error)

	// AppendSnapshot writes one snapshot and its position rows. Positions
	// must carry resolved instrument ids. Returns the number of position
	// rows written. Snapshots are append-only; there is no update path.
	AppendSnapshot(ctx context.Context, day string, snap *domain.Snapshot) (int, error)

	// ArchiveDay compresses the day's live store into its archive form and
	// removes the live copy. Idempotent: archiving a day whose live copy is
	// already gone is not an error.
	ArchiveDay(ctx context.Context, day string) error
}

// SnapshotReader is the replay-side surface of the day store.
type SnapshotReader interface {
	// ListDays returns all known trading days, newest first.
	ListDays(ctx context.Context) ([]string, error)

	// ReadDay returns the day's snapshots with positions and instrument
	// identities, ordered by timestamp (insert order breaks ties).
	// Returns ErrNotFound if the day does not exist.
	ReadDay(ctx context.Context, day string) ([]*domain.Snapshot, error)

	// ReadDayAfter returns the day's snapshots with store sequence greater
	// than afterID, in sequence order. Used to tail the live day.
	ReadDayAfter(ctx context.Context, day string, afterID int64) ([]*domain.Snapshot, error)

	// ReadDayTotals returns the (timestamp, total P&L) series for the day
	// without loading position rows. Returns ErrNotFound if the day does
	// not exist.
	ReadDayTotals(ctx context.Context, day string) ([]domain.PnLPoint, error)

	// ReadInstruments returns the day's instruments ordered by id.
	ReadInstruments(ctx context.Context, day string) ([]*domain.Instrument, error)
}

// DayStore combines both surfaces. One live day target is open at a time on
// the capture side; readers may touch any day, archived or live.
type DayStore interface {
	SnapshotWriter
	SnapshotReader

	// Close releases any open day targets.
	Close() error
}
