package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"options-position-lab/internal/domain"
	"options-position-lab/internal/storage"
)

// EnsureDay opens the day's database file, creating and migrating it if
// missing. Safe to call repeatedly. A day that already has an archive is
// sealed; opening a fresh live file next to it would shadow the archived
// data on reads.
func (s *DayStore) EnsureDay(ctx context.Context, day string) error {
	if _, err := domain.ParseDay(day); err != nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.open[day]; ok {
		return nil
	}

	if _, err := os.Stat(s.archivePath(day)); err == nil {
		return storage.ErrDuplicateKey
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat day archive: %w", err)
	}

	db, err := openDB(s.livePath(day))
	if err != nil {
		return err
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("migrate day db: %w", err)
	}

	s.open[day] = db
	s.logger.Debug().Str("day", day).Msg("opened day database")
	return nil
}

// ResolveInstrument inserts the instrument if its symbol is new and returns
// the day-scoped id. The first write for a symbol wins; later attribute
// changes are ignored.
func (s *DayStore) ResolveInstrument(ctx context.Context, day string, inst *domain.Instrument) (int64, error) {
	if inst == nil || inst.Symbol == "" {
		return 0, storage.ErrInvalidInput
	}

	db, err := s.liveDB(day)
	if err != nil {
		return 0, err
	}

	_, err = db.ExecContext(ctx, `
		INSERT OR IGNORE INTO instruments (symbol, underlying_symbol, type, strike, expiry)
		VALUES (?, ?, ?, ?, ?)
	`, inst.Symbol, inst.UnderlyingSymbol, inst.Type, inst.Strike, inst.Expiry)
	if err != nil {
		return 0, fmt.Errorf("insert instrument: %w", err)
	}

	var id int64
	if err := db.QueryRowContext(ctx, `SELECT id FROM instruments WHERE symbol = ?`, inst.Symbol).Scan(&id); err != nil {
		return 0, fmt.Errorf("select instrument id: %w", err)
	}
	return id, nil
}

// AppendSnapshot writes the snapshot header and its position rows in one
// transaction. Returns the number of position rows written.
func (s *DayStore) AppendSnapshot(ctx context.Context, day string, snap *domain.Snapshot) (int, error) {
	if snap == nil || snap.Timestamp.IsZero() {
		return 0, storage.ErrInvalidInput
	}

	db, err := s.liveDB(day)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO snapshots (timestamp, total_pnl) VALUES (?, ?)`,
		snap.Timestamp.Format(timestampLayout), snap.TotalPnL)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("snapshot id: %w", err)
	}

	for _, pos := range snap.Positions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO position_details (snapshot_id, instrument_id, quantity, avg_price, last_price, unbooked_pnl, booked_pnl, underlying_price)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, snapshotID, pos.InstrumentID, pos.Quantity, pos.AvgPrice, pos.LastPrice, pos.UnbookedPnL, pos.BookedPnL, pos.UnderlyingPrice)
		if err != nil {
			return 0, fmt.Errorf("insert position row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return len(snap.Positions), nil
}

// ArchiveDay compresses the day's live file and removes it. Archiving a day
// whose live file is already gone is not an error.
func (s *DayStore) ArchiveDay(_ context.Context, day string) error {
	s.mu.Lock()
	db, ok := s.open[day]
	delete(s.open, day)
	s.mu.Unlock()

	if ok {
		if err := db.Close(); err != nil {
			return fmt.Errorf("close day db: %w", err)
		}
	}

	live := s.livePath(day)
	if _, err := os.Stat(live); errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("stat day db: %w", err)
	}

	if err := compressFile(live, s.archivePath(day)); err != nil {
		return fmt.Errorf("compress day db: %w", err)
	}
	if err := os.Remove(live); err != nil {
		return fmt.Errorf("remove live day db: %w", err)
	}

	s.logger.Info().Str("day", day).Str("archive", s.archivePath(day)).Msg("archived day database")
	return nil
}

// compressFile gzips src into dst, removing dst on failure.
func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
