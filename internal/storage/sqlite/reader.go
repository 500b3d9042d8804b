package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"

	"options-position-lab/internal/domain"
	"options-position-lab/internal/storage"
)

const snapshotColumns = `
	s.id, s.timestamp, s.total_pnl,
	pd.instrument_id, pd.quantity, pd.avg_price, pd.last_price,
	pd.unbooked_pnl, pd.booked_pnl, pd.underlying_price,
	i.symbol, i.underlying_symbol, i.type, i.strike, i.expiry`

const readDayQuery = `
	SELECT` + snapshotColumns + `
	FROM snapshots s
	LEFT JOIN position_details pd ON pd.snapshot_id = s.id
	LEFT JOIN instruments i ON i.id = pd.instrument_id
	ORDER BY s.timestamp ASC, s.id ASC, pd.instrument_id ASC`

const readDayAfterQuery = `
	SELECT` + snapshotColumns + `
	FROM snapshots s
	LEFT JOIN position_details pd ON pd.snapshot_id = s.id
	LEFT JOIN instruments i ON i.id = pd.instrument_id
	WHERE s.id > ?
	ORDER BY s.id ASC, pd.instrument_id ASC`

// ListDays scans the data directory for live and archived day files,
// newest first.
func (s *DayStore) ListDays(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	seen := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if day, ok := dayFromFilename(entry.Name()); ok {
			seen[day] = struct{}{}
		}
	}

	days := make([]string, 0, len(seen))
	for day := range seen {
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

// ReadDay returns the day's snapshots with position rows attached, ordered by
// timestamp, insert order breaking ties. Snapshots captured with no open
// positions come back with an empty position list.
func (s *DayStore) ReadDay(ctx context.Context, day string) ([]*domain.Snapshot, error) {
	var snaps []*domain.Snapshot
	err := s.withDayDB(day, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, readDayQuery)
		if err != nil {
			return fmt.Errorf("query day snapshots: %w", err)
		}
		defer rows.Close()

		snaps, err = scanSnapshotRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// ReadDayAfter returns the day's snapshots with sequence greater than afterID.
func (s *DayStore) ReadDayAfter(ctx context.Context, day string, afterID int64) ([]*domain.Snapshot, error) {
	var snaps []*domain.Snapshot
	err := s.withDayDB(day, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, readDayAfterQuery, afterID)
		if err != nil {
			return fmt.Errorf("query day snapshots after %d: %w", afterID, err)
		}
		defer rows.Close()

		snaps, err = scanSnapshotRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// ReadDayTotals returns the (timestamp, total P&L) series without position
// rows. Cheaper than ReadDay for summary views.
func (s *DayStore) ReadDayTotals(ctx context.Context, day string) ([]domain.PnLPoint, error) {
	var points []domain.PnLPoint
	err := s.withDayDB(day, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `SELECT timestamp, total_pnl FROM snapshots ORDER BY timestamp ASC, id ASC`)
		if err != nil {
			return fmt.Errorf("query day totals: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var ts string
			var pnl sql.NullFloat64
			if err := rows.Scan(&ts, &pnl); err != nil {
				return fmt.Errorf("scan total row: %w", err)
			}
			t, err := parseTimestamp(ts)
			if err != nil {
				return err
			}
			points = append(points, domain.PnLPoint{Timestamp: t, TotalPnL: pnl.Float64})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// ReadInstruments returns the day's instrument table ordered by id.
func (s *DayStore) ReadInstruments(ctx context.Context, day string) ([]*domain.Instrument, error) {
	var insts []*domain.Instrument
	err := s.withDayDB(day, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `SELECT id, symbol, underlying_symbol, type, strike, expiry FROM instruments ORDER BY id ASC`)
		if err != nil {
			return fmt.Errorf("query instruments: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var inst domain.Instrument
			var underlying, typ, expiry sql.NullString
			var strike sql.NullFloat64
			if err := rows.Scan(&inst.ID, &inst.Symbol, &underlying, &typ, &strike, &expiry); err != nil {
				return fmt.Errorf("scan instrument row: %w", err)
			}
			inst.UnderlyingSymbol = underlying.String
			inst.Type = typ.String
			inst.Strike = strike.Float64
			inst.Expiry = expiry.String
			insts = append(insts, &inst)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return insts, nil
}

// withDayDB runs fn against the day's database. Prefers the open live handle,
// then the live file, then a temporary extraction of the gzip archive.
func (s *DayStore) withDayDB(day string, fn func(*sql.DB) error) error {
	s.mu.Lock()
	if db, ok := s.open[day]; ok {
		s.mu.Unlock()
		return fn(db)
	}
	s.mu.Unlock()

	if path := s.livePath(day); fileExists(path) {
		db, err := openDB(path)
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(db)
	}

	if path := s.archivePath(day); fileExists(path) {
		tmp, err := extractToTemp(path)
		if err != nil {
			return fmt.Errorf("extract archived day: %w", err)
		}
		defer os.Remove(tmp)

		db, err := openDB(tmp)
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(db)
	}

	return storage.ErrNotFound
}

// scanSnapshotRows groups joined rows into snapshots. Rows for one snapshot
// are contiguous under the read queries' ORDER BY.
func scanSnapshotRows(rows *sql.Rows) ([]*domain.Snapshot, error) {
	var snaps []*domain.Snapshot
	var cur *domain.Snapshot

	for rows.Next() {
		var (
			snapID   int64
			ts       string
			totalPnL sql.NullFloat64

			instID                sql.NullInt64
			qty                   sql.NullInt64
			avgPrice, lastPrice   sql.NullFloat64
			unbooked, booked      sql.NullFloat64
			underlyingPrice       sql.NullFloat64
			symbol, underlyingSym sql.NullString
			typ, expiry           sql.NullString
			strike                sql.NullFloat64
		)

		err := rows.Scan(
			&snapID, &ts, &totalPnL,
			&instID, &qty, &avgPrice, &lastPrice,
			&unbooked, &booked, &underlyingPrice,
			&symbol, &underlyingSym, &typ, &strike, &expiry,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		if cur == nil || cur.ID != snapID {
			t, err := parseTimestamp(ts)
			if err != nil {
				return nil, err
			}
			cur = &domain.Snapshot{
				ID:        snapID,
				Timestamp: t,
				TotalPnL:  totalPnL.Float64,
			}
			snaps = append(snaps, cur)
		}

		if instID.Valid {
			cur.Positions = append(cur.Positions, domain.Position{
				InstrumentID: instID.Int64,
				Instrument: domain.Instrument{
					ID:               instID.Int64,
					Symbol:           symbol.String,
					UnderlyingSymbol: underlyingSym.String,
					Type:             typ.String,
					Strike:           strike.Float64,
					Expiry:           expiry.String,
				},
				Quantity:        int(qty.Int64),
				AvgPrice:        avgPrice.Float64,
				LastPrice:       lastPrice.Float64,
				UnbookedPnL:     unbooked.Float64,
				BookedPnL:       booked.Float64,
				UnderlyingPrice: underlyingPrice.Float64,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return snaps, nil
}

// parseTimestamp accepts the layouts day files have carried over time,
// including naive local timestamps from older capture runs.
func parseTimestamp(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse snapshot timestamp %q: unrecognized layout", s)
}

// extractToTemp decompresses a gzip archive into a temporary file and returns
// its path. The caller removes the file when done.
func extractToTemp(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return "", err
	}
	defer gz.Close()

	tmp, err := os.CreateTemp("", "positions-*.db")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, gz); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
