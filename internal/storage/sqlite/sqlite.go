// Package sqlite stores trading days as standalone SQLite database files,
// one file per day. Archived days are gzip-compressed next to the live files
// and read back transparently.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"options-position-lab/internal/domain"
	"options-position-lab/internal/storage"
)

const (
	dayFilePrefix = "positions-"
	dayFileSuffix = ".db"
	archiveSuffix = ".db.gz"
)

// timestampLayout keeps a fixed-width fraction so TEXT ordering stays
// chronological.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS instruments (
    id INTEGER PRIMARY KEY,
    symbol TEXT UNIQUE NOT NULL,
    underlying_symbol TEXT,
    type TEXT,
    strike REAL,
    expiry TEXT
);

CREATE TABLE IF NOT EXISTS snapshots (
    id INTEGER PRIMARY KEY,
    timestamp TEXT NOT NULL,
    total_pnl REAL
);

CREATE TABLE IF NOT EXISTS position_details (
    snapshot_id INTEGER,
    instrument_id INTEGER,
    quantity INTEGER,
    avg_price REAL,
    last_price REAL,
    unbooked_pnl REAL,
    booked_pnl REAL,
    underlying_price REAL,
    FOREIGN KEY (snapshot_id) REFERENCES snapshots (id),
    FOREIGN KEY (instrument_id) REFERENCES instruments (id)
);
`

// Options configures the day store.
type Options struct {
	// Dir is the directory holding day database files. Defaults to "data".
	Dir string

	// Logger for lifecycle events. Defaults to the global logger.
	Logger *zerolog.Logger
}

// DayStore implements storage.DayStore with one SQLite file per trading day.
type DayStore struct {
	dir    string
	logger zerolog.Logger

	mu   sync.Mutex
	open map[string]*sql.DB
}

// New creates a DayStore, creating the data directory if needed.
func New(opts Options) (*DayStore, error) {
	if opts.Dir == "" {
		opts.Dir = "data"
	}
	logger := zlog.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return &DayStore{
		dir:    opts.Dir,
		logger: logger,
		open:   make(map[string]*sql.DB),
	}, nil
}

// Compile-time interface check.
var _ storage.DayStore = (*DayStore)(nil)

// Close closes every open day database.
func (s *DayStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for day, db := range s.open {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close day db %s: %w", day, err)
		}
		delete(s.open, day)
	}
	return firstErr
}

func (s *DayStore) livePath(day string) string {
	return filepath.Join(s.dir, dayFilePrefix+day+dayFileSuffix)
}

func (s *DayStore) archivePath(day string) string {
	return filepath.Join(s.dir, dayFilePrefix+day+archiveSuffix)
}

// liveDB returns the open handle for the day. Days not opened with EnsureDay,
// including archived days, are not writable.
func (s *DayStore) liveDB(day string) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, ok := s.open[day]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return db, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

// dayFromFilename extracts the trading day from a live or archived file name.
func dayFromFilename(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, dayFilePrefix)
	if !ok {
		return "", false
	}

	day, ok := strings.CutSuffix(rest, archiveSuffix)
	if !ok {
		if day, ok = strings.CutSuffix(rest, dayFileSuffix); !ok {
			return "", false
		}
	}
	if _, err := domain.ParseDay(day); err != nil {
		return "", false
	}
	return day, true
}
