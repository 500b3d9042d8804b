// Command gendata writes one synthetic trading day through the real day
// store so the replay and dashboard paths have data without a live feed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"options-position-lab/internal/domain"
	"options-position-lab/internal/storage/sqlite"
)

// openPosition tracks one synthetic position between ticks.
type openPosition struct {
	inst      domain.Instrument
	quantity  int
	avgPrice  float64
	lastPrice float64
	pnl       float64
}

func main() {
	day := flag.String("day", domain.FormatDay(time.Now()), "Trading day to generate (YYYY-MM-DD)")
	dataDir := flag.String("data-dir", "data", "Directory holding the per-day store files")
	underlying := flag.String("underlying", "NIFTY", "Underlying symbol for generated instruments")
	spot := flag.Float64("spot", 21500, "Underlying price at the open")
	expiry := flag.String("expiry", "2024-12-31", "Expiry stamped on generated instruments (YYYY-MM-DD)")
	interval := flag.Int("interval", 15, "Seconds between snapshots")
	seed := flag.Int64("seed", 0, "Random seed (0 seeds from the clock)")
	flag.Parse()

	dayStart, err := domain.ParseDay(*day)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: -day must be formatted YYYY-MM-DD")
		os.Exit(1)
	}
	if *interval <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -interval must be positive")
		os.Exit(1)
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	ctx := context.Background()

	// Regenerating a day replaces any previous copy, live or archived.
	for _, name := range []string{
		fmt.Sprintf("positions-%s.db", *day),
		fmt.Sprintf("positions-%s.db.gz", *day),
	} {
		if err := os.Remove(filepath.Join(*dataDir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Error removing existing day file: %v\n", err)
			os.Exit(1)
		}
	}

	store, err := sqlite.New(sqlite.Options{Dir: *dataDir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.EnsureDay(ctx, *day); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating day store: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Creating test data for date: %s\n", *day)

	strikes := []float64{*spot - 200, *spot - 100, *spot, *spot + 100, *spot + 200}
	instruments := make([]domain.Instrument, 0, len(strikes)*2)
	for _, strike := range strikes {
		for _, typ := range []string{domain.OptionTypeCall, domain.OptionTypePut} {
			inst := domain.Instrument{
				Symbol:           optionSymbol(*underlying, *expiry, strike, typ),
				UnderlyingSymbol: *underlying,
				Type:             typ,
				Strike:           strike,
				Expiry:           *expiry,
			}
			id, err := store.ResolveInstrument(ctx, *day, &inst)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error inserting instrument %s: %v\n", inst.Symbol, err)
				os.Exit(1)
			}
			inst.ID = id
			instruments = append(instruments, inst)
		}
	}
	fmt.Printf("Created %d instruments\n", len(instruments))

	y, m, d := dayStart.Date()
	start := time.Date(y, m, d, 9, 15, 0, 0, time.Local)
	end := time.Date(y, m, d, 15, 30, 0, 0, time.Local)

	var (
		held       []*openPosition
		realized   float64
		unrealized float64
		price      = *spot
		snapshots  int
	)

	for now := start; !now.After(end); now = now.Add(time.Duration(*interval) * time.Second) {
		// Random walk clamped to +/-3% of the opening price.
		price += rng.Float64() - 0.5
		price = math.Max(price, *spot*0.97)
		price = math.Min(price, *spot*1.03)

		if rng.Float64() < 0.08 {
			switch rng.Intn(3) {
			case 0:
				if len(held) < 6 {
					inst := instruments[rng.Intn(len(instruments))]
					if !holds(held, inst.ID) {
						qty := []int{25, 50, 75, 100}[rng.Intn(4)]
						if rng.Intn(2) == 0 {
							qty = -qty
						}
						avg := 15 + rng.Float64()*135
						held = append(held, &openPosition{inst: inst, quantity: qty, avgPrice: avg, lastPrice: avg})
						fmt.Printf("  NEW: %s qty=%d @ %.2f\n", inst.Symbol, qty, avg)
					}
				}
			case 1:
				if len(held) > 0 {
					p := held[rng.Intn(len(held))]
					delta := []int{25, 50, -25, -50}[rng.Intn(4)]
					oldQty := p.quantity
					p.quantity += delta
					fmt.Printf("  MODIFY: %s qty=%d -> %d\n", p.inst.Symbol, oldQty, p.quantity)
					if p.quantity == 0 {
						closed := (p.lastPrice - p.avgPrice) * float64(oldQty)
						realized += closed
						held = remove(held, p.inst.ID)
						fmt.Printf("  CLOSED: %s realized P&L: %.2f\n", p.inst.Symbol, closed)
					}
				}
			case 2:
				if len(held) > 0 {
					p := held[rng.Intn(len(held))]
					closed := (p.lastPrice - p.avgPrice) * float64(p.quantity)
					realized += closed
					held = remove(held, p.inst.ID)
					fmt.Printf("  CLOSE: %s realized P&L: %.2f\n", p.inst.Symbol, closed)
				}
			}
		}

		// Reprice open contracts: intrinsic value plus decaying time value.
		decay := math.Max(0.1, 1-now.Sub(start).Seconds()/(6.25*3600))
		unrealized = 0
		for _, p := range held {
			timeValue := (8 + rng.Float64()*27) * decay
			var intrinsic float64
			if p.inst.Type == domain.OptionTypeCall {
				intrinsic = math.Max(0, price-p.inst.Strike)
			} else {
				intrinsic = math.Max(0, p.inst.Strike-price)
			}
			p.lastPrice = math.Max(0.5, intrinsic+timeValue+rng.Float64()*6-3)
			p.pnl = (p.lastPrice - p.avgPrice) * float64(p.quantity)
			unrealized += p.pnl
		}

		snap := &domain.Snapshot{
			Timestamp: now,
			TotalPnL:  realized + unrealized,
			Positions: positionRows(held, price, realized),
		}
		if _, err := store.AppendSnapshot(ctx, *day, snap); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing snapshot: %v\n", err)
			os.Exit(1)
		}
		snapshots++
	}

	if err := store.ArchiveDay(ctx, *day); err != nil {
		fmt.Fprintf(os.Stderr, "Error archiving day: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %d snapshots\n", snapshots)
	fmt.Printf("Archived day: %s\n", filepath.Join(*dataDir, fmt.Sprintf("positions-%s.db.gz", *day)))
	fmt.Printf("Final underlying price: %.2f\n", price)
	fmt.Printf("Final total P&L: %.2f\n", realized+unrealized)
	fmt.Printf("  - Realized P&L: %.2f\n", realized)
	fmt.Printf("  - Unrealized P&L: %.2f\n", unrealized)
	fmt.Printf("Current positions: %d\n", len(held))
}

// optionSymbol builds a compact symbol from the expiry's trailing digits, the
// zero-padded strike and the option type.
func optionSymbol(underlying, expiry string, strike float64, typ string) string {
	tail := expiry
	if len(tail) > 2 {
		tail = tail[len(tail)-2:]
	}
	return fmt.Sprintf("%s%s%05d%s", underlying, tail, int(strike), typ)
}

func holds(held []*openPosition, instrumentID int64) bool {
	for _, p := range held {
		if p.inst.ID == instrumentID {
			return true
		}
	}
	return false
}

func remove(held []*openPosition, instrumentID int64) []*openPosition {
	for i, p := range held {
		if p.inst.ID == instrumentID {
			return append(held[:i], held[i+1:]...)
		}
	}
	return held
}

// positionRows renders the open set as stored rows. Booked P&L carries the
// account-level realized total on every row.
func positionRows(held []*openPosition, price, realized float64) []domain.Position {
	rows := make([]domain.Position, 0, len(held))
	for _, p := range held {
		rows = append(rows, domain.Position{
			InstrumentID:    p.inst.ID,
			Instrument:      p.inst,
			Quantity:        p.quantity,
			AvgPrice:        p.avgPrice,
			LastPrice:       p.lastPrice,
			UnbookedPnL:     p.pnl,
			BookedPnL:       realized,
			UnderlyingPrice: price,
		})
	}
	return rows
}
