// Package replay reconstructs stored trading days into marked, filterable
// views for the read API and report generation.
package replay

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"options-position-lab/internal/diff"
	"options-position-lab/internal/domain"
	"options-position-lab/internal/storage"
)

const clockLayout = "15:04:05"

// Options configures the replay service.
type Options struct {
	Store storage.SnapshotReader

	// Logger defaults to the global logger.
	Logger *zerolog.Logger
}

// Service turns stored snapshot rows into marked day views.
type Service struct {
	store  storage.SnapshotReader
	logger zerolog.Logger
}

// NewService creates a replay service over the given reader.
func NewService(opts Options) *Service {
	logger := zlog.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Service{store: opts.Store, logger: logger}
}

// TradingDays lists all stored days, newest first.
func (s *Service) TradingDays(ctx context.Context) ([]string, error) {
	return s.store.ListDays(ctx)
}

// LoadDay reads, optionally filters, and marks one trading day. Filter keys
// select underlying|expiry groups; markers are derived after filtering so a
// replayed subset reports its own trade activity. A day with no snapshots is
// storage.ErrNotFound.
func (s *Service) LoadDay(ctx context.Context, day string, filterKeys []string) (*TradingDayData, error) {
	snaps, err := s.store.ReadDay(ctx, day)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, storage.ErrNotFound
	}

	if len(filterKeys) > 0 {
		snaps = filterSnapshots(snaps, filterKeys)
	}

	diff.ApplyMarkers(snaps)

	views := make([]SnapshotView, len(snaps))
	for i, snap := range snaps {
		views[i] = toView(snap)
	}

	return &TradingDayData{
		Date:       day,
		Summary:    buildSummary(day, views),
		Timeseries: views,
	}, nil
}

// Summary computes day statistics from the total P&L series alone. Cheaper
// than LoadDay; trade counts need the full position view and stay zero here.
func (s *Service) Summary(ctx context.Context, day string) (*DaySummary, error) {
	points, err := s.store.ReadDayTotals(ctx, day)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}

	minPnL, maxPnL := points[0].TotalPnL, points[0].TotalPnL
	for _, p := range points[1:] {
		if p.TotalPnL < minPnL {
			minPnL = p.TotalPnL
		}
		if p.TotalPnL > maxPnL {
			maxPnL = p.TotalPnL
		}
	}

	return &DaySummary{
		Date:           day,
		TotalSnapshots: len(points),
		FinalPnL:       points[len(points)-1].TotalPnL,
		MarketOpen:     points[0].Timestamp.Format(clockLayout),
		MarketClose:    points[len(points)-1].Timestamp.Format(clockLayout),
		MinPnL:         minPnL,
		MaxPnL:         maxPnL,
	}, nil
}

// Filters lists the distinct underlying and expiry pairs seen on the day,
// sorted by underlying then expiry.
func (s *Service) Filters(ctx context.Context, day string) ([]FilterOption, error) {
	insts, err := s.store.ReadInstruments(ctx, day)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	options := make([]FilterOption, 0)
	for _, inst := range insts {
		if inst.UnderlyingSymbol == "" {
			continue
		}
		key := FilterKey(inst.UnderlyingSymbol, inst.Expiry)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		options = append(options, FilterOption{
			UnderlyingSymbol: inst.UnderlyingSymbol,
			Expiry:           inst.Expiry,
			Key:              key,
		})
	}

	sort.Slice(options, func(i, j int) bool {
		if options[i].UnderlyingSymbol != options[j].UnderlyingSymbol {
			return options[i].UnderlyingSymbol < options[j].UnderlyingSymbol
		}
		return options[i].Expiry < options[j].Expiry
	})
	return options, nil
}

// filterSnapshots retains only positions in the selected groups and
// recomputes each snapshot's total P&L from what remains. Keys matching no
// group simply select nothing.
func filterSnapshots(snaps []*domain.Snapshot, keys []string) []*domain.Snapshot {
	selected := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			selected[key] = struct{}{}
		}
	}
	if len(selected) == 0 {
		return snaps
	}

	out := make([]*domain.Snapshot, len(snaps))
	for i, snap := range snaps {
		filtered := &domain.Snapshot{
			ID:        snap.ID,
			Timestamp: snap.Timestamp,
		}
		var pnl float64
		for _, pos := range snap.Positions {
			if _, ok := selected[FilterKey(pos.Instrument.UnderlyingSymbol, pos.Instrument.Expiry)]; !ok {
				continue
			}
			filtered.Positions = append(filtered.Positions, pos)
			pnl += pos.BookedPnL + pos.UnbookedPnL
		}
		filtered.TotalPnL = pnl
		out[i] = filtered
	}
	return out
}

// toView derives the client view of a snapshot. The snapshot-level underlying
// price is the first position's; position groups share it within a tick.
func toView(snap *domain.Snapshot) SnapshotView {
	view := SnapshotView{
		Timestamp:     snap.Timestamp,
		TotalPnL:      snap.TotalPnL,
		PositionCount: len(snap.Positions),
		Positions:     snap.Positions,
		TradeMarker:   snap.Marker,
	}
	if view.Positions == nil {
		view.Positions = []domain.Position{}
	}
	if len(snap.Positions) > 0 {
		price := snap.Positions[0].UnderlyingPrice
		view.UnderlyingPrice = &price
	}
	return view
}

// buildSummary aggregates marked views into day statistics.
func buildSummary(day string, views []SnapshotView) DaySummary {
	if len(views) == 0 {
		return DaySummary{Date: day}
	}

	summary := DaySummary{
		Date:           day,
		TotalSnapshots: len(views),
		FinalPnL:       views[len(views)-1].TotalPnL,
		MarketOpen:     views[0].Timestamp.Format(clockLayout),
		MarketClose:    views[len(views)-1].Timestamp.Format(clockLayout),
		MinPnL:         views[0].TotalPnL,
		MaxPnL:         views[0].TotalPnL,
	}

	var spot []float64
	for _, v := range views {
		if v.TotalPnL < summary.MinPnL {
			summary.MinPnL = v.TotalPnL
		}
		if v.TotalPnL > summary.MaxPnL {
			summary.MaxPnL = v.TotalPnL
		}
		if v.TradeMarker != nil && v.TradeMarker.Kind != domain.MarkerNone {
			summary.TotalTrades++
		}
		if v.UnderlyingPrice != nil {
			spot = append(spot, *v.UnderlyingPrice)
		}
	}

	if len(spot) > 0 {
		r := &UnderlyingRange{Min: spot[0], Max: spot[0], Open: spot[0], Close: spot[len(spot)-1]}
		for _, p := range spot {
			if p < r.Min {
				r.Min = p
			}
			if p > r.Max {
				r.Max = p
			}
		}
		summary.UnderlyingRange = r
	}
	return summary
}
