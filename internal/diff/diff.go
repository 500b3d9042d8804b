// Package diff derives trade markers by comparing consecutive position
// snapshots of one trading day.
package diff

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"options-position-lab/internal/domain"
)

// priceTolerance absorbs rounding noise in average prices. Moves at or below
// it are not trades.
const priceTolerance = 0.01

// ApplyMarkers annotates every snapshot after the first with a trade marker
// derived from its predecessor. The first snapshot has no baseline and stays
// unmarked. Mutates and returns the input slice.
func ApplyMarkers(snapshots []*domain.Snapshot) []*domain.Snapshot {
	if len(snapshots) < 2 {
		return snapshots
	}
	for i := 1; i < len(snapshots); i++ {
		snapshots[i].Marker = Compare(snapshots[i-1], snapshots[i])
	}
	return snapshots
}

// Compare diffs two consecutive snapshots into a trade marker. An unchanged
// book yields a MarkerNone with an empty change list.
func Compare(prev, curr *domain.Snapshot) *domain.TradeMarker {
	prevByID := positionsByInstrument(prev.Positions)
	currByID := positionsByInstrument(curr.Positions)

	ids := make([]int64, 0, len(prevByID)+len(currByID))
	for id := range prevByID {
		ids = append(ids, id)
	}
	for id := range currByID {
		if _, ok := prevByID[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	changes := make([]domain.PositionChange, 0)
	for _, id := range ids {
		prevPos, inPrev := prevByID[id]
		currPos, inCurr := currByID[id]

		switch {
		case !inPrev:
			inst := currPos.Instrument
			changes = append(changes, domain.PositionChange{
				InstrumentID:     id,
				InstrumentSymbol: currPos.Instrument.Symbol,
				Instrument:       &inst,
				ChangeType:       domain.ChangeNew,
				OldQuantity:      0,
				NewQuantity:      currPos.Quantity,
				OldPrice:         0,
				NewPrice:         currPos.AvgPrice,
			})

		case !inCurr:
			inst := prevPos.Instrument
			changes = append(changes, domain.PositionChange{
				InstrumentID:     id,
				InstrumentSymbol: prevPos.Instrument.Symbol,
				Instrument:       &inst,
				ChangeType:       domain.ChangeClosed,
				OldQuantity:      prevPos.Quantity,
				NewQuantity:      0,
				OldPrice:         prevPos.AvgPrice,
				NewPrice:         0,
			})

		default:
			quantityChanged := prevPos.Quantity != currPos.Quantity
			priceChanged := math.Abs(prevPos.AvgPrice-currPos.AvgPrice) > priceTolerance
			if !quantityChanged && !priceChanged {
				continue
			}

			// Quantity wins when both moved.
			changeType := domain.ChangePrice
			if quantityChanged {
				changeType = domain.ChangeQuantity
			}
			inst := currPos.Instrument
			changes = append(changes, domain.PositionChange{
				InstrumentID:     id,
				InstrumentSymbol: currPos.Instrument.Symbol,
				Instrument:       &inst,
				ChangeType:       changeType,
				OldQuantity:      prevPos.Quantity,
				NewQuantity:      currPos.Quantity,
				OldPrice:         prevPos.AvgPrice,
				NewPrice:         currPos.AvgPrice,
			})
		}
	}

	if len(changes) == 0 {
		return &domain.TradeMarker{
			Kind:    domain.MarkerNone,
			Changes: changes,
			Summary: "No changes",
		}
	}

	// A book going from open positions to none is a square-up.
	if len(prev.Positions) > 0 && len(curr.Positions) == 0 {
		return &domain.TradeMarker{
			Kind:    domain.MarkerSquareUp,
			Changes: changes,
			Summary: fmt.Sprintf("Square-up: Closed %d positions", len(changes)),
		}
	}

	return &domain.TradeMarker{
		Kind:    domain.MarkerAdjustment,
		Changes: changes,
		Summary: summarize(changes),
	}
}

func positionsByInstrument(positions []domain.Position) map[int64]*domain.Position {
	byID := make(map[int64]*domain.Position, len(positions))
	for i := range positions {
		byID[positions[i].InstrumentID] = &positions[i]
	}
	return byID
}

func summarize(changes []domain.PositionChange) string {
	var newCount, closedCount, modifiedCount int
	for _, c := range changes {
		switch c.ChangeType {
		case domain.ChangeNew:
			newCount++
		case domain.ChangeClosed:
			closedCount++
		case domain.ChangeQuantity, domain.ChangePrice:
			modifiedCount++
		}
	}

	parts := make([]string, 0, 3)
	if newCount > 0 {
		parts = append(parts, fmt.Sprintf("%d new", newCount))
	}
	if closedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d closed", closedCount))
	}
	if modifiedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", modifiedCount))
	}
	return "Adjustment: " + strings.Join(parts, ", ")
}
