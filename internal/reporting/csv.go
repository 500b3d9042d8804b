// Package reporting renders replayed trading days into shareable report
// formats.
package reporting

import (
	"fmt"
	"strings"
	"time"

	"options-position-lab/internal/replay"
)

const csvTimeLayout = time.RFC3339

// RenderDayCSV renders the day's snapshots as CSV, one row per position.
// Snapshots captured with no open positions render a single row with empty
// position fields so the P&L series stays complete.
func RenderDayCSV(data *replay.TradingDayData) string {
	var sb strings.Builder

	sb.WriteString("timestamp,total_pnl,underlying_price,symbol,type,strike,expiry,quantity,avg_price,last_price,unbooked_pnl,booked_pnl,marker_type\n")

	for _, snap := range data.Timeseries {
		ts := snap.Timestamp.Format(csvTimeLayout)

		spot := ""
		if snap.UnderlyingPrice != nil {
			spot = fmt.Sprintf("%.2f", *snap.UnderlyingPrice)
		}
		marker := ""
		if snap.TradeMarker != nil {
			marker = string(snap.TradeMarker.Kind)
		}

		if len(snap.Positions) == 0 {
			sb.WriteString(fmt.Sprintf("%s,%.2f,%s,,,,,,,,,,%s\n", ts, snap.TotalPnL, spot, marker))
			continue
		}

		for _, pos := range snap.Positions {
			sb.WriteString(fmt.Sprintf("%s,%.2f,%s,%s,%s,%.2f,%s,%d,%.2f,%.2f,%.2f,%.2f,%s\n",
				ts,
				snap.TotalPnL,
				spot,
				pos.Instrument.Symbol,
				pos.Instrument.Type,
				pos.Instrument.Strike,
				pos.Instrument.Expiry,
				pos.Quantity,
				pos.AvgPrice,
				pos.LastPrice,
				pos.UnbookedPnL,
				pos.BookedPnL,
				marker,
			))
		}
	}

	return sb.String()
}

// RenderTradesCSV renders the day's detected position changes as CSV, one row
// per change. Unmarked and unchanged snapshots contribute nothing.
func RenderTradesCSV(data *replay.TradingDayData) string {
	var sb strings.Builder

	sb.WriteString("timestamp,instrument_id,symbol,change_type,old_quantity,new_quantity,old_price,new_price,quantity_delta,price_delta\n")

	for _, snap := range data.Timeseries {
		if snap.TradeMarker == nil {
			continue
		}
		ts := snap.Timestamp.Format(csvTimeLayout)

		for _, change := range snap.TradeMarker.Changes {
			sb.WriteString(fmt.Sprintf("%s,%d,%s,%s,%d,%d,%.2f,%.2f,%d,%.2f\n",
				ts,
				change.InstrumentID,
				change.InstrumentSymbol,
				change.ChangeType,
				change.OldQuantity,
				change.NewQuantity,
				change.OldPrice,
				change.NewPrice,
				change.NewQuantity-change.OldQuantity,
				change.NewPrice-change.OldPrice,
			))
		}
	}

	return sb.String()
}
