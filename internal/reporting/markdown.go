package reporting

import (
	"fmt"
	"strings"
	"time"

	"options-position-lab/internal/domain"
	"options-position-lab/internal/replay"
)

// RenderDayMarkdown renders a one-page day report as Markdown.
func RenderDayMarkdown(data *replay.TradingDayData, generatedAt time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Trading Day Report: %s\n\n", data.Date))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", generatedAt.Format(time.RFC3339)))

	// Summary
	sum := data.Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Snapshots | %d |\n", sum.TotalSnapshots))
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", sum.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Final P&L | %.2f |\n", sum.FinalPnL))
	sb.WriteString(fmt.Sprintf("| Min P&L | %.2f |\n", sum.MinPnL))
	sb.WriteString(fmt.Sprintf("| Max P&L | %.2f |\n", sum.MaxPnL))
	if sum.MarketOpen != "" {
		sb.WriteString(fmt.Sprintf("| Market Open | %s |\n", sum.MarketOpen))
	}
	if sum.MarketClose != "" {
		sb.WriteString(fmt.Sprintf("| Market Close | %s |\n", sum.MarketClose))
	}
	sb.WriteString("\n")

	// Underlying travel
	sb.WriteString("## Underlying\n\n")
	if r := sum.UnderlyingRange; r != nil {
		sb.WriteString("| Open | Close | Min | Max |\n")
		sb.WriteString("|------|-------|-----|-----|\n")
		sb.WriteString(fmt.Sprintf("| %.2f | %.2f | %.2f | %.2f |\n", r.Open, r.Close, r.Min, r.Max))
	} else {
		sb.WriteString("No underlying prices recorded.\n")
	}
	sb.WriteString("\n")

	// Trade activity
	sb.WriteString("## Trade Activity\n\n")
	marked := 0
	for _, snap := range data.Timeseries {
		if snap.TradeMarker != nil && snap.TradeMarker.Kind != domain.MarkerNone {
			marked++
		}
	}
	if marked > 0 {
		sb.WriteString("| Time | Type | Summary |\n")
		sb.WriteString("|------|------|---------|\n")
		for _, snap := range data.Timeseries {
			if snap.TradeMarker == nil || snap.TradeMarker.Kind == domain.MarkerNone {
				continue
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
				snap.Timestamp.Format("15:04:05"),
				snap.TradeMarker.Kind,
				snap.TradeMarker.Summary))
		}
	} else {
		sb.WriteString("No trades detected.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
