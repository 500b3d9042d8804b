package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"options-position-lab/internal/domain"
)

// DefaultTimeout bounds one feed request.
const DefaultTimeout = 10 * time.Second

const acceptHeader = "application/json, text/plain, */*"

// Client implements Fetcher against the position-snapshot feed endpoint.
// One request per call, no retries: a failed fetch skips the tick and the
// next tick fires on schedule anyway.
type Client struct {
	endpoint string
	client   *http.Client
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a feed client for the given snapshot endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Fetcher = (*Client)(nil)

// feedResponse is the raw feed envelope.
type feedResponse struct {
	Success bool         `json:"success"`
	Payload *feedPayload `json:"payload"`
}

type feedPayload struct {
	PositionSnapshot *positionSnapshot `json:"position_snapshot_data"`
}

type positionSnapshot struct {
	CreatedAt   string          `json:"created_at"`
	TotalProfit float64         `json:"total_profit"`
	Data        []positionGroup `json:"data"`
}

// positionGroup is one underlying's block of open option positions.
type positionGroup struct {
	TradingSymbol   string      `json:"trading_symbol"`
	UnderlyingPrice float64     `json:"underlying_price"`
	Trades          []feedTrade `json:"trades"`
}

type feedTrade struct {
	TradingSymbol  string          `json:"trading_symbol"`
	InstrumentInfo *instrumentInfo `json:"instrument_info"`
	Quantity       int             `json:"quantity"`
	AveragePrice   float64         `json:"average_price"`
	LastPrice      float64         `json:"last_price"`
	UnbookedPnL    float64         `json:"unbooked_pnl"`
	BookedPnL      float64         `json:"booked_profit_loss"`
}

type instrumentInfo struct {
	InstrumentType string  `json:"instrument_type"`
	Strike         float64 `json:"strike"`
	Expiry         string  `json:"expiry"`
}

// Fetch retrieves the current position snapshot. The feed groups positions
// by underlying; the group's spot price is stamped onto every position in
// it. Instrument ids are left unresolved, the store assigns them on write.
func (c *Client) Fetch(ctx context.Context) (*domain.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var feed feedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if !feed.Success || feed.Payload == nil {
		return nil, fmt.Errorf("feed reported failure or missing payload")
	}

	snap := feed.Payload.PositionSnapshot
	if snap == nil || len(snap.Data) == 0 {
		// Empty book, nothing to persist this tick.
		return nil, nil
	}

	ts, err := parseCreatedAt(snap.CreatedAt)
	if err != nil {
		return nil, err
	}

	out := &domain.Snapshot{
		Timestamp: ts,
		TotalPnL:  snap.TotalProfit,
	}

	for _, group := range snap.Data {
		for _, trade := range group.Trades {
			pos := domain.Position{
				Instrument: domain.Instrument{
					Symbol:           trade.TradingSymbol,
					UnderlyingSymbol: group.TradingSymbol,
				},
				Quantity:        trade.Quantity,
				AvgPrice:        trade.AveragePrice,
				LastPrice:       trade.LastPrice,
				UnbookedPnL:     trade.UnbookedPnL,
				BookedPnL:       trade.BookedPnL,
				UnderlyingPrice: group.UnderlyingPrice,
			}
			if info := trade.InstrumentInfo; info != nil {
				pos.Instrument.Type = domain.NormalizeOptionType(info.InstrumentType)
				pos.Instrument.Strike = info.Strike
				pos.Instrument.Expiry = info.Expiry
			}
			out.Positions = append(out.Positions, pos)
		}
	}

	return out, nil
}

// createdAtLayouts are the timestamp shapes the feed has been seen to emit.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseCreatedAt(s string) (time.Time, error) {
	for _, layout := range createdAtLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse created_at %q: unrecognized layout", s)
}
