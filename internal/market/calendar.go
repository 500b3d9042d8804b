package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"options-position-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultExchange = "NSE"
)

// HTTPCalendar implements Calendar against an exchange-timings REST endpoint.
// The endpoint serves GET {base}/{YYYY-MM-DD} with per-exchange open and close
// times as epoch milliseconds.
type HTTPCalendar struct {
	baseURL  string
	exchange string
	client   *http.Client
}

// CalendarOption configures HTTPCalendar.
type CalendarOption func(*HTTPCalendar)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) CalendarOption {
	return func(c *HTTPCalendar) {
		c.client.Timeout = d
	}
}

// WithExchange sets the exchange whose timings are returned.
func WithExchange(exchange string) CalendarOption {
	return func(c *HTTPCalendar) {
		c.exchange = exchange
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) CalendarOption {
	return func(c *HTTPCalendar) {
		c.client = client
	}
}

// NewHTTPCalendar creates a calendar client for the given timings endpoint.
func NewHTTPCalendar(baseURL string, opts ...CalendarOption) *HTTPCalendar {
	c := &HTTPCalendar{
		baseURL:  baseURL,
		exchange: DefaultExchange,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Calendar = (*HTTPCalendar)(nil)

// timingsResponse is the raw endpoint response.
type timingsResponse struct {
	Data []exchangeTimings `json:"data"`
}

type exchangeTimings struct {
	Exchange  string `json:"exchange"`
	StartTime int64  `json:"start_time"` // epoch millis
	EndTime   int64  `json:"end_time"`   // epoch millis
}

// SessionWindow fetches the session window for the date. Holidays and dates
// without a published window for the configured exchange return nil. One
// request, no retries: the caller polls once per day and treats a failed
// lookup like a closed market.
func (c *HTTPCalendar) SessionWindow(ctx context.Context, day time.Time) (*Timings, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, domain.FormatDay(day))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

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

	var payload timingsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	for _, ex := range payload.Data {
		if ex.Exchange != c.exchange {
			continue
		}
		if ex.StartTime == 0 || ex.EndTime == 0 {
			continue
		}
		return &Timings{
			Open:  time.UnixMilli(ex.StartTime),
			Close: time.UnixMilli(ex.EndTime),
		}, nil
	}

	return nil, nil
}
