package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"options-position-lab/internal/domain"
)

const fullFeedBody = `{
	"success": true,
	"payload": {
		"position_snapshot_data": {
			"created_at": "2024-03-15T09:30:15.123456789+05:30",
			"total_profit": 1245.5,
			"data": [
				{
					"trading_symbol": "NIFTY",
					"underlying_price": 22415.35,
					"trades": [
						{
							"trading_symbol": "NIFTY2432822500CE",
							"instrument_info": {"instrument_type": "CALL", "strike": 22500, "expiry": "2024-03-28"},
							"quantity": 50,
							"average_price": 102.5,
							"last_price": 110.25,
							"unbooked_pnl": 387.5,
							"booked_profit_loss": 120.0
						},
						{
							"trading_symbol": "NIFTY2432822300PE",
							"instrument_info": {"instrument_type": "PUT", "strike": 22300, "expiry": "2024-03-28"},
							"quantity": -50,
							"average_price": 85.0,
							"last_price": 78.5,
							"unbooked_pnl": 325.0,
							"booked_profit_loss": 0
						}
					]
				},
				{
					"trading_symbol": "BANKNIFTY",
					"underlying_price": 47210.8,
					"trades": [
						{
							"trading_symbol": "BANKNIFTY2432747500CE",
							"instrument_info": {"instrument_type": "CALL", "strike": 47500, "expiry": "2024-03-27"},
							"quantity": 15,
							"average_price": 210.0,
							"last_price": 236.2,
							"unbooked_pnl": 393.0,
							"booked_profit_loss": 20.0
						}
					]
				}
			]
		}
	}
}`

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/json, text/plain, */*" {
			t.Errorf("unexpected Accept header: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fullFeedBody))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	snap, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap == nil {
		t.Fatal("expected snapshot, got nil")
	}

	want := time.Date(2024, 3, 15, 9, 30, 15, 123456789, time.FixedZone("", 5*3600+1800))
	if !snap.Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, snap.Timestamp)
	}
	if snap.TotalPnL != 1245.5 {
		t.Errorf("expected total pnl 1245.5, got %v", snap.TotalPnL)
	}
	if len(snap.Positions) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(snap.Positions))
	}

	first := snap.Positions[0]
	if first.Instrument.Symbol != "NIFTY2432822500CE" {
		t.Errorf("unexpected symbol: %s", first.Instrument.Symbol)
	}
	if first.Instrument.Type != domain.OptionTypeCall {
		t.Errorf("expected CALL mapped to CE, got %s", first.Instrument.Type)
	}
	if first.Instrument.UnderlyingSymbol != "NIFTY" {
		t.Errorf("unexpected underlying: %s", first.Instrument.UnderlyingSymbol)
	}
	if first.Instrument.Strike != 22500 {
		t.Errorf("expected strike 22500, got %v", first.Instrument.Strike)
	}
	if first.UnderlyingPrice != 22415.35 {
		t.Errorf("expected group spot stamped on position, got %v", first.UnderlyingPrice)
	}
	if first.InstrumentID != 0 {
		t.Errorf("instrument id should be unresolved, got %d", first.InstrumentID)
	}

	second := snap.Positions[1]
	if second.Instrument.Type != domain.OptionTypePut {
		t.Errorf("expected PUT mapped to PE, got %s", second.Instrument.Type)
	}
	if second.Quantity != -50 {
		t.Errorf("expected short quantity -50, got %d", second.Quantity)
	}

	third := snap.Positions[2]
	if third.Instrument.UnderlyingSymbol != "BANKNIFTY" {
		t.Errorf("unexpected underlying: %s", third.Instrument.UnderlyingSymbol)
	}
	if third.UnderlyingPrice != 47210.8 {
		t.Errorf("expected second group spot, got %v", third.UnderlyingPrice)
	}
}

func TestClient_Fetch_EmptyBook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "payload": {"position_snapshot_data": {"created_at": "2024-03-15T09:30:00+05:30", "total_profit": 0, "data": []}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	snap, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil for empty book, got %+v", snap)
	}
}

func TestClient_Fetch_MissingSnapshotData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "payload": {}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	snap, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil for missing snapshot data, got %+v", snap)
	}
}

func TestClient_Fetch_GroupWithoutTrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "payload": {"position_snapshot_data": {"created_at": "2024-03-15T12:00:00+05:30", "total_profit": 812.5, "data": [{"trading_symbol": "NIFTY", "underlying_price": 22400, "trades": []}]}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	snap, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap == nil {
		t.Fatal("expected positionless snapshot, got nil")
	}
	if len(snap.Positions) != 0 {
		t.Errorf("expected 0 positions, got %d", len(snap.Positions))
	}
	if snap.TotalPnL != 812.5 {
		t.Errorf("expected total pnl carried, got %v", snap.TotalPnL)
	}
}

func TestClient_Fetch_FeedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	if _, err := client.Fetch(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestClient_Fetch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	if _, err := client.Fetch(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestClient_Fetch_NaiveTimestamp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "payload": {"position_snapshot_data": {"created_at": "2024-03-15 09:45:30", "total_profit": 5, "data": [{"trading_symbol": "NIFTY", "underlying_price": 22400, "trades": []}]}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	snap, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap.Timestamp.Hour() != 9 || snap.Timestamp.Minute() != 45 {
		t.Errorf("unexpected parsed timestamp: %v", snap.Timestamp)
	}
}

func TestClient_Fetch_BadTimestamp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "payload": {"position_snapshot_data": {"created_at": "15/03/2024", "total_profit": 5, "data": [{"trading_symbol": "NIFTY", "underlying_price": 22400, "trades": []}]}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	if _, err := client.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for malformed created_at")
	}
}
