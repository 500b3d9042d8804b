package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPCalendar_SessionWindow(t *testing.T) {
	open := time.Date(2024, 3, 15, 3, 45, 0, 0, time.UTC)
	closeAt := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2024-03-15" {
			t.Errorf("expected path /2024-03-15, got %s", r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("expected Accept application/json, got %s", r.Header.Get("Accept"))
		}

		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"exchange": "BSE", "start_time": open.Add(time.Minute).UnixMilli(), "end_time": closeAt.UnixMilli()},
				{"exchange": "NSE", "start_time": open.UnixMilli(), "end_time": closeAt.UnixMilli()},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	cal := NewHTTPCalendar(server.URL)
	day := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)

	w, err := cal.SessionWindow(context.Background(), day)
	if err != nil {
		t.Fatalf("SessionWindow: %v", err)
	}
	if w == nil {
		t.Fatal("expected a session window, got nil")
	}
	if !w.Open.Equal(open) {
		t.Errorf("expected open %v, got %v", open, w.Open)
	}
	if !w.Close.Equal(closeAt) {
		t.Errorf("expected close %v, got %v", closeAt, w.Close)
	}
}

func TestHTTPCalendar_NoSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}})
	}))
	defer server.Close()

	cal := NewHTTPCalendar(server.URL)

	w, err := cal.SessionWindow(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("SessionWindow: %v", err)
	}
	if w != nil {
		t.Errorf("expected nil for a holiday, got %+v", w)
	}
}

func TestHTTPCalendar_OtherExchangeOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"exchange": "MCX", "start_time": int64(1710475200000), "end_time": int64(1710500000000)},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	cal := NewHTTPCalendar(server.URL)

	w, err := cal.SessionWindow(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("SessionWindow: %v", err)
	}
	if w != nil {
		t.Errorf("expected nil without an NSE entry, got %+v", w)
	}
}

func TestHTTPCalendar_ZeroedTimings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"exchange": "NSE", "start_time": int64(0), "end_time": int64(0)},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	cal := NewHTTPCalendar(server.URL)

	w, err := cal.SessionWindow(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("SessionWindow: %v", err)
	}
	if w != nil {
		t.Errorf("expected nil for zeroed timings, got %+v", w)
	}
}

func TestHTTPCalendar_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cal := NewHTTPCalendar(server.URL)

	if _, err := cal.SessionWindow(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestHTTPCalendar_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	cal := NewHTTPCalendar(server.URL)

	if _, err := cal.SessionWindow(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestHTTPCalendar_CustomExchange(t *testing.T) {
	open := time.Date(2024, 3, 15, 4, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"exchange": "BSE", "start_time": open.UnixMilli(), "end_time": open.Add(6 * time.Hour).UnixMilli()},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	cal := NewHTTPCalendar(server.URL, WithExchange("BSE"))

	w, err := cal.SessionWindow(context.Background(), time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("SessionWindow: %v", err)
	}
	if w == nil {
		t.Fatal("expected a session window, got nil")
	}
	if !w.Open.Equal(open) {
		t.Errorf("expected open %v, got %v", open, w.Open)
	}
}

func TestSimulatedCalendar(t *testing.T) {
	before := time.Now()
	cal := NewSimulatedCalendar(time.Minute, 6*time.Hour)

	w, err := cal.SessionWindow(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("SessionWindow: %v", err)
	}
	if w == nil {
		t.Fatal("expected a window for today, got nil")
	}
	if w.Open.Before(before.Add(time.Minute)) {
		t.Errorf("open %v should be at least a minute after %v", w.Open, before)
	}
	if got := w.Close.Sub(w.Open); got != 6*time.Hour {
		t.Errorf("expected 6h session, got %v", got)
	}

	other, err := cal.SessionWindow(context.Background(), time.Now().AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("SessionWindow: %v", err)
	}
	if other != nil {
		t.Errorf("expected nil for another day, got %+v", other)
	}
}

func TestTimings_Contains(t *testing.T) {
	open := time.Date(2024, 3, 15, 9, 15, 0, 0, time.UTC)
	w := Timings{Open: open, Close: open.Add(6 * time.Hour)}

	if w.Contains(open.Add(-time.Second)) {
		t.Error("before open should be outside")
	}
	if !w.Contains(open) {
		t.Error("open boundary should be inside")
	}
	if !w.Contains(open.Add(3 * time.Hour)) {
		t.Error("mid session should be inside")
	}
	if w.Contains(w.Close) {
		t.Error("close boundary should be outside")
	}
}
