package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/indexlab/hedging-engine/internal/model"
)

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func TestRestAdapterApply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/orders/BTCUSD" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "k1" {
			t.Errorf("missing api key header")
		}
		var orders []model.LimitOrder
		if err := json.NewDecoder(r.Body).Decode(&orders); err != nil {
			t.Fatalf("decode orders: %v", err)
		}
		reports := make([]OrderReport, len(orders))
		for i, o := range orders {
			reports[i] = OrderReport{
				OrderID:        o.ID,
				Status:         OrderExecuted,
				ExecutedPrice:  o.Price,
				ExecutedVolume: o.Volume,
			}
		}
		json.NewEncoder(w).Encode(reports)
	}))
	defer srv.Close()

	a := NewRestAdapter("test-venue", srv.URL, "k1", slog.Default())
	reports, err := a.Apply(context.Background(), "BTCUSD", []model.LimitOrder{
		{ID: "o1", Type: model.LimitOrderSell, Price: d("100.5"), Volume: d("2")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 1 || reports[0].Status != OrderExecuted {
		t.Fatalf("unexpected reports: %+v", reports)
	}
	if !reports[0].ExecutedPrice.Equal(d("100.5")) {
		t.Errorf("executed price = %s", reports[0].ExecutedPrice)
	}
}

func TestRestAdapterRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"reason": "pair halted"})
	}))
	defer srv.Close()

	a := NewRestAdapter("test-venue", srv.URL, "", slog.Default())
	_, err := a.Apply(context.Background(), "BTCUSD", nil)

	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rejected.Reason != "pair halted" {
		t.Errorf("reason = %q", rejected.Reason)
	}
}

func TestRestAdapterNotReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewRestAdapter("test-venue", srv.URL, "", slog.Default())
	if err := a.Cancel(context.Background(), "BTCUSD"); !errors.Is(err, ErrNotReachable) {
		t.Fatalf("expected ErrNotReachable, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	a := NewRestAdapter("venue-a", "http://localhost:0", "", slog.Default())
	r := NewRegistry(a)

	got, err := r.Get("venue-a")
	if err != nil || got.Name() != "venue-a" {
		t.Fatalf("Get(venue-a) = %v, %v", got, err)
	}
	if _, err := r.Get("venue-b"); err == nil {
		t.Error("expected error for unknown venue")
	}
}
