package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/broker-stream/internal/retry"
)

var testSession = SessionAuth{
	AuthenticationSession: "auth-sess-1",
	SecurityToken:         "sec-token-1",
	PushSubscriptionID:    "push-sub-1",
}

func TestGetPositions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathPositions {
			t.Errorf("path = %s, want %s", r.URL.Path, PathPositions)
		}
		if got := r.Header.Get(HeaderAuthenticationSession); got != "auth-sess-1" {
			t.Errorf("%s = %q, want %q", HeaderAuthenticationSession, got, "auth-sess-1")
		}
		if got := r.Header.Get(HeaderSecurityToken); got != "sec-token-1" {
			t.Errorf("%s = %q, want %q", HeaderSecurityToken, got, "sec-token-1")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"instrumentPositions": []map[string]any{
				{
					"instrumentType": "stock",
					"positions": []map[string]any{
						{"accountId": "56", "orderbookId": "5479", "volume": 100.0},
					},
				},
			},
			"totalOwnCapital": 125000.5,
		})
	})

	resp, err := c.GetPositions(context.Background(), testSession)
	if err != nil {
		t.Fatalf("GetPositions failed: %v", err)
	}

	if len(resp.InstrumentPositions) != 1 {
		t.Fatalf("got %d instrument groups, want 1", len(resp.InstrumentPositions))
	}
	positions := resp.InstrumentPositions[0].Positions
	if len(positions) != 1 || positions[0].OrderbookID != "5479" {
		t.Errorf("positions = %+v", positions)
	}
	if resp.TotalOwnCapital != 125000.5 {
		t.Errorf("TotalOwnCapital = %v, want 125000.5", resp.TotalOwnCapital)
	}
}

func TestGetTransactions_Query(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_api/account/transactions/56" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("from") != "2026-01-01" || q.Get("to") != "2026-01-31" {
			t.Errorf("date query = %v", q)
		}
		if q.Get("maxRows") != "50" {
			t.Errorf("maxRows = %q, want 50", q.Get("maxRows"))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"transactions": []map[string]any{
				{"id": "t-1", "accountId": "56", "amount": -500.0, "currency": "SEK"},
			},
		})
	})

	resp, err := c.GetTransactions(context.Background(), testSession, "56", TransactionsOptions{
		From:    "2026-01-01",
		To:      "2026-01-31",
		MaxRows: 50,
	})
	if err != nil {
		t.Fatalf("GetTransactions failed: %v", err)
	}

	if len(resp.Transactions) != 1 || resp.Transactions[0].TransactionID != "t-1" {
		t.Errorf("transactions = %+v", resp.Transactions)
	}
}

func TestGetInstrument_Path(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_api/market-guide/stock/5479" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"orderbookId": "5479",
			"name":        "Test Stock",
			"lastPrice":   101.5,
			"tradable":    true,
		})
	})

	resp, err := c.GetInstrument(context.Background(), testSession, InstrumentStock, "5479")
	if err != nil {
		t.Fatalf("GetInstrument failed: %v", err)
	}
	if resp.Name != "Test Stock" || resp.LastPrice != 101.5 {
		t.Errorf("instrument = %+v", resp)
	}
}

func TestGetPositions_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"instrumentPositions": []any{}})
	})

	if _, err := c.GetPositions(context.Background(), testSession); err != nil {
		t.Fatalf("GetPositions failed: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server calls = %d, want 3", calls.Load())
	}
}

func TestGetPositions_NoRetryOnUnauthorized(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "session expired", http.StatusUnauthorized)
	})

	_, err := c.GetPositions(context.Background(), testSession)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, retry.ErrNonRetryableStatus) {
		t.Errorf("error = %v, want ErrNonRetryableStatus", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1", calls.Load())
	}
}

func TestGetPositions_Exhausted(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	start := time.Now()
	_, err := c.GetPositions(context.Background(), testSession)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, retry.ErrExhausted) {
		t.Errorf("error = %v, want ErrExhausted", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("cause not preserved: %v", err)
	}

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("retries took %v, backoff not scaled down", elapsed)
	}
}
