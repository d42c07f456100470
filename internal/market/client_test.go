package market_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nitin-nirvajna/crypto-mockfolio/internal/config"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/market"
	"github.com/nitin-nirvajna/crypto-mockfolio/lib/errs"
	"github.com/shopspring/decimal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *market.Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return market.NewClient(config.MarketConfig{
		BaseURL:    server.URL,
		VsCurrency: "usd",
		PerPage:    10,
		Timeout:    time.Second,
	}, testLogger())
}

func TestFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes_market_listing", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("vs_currency"); got != "usd" {
				t.Errorf("Expected vs_currency usd, got %q", got)
			}
			if got := r.URL.Query().Get("per_page"); got != "10" {
				t.Errorf("Expected per_page 10, got %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[
				{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":65000.5,"price_change_percentage_24h":-1.2},
				{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3500,"price_change_percentage_24h":0.8}
			]`))
		})

		snap, err := client.Fetch(ctx)
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if len(snap.Quotes) != 2 {
			t.Fatalf("Expected 2 quotes, got %d", len(snap.Quotes))
		}

		btc := snap.Lookup("bitcoin")
		if btc == nil {
			t.Fatal("Expected bitcoin in the snapshot")
		}
		if !btc.CurrentPrice.Equal(decimal.RequireFromString("65000.5")) {
			t.Errorf("Expected price 65000.5, got %s", btc.CurrentPrice)
		}
	})

	t.Run("tolerates_null_and_missing_fields", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[
				{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":null},
				{"symbol":"???","name":"No ID"},
				{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3500}
			]`))
		})

		snap, err := client.Fetch(ctx)
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if len(snap.Quotes) != 2 {
			t.Fatalf("Expected the entry without an id to be skipped, got %d quotes", len(snap.Quotes))
		}

		btc := snap.Lookup("bitcoin")
		if !btc.CurrentPrice.IsZero() {
			t.Errorf("Expected a null price to decode as zero, got %s", btc.CurrentPrice)
		}
	})

	t.Run("upstream_error_status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})

		if _, err := client.Fetch(ctx); !errors.Is(err, errs.ErrMarketDataUnavailable) {
			t.Errorf("Expected ErrMarketDataUnavailable, got %v", err)
		}
	})

	t.Run("malformed_payload", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"not":"a list"}`))
		})

		if _, err := client.Fetch(ctx); !errors.Is(err, errs.ErrMarketDataUnavailable) {
			t.Errorf("Expected ErrMarketDataUnavailable, got %v", err)
		}
	})

	t.Run("unreachable_upstream", func(t *testing.T) {
		client := market.NewClient(config.MarketConfig{
			BaseURL: "http://127.0.0.1:0",
			Timeout: time.Second,
		}, testLogger())

		if _, err := client.Fetch(ctx); !errors.Is(err, errs.ErrMarketDataUnavailable) {
			t.Errorf("Expected ErrMarketDataUnavailable, got %v", err)
		}
	})
}
