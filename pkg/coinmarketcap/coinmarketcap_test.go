package coinmarketcap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQuotes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cryptocurrency/quotes/latest" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("X-CMC_PRO_API_KEY") != "test-key" {
			t.Errorf("api key header missing")
		}
		if got := r.URL.Query().Get("symbol"); got != "BTC,ETH" {
			t.Errorf("symbol param = %q", got)
		}
		w.Write([]byte(`{"data":{"BTC":{"quote":{"USD":{"price":64000.5}}}}}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, RateLimit: 1000})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	out, err := client.Quotes(context.Background(), "btc", " eth ")
	if err != nil {
		t.Fatalf("Quotes: %v", err)
	}
	if _, ok := out["data"]; !ok {
		t.Fatalf("quote payload lost: %v", out)
	}
}

func TestQuotesRequiresSymbol(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Quotes(context.Background()); err == nil {
		t.Fatal("expected error on empty symbol list")
	}
}

func TestNotConfigured(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Listings(context.Background(), 10); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
