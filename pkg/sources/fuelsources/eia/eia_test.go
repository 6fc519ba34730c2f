package eia

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fueldash/fuelpriced/pkg/fuel"
	"github.com/fueldash/fuelpriced/pkg/sources/fuelsources"
)

const samplePayload = `{
  "response": {
    "data": [
      {"period":"2026-08-24","product":"EPMR","value":3.12},
      {"period":"2026-08-24","product":"EPMM","value":3.49},
      {"period":"2026-08-24","product":"EPMP","value":3.82},
      {"period":"2026-08-24","product":"EPD2D","value":3.71},
      {"period":"2026-08-17","product":"EPMR","value":3.18}
    ]
  }
}`

func TestFetchPrices_KeepsNewestPerGrade(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("facets[duoarea][]"); got != "STX" {
			t.Errorf("unexpected duoarea facet: %q", got)
		}
		if got := r.URL.Query().Get("api_key"); got != "test-key" {
			t.Errorf("unexpected api_key: %q", got)
		}
		w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	s := &Source{BaseURL: srv.URL, APIKey: "test-key", Client: srv.Client()}
	q, err := s.FetchPrices(context.Background(), fuelsources.Region{Key: "tx-hou", State: "TX"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The older 3.18 regular observation must not overwrite the newest one.
	if q.Prices[fuel.Regular] != 3.12 {
		t.Errorf("unexpected regular price: %v", q.Prices[fuel.Regular])
	}
	if q.Prices[fuel.Premium] != 3.82 {
		t.Errorf("unexpected premium price: %v", q.Prices[fuel.Premium])
	}
}

func TestFetchPrices_RedactsAPIKeyFromSourceURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("api_key"); got != "super-secret" {
			t.Errorf("request missing api_key: %q", got)
		}
		w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	s := &Source{BaseURL: srv.URL, APIKey: "super-secret", Client: srv.Client()}
	q, err := s.FetchPrices(context.Background(), fuelsources.Region{Key: "fl-mia", State: "FL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// SourceURL is persisted in snapshots and served on public endpoints.
	if strings.Contains(q.SourceURL, "super-secret") || strings.Contains(q.SourceURL, "api_key") {
		t.Errorf("credential leaked into SourceURL: %q", q.SourceURL)
	}
	raw, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("marshal quote: %v", err)
	}
	if strings.Contains(string(raw), "super-secret") {
		t.Errorf("credential leaked into serialized quote: %s", raw)
	}
}

func TestFetchPrices_IncompleteData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"data":[{"period":"2026-08-24","product":"EPMR","value":3.12}]}}`))
	}))
	defer srv.Close()

	s := &Source{BaseURL: srv.URL, APIKey: "test-key", Client: srv.Client()}
	if _, err := s.FetchPrices(context.Background(), fuelsources.Region{Key: "tx-hou", State: "TX"}); err == nil {
		t.Fatalf("expected error for incomplete data")
	}
}

func TestFetchPrices_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := &Source{BaseURL: srv.URL, APIKey: "test-key", Client: srv.Client()}
	if _, err := s.FetchPrices(context.Background(), fuelsources.Region{Key: "tx-hou", State: "TX"}); err == nil {
		t.Fatalf("expected error on 503")
	}
}
