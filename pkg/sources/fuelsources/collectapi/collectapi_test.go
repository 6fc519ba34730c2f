package collectapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fueldash/fuelpriced/pkg/fuel"
	"github.com/fueldash/fuelpriced/pkg/sources/fuelsources"
)

func TestFetchPrices_ParsesStatePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("state"); got != "TX" {
			t.Errorf("unexpected state param: %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "apikey test-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		w.Write([]byte(`{"success":true,"result":{"state":"TX","regular":"$3.09","midGrade":"3.45","premium":"$3.79","diesel":"3.65"}}`))
	}))
	defer srv.Close()

	s := &Source{BaseURL: srv.URL, APIKey: "test-key", Client: srv.Client()}
	q, err := s.FetchPrices(context.Background(), fuelsources.Region{Key: "tx-hou", State: "TX"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Prices[fuel.Regular] != 3.09 {
		t.Errorf("unexpected regular price: %v", q.Prices[fuel.Regular])
	}
	if q.Prices[fuel.Diesel] != 3.65 {
		t.Errorf("unexpected diesel price: %v", q.Prices[fuel.Diesel])
	}
	if q.FetchedAt.IsZero() {
		t.Errorf("expected FetchedAt to be set")
	}
}

func TestFetchPrices_UpstreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := &Source{BaseURL: srv.URL, APIKey: "test-key", Client: srv.Client()}
	if _, err := s.FetchPrices(context.Background(), fuelsources.Region{Key: "tx-hou", State: "TX"}); err == nil {
		t.Fatalf("expected error on 502")
	}
}

func TestFetchPrices_IncompleteTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"result":{"state":"TX","regular":"3.09"}}`))
	}))
	defer srv.Close()

	s := &Source{BaseURL: srv.URL, APIKey: "test-key", Client: srv.Client()}
	if _, err := s.FetchPrices(context.Background(), fuelsources.Region{Key: "tx-hou", State: "TX"}); err == nil {
		t.Fatalf("expected error for incomplete price table")
	}
}

func TestFetchPrices_MissingState(t *testing.T) {
	s := &Source{APIKey: "test-key"}
	if _, err := s.FetchPrices(context.Background(), fuelsources.Region{Key: "nowhere"}); err == nil {
		t.Fatalf("expected error for missing state code")
	}
}

func TestFetchPrices_MissingAPIKey(t *testing.T) {
	t.Setenv("FUELPRICED_COLLECTAPI_KEY", "")
	s := &Source{}
	if _, err := s.FetchPrices(context.Background(), fuelsources.Region{Key: "tx-hou", State: "TX"}); err == nil {
		t.Fatalf("expected error for missing API key")
	}
}
