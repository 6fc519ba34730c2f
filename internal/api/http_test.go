package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/fueldash/fuelpriced/internal/prices"
	"github.com/fueldash/fuelpriced/internal/storage"
	_ "github.com/fueldash/fuelpriced/pkg/sources/fuelsources/stub"
)

// Pin the region set to the deterministic stub source so handler tests never
// reach a real upstream.
func TestMain(m *testing.M) {
	os.Setenv("FUELPRICED_REGIONS_JSON", `[{"key":"us-nat","name":"US Nationwide","state":"US","source_key":"stub"}]`)
	os.Exit(m.Run())
}

func newTestMux(t *testing.T) (*http.ServeMux, *prices.Service) {
	t.Helper()
	svc := prices.NewServiceWithStorage(prices.Config{CacheTTL: time.Hour}, storage.NewMemory())
	mux := http.NewServeMux()
	mux.HandleFunc("/prices/", handlePrices(svc))
	RegisterRefreshHandler(mux, svc)
	RegisterV2Routes(mux, svc, nil, nil)
	return mux, svc
}

func TestHandlePrices(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/prices/us-nat", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var resp prices.PriceResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Region != "us-nat" {
		t.Errorf("region: got %s", resp.Region)
	}
	if resp.Fallback != "" {
		t.Errorf("expected live response, got fallback %q", resp.Fallback)
	}
	if len(resp.Prices) != 4 {
		t.Errorf("expected four fuel grades, got %d", len(resp.Prices))
	}
}

func TestHandlePricesUnknownRegion(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/prices/nowhere", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

func TestHandlePricesMethodNotAllowed(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/prices/us-nat", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rec.Code)
	}
}

func TestV2Regions(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/regions", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var regions []RegionDTO
	if err := json.NewDecoder(rec.Body).Decode(&regions); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(regions) != 1 || regions[0].Key != "us-nat" {
		t.Errorf("unexpected regions: %+v", regions)
	}
}

func TestV2CurrentAndRefresh(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/fuel-prices/us-nat/current", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("current: got %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v2/fuel-prices/us-nat/refresh", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: got %d, want 200", rec.Code)
	}

	// Refresh over GET is rejected.
	req = httptest.NewRequest(http.MethodGet, "/api/v2/fuel-prices/us-nat/refresh", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("refresh via GET: got %d, want 405", rec.Code)
	}
}

func TestV2BreakerStatus(t *testing.T) {
	mux, svc := newTestMux(t)

	// Trip a fetch so the breaker registry has an entry.
	if _, err := svc.GetPrices(context.Background(), "us-nat", true); err != nil {
		t.Fatalf("seed fetch failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v2/status/breakers", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var states map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&states); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if states["us-nat"] != "CLOSED" {
		t.Errorf("breaker state: got %q, want CLOSED", states["us-nat"])
	}
}

func TestRefreshAll(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var results []RefreshResponse
	if err := json.NewDecoder(rec.Body).Decode(&results); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(results) != 1 || results[0].Status != "ok" {
		t.Errorf("unexpected results: %+v", results)
	}
}
