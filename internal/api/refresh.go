package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/fueldash/fuelpriced/internal/prices"
)

// RefreshResponse is the per-region result of a bulk refresh.
type RefreshResponse struct {
	Region string                `json:"region"`
	Status string                `json:"status"`
	Error  string                `json:"error,omitempty"`
	Prices *prices.PriceResponse `json:"prices,omitempty"`
}

// RegisterRefreshHandler wires the internal bulk-refresh endpoint used by
// CronJobs and manual operations. Every configured region is refreshed; the
// response reports each region's outcome.
func RegisterRefreshHandler(mux *http.ServeMux, svc *prices.Service) {
	mux.HandleFunc("/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var results []RefreshResponse
		for _, rd := range prices.Regions() {
			resp, err := svc.Refresh(r.Context(), rd.Key)
			if err != nil {
				log.Printf("refresh region %s failed: %v", rd.Key, err)
				results = append(results, RefreshResponse{
					Region: rd.Key,
					Status: "error",
					Error:  err.Error(),
				})
				continue
			}
			results = append(results, RefreshResponse{
				Region: rd.Key,
				Status: "ok",
				Prices: resp,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(results)
	})
}
