package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fueldash/fuelpriced/internal/auth"
	"github.com/fueldash/fuelpriced/internal/prices"
	"github.com/fueldash/fuelpriced/internal/storage"
)

// RegionDTO represents a region in the API.
type RegionDTO struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	State     string `json:"state"`
	SourceKey string `json:"source_key"`
}

type V2Handler struct {
	svc     *prices.Service
	st      storage.Storage
	authSvc *auth.Service
}

func RegisterV2Routes(mux *http.ServeMux, svc *prices.Service, st storage.Storage, authSvc *auth.Service) {
	h := &V2Handler{
		svc:     svc,
		st:      st,
		authSvc: authSvc,
	}

	// Wrap with auth middleware when an auth service is configured.
	withAuth := func(handler http.HandlerFunc) http.Handler {
		if authSvc == nil {
			return handler
		}
		return authSvc.Middleware(handler)
	}

	mux.Handle("/api/v2/regions", withAuth(h.ListRegions))
	mux.Handle("/api/v2/fuel-prices/", withAuth(h.HandleFuelPrices))
	mux.Handle("/api/v2/status/breakers", withAuth(h.BreakerStatus))
}

// ListRegions lists all configured regions
// @Summary List regions
// @Description Get a list of all configured delivery regions
// @Tags regions
// @Produce json
// @Success 200 {array} RegionDTO
// @Router /api/v2/regions [get]
func (h *V2Handler) ListRegions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.authSvc != nil {
		if allowed, err := h.authSvc.Enforce(getUserID(r), "regions", "read"); err != nil || !allowed {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	var list []RegionDTO
	for _, rd := range prices.Regions() {
		list = append(list, RegionDTO{
			Key:       rd.Key,
			Name:      rd.Name,
			State:     rd.State,
			SourceKey: rd.SourceKey,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// HandleFuelPrices handles fuel price requests
// @Summary Get fuel prices or force a refresh
// @Description Get current prices or force a live refresh for a region
// @Tags prices
// @Produce json
// @Param regionKey path string true "Region Key"
// @Param action path string true "Action (current, refresh)"
// @Router /api/v2/fuel-prices/{regionKey}/{action} [get]
func (h *V2Handler) HandleFuelPrices(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v2/fuel-prices/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		http.NotFound(w, r)
		return
	}
	regionKey := parts[0]
	endpoint := parts[1]

	switch endpoint {
	case "refresh":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.authSvc != nil {
			if allowed, err := h.authSvc.Enforce(getUserID(r), "prices", "write"); err != nil || !allowed {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}
		resp, err := h.svc.Refresh(r.Context(), regionKey)
		if err != nil {
			if errors.Is(err, prices.ErrUnknownRegion) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)

	case "current":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.authSvc != nil {
			if allowed, err := h.authSvc.Enforce(getUserID(r), "prices", "read"); err != nil || !allowed {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}
		resp, err := h.svc.GetPrices(r.Context(), regionKey, false)
		if err != nil {
			if errors.Is(err, prices.ErrUnknownRegion) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)

	default:
		http.NotFound(w, r)
	}
}

// BreakerStatus reports the circuit breaker state per region
// @Summary Circuit breaker status
// @Description Get current circuit breaker state for every region that has seen a fetch
// @Tags status
// @Produce json
// @Router /api/v2/status/breakers [get]
func (h *V2Handler) BreakerStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	states := h.svc.BreakerStates()
	out := make(map[string]string, len(states))
	for region, state := range states {
		out[region] = state.String()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func getUserID(r *http.Request) string {
	token, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
	if !ok {
		return ""
	}
	return token.UserID
}
