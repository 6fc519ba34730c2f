package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fueldash/fuelpriced/internal/alerting"
	"github.com/fueldash/fuelpriced/internal/api/swagger"
	"github.com/fueldash/fuelpriced/internal/auth"
	"github.com/fueldash/fuelpriced/internal/config"
	"github.com/fueldash/fuelpriced/internal/metrics"
	"github.com/fueldash/fuelpriced/internal/migrate"
	"github.com/fueldash/fuelpriced/internal/notification"
	"github.com/fueldash/fuelpriced/internal/prices"
	"github.com/fueldash/fuelpriced/internal/storage"
	"github.com/fueldash/fuelpriced/internal/ui"
)

// NewMux constructs the HTTP mux, wiring in the price service, metrics, auth,
// and health endpoints based on the environment.
func NewMux() *http.ServeMux {
	cfg := config.FromEnv()
	ctx := context.Background()

	// Optional auto-migration: run `goose up` on startup when enabled.
	if cfg.AutoMigrate && cfg.DBDriver != "memory" {
		if err := migrate.Up(ctx, cfg.DBDriver, cfg.DBDSN); err != nil {
			log.Printf("auto-migration failed: %v", err)
		}
	}

	// Preload configured regions so every backend knows the region set
	// without consulting the price service.
	var regionRows []storage.Region
	for _, rd := range prices.Regions() {
		regionRows = append(regionRows, rd.ToStorage())
	}

	st, err := storage.Open(ctx, storage.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN, Regions: regionRows})
	if err != nil {
		log.Printf("storage.Open failed (driver=%s dsn=%s): %v; falling back to cache-less mode", cfg.DBDriver, cfg.DBDSN, err)
		st = nil
	} else if cfg.DBDriver != "memory" {
		for _, r := range regionRows {
			if err := st.UpsertRegion(ctx, r); err != nil {
				log.Printf("seed region %s: %v", r.Key, err)
				break
			}
		}
	}

	pcfg := prices.Config{
		CacheTTL:            cfg.CacheTTL,
		BreakerThreshold:    cfg.BreakerThreshold,
		BreakerResetTimeout: cfg.BreakerResetTimeout,
	}
	var svc *prices.Service
	if st != nil {
		log.Printf("price service using storage backend driver=%s", cfg.DBDriver)
		svc = prices.NewServiceWithStorage(pcfg, st)
	} else {
		svc = prices.NewService(pcfg)
	}
	if acfg := alerting.DefaultAlertConfig(); acfg.Enabled {
		svc.SetBreakerAlerter(alerting.NewAlerter(acfg))
	}

	var authSvc *auth.Service
	var notifSvc *notification.Service
	if st != nil {
		authSvc, err = auth.NewService(st)
		if err != nil {
			log.Printf("auth service unavailable: %v", err)
			authSvc = nil
		}
		notifSvc = notification.NewService(st)
	}

	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if err := st.Ping(r.Context()); err != nil {
			log.Printf("readyz: db ping failed: %v", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})

	// Public prices endpoint.
	mux.HandleFunc("/prices/", handlePrices(svc))

	// Internal refresh endpoint for CronJobs / manual refresh.
	RegisterRefreshHandler(mux, svc)

	// Authenticated v2 API.
	RegisterV2Routes(mux, svc, st, authSvc)
	if authSvc != nil && notifSvc != nil {
		registerNotificationRoutes(mux, authSvc, notifSvc)
	}

	// API documentation.
	mux.Handle("/swagger/", http.StripPrefix("/swagger", swagger.Handler()))

	// Web UI
	mux.Handle("/ui/", http.StripPrefix("/ui/", ui.Handler()))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/ui/", http.StatusFound)
	})

	return mux
}

// handlePrices serves /prices/{region}. The refresh query parameter forces a
// live fetch past the cached snapshot.
func handlePrices(svc *prices.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		path := strings.TrimPrefix(r.URL.Path, "/")
		parts := strings.Split(path, "/")
		if len(parts) != 2 || parts[0] != "prices" || parts[1] == "" {
			metrics.RequestErrorsTotal.WithLabelValues("unknown", r.URL.Path, "404").Inc()
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		regionKey := strings.ToLower(parts[1])
		labelsPath := "/prices"
		forceRefresh := parseBoolQuery(r.URL.Query().Get("refresh"))

		defer func() {
			dur := time.Since(start).Seconds()
			metrics.RequestDurationSeconds.WithLabelValues(regionKey, labelsPath).Observe(dur)
		}()

		metrics.RequestsTotal.WithLabelValues(regionKey).Inc()

		resp, err := svc.GetPrices(r.Context(), regionKey, forceRefresh)
		if err != nil {
			if errors.Is(err, prices.ErrUnknownRegion) {
				metrics.RequestErrorsTotal.WithLabelValues(regionKey, labelsPath, "404").Inc()
				http.NotFound(w, r)
				return
			}
			log.Printf("get prices for %s failed: %v", regionKey, err)
			metrics.RequestErrorsTotal.WithLabelValues(regionKey, labelsPath, "500").Inc()
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Printf("encode response failed: %v", err)
			metrics.RequestErrorsTotal.WithLabelValues(regionKey, labelsPath, "500").Inc()
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
}

func parseBoolQuery(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}
