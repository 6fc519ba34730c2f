package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fueldash/fuelpriced/internal/breaker"
	"github.com/fueldash/fuelpriced/internal/metrics"
	"github.com/fueldash/fuelpriced/internal/storage"
	"github.com/fueldash/fuelpriced/pkg/sources"
	"github.com/fueldash/fuelpriced/pkg/sources/fuelsources"
)

// ErrUnknownRegion is returned for region keys outside the configured set.
var ErrUnknownRegion = errors.New("unknown region")

// BreakerAlerter is notified when a region's circuit breaker opens and live
// fetches start short-circuiting. Satisfied by *alerting.Alerter.
type BreakerAlerter interface {
	SendBreakerAlert(ctx context.Context, region string, failures int) error
}

// Config tunes caching and failure handling for a Service.
type Config struct {
	// CacheTTL is how long a persisted snapshot is considered fresh.
	CacheTTL time.Duration
	// BreakerThreshold is the consecutive-failure count that opens a
	// region's circuit breaker.
	BreakerThreshold int
	// BreakerResetTimeout is how long an open breaker waits before
	// allowing a probe request.
	BreakerResetTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 3
	}
	if c.BreakerResetTimeout <= 0 {
		c.BreakerResetTimeout = 30 * time.Second
	}
	return c
}

// Service answers price lookups for configured regions. Each instance owns
// its own breaker registry, so independently constructed services fail and
// recover independently.
type Service struct {
	cfg      Config
	store    storage.Storage
	breakers *breaker.Registry
	alerter  BreakerAlerter

	// test seams
	now    func() time.Time
	lookup func(key string) (fuelsources.FuelSource, bool)
}

// NewService returns a Service with no persistence. Snapshots are neither
// read nor written; failed fetches fall straight through to defaults.
func NewService(cfg Config) *Service {
	return NewServiceWithStorage(cfg, nil)
}

// NewServiceWithStorage returns a Service backed by the given store.
func NewServiceWithStorage(cfg Config, store storage.Storage) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		cfg:      cfg,
		store:    store,
		breakers: breaker.NewRegistry(cfg.BreakerThreshold, cfg.BreakerResetTimeout),
		now:      time.Now,
		lookup:   fuelsources.Get,
	}
	s.breakers.OnStateChange(func(region string, from, to breaker.State) {
		log.Printf("prices: breaker for region %s: %s -> %s", region, from, to)
		metrics.BreakerState.WithLabelValues(region).Set(float64(to))
		if to == breaker.StateOpen && s.alerter != nil {
			// The hook runs under the breaker's lock; send off it.
			a := s.alerter
			go func() {
				if err := a.SendBreakerAlert(context.Background(), region, cfg.BreakerThreshold); err != nil {
					log.Printf("prices: breaker alert for region %s: %v", region, err)
				}
			}()
		}
	})
	return s
}

// SetBreakerAlerter installs an alerter notified on breaker-open
// transitions. Call before serving traffic; nil disables alerts.
func (s *Service) SetBreakerAlerter(a BreakerAlerter) {
	s.alerter = a
}

// BreakerStates reports the current breaker state per region that has seen
// at least one fetch attempt.
func (s *Service) BreakerStates() map[string]breaker.State {
	return s.breakers.Stats()
}

// ResetBreakers closes every breaker and clears failure counts.
func (s *Service) ResetBreakers() {
	s.breakers.Reset()
}

// GetPrices returns the current price table for a region.
//
// Resolution order: a fresh snapshot (unless forceRefresh), then a live
// fetch guarded by the region's circuit breaker, then the most recent
// snapshot of any age, then the hard-coded default table. Only an unknown
// region or source key is an error; upstream failures degrade, they do
// not fail the call.
func (s *Service) GetPrices(ctx context.Context, regionKey string, forceRefresh bool) (*PriceResponse, error) {
	rd, ok := GetRegion(regionKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegion, regionKey)
	}
	src, ok := s.lookup(rd.SourceKey)
	if !ok {
		return nil, fmt.Errorf("region %s: %w: %q", rd.Key, sources.ErrSourceNotFound, rd.SourceKey)
	}

	cached := s.loadSnapshot(ctx, rd.Key)
	if cached != nil && !forceRefresh && cached.Age(s.now()) < s.cfg.CacheTTL {
		metrics.CacheHitsTotal.WithLabelValues(rd.Key).Inc()
		return cached, nil
	}

	quote, err := s.fetch(ctx, src, rd)
	if err == nil {
		resp := &PriceResponse{
			Region:    rd.Key,
			Source:    quote.Source,
			SourceURL: quote.SourceURL,
			FetchedAt: quote.FetchedAt,
			Prices:    quote.Prices,
		}
		s.saveSnapshot(ctx, rd.Key, resp)
		return resp, nil
	}
	log.Printf("prices: live fetch for region %s failed: %v", rd.Key, err)

	if cached != nil {
		metrics.FallbacksTotal.WithLabelValues(rd.Key, FallbackStaleCache).Inc()
		out := *cached
		out.Fallback = FallbackStaleCache
		return &out, nil
	}
	metrics.FallbacksTotal.WithLabelValues(rd.Key, FallbackDefaults).Inc()
	return DefaultResponse(rd.Key, s.now()), nil
}

// Refresh forces a live fetch for a region, persisting the result on
// success. Unlike GetPrices it surfaces the fetch error to the caller.
func (s *Service) Refresh(ctx context.Context, regionKey string) (*PriceResponse, error) {
	rd, ok := GetRegion(regionKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegion, regionKey)
	}
	src, ok := s.lookup(rd.SourceKey)
	if !ok {
		return nil, fmt.Errorf("region %s: %w: %q", rd.Key, sources.ErrSourceNotFound, rd.SourceKey)
	}
	quote, err := s.fetch(ctx, src, rd)
	if err != nil {
		return nil, fmt.Errorf("refresh region %s: %w", rd.Key, err)
	}
	resp := &PriceResponse{
		Region:    rd.Key,
		Source:    quote.Source,
		SourceURL: quote.SourceURL,
		FetchedAt: quote.FetchedAt,
		Prices:    quote.Prices,
	}
	s.saveSnapshot(ctx, rd.Key, resp)
	return resp, nil
}

func (s *Service) fetch(ctx context.Context, src fuelsources.FuelSource, rd RegionDescriptor) (*fuelsources.PriceQuote, error) {
	cb := s.breakers.Get(rd.Key)
	if !cb.Allow() {
		metrics.FetchesTotal.WithLabelValues(rd.SourceKey, "short_circuit").Inc()
		return nil, breaker.ErrOpen
	}
	quote, err := src.FetchPrices(ctx, rd.Source())
	if err != nil {
		cb.RecordFailure()
		metrics.FetchesTotal.WithLabelValues(rd.SourceKey, "error").Inc()
		return nil, err
	}
	cb.RecordSuccess()
	metrics.FetchesTotal.WithLabelValues(rd.SourceKey, "ok").Inc()
	return quote, nil
}

func (s *Service) loadSnapshot(ctx context.Context, region string) *PriceResponse {
	if s.store == nil {
		return nil
	}
	snap, err := s.store.GetPriceSnapshot(ctx, region)
	if err != nil {
		log.Printf("prices: load snapshot for region %s: %v", region, err)
		return nil
	}
	if snap == nil || len(snap.Payload) == 0 {
		return nil
	}
	var resp PriceResponse
	if err := json.Unmarshal(snap.Payload, &resp); err != nil {
		log.Printf("prices: corrupt snapshot for region %s: %v", region, err)
		return nil
	}
	resp.FetchedAt = snap.FetchedAt
	resp.Fallback = FallbackNone
	return &resp
}

func (s *Service) saveSnapshot(ctx context.Context, region string, resp *PriceResponse) {
	if s.store == nil {
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		log.Printf("prices: encode snapshot for region %s: %v", region, err)
		return
	}
	snap := storage.PriceSnapshot{
		Region:    region,
		Payload:   payload,
		FetchedAt: resp.FetchedAt,
	}
	if err := s.store.SavePriceSnapshot(ctx, snap); err != nil {
		log.Printf("prices: persist snapshot for region %s: %v", region, err)
	}
}
