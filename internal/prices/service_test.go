package prices

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fueldash/fuelpriced/internal/breaker"
	"github.com/fueldash/fuelpriced/internal/storage"
	"github.com/fueldash/fuelpriced/pkg/fuel"
	"github.com/fueldash/fuelpriced/pkg/sources"
	"github.com/fueldash/fuelpriced/pkg/sources/fuelsources"
)

type fakeSource struct {
	mu     sync.Mutex
	calls  int
	err    error
	prices fuel.PriceTable
}

func (f *fakeSource) Key() string              { return "fake" }
func (f *fakeSource) Name() string             { return "Fake Source" }
func (f *fakeSource) Type() sources.SourceType { return sources.SourceTypeStub }
func (f *fakeSource) LandingURL() string       { return "https://example.com" }

func (f *fakeSource) FetchPrices(ctx context.Context, region fuelsources.Region) (*fuelsources.PriceQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	prices := f.prices
	if prices == nil {
		prices = fuel.PriceTable{
			fuel.Regular:  2.99,
			fuel.Midgrade: 3.29,
			fuel.Premium:  3.59,
			fuel.Diesel:   3.49,
		}
	}
	return &fuelsources.PriceQuote{
		Source:    f.Key(),
		FetchedAt: time.Now(),
		Prices:    prices,
	}, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func newTestService(t *testing.T, cfg Config, store storage.Storage, src *fakeSource) *Service {
	t.Helper()
	s := NewServiceWithStorage(cfg, store)
	s.lookup = func(key string) (fuelsources.FuelSource, bool) {
		return src, true
	}
	return s
}

func TestGetPricesUnknownRegion(t *testing.T) {
	s := newTestService(t, Config{}, nil, &fakeSource{})
	if _, err := s.GetPrices(context.Background(), "nowhere", false); !errors.Is(err, ErrUnknownRegion) {
		t.Fatalf("expected ErrUnknownRegion, got %v", err)
	}
}

func TestGetPricesUnregisteredSource(t *testing.T) {
	s := newTestService(t, Config{}, nil, &fakeSource{})
	s.lookup = func(key string) (fuelsources.FuelSource, bool) {
		return nil, false
	}
	if _, err := s.GetPrices(context.Background(), "us-nat", false); !errors.Is(err, sources.ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
}

func TestGetPricesLiveFetch(t *testing.T) {
	src := &fakeSource{}
	s := newTestService(t, Config{}, storage.NewMemory(), src)

	resp, err := s.GetPrices(context.Background(), "us-nat", false)
	if err != nil {
		t.Fatalf("GetPrices failed: %v", err)
	}
	if resp.Fallback != FallbackNone {
		t.Errorf("expected live response, got fallback %q", resp.Fallback)
	}
	if resp.Prices[fuel.Regular] != 2.99 {
		t.Errorf("expected regular 2.99, got %v", resp.Prices[fuel.Regular])
	}
	if src.callCount() != 1 {
		t.Errorf("expected 1 upstream call, got %d", src.callCount())
	}
}

func TestGetPricesServesFreshSnapshot(t *testing.T) {
	src := &fakeSource{}
	s := newTestService(t, Config{CacheTTL: time.Hour}, storage.NewMemory(), src)

	if _, err := s.GetPrices(context.Background(), "us-nat", false); err != nil {
		t.Fatalf("seed fetch failed: %v", err)
	}
	resp, err := s.GetPrices(context.Background(), "us-nat", false)
	if err != nil {
		t.Fatalf("cached read failed: %v", err)
	}
	if resp.Fallback != FallbackNone {
		t.Errorf("fresh snapshot should not be marked as fallback, got %q", resp.Fallback)
	}
	if src.callCount() != 1 {
		t.Errorf("expected snapshot to absorb second read, got %d upstream calls", src.callCount())
	}
}

func TestGetPricesForceRefreshBypassesSnapshot(t *testing.T) {
	src := &fakeSource{}
	s := newTestService(t, Config{CacheTTL: time.Hour}, storage.NewMemory(), src)

	if _, err := s.GetPrices(context.Background(), "us-nat", false); err != nil {
		t.Fatalf("seed fetch failed: %v", err)
	}
	if _, err := s.GetPrices(context.Background(), "us-nat", true); err != nil {
		t.Fatalf("forced refresh failed: %v", err)
	}
	if src.callCount() != 2 {
		t.Errorf("expected forceRefresh to hit upstream, got %d calls", src.callCount())
	}
}

func TestGetPricesExpiredSnapshotRefetches(t *testing.T) {
	src := &fakeSource{}
	store := storage.NewMemory()
	s := newTestService(t, Config{CacheTTL: time.Hour}, store, src)

	if _, err := s.GetPrices(context.Background(), "us-nat", false); err != nil {
		t.Fatalf("seed fetch failed: %v", err)
	}
	// Pretend the snapshot is ancient.
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, err := s.GetPrices(context.Background(), "us-nat", false); err != nil {
		t.Fatalf("refetch failed: %v", err)
	}
	if src.callCount() != 2 {
		t.Errorf("expected expired snapshot to trigger refetch, got %d calls", src.callCount())
	}
}

func TestGetPricesFallsBackToStaleSnapshot(t *testing.T) {
	src := &fakeSource{}
	s := newTestService(t, Config{CacheTTL: time.Nanosecond}, storage.NewMemory(), src)

	if _, err := s.GetPrices(context.Background(), "us-nat", false); err != nil {
		t.Fatalf("seed fetch failed: %v", err)
	}
	src.setErr(sources.ErrUnavailable)

	resp, err := s.GetPrices(context.Background(), "us-nat", false)
	if err != nil {
		t.Fatalf("expected degraded response, got error: %v", err)
	}
	if resp.Fallback != FallbackStaleCache {
		t.Errorf("expected stale_cache fallback, got %q", resp.Fallback)
	}
	if resp.Prices[fuel.Regular] != 2.99 {
		t.Errorf("stale snapshot should carry the last good prices, got %v", resp.Prices[fuel.Regular])
	}
}

func TestGetPricesFallsBackToDefaults(t *testing.T) {
	src := &fakeSource{err: sources.ErrUnavailable}
	s := newTestService(t, Config{}, storage.NewMemory(), src)

	resp, err := s.GetPrices(context.Background(), "us-nat", false)
	if err != nil {
		t.Fatalf("expected default response, got error: %v", err)
	}
	if resp.Fallback != FallbackDefaults {
		t.Errorf("expected defaults fallback, got %q", resp.Fallback)
	}
	want := DefaultPrices()
	for _, ft := range fuel.Types() {
		if resp.Prices[ft] != want[ft] {
			t.Errorf("default %s: got %v, want %v", ft, resp.Prices[ft], want[ft])
		}
	}
}

func TestGetPricesNoStorage(t *testing.T) {
	src := &fakeSource{err: sources.ErrUnavailable}
	s := newTestService(t, Config{}, nil, src)

	resp, err := s.GetPrices(context.Background(), "us-nat", false)
	if err != nil {
		t.Fatalf("expected default response, got error: %v", err)
	}
	if resp.Fallback != FallbackDefaults {
		t.Errorf("expected defaults fallback without storage, got %q", resp.Fallback)
	}
}

func TestBreakerOpensAndShortCircuits(t *testing.T) {
	src := &fakeSource{err: sources.ErrUnavailable}
	s := newTestService(t, Config{BreakerThreshold: 3, BreakerResetTimeout: time.Minute}, storage.NewMemory(), src)

	for i := 0; i < 5; i++ {
		if _, err := s.GetPrices(context.Background(), "us-nat", false); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if got := src.callCount(); got != 3 {
		t.Errorf("expected 3 upstream attempts before short-circuit, got %d", got)
	}
	states := s.BreakerStates()
	if states["us-nat"] != breaker.StateOpen {
		t.Errorf("expected open breaker for us-nat, got %v", states["us-nat"])
	}
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []string
	fired  chan struct{}
}

func (f *fakeAlerter) SendBreakerAlert(ctx context.Context, region string, failures int) error {
	f.mu.Lock()
	f.alerts = append(f.alerts, region)
	f.mu.Unlock()
	select {
	case f.fired <- struct{}{}:
	default:
	}
	return nil
}

func TestBreakerOpenSendsAlert(t *testing.T) {
	src := &fakeSource{err: sources.ErrUnavailable}
	s := newTestService(t, Config{BreakerThreshold: 2, BreakerResetTimeout: time.Minute}, storage.NewMemory(), src)
	al := &fakeAlerter{fired: make(chan struct{}, 1)}
	s.SetBreakerAlerter(al)

	for i := 0; i < 2; i++ {
		if _, err := s.GetPrices(context.Background(), "us-nat", true); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}

	// The alert is sent from a goroutine after the breaker opens.
	select {
	case <-al.fired:
	case <-time.After(time.Second):
		t.Fatal("no breaker alert sent after the breaker opened")
	}
	al.mu.Lock()
	defer al.mu.Unlock()
	if len(al.alerts) != 1 || al.alerts[0] != "us-nat" {
		t.Errorf("unexpected alerts: %v", al.alerts)
	}
}

func TestBreakerProbeRecovers(t *testing.T) {
	src := &fakeSource{err: sources.ErrUnavailable}
	s := newTestService(t, Config{BreakerThreshold: 2, BreakerResetTimeout: 20 * time.Millisecond}, storage.NewMemory(), src)

	for i := 0; i < 2; i++ {
		if _, err := s.GetPrices(context.Background(), "us-nat", true); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if s.BreakerStates()["us-nat"] != breaker.StateOpen {
		t.Fatalf("breaker should be open after %d failures", 2)
	}

	src.setErr(nil)
	time.Sleep(30 * time.Millisecond)

	resp, err := s.GetPrices(context.Background(), "us-nat", true)
	if err != nil {
		t.Fatalf("probe request failed: %v", err)
	}
	if resp.Fallback != FallbackNone {
		t.Errorf("successful probe should serve live prices, got fallback %q", resp.Fallback)
	}
	if s.BreakerStates()["us-nat"] != breaker.StateClosed {
		t.Errorf("breaker should close after successful probe, got %v", s.BreakerStates()["us-nat"])
	}
}

func TestServicesHaveIndependentBreakers(t *testing.T) {
	src := &fakeSource{err: sources.ErrUnavailable}
	a := newTestService(t, Config{BreakerThreshold: 1, BreakerResetTimeout: time.Minute}, nil, src)
	b := newTestService(t, Config{BreakerThreshold: 1, BreakerResetTimeout: time.Minute}, nil, src)

	if _, err := a.GetPrices(context.Background(), "us-nat", false); err != nil {
		t.Fatalf("GetPrices failed: %v", err)
	}
	if a.BreakerStates()["us-nat"] != breaker.StateOpen {
		t.Fatalf("first service's breaker should be open")
	}
	if state, ok := b.BreakerStates()["us-nat"]; ok && state != breaker.StateClosed {
		t.Errorf("second service's breaker should be unaffected, got %v", state)
	}
}

func TestRefreshSurfacesFetchError(t *testing.T) {
	src := &fakeSource{err: sources.ErrUnavailable}
	s := newTestService(t, Config{}, storage.NewMemory(), src)

	if _, err := s.Refresh(context.Background(), "us-nat"); !errors.Is(err, sources.ErrUnavailable) {
		t.Fatalf("expected upstream error from Refresh, got %v", err)
	}
}

func TestRefreshPersistsSnapshot(t *testing.T) {
	src := &fakeSource{}
	store := storage.NewMemory()
	s := newTestService(t, Config{}, store, src)

	if _, err := s.Refresh(context.Background(), "us-nat"); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	snap, err := store.GetPriceSnapshot(context.Background(), "us-nat")
	if err != nil {
		t.Fatalf("GetPriceSnapshot failed: %v", err)
	}
	if snap == nil {
		t.Fatal("expected a persisted snapshot after Refresh")
	}
}
