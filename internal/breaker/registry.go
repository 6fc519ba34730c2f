package breaker

import (
	"sync"
	"time"
)

// Registry hands out one breaker per region key so that an outage in one
// region's upstream does not trip fetches for the others.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker

	threshold    int
	resetTimeout time.Duration
	onChange     func(region string, from, to State)
}

// NewRegistry creates a registry whose breakers share the given threshold
// and reset timeout.
func NewRegistry(threshold int, resetTimeout time.Duration) *Registry {
	return &Registry{
		breakers:     make(map[string]*Breaker),
		threshold:    threshold,
		resetTimeout: resetTimeout,
	}
}

// OnStateChange registers a hook invoked with the region key on every
// transition of any breaker created afterwards.
func (r *Registry) OnStateChange(fn func(region string, from, to State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Get returns the breaker for a region, creating it on first use.
func (r *Registry) Get(region string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[region]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check: another goroutine may have created it.
	if b, ok = r.breakers[region]; ok {
		return b
	}

	b = New(r.threshold, r.resetTimeout)
	if r.onChange != nil {
		fn := r.onChange
		key := region
		b.OnStateChange(func(from, to State) { fn(key, from, to) })
	}
	r.breakers[region] = b
	return b
}

// Reset discards all breakers, returning every region to the closed state.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers = make(map[string]*Breaker)
}

// Stats returns the current state of every known breaker keyed by region.
func (r *Registry) Stats() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]State, len(r.breakers))
	for region, b := range r.breakers {
		stats[region] = b.State()
	}
	return stats
}
