package fuelsources

import (
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]FuelSource)
)

// Register registers a fuel-price source. It is typically called from an
// init() function in each source package.
func Register(s FuelSource) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if s == nil {
		panic("fuelsources: Register source is nil")
	}
	if _, dup := registry[s.Key()]; dup {
		panic("fuelsources: Register called twice for source " + s.Key())
	}
	registry[s.Key()] = s
}

// Get returns a fuel-price source by key.
func Get(key string) (FuelSource, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[key]
	return s, ok
}

// List returns a sorted list of registered source keys.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var keys []string
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetAll returns all registered fuel-price sources.
func GetAll() []FuelSource {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var out []FuelSource
	for _, s := range registry {
		out = append(out, s)
	}
	return out
}
