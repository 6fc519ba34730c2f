package prices

import (
	"time"

	"github.com/fueldash/fuelpriced/pkg/fuel"
)

// Fallback kinds reported on a PriceResponse when the live fetch failed.
const (
	FallbackNone       = ""
	FallbackStaleCache = "stale_cache"
	FallbackDefaults   = "defaults"
)

// PriceResponse is the JSON document served to clients and persisted as a
// snapshot payload per region.
type PriceResponse struct {
	Region    string          `json:"region"`
	Source    string          `json:"source"`
	SourceURL string          `json:"source_url,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
	Prices    fuel.PriceTable `json:"prices"`

	// Fallback is set when the response was not produced by a live fetch:
	// "stale_cache" for an expired snapshot, "defaults" for the hard-coded
	// table. Empty for live or fresh-cache responses.
	Fallback string `json:"fallback,omitempty"`
}

// Age returns how old the response is relative to now.
func (r *PriceResponse) Age(now time.Time) time.Duration {
	return now.Sub(r.FetchedAt)
}
