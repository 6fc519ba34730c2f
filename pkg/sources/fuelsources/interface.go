package fuelsources

import (
	"context"
	"time"

	"github.com/fueldash/fuelpriced/pkg/fuel"
	"github.com/fueldash/fuelpriced/pkg/sources"
)

// Region carries the per-region parameters a source needs to fetch prices.
type Region struct {
	// Key is the delivery-region identifier (e.g., "tx-hou").
	Key string
	// State is the two-letter state code the region falls in.
	State string
	// SourceURL optionally overrides the source's default endpoint or
	// bulletin download URL for this region.
	SourceURL string
	// BulletinPath is the local path of the cached price bulletin, for
	// bulletin-type sources.
	BulletinPath string
}

// PriceQuote is one successful price observation for a region.
type PriceQuote struct {
	Source    string          `json:"source"`
	SourceURL string          `json:"source_url"`
	FetchedAt time.Time       `json:"fetched_at"`
	Prices    fuel.PriceTable `json:"prices"`
}

// FuelSource is the interface that all fuel-price sources must implement.
type FuelSource interface {
	sources.Source

	// FetchPrices retrieves the current per-gallon prices for a region.
	FetchPrices(ctx context.Context, region Region) (*PriceQuote, error)
}
