package prices

import (
	"time"

	"github.com/fueldash/fuelpriced/pkg/fuel"
)

// DefaultPrices is the last-resort price table served when no upstream data
// and no snapshot exist for a region. Values track recent national averages
// and are deliberately conservative.
func DefaultPrices() fuel.PriceTable {
	return fuel.PriceTable{
		fuel.Regular:  3.25,
		fuel.Midgrade: 3.65,
		fuel.Premium:  4.00,
		fuel.Diesel:   3.85,
	}
}

// DefaultResponse wraps the default table in a response for the given region.
func DefaultResponse(region string, now time.Time) *PriceResponse {
	return &PriceResponse{
		Region:    region,
		Source:    "defaults",
		FetchedAt: now,
		Prices:    DefaultPrices(),
		Fallback:  FallbackDefaults,
	}
}
