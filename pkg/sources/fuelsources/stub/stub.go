// Package stub provides a deterministic fuel-price source for demos and
// local development, so the service works without upstream credentials.
package stub

import (
	"context"
	"time"

	"github.com/fueldash/fuelpriced/pkg/fuel"
	"github.com/fueldash/fuelpriced/pkg/sources"
	"github.com/fueldash/fuelpriced/pkg/sources/fuelsources"
)

func init() {
	fuelsources.Register(&Source{})
}

type Source struct{}

func (s *Source) Key() string {
	return "stub"
}

func (s *Source) Name() string {
	return "Stub Prices"
}

func (s *Source) Type() sources.SourceType {
	return sources.SourceTypeStub
}

func (s *Source) LandingURL() string {
	return ""
}

var table = fuel.PriceTable{
	fuel.Regular:  3.15,
	fuel.Midgrade: 3.52,
	fuel.Premium:  3.88,
	fuel.Diesel:   3.74,
}

func (s *Source) FetchPrices(ctx context.Context, region fuelsources.Region) (*fuelsources.PriceQuote, error) {
	// Callers may mutate the quote's table; never hand out the shared one.
	return &fuelsources.PriceQuote{
		Source:    s.Name(),
		FetchedAt: time.Now().UTC(),
		Prices:    table.Clone(),
	}, nil
}
