package stub

import (
	"context"
	"testing"

	"github.com/fueldash/fuelpriced/pkg/fuel"
	"github.com/fueldash/fuelpriced/pkg/sources/fuelsources"
)

func TestFetchPricesIsolatesQuotes(t *testing.T) {
	s := &Source{}
	first, err := s.FetchPrices(context.Background(), fuelsources.Region{Key: "us-nat"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Prices.Complete() {
		t.Fatalf("incomplete price table: %v", first.Prices)
	}

	// Mutating one quote must not bleed into later ones.
	first.Prices[fuel.Regular] = 99.99

	second, err := s.FetchPrices(context.Background(), fuelsources.Region{Key: "us-nat"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Prices[fuel.Regular] != 3.15 {
		t.Errorf("shared table mutated: regular = %v", second.Prices[fuel.Regular])
	}
}
