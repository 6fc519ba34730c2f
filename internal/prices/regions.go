package prices

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/fueldash/fuelpriced/internal/storage"
	"github.com/fueldash/fuelpriced/pkg/sources/fuelsources"
)

// RegionDescriptor describes a service area and the upstream source that
// prices it. The built-in set can be replaced wholesale by setting
// FUELPRICED_REGIONS_JSON to a JSON array of descriptors.
type RegionDescriptor struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	State        string `json:"state"`
	SourceKey    string `json:"source_key"`
	SourceURL    string `json:"source_url,omitempty"`
	BulletinPath string `json:"bulletin_path,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// ToStorage converts the descriptor to its storage row shape.
func (d RegionDescriptor) ToStorage() storage.Region {
	return storage.Region{
		Key:          d.Key,
		Name:         d.Name,
		State:        d.State,
		SourceKey:    d.SourceKey,
		SourceURL:    d.SourceURL,
		BulletinPath: d.BulletinPath,
		Notes:        d.Notes,
	}
}

// Source returns the descriptor's region in the shape fuel sources consume.
func (d RegionDescriptor) Source() fuelsources.Region {
	return fuelsources.Region{
		Key:          d.Key,
		State:        d.State,
		SourceURL:    d.SourceURL,
		BulletinPath: d.BulletinPath,
	}
}

func defaultRegions() []RegionDescriptor {
	return []RegionDescriptor{
		{Key: "tx-hou", Name: "Houston, TX", State: "TX", SourceKey: "collectapi"},
		{Key: "tx-dfw", Name: "Dallas-Fort Worth, TX", State: "TX", SourceKey: "collectapi"},
		{Key: "ca-la", Name: "Los Angeles, CA", State: "CA", SourceKey: "collectapi"},
		{Key: "fl-mia", Name: "Miami, FL", State: "FL", SourceKey: "eia"},
		{Key: "us-nat", Name: "US Nationwide", State: "US", SourceKey: "stub"},
	}
}

var (
	regionsOnce sync.Once
	regionsByKey map[string]RegionDescriptor
)

func loadRegions() {
	set := defaultRegions()
	if raw := os.Getenv("FUELPRICED_REGIONS_JSON"); raw != "" {
		var override []RegionDescriptor
		if err := json.Unmarshal([]byte(raw), &override); err != nil {
			fmt.Fprintf(os.Stderr, "prices: invalid FUELPRICED_REGIONS_JSON, using built-in regions: %v\n", err)
		} else if len(override) > 0 {
			set = override
		}
	}
	regionsByKey = make(map[string]RegionDescriptor, len(set))
	for _, d := range set {
		regionsByKey[d.Key] = d
	}
}

// Regions returns every configured region, sorted by key.
func Regions() []RegionDescriptor {
	regionsOnce.Do(loadRegions)
	out := make([]RegionDescriptor, 0, len(regionsByKey))
	for _, d := range regionsByKey {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// GetRegion looks up a region by key.
func GetRegion(key string) (RegionDescriptor, bool) {
	regionsOnce.Do(loadRegions)
	d, ok := regionsByKey[key]
	return d, ok
}

// resetRegions re-reads the region set. Test hook.
func resetRegions() {
	regionsOnce = sync.Once{}
	regionsByKey = nil
}
