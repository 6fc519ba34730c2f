// Package eia fetches weekly retail fuel prices from the EIA open data API.
package eia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/fueldash/fuelpriced/pkg/fuel"
	"github.com/fueldash/fuelpriced/pkg/sources"
	"github.com/fueldash/fuelpriced/pkg/sources/fuelsources"
)

func init() {
	fuelsources.Register(&Source{})
}

const defaultBaseURL = "https://api.eia.gov/v2/petroleum/pri/gnd/data/"

// Product series codes for retail gasoline and on-highway diesel.
var productGrades = map[string]fuel.Type{
	"EPMR":  fuel.Regular,
	"EPMM":  fuel.Midgrade,
	"EPMP":  fuel.Premium,
	"EPD2D": fuel.Diesel,
}

// Source implements fuelsources.FuelSource against the EIA v2 API. The zero
// value reads its API key and base URL from the environment.
type Source struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func (s *Source) Key() string {
	return "eia"
}

func (s *Source) Name() string {
	return "EIA Weekly Retail Prices"
}

func (s *Source) Type() sources.SourceType {
	return sources.SourceTypeAPI
}

func (s *Source) LandingURL() string {
	return "https://www.eia.gov/petroleum/gasdiesel/"
}

type apiResponse struct {
	Response struct {
		Data []struct {
			Period  string  `json:"period"`
			Product string  `json:"product"`
			Value   float64 `json:"value"`
		} `json:"data"`
	} `json:"response"`
}

func (s *Source) FetchPrices(ctx context.Context, region fuelsources.Region) (*fuelsources.PriceQuote, error) {
	if region.State == "" {
		return nil, fmt.Errorf("eia: region %q has no state code", region.Key)
	}

	apiKey := s.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("FUELPRICED_EIA_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("eia: no API key configured")
	}

	base := s.BaseURL
	if base == "" {
		if v := os.Getenv("FUELPRICED_EIA_URL"); v != "" {
			base = v
		} else {
			base = defaultBaseURL
		}
	}

	// EIA keys state-level areas as "S" + state code (e.g. STX).
	q := url.Values{}
	q.Set("frequency", "weekly")
	q.Set("data[0]", "value")
	q.Set("facets[duoarea][]", "S"+region.State)
	q.Set("sort[0][column]", "period")
	q.Set("sort[0][direction]", "desc")
	q.Set("length", "8")

	// The reported URL never carries the api_key parameter. It ends up in
	// persisted snapshots and public price responses.
	reportURL := base + "?" + q.Encode()
	q.Set("api_key", apiKey)
	endpoint := base + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("eia: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eia: %w: %v", sources.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eia: %w: status %d", sources.ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("eia: read body: %w", err)
	}

	return s.parse(body, reportURL)
}

// parse keeps the most recent observation per product.
func (s *Source) parse(body []byte, sourceURL string) (*fuelsources.PriceQuote, error) {
	var ar apiResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return nil, fmt.Errorf("eia: %w: %v", sources.ErrParseFailed, err)
	}

	table := make(fuel.PriceTable)
	for _, row := range ar.Response.Data {
		grade, ok := productGrades[row.Product]
		if !ok {
			continue
		}
		// Rows are sorted newest first; keep the first value per grade.
		if _, seen := table[grade]; !seen && row.Value > 0 {
			table[grade] = row.Value
		}
	}
	if !table.Complete() {
		return nil, fmt.Errorf("eia: %w: incomplete price table", sources.ErrParseFailed)
	}

	return &fuelsources.PriceQuote{
		Source:    s.Name(),
		SourceURL: sourceURL,
		FetchedAt: time.Now().UTC(),
		Prices:    table,
	}, nil
}
