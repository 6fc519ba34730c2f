// Package collectapi fetches state-level US gas prices from the CollectAPI
// gasPrice endpoint.
package collectapi

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
	"github.com/fueldash/fuelpriced/pkg/sources/shared"
)

func init() {
	fuelsources.Register(&Source{})
}

const defaultBaseURL = "https://api.collectapi.com/gasPrice"

// Source implements fuelsources.FuelSource against CollectAPI. The zero
// value reads its API key and base URL from the environment; tests set the
// fields directly.
type Source struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func (s *Source) Key() string {
	return "collectapi"
}

func (s *Source) Name() string {
	return "CollectAPI Gas Prices"
}

func (s *Source) Type() sources.SourceType {
	return sources.SourceTypeAPI
}

func (s *Source) LandingURL() string {
	return "https://collectapi.com/api/gasPrice/gas-prices-api"
}

// stateResponse mirrors the gasPrice/stateUsaPrice payload. Prices arrive as
// strings with an optional leading dollar sign.
type stateResponse struct {
	Success bool `json:"success"`
	Result  struct {
		State    string `json:"state"`
		Regular  string `json:"regular"`
		MidGrade string `json:"midGrade"`
		Premium  string `json:"premium"`
		Diesel   string `json:"diesel"`
	} `json:"result"`
}

func (s *Source) FetchPrices(ctx context.Context, region fuelsources.Region) (*fuelsources.PriceQuote, error) {
	if region.State == "" {
		return nil, fmt.Errorf("collectapi: region %q has no state code", region.Key)
	}

	apiKey := s.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("FUELPRICED_COLLECTAPI_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("collectapi: no API key configured")
	}

	base := s.BaseURL
	if base == "" {
		if v := os.Getenv("FUELPRICED_COLLECTAPI_URL"); v != "" {
			base = v
		} else {
			base = defaultBaseURL
		}
	}

	endpoint := base + "/stateUsaPrice?state=" + url.QueryEscape(region.State)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("collectapi: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "apikey "+apiKey)

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("collectapi: %w: %v", sources.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("collectapi: %w: status %d", sources.ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("collectapi: read body: %w", err)
	}

	return s.parse(body, endpoint)
}

func (s *Source) parse(body []byte, endpoint string) (*fuelsources.PriceQuote, error) {
	var sr stateResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("collectapi: %w: %v", sources.ErrParseFailed, err)
	}
	if !sr.Success {
		return nil, fmt.Errorf("collectapi: %w: success=false", sources.ErrUnavailable)
	}

	table := fuel.PriceTable{
		fuel.Regular:  shared.ParseMoney(sr.Result.Regular),
		fuel.Midgrade: shared.ParseMoney(sr.Result.MidGrade),
		fuel.Premium:  shared.ParseMoney(sr.Result.Premium),
		fuel.Diesel:   shared.ParseMoney(sr.Result.Diesel),
	}
	if !table.Complete() {
		return nil, fmt.Errorf("collectapi: %w: incomplete price table for %q", sources.ErrParseFailed, sr.Result.State)
	}

	return &fuelsources.PriceQuote{
		Source:    s.Name(),
		SourceURL: endpoint,
		FetchedAt: time.Now().UTC(),
		Prices:    table,
	}, nil
}
