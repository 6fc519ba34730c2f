// Package doebulletin parses the weekly retail fuel price bulletin PDF
// published for regions whose upstream has no JSON API.
package doebulletin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/fueldash/fuelpriced/pkg/fuel"
	"github.com/fueldash/fuelpriced/pkg/sources"
	"github.com/fueldash/fuelpriced/pkg/sources/fuelsources"
	"github.com/fueldash/fuelpriced/pkg/sources/shared"
)

func init() {
	fuelsources.Register(&Source{})
}

// Source implements fuelsources.FuelSource by parsing a locally cached
// bulletin PDF. Refresh of the cached file is handled by Download.
type Source struct{}

func (s *Source) Key() string {
	return "doebulletin"
}

func (s *Source) Name() string {
	return "DOE Weekly Fuel Price Bulletin"
}

func (s *Source) Type() sources.SourceType {
	return sources.SourceTypeBulletin
}

func (s *Source) LandingURL() string {
	return "https://www.energy.gov/gasoline-prices"
}

func (s *Source) FetchPrices(ctx context.Context, region fuelsources.Region) (*fuelsources.PriceQuote, error) {
	path := region.BulletinPath
	if path == "" {
		return nil, fmt.Errorf("doebulletin: region %q has no bulletin path", region.Key)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("doebulletin: bulletin not found at %s: %w", path, err)
	}
	return s.ParsePDF(path)
}

// ParsePDF extracts the plain text of the bulletin and parses it.
func (s *Source) ParsePDF(path string) (*fuelsources.PriceQuote, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	rc, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}

	return s.ParseText(buf.String())
}

var gradeRes = map[fuel.Type][]*regexp.Regexp{
	fuel.Regular: {
		regexp.MustCompile(`Regular(?:\s+Gasoline)?[:\s]+\$?([0-9]+\.[0-9]+)\s*(?:per gallon|/gal)?`),
	},
	fuel.Midgrade: {
		regexp.MustCompile(`Mid[- ]?[Gg]rade[:\s]+\$?([0-9]+\.[0-9]+)\s*(?:per gallon|/gal)?`),
	},
	fuel.Premium: {
		regexp.MustCompile(`Premium(?:\s+Gasoline)?[:\s]+\$?([0-9]+\.[0-9]+)\s*(?:per gallon|/gal)?`),
	},
	fuel.Diesel: {
		regexp.MustCompile(`(?:On[- ][Hh]ighway\s+)?Diesel(?:\s+Fuel)?[:\s]+\$?([0-9]+\.[0-9]+)\s*(?:per gallon|/gal)?`),
	},
}

// ParseText parses extracted bulletin text (useful for testing).
func (s *Source) ParseText(text string) (*fuelsources.PriceQuote, error) {
	table := make(fuel.PriceTable)
	for grade, res := range gradeRes {
		for _, re := range res {
			if v := shared.ParseFirstFloat(re, text); v > 0 {
				table[grade] = v
				break
			}
		}
	}
	if !table.Complete() {
		return nil, fmt.Errorf("doebulletin: %w: missing grades in bulletin text", sources.ErrParseFailed)
	}

	return &fuelsources.PriceQuote{
		Source:    s.Name(),
		SourceURL: s.LandingURL(),
		FetchedAt: time.Now().UTC(),
		Prices:    table,
	}, nil
}

// Download fetches the bulletin from url and atomically replaces the cached
// file at path.
func Download(ctx context.Context, client *http.Client, url, path string) error {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("doebulletin: create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("doebulletin: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("doebulletin: download returned status %d", resp.StatusCode)
	}

	return shared.WriteFileAtomically(path, resp.Body)
}
