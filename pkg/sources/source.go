// Package sources defines the base interface shared by all upstream
// fuel-price sources.
package sources

import "errors"

// SourceType represents how a source publishes its prices.
type SourceType string

const (
	SourceTypeAPI      SourceType = "api"
	SourceTypeBulletin SourceType = "bulletin"
	SourceTypeStub     SourceType = "stub"
)

// Source is the base interface for all fuel-price sources.
type Source interface {
	// Key returns the unique identifier for the source (e.g., "collectapi").
	Key() string
	// Name returns the human-readable name of the source.
	Name() string
	// Type returns how the source publishes prices.
	Type() SourceType
	// LandingURL returns the URL of the source's documentation or data page.
	LandingURL() string
}

// Common errors shared across sources.
var (
	ErrSourceNotFound = errors.New("source not found")
	ErrParseFailed    = errors.New("failed to parse prices")
	ErrUnavailable    = errors.New("source unavailable")
)
