// Package config centralizes the FUELPRICED_* environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Port the HTTP server listens on.
	Port string
	// DBDriver selects the storage backend: memory, sqlite, postgres,
	// postgrespool.
	DBDriver string
	// DBDSN is the backend connection string or file path.
	DBDSN string
	// AutoMigrate runs goose migrations on startup.
	AutoMigrate bool

	// CacheTTL is how long a price snapshot stays fresh.
	CacheTTL time.Duration
	// BreakerThreshold is the consecutive-failure count that opens a
	// region's circuit breaker.
	BreakerThreshold int
	// BreakerResetTimeout is how long an open breaker waits before probing.
	BreakerResetTimeout time.Duration
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	cfg := Config{
		Port:                getEnv("PORT", "8000"),
		DBDriver:            getEnv("FUELPRICED_DB_DRIVER", "sqlite"),
		DBDSN:               getEnv("FUELPRICED_DB_DSN", "fuelpriced.db"),
		AutoMigrate:         parseBool(os.Getenv("FUELPRICED_AUTO_MIGRATE")),
		CacheTTL:            getDuration("FUELPRICED_CACHE_TTL", time.Hour),
		BreakerThreshold:    getInt("FUELPRICED_BREAKER_THRESHOLD", 3),
		BreakerResetTimeout: getDuration("FUELPRICED_BREAKER_RESET_TIMEOUT", 30*time.Second),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// getDuration accepts a Go duration ("90s", "1h") or a bare number of
// seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}
