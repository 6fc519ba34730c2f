package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("FUELPRICED_DB_DRIVER", "")
	t.Setenv("FUELPRICED_CACHE_TTL", "")
	t.Setenv("FUELPRICED_BREAKER_THRESHOLD", "")

	cfg := FromEnv()
	if cfg.Port != "8000" {
		t.Errorf("Port: got %s, want 8000", cfg.Port)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("DBDriver: got %s, want sqlite", cfg.DBDriver)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("CacheTTL: got %v, want 1h", cfg.CacheTTL)
	}
	if cfg.BreakerThreshold != 3 {
		t.Errorf("BreakerThreshold: got %d, want 3", cfg.BreakerThreshold)
	}
	if cfg.BreakerResetTimeout != 30*time.Second {
		t.Errorf("BreakerResetTimeout: got %v, want 30s", cfg.BreakerResetTimeout)
	}
	if cfg.AutoMigrate {
		t.Error("AutoMigrate should default to false")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("FUELPRICED_DB_DRIVER", "postgres")
	t.Setenv("FUELPRICED_DB_DSN", "postgres://localhost/fuel")
	t.Setenv("FUELPRICED_AUTO_MIGRATE", "true")
	t.Setenv("FUELPRICED_CACHE_TTL", "15m")
	t.Setenv("FUELPRICED_BREAKER_THRESHOLD", "5")
	t.Setenv("FUELPRICED_BREAKER_RESET_TIMEOUT", "90")

	cfg := FromEnv()
	if cfg.Port != "9090" {
		t.Errorf("Port: got %s", cfg.Port)
	}
	if cfg.DBDriver != "postgres" || cfg.DBDSN != "postgres://localhost/fuel" {
		t.Errorf("DB config: got %s %s", cfg.DBDriver, cfg.DBDSN)
	}
	if !cfg.AutoMigrate {
		t.Error("AutoMigrate should be true")
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("CacheTTL: got %v", cfg.CacheTTL)
	}
	if cfg.BreakerThreshold != 5 {
		t.Errorf("BreakerThreshold: got %d", cfg.BreakerThreshold)
	}
	// Bare integers are seconds.
	if cfg.BreakerResetTimeout != 90*time.Second {
		t.Errorf("BreakerResetTimeout: got %v", cfg.BreakerResetTimeout)
	}
}

func TestFromEnvBadValues(t *testing.T) {
	t.Setenv("FUELPRICED_CACHE_TTL", "soon")
	t.Setenv("FUELPRICED_BREAKER_THRESHOLD", "-2")

	cfg := FromEnv()
	if cfg.CacheTTL != time.Hour {
		t.Errorf("bad TTL should fall back, got %v", cfg.CacheTTL)
	}
	if cfg.BreakerThreshold != 3 {
		t.Errorf("bad threshold should fall back, got %d", cfg.BreakerThreshold)
	}
}
