package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("PROFILE_HEADER_PREFIX", "")
	cfg := FromEnv()
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("unexpected driver: %s", cfg.DBDriver)
	}
	if cfg.ProfileHeaderPrefix != "X-Sql-Profile" {
		t.Fatalf("unexpected prefix: %s", cfg.ProfileHeaderPrefix)
	}
	if !cfg.ProfileEnabled {
		t.Fatalf("profiling should default to enabled")
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Fatalf("unexpected cache ttl: %v", cfg.CacheTTL)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("PROFILE_ENABLED", "no")
	t.Setenv("CACHE_TTL_SEC", "7")
	t.Setenv("CORS_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("CORS_MAX_AGE", "not-a-number")
	cfg := FromEnv()
	if cfg.DBDriver != "postgres" || cfg.ProfileEnabled {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.CacheTTL != 7*time.Second {
		t.Fatalf("unexpected cache ttl: %v", cfg.CacheTTL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins: %v", cfg.CORSOrigins)
	}
	if cfg.CORSMaxAge != 0 {
		t.Fatalf("invalid int should fall back to default, got %d", cfg.CORSMaxAge)
	}
}
