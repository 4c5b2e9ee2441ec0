package config

import (
	"testing"
	"time"
)

// setRequired sets the env vars without which Load refuses to start.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("EVENT_SIGNING_SECRET", "s3cret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Fatalf("Port = %q; want 8080", cfg.Port)
	}
	if cfg.GinMode != "release" || cfg.LogLevel != "info" {
		t.Fatalf("mode/level: %q/%q", cfg.GinMode, cfg.LogLevel)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.Gate.SigningSecret != "s3cret" {
		t.Fatalf("SigningSecret = %q", cfg.Gate.SigningSecret)
	}
	if cfg.Gate.TimestampSkew != 5*time.Minute {
		t.Fatalf("TimestampSkew = %v; want 5m", cfg.Gate.TimestampSkew)
	}
	if cfg.Gate.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("IdempotencyTTL = %v; want 24h", cfg.Gate.IdempotencyTTL)
	}
	if cfg.Attribution.Lookback != 7*24*time.Hour {
		t.Fatalf("Attribution.Lookback = %v; want 168h", cfg.Attribution.Lookback)
	}
	if cfg.Attribution.DefaultRate != "8" {
		t.Fatalf("DefaultRate = %q; want 8", cfg.Attribution.DefaultRate)
	}
	if !cfg.Maintainer.Enabled || cfg.Maintainer.Interval != time.Hour {
		t.Fatalf("Maintainer: %+v", cfg.Maintainer)
	}
	if cfg.RateRPS != 25.0 || cfg.RateBurst != 50 {
		t.Fatalf("rate limits: %v/%d", cfg.RateRPS, cfg.RateBurst)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SIGNATURE_SKEW", "2m")
	t.Setenv("ATTRIBUTION_WINDOW", "72h")
	t.Setenv("DEFAULT_COMMISSION_RATE", "12.5")
	t.Setenv("MAINTAINER_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "WARNING") // normalized to warn
	t.Setenv("API_BASE_PATH", "v2/") // normalized to /v2

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.Gate.TimestampSkew != 2*time.Minute {
		t.Fatalf("TimestampSkew = %v", cfg.Gate.TimestampSkew)
	}
	if cfg.Attribution.Lookback != 72*time.Hour || cfg.Attribution.DefaultRate != "12.5" {
		t.Fatalf("attribution: %+v", cfg.Attribution)
	}
	if cfg.Maintainer.Enabled {
		t.Fatal("maintainer should be disabled")
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q; want warn", cfg.LogLevel)
	}
	if cfg.APIBasePath != "/v2" {
		t.Fatalf("APIBasePath = %q; want /v2", cfg.APIBasePath)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"EVENT_SIGNING_SECRET": ""}},
		{"zero skew", map[string]string{"SIGNATURE_SKEW": "0s"}},
		{"zero idempotency ttl", map[string]string{"IDEMPOTENCY_TTL": "0s"}},
		{"zero attribution window", map[string]string{"ATTRIBUTION_WINDOW": "0s"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}},
		{"zero maintainer interval", map[string]string{"MAINTAINER_INTERVAL": "0s"}},
		{"zero batch", map[string]string{"MAINTAINER_BATCH_SIZE": "0"}},
		{"zero burst", map[string]string{"RATE_BURST": "0"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestMustLoad_PanicsOnInvalid(t *testing.T) {
	t.Setenv("EVENT_SIGNING_SECRET", "")

	defer func() {
		if recover() == nil {
			t.Fatal("MustLoad did not panic")
		}
	}()
	MustLoad()
}
