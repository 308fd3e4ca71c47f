package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Sync.DefaultStartDate != "2023-01-01" {
		t.Errorf("expected default start date 2023-01-01, got %s", cfg.Sync.DefaultStartDate)
	}
	if cfg.Sync.DataReadyHour != 17 {
		t.Errorf("expected data ready hour 17, got %d", cfg.Sync.DataReadyHour)
	}
	if cfg.Sync.MaxAttempts != 7 {
		t.Errorf("expected 7 attempts, got %d", cfg.Sync.MaxAttempts)
	}
	if cfg.Sync.AbortThreshold != 50 {
		t.Errorf("expected abort threshold 50, got %d", cfg.Sync.AbortThreshold)
	}
	if cfg.Sync.Workers < 2 {
		t.Errorf("expected at least 2 sync workers, got %d", cfg.Sync.Workers)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATA_READY_HOUR", "15")
	t.Setenv("SYNC_CHUNK_SIZE", "5")
	t.Setenv("UPSTREAM_RATE_LIMIT", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Sync.DataReadyHour != 15 {
		t.Errorf("expected data ready hour 15, got %d", cfg.Sync.DataReadyHour)
	}
	if cfg.Sync.ChunkSize != 5 {
		t.Errorf("expected chunk size 5, got %d", cfg.Sync.ChunkSize)
	}
	if cfg.Upstream.RateLimit != 2.5 {
		t.Errorf("expected rate limit 2.5, got %f", cfg.Upstream.RateLimit)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad env", func(c *Config) { c.Env = "local" }, true},
		{"bad start date", func(c *Config) { c.Sync.DefaultStartDate = "01/01/2023" }, true},
		{"bad ready hour", func(c *Config) { c.Sync.DataReadyHour = 25 }, true},
		{"zero attempts", func(c *Config) { c.Sync.MaxAttempts = 0 }, true},
		{"zero chunk size", func(c *Config) { c.Sync.ChunkSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.validate(); (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
