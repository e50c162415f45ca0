package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8081" {
		t.Errorf("Port = %s, want 8081", cfg.Port)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.RetryDelay != 1*time.Second {
		t.Errorf("RetryDelay = %v, want 1s", cfg.RetryDelay)
	}
	if cfg.RetryMaxDelay != 8*time.Second {
		t.Errorf("RetryMaxDelay = %v, want 8s", cfg.RetryMaxDelay)
	}
}

func TestLoadRetrySettingsFromEnv(t *testing.T) {
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("RETRY_DELAY", "250ms")
	t.Setenv("RETRY_MAX_DELAY", "4s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.RetryDelay != 250*time.Millisecond {
		t.Errorf("RetryDelay = %v, want 250ms", cfg.RetryDelay)
	}
	if cfg.RetryMaxDelay != 4*time.Second {
		t.Errorf("RetryMaxDelay = %v, want 4s", cfg.RetryMaxDelay)
	}
}

func TestLoadIgnoresInvalidRetrySettings(t *testing.T) {
	t.Setenv("MAX_RETRIES", "zero")
	t.Setenv("RETRY_DELAY", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.MaxRetries)
	}
	if cfg.RetryDelay != 1*time.Second {
		t.Errorf("RetryDelay = %v, want default 1s", cfg.RetryDelay)
	}
}
