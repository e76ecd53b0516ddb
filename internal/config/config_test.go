package config

import (
	"testing"
	"time"

	"streamvault-go/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Chain.ChainId != DefaultChainId {
		t.Errorf("Expected chain id %d, got %d", DefaultChainId, cfg.Chain.ChainId)
	}
	if cfg.Vault.TokenDecimals != DefaultTokenDecimals {
		t.Errorf("Expected decimals %d, got %d", DefaultTokenDecimals, cfg.Vault.TokenDecimals)
	}
	if cfg.Status.TickTimeout != cfg.Status.PollInterval {
		t.Errorf("Expected tick timeout to default to poll interval, got %v", cfg.Status.TickTimeout)
	}
	if cfg.Journal.Path != "" {
		t.Errorf("Expected journal disabled by default, got %q", cfg.Journal.Path)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STREAM_VAULT_ADDRESS", "0x1111111111111111111111111111111111111111")
	t.Setenv("STATUS_POLL_INTERVAL", "3s")
	t.Setenv("TOKEN_DECIMALS", "18")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Vault.Address != "0x1111111111111111111111111111111111111111" {
		t.Errorf("Unexpected vault address %s", cfg.Vault.Address)
	}
	if cfg.Status.PollInterval != 3*time.Second {
		t.Errorf("Expected 3s poll interval, got %v", cfg.Status.PollInterval)
	}
	if cfg.Vault.TokenDecimals != 18 {
		t.Errorf("Expected 18 decimals, got %d", cfg.Vault.TokenDecimals)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("RECEIPT_POLL_INTERVAL", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for invalid duration")
	}
}

func TestLocation(t *testing.T) {
	loc, err := Location(models.ScheduleConfig{TimeZone: "UTC"})
	if err != nil {
		t.Fatalf("Location failed: %v", err)
	}
	if loc.String() != "UTC" {
		t.Errorf("Expected UTC, got %s", loc)
	}

	if _, err := Location(models.ScheduleConfig{TimeZone: "Mars/Olympus"}); err == nil {
		t.Error("Expected error for unknown zone")
	}
}
