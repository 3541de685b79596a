package config

import (
	"os"
	"testing"
)

func TestLoadAppliesDefaultsWhenOptionalVarsUnset(t *testing.T) {
	t.Setenv("BTC_RPC_USER", "rpcuser")
	t.Setenv("BTC_RPC_PASS", "rpcpass")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "5339" {
		t.Errorf("Port = %q, want default 5339", cfg.Port)
	}
	if cfg.RollingWindowSeconds != 10800 {
		t.Errorf("RollingWindowSeconds = %v, want default 10800", cfg.RollingWindowSeconds)
	}
	if cfg.BaselineWindowBlocks != 144 {
		t.Errorf("BaselineWindowBlocks = %d, want default 144", cfg.BaselineWindowBlocks)
	}
	if cfg.ConnectionAttemptsPerMin != 5 {
		t.Errorf("ConnectionAttemptsPerMin = %d, want default 5", cfg.ConnectionAttemptsPerMin)
	}
}

func TestLoadFailsWithoutRequiredRPCCredentials(t *testing.T) {
	// t.Setenv restores the previous values on cleanup; Unsetenv then makes
	// the variables absent, which is what envconfig's required check detects.
	t.Setenv("BTC_RPC_USER", "")
	t.Setenv("BTC_RPC_PASS", "")
	os.Unsetenv("BTC_RPC_USER")
	os.Unsetenv("BTC_RPC_PASS")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when BTC_RPC_USER/BTC_RPC_PASS are unset")
	}
}

func TestLoadHonorsExplicitOverrides(t *testing.T) {
	t.Setenv("BTC_RPC_USER", "rpcuser")
	t.Setenv("BTC_RPC_PASS", "rpcpass")
	t.Setenv("PORT", "9000")
	t.Setenv("BASELINE_WINDOW_BLOCKS", "288")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000", cfg.Port)
	}
	if cfg.BaselineWindowBlocks != 288 {
		t.Errorf("BaselineWindowBlocks = %d, want 288", cfg.BaselineWindowBlocks)
	}
}
