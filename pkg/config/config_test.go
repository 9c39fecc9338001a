package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("EXECUTION_ENABLED", "false")
	t.Setenv("TRADING_PARAMS_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Symbol != "BTCUSDT" {
		t.Fatalf("default symbol wrong: %s", cfg.Symbol)
	}
	if cfg.Trading.Leverage != 5 || cfg.Trading.StopLossPct != 2.0 || cfg.Trading.TakeProfitPct != 5.0 {
		t.Fatalf("trading defaults wrong: %+v", cfg.Trading)
	}
	if cfg.Trading.MinTradeIntervalSec != 300 {
		t.Fatalf("min trade interval default wrong: %d", cfg.Trading.MinTradeIntervalSec)
	}
}

func TestLoadRequiresCredentialsWhenExecuting(t *testing.T) {
	t.Setenv("EXECUTION_ENABLED", "true")
	t.Setenv("BITGET_API_KEY", "")
	t.Setenv("BITGET_SECRET_KEY", "")
	t.Setenv("BITGET_PASSPHRASE", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error when credentials are missing")
	}
}

func TestLoadYAMLOverridesTradingParams(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	body := []byte("leverage: 10\nstop_loss_pct: 1.5\nvolume_threshold: 250\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write params file: %v", err)
	}

	t.Setenv("EXECUTION_ENABLED", "false")
	t.Setenv("TRADING_PARAMS_PATH", path)
	t.Setenv("LEVERAGE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Trading.Leverage != 10 {
		t.Fatalf("leverage not overridden: %d", cfg.Trading.Leverage)
	}
	if cfg.Trading.StopLossPct != 1.5 {
		t.Fatalf("stop loss not overridden: %v", cfg.Trading.StopLossPct)
	}
	if cfg.Trading.VolumeThreshold != 250 {
		t.Fatalf("volume threshold not overridden: %v", cfg.Trading.VolumeThreshold)
	}
	// Values absent from the file keep their defaults.
	if cfg.Trading.TakeProfitPct != 5.0 {
		t.Fatalf("take profit should keep default: %v", cfg.Trading.TakeProfitPct)
	}
}
