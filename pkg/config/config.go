package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds environment-driven settings for the trading bot.
type Config struct {
	Port string

	// Bitget credentials
	BitgetAPIKey     string
	BitgetSecretKey  string
	BitgetPassphrase string

	// Market
	Symbol     string
	MarginCoin string

	// Database
	DBPath string

	// Execution toggle: false keeps the feed and indicators running
	// without placing orders.
	ExecutionEnabled bool

	// Trading parameters, overridable from a YAML file.
	Trading TradingConfig
}

// TradingConfig are the strategy and risk parameters.
type TradingConfig struct {
	Leverage        int     `yaml:"leverage"`
	StopLossPct     float64 `yaml:"stop_loss_pct"`
	TakeProfitPct   float64 `yaml:"take_profit_pct"`
	VolumeThreshold float64 `yaml:"volume_threshold"`
	StochRSIHigh    float64 `yaml:"stoch_rsi_high"`
	StochRSILow     float64 `yaml:"stoch_rsi_low"`
	PositionSizePct float64 `yaml:"position_size_pct"`

	// Seconds between entries; blocks re-entry churn after a close.
	MinTradeIntervalSec int `yaml:"min_trade_interval_sec"`

	// Limit price offsets from last close, in quote currency.
	EntryOffset      float64 `yaml:"entry_offset"`
	TakeProfitOffset float64 `yaml:"take_profit_offset"`
}

// DefaultTrading returns the production defaults for TradingConfig.
func DefaultTrading() TradingConfig {
	return TradingConfig{
		Leverage:            5,
		StopLossPct:         2.0,
		TakeProfitPct:       5.0,
		VolumeThreshold:     100,
		StochRSIHigh:        90,
		StochRSILow:         10,
		PositionSizePct:     100,
		MinTradeIntervalSec: 300,
		EntryOffset:         20,
		TakeProfitOffset:    10,
	}
}

// Load reads environment variables (optionally via .env) into Config. When
// TRADING_PARAMS_PATH points at a YAML file, its values override the
// trading defaults. Missing credentials are an error unless execution is
// disabled.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		BitgetAPIKey:     os.Getenv("BITGET_API_KEY"),
		BitgetSecretKey:  os.Getenv("BITGET_SECRET_KEY"),
		BitgetPassphrase: os.Getenv("BITGET_PASSPHRASE"),
		Symbol:           getEnv("SYMBOL", "BTCUSDT"),
		MarginCoin:       getEnv("MARGIN_COIN", "USDT"),
		DBPath:           getEnv("DB_PATH", "./data/trading.db"),
		ExecutionEnabled: getEnv("EXECUTION_ENABLED", "true") == "true",
		Trading:          DefaultTrading(),
	}

	if path := os.Getenv("TRADING_PARAMS_PATH"); path != "" {
		if err := loadTradingParams(path, &cfg.Trading); err != nil {
			return nil, err
		}
	}
	cfg.Trading.Leverage = getEnvInt("LEVERAGE", cfg.Trading.Leverage)
	cfg.Trading.PositionSizePct = getEnvFloat("POSITION_SIZE_PCT", cfg.Trading.PositionSizePct)

	if cfg.ExecutionEnabled {
		if cfg.BitgetAPIKey == "" || cfg.BitgetSecretKey == "" || cfg.BitgetPassphrase == "" {
			return nil, fmt.Errorf("config: BITGET_API_KEY, BITGET_SECRET_KEY and BITGET_PASSPHRASE are required when execution is enabled")
		}
	}
	return cfg, nil
}

func loadTradingParams(path string, t *TradingConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read trading params: %w", err)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return fmt.Errorf("config: parse trading params: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
