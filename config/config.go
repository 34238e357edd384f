// Package config loads the engine configuration from a JSON file plus
// environment variables. Credentials come from the environment only and
// are never written to the log.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/ver3trade/engine/core"
)

// Environment keys. Credentials are environment-only so a shared config
// file never carries secrets.
const (
	EnvAPIKey        = "EXCHANGE_API_KEY"
	EnvAPISecret     = "EXCHANGE_API_SECRET"
	EnvTelegramToken = "TELEGRAM_TOKEN"
	EnvTelegramUsers = "TELEGRAM_USERS"
	EnvDryRun        = "DRY_RUN"
)

// Order log backends
const (
	OrderLogBunt   = "bunt"
	OrderLogSQLite = "sqlite"
)

// Duration is a time.Duration that unmarshals from strings like "15m"
// or "900s", or from a bare number of seconds.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := str2duration.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return fmt.Errorf("duration must be a string or seconds: %s", data)
	}
	*d = Duration(time.Duration(seconds * float64(time.Second)))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Portfolio holds the cycle tunables.
type Portfolio struct {
	Timeframe            string   `json:"timeframe"`
	DailyTimeframe       string   `json:"daily_timeframe"`
	CandleLimit          int      `json:"candle_limit"`
	MaxPositions         int      `json:"max_positions"`
	MaxDailyLossPct      float64  `json:"max_daily_loss_pct"`
	MaxConsecutiveLosses int      `json:"max_consecutive_losses"`
	PerCoinTimeout       Duration `json:"per_coin_timeout"`
	TotalTimeout         Duration `json:"total_timeout"`
	RebalanceEnabled     bool     `json:"rebalance_enabled"`
	RebalanceTarget      int      `json:"rebalance_target"`
}

// Credentials carries secrets read from the environment. Never logged.
type Credentials struct {
	APIKey        string
	APISecret     string
	TelegramToken string
	TelegramUsers []int64
}

// Config is the engine configuration, immutable after Load.
type Config struct {
	DataDir     string `json:"data_dir"`
	LogLevel    string `json:"log_level"`
	MetricsAddr string `json:"metrics_addr"`
	QuoteAsset  string `json:"quote_asset"`
	OrderLog    string `json:"order_log"`

	DryRun         bool            `json:"dry_run"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	FeeRate        decimal.Decimal `json:"fee_rate"`
	RiskPerTrade   decimal.Decimal `json:"risk_per_trade_pct"`
	Pyramiding     bool            `json:"pyramiding"`

	CycleInterval    Duration `json:"cycle_interval"`
	MaxTimeoutCycles int      `json:"max_timeout_cycles"`

	Portfolio Portfolio   `json:"portfolio"`
	Coins     []core.Coin `json:"coins"`

	Credentials Credentials `json:"-"`
}

// Default returns the stock configuration before file and environment
// overrides are applied.
func Default() Config {
	return Config{
		DataDir:          "data",
		LogLevel:         "info",
		QuoteAsset:       "KRW",
		OrderLog:         OrderLogBunt,
		DryRun:           true,
		InitialBalance:   decimal.NewFromInt(1_000_000),
		FeeRate:          decimal.NewFromFloat(0.0005),
		RiskPerTrade:     decimal.NewFromFloat(1.0),
		CycleInterval:    Duration(900 * time.Second),
		MaxTimeoutCycles: 3,
		Portfolio: Portfolio{
			Timeframe:            "4h",
			DailyTimeframe:       "1d",
			CandleLimit:          220,
			MaxPositions:         2,
			MaxDailyLossPct:      3.0,
			MaxConsecutiveLosses: 3,
			PerCoinTimeout:       Duration(60 * time.Second),
			TotalTimeout:         Duration(120 * time.Second),
		},
	}
}

// Load reads the JSON file at path (optional when empty), layers the
// environment on top, and validates the result. A `.env` file in the
// working directory is honored when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv layers environment variables over the file values.
func (c *Config) applyEnv() error {
	c.Credentials.APIKey = os.Getenv(EnvAPIKey)
	c.Credentials.APISecret = os.Getenv(EnvAPISecret)
	c.Credentials.TelegramToken = os.Getenv(EnvTelegramToken)

	if raw := os.Getenv(EnvTelegramUsers); raw != "" {
		users, err := parseUserIDs(raw)
		if err != nil {
			return err
		}
		c.Credentials.TelegramUsers = users
	}

	if raw := os.Getenv(EnvDryRun); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid %s value %q", EnvDryRun, raw)
		}
		c.DryRun = enabled
	}
	return nil
}

func parseUserIDs(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	users := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q", EnvTelegramUsers, part)
		}
		users = append(users, id)
	}
	return users, nil
}

// RiskFraction converts risk_per_trade_pct into the capital fraction
// the executor multiplies with (1.0 percent -> 0.01).
func (c Config) RiskFraction() decimal.Decimal {
	return c.RiskPerTrade.Div(decimal.NewFromInt(100))
}

// TelegramEnabled reports whether the notifier credentials are present.
func (c Config) TelegramEnabled() bool {
	return c.Credentials.TelegramToken != "" && len(c.Credentials.TelegramUsers) > 0
}

// Validate checks the configuration for internal consistency. A failed
// validation maps to exit code 2 in the CLI.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if len(c.Coins) == 0 {
		return fmt.Errorf("at least one coin is required")
	}

	ranks := make(map[int]string, len(c.Coins))
	for _, coin := range c.Coins {
		if coin.Symbol == "" || coin.Pair == "" {
			return fmt.Errorf("coin entries need symbol and pair, got %+v", coin)
		}
		if coin.Rank <= 0 {
			return fmt.Errorf("coin %s: rank must be positive", coin.Symbol)
		}
		if prev, dup := ranks[coin.Rank]; dup {
			return fmt.Errorf("coins %s and %s share rank %d", prev, coin.Symbol, coin.Rank)
		}
		ranks[coin.Rank] = coin.Symbol
	}

	if c.CycleInterval.Std() <= 0 {
		return fmt.Errorf("cycle_interval must be positive")
	}
	if c.Portfolio.MaxPositions <= 0 {
		return fmt.Errorf("portfolio.max_positions must be positive")
	}
	if c.Portfolio.PerCoinTimeout.Std() <= 0 || c.Portfolio.TotalTimeout.Std() <= 0 {
		return fmt.Errorf("portfolio timeouts must be positive")
	}
	if c.Portfolio.PerCoinTimeout.Std() > c.Portfolio.TotalTimeout.Std() {
		return fmt.Errorf("portfolio.per_coin_timeout exceeds total_timeout")
	}
	if c.Portfolio.MaxDailyLossPct <= 0 {
		return fmt.Errorf("portfolio.max_daily_loss_pct must be positive")
	}
	if !c.DryRun && (c.Credentials.APIKey == "" || c.Credentials.APISecret == "") {
		return fmt.Errorf("live mode requires %s and %s", EnvAPIKey, EnvAPISecret)
	}
	if c.RiskPerTrade.Sign() <= 0 {
		return fmt.Errorf("risk_per_trade_pct must be positive")
	}
	switch c.OrderLog {
	case "", OrderLogBunt, OrderLogSQLite:
	default:
		return fmt.Errorf("order_log must be %q or %q, got %q", OrderLogBunt, OrderLogSQLite, c.OrderLog)
	}
	return nil
}
