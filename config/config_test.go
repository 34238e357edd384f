package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `{
	"data_dir": "/tmp/ver3",
	"cycle_interval": "15m",
	"coins": [
		{"symbol": "BTC", "pair": "BTC/KRW", "rank": 1},
		{"symbol": "ETH", "pair": "ETH/KRW", "rank": 2}
	]
}`

func TestLoadMinimalConfig(t *testing.T) {
	t.Setenv(EnvDryRun, "")
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ver3", cfg.DataDir)
	assert.Equal(t, 15*time.Minute, cfg.CycleInterval.Std())
	assert.True(t, cfg.DryRun)
	assert.Equal(t, 2, cfg.Portfolio.MaxPositions)
	assert.Equal(t, 60*time.Second, cfg.Portfolio.PerCoinTimeout.Std())
	require.Len(t, cfg.Coins, 2)
	assert.Equal(t, "BTC", cfg.Coins[0].Symbol)
}

func TestDurationForms(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"900s"`), &d))
	assert.Equal(t, 15*time.Minute, d.Std())

	require.NoError(t, json.Unmarshal([]byte(`"1h30m"`), &d))
	assert.Equal(t, 90*time.Minute, d.Std())

	require.NoError(t, json.Unmarshal([]byte(`60`), &d))
	assert.Equal(t, time.Minute, d.Std())

	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
}

func TestRiskFractionConvertsPercent(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "0.01", cfg.RiskFraction().String())

	cfg.RiskPerTrade = decimal.NewFromFloat(0.5)
	assert.Equal(t, "0.005", cfg.RiskFraction().String())
}

func TestEnvOverridesAndCredentials(t *testing.T) {
	t.Setenv(EnvAPIKey, "key")
	t.Setenv(EnvAPISecret, "secret")
	t.Setenv(EnvTelegramToken, "token")
	t.Setenv(EnvTelegramUsers, "100, 200")
	t.Setenv(EnvDryRun, "false")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.False(t, cfg.DryRun)
	assert.Equal(t, "key", cfg.Credentials.APIKey)
	assert.Equal(t, "secret", cfg.Credentials.APISecret)
	assert.Equal(t, []int64{100, 200}, cfg.Credentials.TelegramUsers)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLiveModeRequiresKeys(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvAPISecret, "")
	t.Setenv(EnvDryRun, "false")

	_, err := Load(writeConfig(t, minimalConfig))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvAPIKey)
}

func TestValidateRejectsDuplicateRanks(t *testing.T) {
	cfg := Default()
	cfg.Coins = nil
	require.Error(t, cfg.Validate())

	cfg, err := Load(writeConfig(t, `{
		"data_dir": "/tmp/ver3",
		"coins": [
			{"symbol": "BTC", "pair": "BTC/KRW", "rank": 1},
			{"symbol": "ETH", "pair": "ETH/KRW", "rank": 1}
		]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "share rank")
	_ = cfg
}

func TestValidateTimeoutOrdering(t *testing.T) {
	_, err := Load(writeConfig(t, `{
		"data_dir": "/tmp/ver3",
		"coins": [{"symbol": "BTC", "pair": "BTC/KRW", "rank": 1}],
		"portfolio": {
			"timeframe": "4h",
			"daily_timeframe": "1d",
			"candle_limit": 220,
			"max_positions": 2,
			"max_daily_loss_pct": 3,
			"max_consecutive_losses": 3,
			"per_coin_timeout": "3m",
			"total_timeout": "2m"
		}
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "per_coin_timeout")
}

func TestOrderLogBackendSelection(t *testing.T) {
	assert.Equal(t, OrderLogBunt, Default().OrderLog)

	cfg, err := Load(writeConfig(t, `{
		"data_dir": "/tmp/ver3",
		"order_log": "sqlite",
		"coins": [{"symbol": "BTC", "pair": "BTC/KRW", "rank": 1}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, OrderLogSQLite, cfg.OrderLog)

	_, err = Load(writeConfig(t, `{
		"data_dir": "/tmp/ver3",
		"order_log": "postgres",
		"coins": [{"symbol": "BTC", "pair": "BTC/KRW", "rank": 1}]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order_log")
}

func TestMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
