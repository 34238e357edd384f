package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ver3trade/engine/core"
	zl "github.com/ver3trade/engine/logger/zerolog"
)

func newStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFileStore(dir, zl.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func samplePosition() core.Position {
	entry := decimal.NewFromInt(100)
	return core.Position{
		Coin:              "BTC",
		EntryPrice:        entry,
		Size:              decimal.NewFromInt(2666),
		EntryTime:         time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		RegimeAtEntry:     core.RegimeBullish,
		EntryScore:        4,
		StopLossPrice:     decimal.NewFromFloat(96.25),
		FirstTargetPrice:  decimal.NewFromFloat(105.625),
		SecondTargetPrice: decimal.NewFromFloat(109.375),
		ProfitTarget:      core.TargetBBUpper,
		HighestSinceEntry: entry,
		EntriesTaken:      1,
	}
}

func TestStateRoundTrip(t *testing.T) {
	s, _ := newStore(t)

	state := core.NewEngineState()
	state.UpdatedAt = time.Now().UTC()
	state.Positions = []core.Position{samplePosition()}
	state.LastRegimePerCoin["BTC"] = core.RegimeBullish
	state.DailyLossPct = 1.2
	state.ConsecutiveLosses = 2
	state.ObservationMode = true

	require.NoError(t, s.SaveState(state))

	loaded, err := s.LoadState()
	require.NoError(t, err)
	assert.Equal(t, core.RegimeBullish, loaded.LastRegimePerCoin["BTC"])
	assert.Equal(t, 2, loaded.ConsecutiveLosses)
	assert.True(t, loaded.ObservationMode)

	require.Len(t, loaded.Positions, 1)
	p := loaded.Positions[0]
	assert.True(t, p.Size.Equal(decimal.NewFromInt(2666)))
	assert.True(t, p.StopLossPrice.Equal(decimal.NewFromFloat(96.25)))
}

func TestLoadStateMissingFilesYieldsDefaults(t *testing.T) {
	s, _ := newStore(t)

	state, err := s.LoadState()
	require.NoError(t, err)
	assert.Empty(t, state.Positions)
	assert.NotNil(t, state.LastRegimePerCoin)
	assert.False(t, state.ObservationMode)
}

func TestLoadStateCorruptStateFileRecovers(t *testing.T) {
	s, dir := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, StateFile), []byte("{truncated"), 0o644))

	state, err := s.LoadState()
	require.NoError(t, err)
	assert.Empty(t, state.Positions)
}

func TestLoadStateCorruptPositionsIsFatal(t *testing.T) {
	s, dir := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, PositionsFile), []byte("not json"), 0o644))

	_, err := s.LoadState()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStateCorruption)
}

func TestSaveStateLeavesNoTempFiles(t *testing.T) {
	s, dir := newStore(t)
	require.NoError(t, s.SaveState(core.NewEngineState()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestAppendTransactionPreservesOrder(t *testing.T) {
	s, _ := newStore(t)

	first := core.Transaction{
		Timestamp: time.Now().UTC(),
		Coin:      "BTC",
		Side:      core.SideBuy,
		Qty:       decimal.NewFromInt(1),
		Price:     decimal.NewFromInt(100),
		Reason:    "entry_score",
	}
	second := first
	second.Side = core.SideSell
	second.Reason = "stop_loss"

	require.NoError(t, s.AppendTransaction(first))
	require.NoError(t, s.AppendTransaction(second))

	rows, err := s.Transactions()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, core.SideBuy, rows[0].Side)
	assert.Equal(t, "stop_loss", rows[1].Reason)
}

func TestDailySnapshotReplacesSameDate(t *testing.T) {
	s, _ := newStore(t)

	require.NoError(t, s.SaveDailySnapshot(core.DailySnapshot{
		Date: "2025-03-02", TotalAssets: decimal.NewFromInt(1_000_000),
	}))
	require.NoError(t, s.SaveDailySnapshot(core.DailySnapshot{
		Date: "2025-03-01", TotalAssets: decimal.NewFromInt(990_000),
	}))
	require.NoError(t, s.SaveDailySnapshot(core.DailySnapshot{
		Date: "2025-03-02", TotalAssets: decimal.NewFromInt(1_010_000),
	}))

	rows, err := s.DailySnapshots()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-03-01", rows[0].Date)
	assert.True(t, rows[1].TotalAssets.Equal(decimal.NewFromInt(1_010_000)))
}

func TestOutcomesRoundTrip(t *testing.T) {
	s, _ := newStore(t)

	out := core.TradeOutcome{
		ClosedAt: time.Now().UTC(),
		Coin:     "ETH",
		Reason:   "profit_target",
		Regime:   core.RegimeBullish,
		PnL:      decimal.NewFromInt(5000),
		PnLPct:   decimal.NewFromFloat(5.0),
	}
	require.NoError(t, s.AppendOutcome(out))

	got, err := s.Outcomes()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ETH", got[0].Coin)
	assert.True(t, got[0].PnL.Equal(decimal.NewFromInt(5000)))
}

func TestSecondInstanceRefused(t *testing.T) {
	s, dir := newStore(t)

	_, err := NewFileStore(dir, zl.NewNop())
	require.Error(t, err)

	require.NoError(t, s.Close())
	again, err := NewFileStore(dir, zl.NewNop())
	require.NoError(t, err)
	again.Close()
}

func TestStaleLockIsReclaimed(t *testing.T) {
	dir := t.TempDir()
	// A pid that cannot exist marks the lock as stale.
	require.NoError(t, os.WriteFile(filepath.Join(dir, lockFile), []byte("99999999"), 0o644))

	s, err := NewFileStore(dir, zl.NewNop())
	require.NoError(t, err)
	s.Close()
}
