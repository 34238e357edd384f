package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ver3trade/engine/core"
)

func TestSQLiteOrderLogRecordAndQuery(t *testing.T) {
	log, err := NewSQLiteOrderLog(filepath.Join(t.TempDir(), "orders.sqlite"), DefaultSQLConfig())
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	fills := []core.Fill{
		{OrderID: "1", Pair: "BTC/KRW", Side: core.SideBuy, Qty: decimal.NewFromInt(1), AvgPrice: decimal.RequireFromString("100.0001"), Fee: decimal.RequireFromString("0.05"), Time: base},
		{OrderID: "2", Pair: "ETH/KRW", Side: core.SideBuy, Qty: decimal.NewFromInt(5), AvgPrice: decimal.NewFromInt(20), Time: base.Add(time.Minute)},
		{OrderID: "3", Pair: "BTC/KRW", Side: core.SideSell, Qty: decimal.NewFromInt(1), AvgPrice: decimal.NewFromInt(110), Time: base.Add(2 * time.Minute)},
	}
	for _, f := range fills {
		require.NoError(t, log.RecordFill(ctx, f))
	}

	all, err := log.Fills(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "1", all[0].OrderID)
	assert.Equal(t, "3", all[2].OrderID)
	assert.True(t, all[0].AvgPrice.Equal(decimal.RequireFromString("100.0001")), all[0].AvgPrice.String())
	assert.True(t, all[0].Fee.Equal(decimal.RequireFromString("0.05")))

	btc, err := log.Fills(ctx, FillWithPair("BTC/KRW"))
	require.NoError(t, err)
	require.Len(t, btc, 2)

	sells, err := log.Fills(ctx, FillWithPair("BTC/KRW"), FillWithSide(core.SideSell))
	require.NoError(t, err)
	require.Len(t, sells, 1)
	assert.True(t, sells[0].AvgPrice.Equal(decimal.NewFromInt(110)))
}

func TestSQLiteOrderLogPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.sqlite")
	ctx := context.Background()

	log, err := NewSQLiteOrderLog(path, DefaultSQLConfig())
	require.NoError(t, err)
	require.NoError(t, log.RecordFill(ctx, core.Fill{
		OrderID: "1", Pair: "BTC/KRW", Side: core.SideBuy,
		Qty: decimal.NewFromInt(2), AvgPrice: decimal.NewFromInt(100),
		Time: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, log.Close())

	reopened, err := NewSQLiteOrderLog(path, DefaultSQLConfig())
	require.NoError(t, err)
	defer reopened.Close()

	all, err := reopened.Fills(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "1", all[0].OrderID)
}
