package exchange

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ver3trade/engine/core"
)

type staticFeeder struct {
	quote float64
}

func (s staticFeeder) CandlesByLimit(context.Context, string, string, int) ([]core.Candle, error) {
	return nil, nil
}

func (s staticFeeder) LastQuote(context.Context, string) (float64, error) {
	return s.quote, nil
}

func TestDryRunBuySellRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := NewDryRun(staticFeeder{quote: 100}, "KRW",
		decimal.NewFromInt(1_000_000), decimal.NewFromFloat(0.001))

	fill, err := d.PlaceMarketOrder(ctx, "BTC/KRW", core.SideBuy, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, fill.AvgPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, fill.Fee.Equal(decimal.NewFromInt(1))) // 1000 * 0.001

	krw, _ := d.Balance(ctx, "KRW")
	btc, _ := d.Balance(ctx, "BTC")
	assert.True(t, krw.Equal(decimal.NewFromInt(998_999)), krw.String())
	assert.True(t, btc.Equal(decimal.NewFromInt(10)))

	_, err = d.PlaceMarketOrder(ctx, "BTC/KRW", core.SideSell, decimal.NewFromInt(10))
	require.NoError(t, err)

	btc, _ = d.Balance(ctx, "BTC")
	assert.True(t, btc.IsZero())
}

func TestDryRunRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	d := NewDryRun(staticFeeder{quote: 100}, "KRW",
		decimal.NewFromInt(500), decimal.NewFromFloat(0.001))

	_, err := d.PlaceMarketOrder(ctx, "BTC/KRW", core.SideBuy, decimal.NewFromInt(10))
	require.Error(t, err)
	assert.Equal(t, core.KindPermanent, core.KindOf(err))

	_, err = d.PlaceMarketOrder(ctx, "BTC/KRW", core.SideSell, decimal.NewFromInt(1))
	require.Error(t, err)
}

func TestDryRunRejectsBadQty(t *testing.T) {
	d := NewDryRun(staticFeeder{quote: 100}, "KRW", decimal.NewFromInt(1000), decimal.Zero)
	_, err := d.PlaceMarketOrder(context.Background(), "BTC/KRW", core.SideBuy, decimal.Zero)
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidParam, core.KindOf(err))
}
