package metric

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ver3trade/engine/core"
)

func TestMeasures(t *testing.T) {
	returns := []float64{2, 4, -1, -3}

	assert.InDelta(t, 0.5, Mean(returns), 1e-9)
	assert.InDelta(t, 1.5, Payoff(returns), 1e-9)       // avg win 3 / avg loss 2
	assert.InDelta(t, 1.5, ProfitFactor(returns), 1e-9) // 6 / 4

	assert.Equal(t, 10.0, Payoff([]float64{1, 2}))
	assert.Equal(t, 10.0, ProfitFactor([]float64{1, 2}))
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, SQN(nil))
}

func TestBootstrapBounds(t *testing.T) {
	returns := []float64{1, 2, 3, 4, 5}
	ci := Bootstrap(returns, Mean, 2000, 0.95)

	assert.LessOrEqual(t, ci.Lower, ci.Mean)
	assert.LessOrEqual(t, ci.Mean, ci.Upper)
	assert.GreaterOrEqual(t, ci.Mean, 1.0)
	assert.LessOrEqual(t, ci.Mean, 5.0)

	assert.Equal(t, BootstrapInterval{}, Bootstrap(nil, Mean, 100, 0.95))
}

func outcome(coin string, pnl, pct float64) core.TradeOutcome {
	return core.TradeOutcome{
		ClosedAt: time.Now().UTC(),
		Coin:     coin,
		PnL:      decimal.NewFromFloat(pnl),
		PnLPct:   decimal.NewFromFloat(pct),
	}
}

func TestBuildReports(t *testing.T) {
	reports := BuildReports([]core.TradeOutcome{
		outcome("ETH", 500, 2.5),
		outcome("BTC", 1000, 5),
		outcome("BTC", -400, -2),
	})

	require.Len(t, reports, 2)
	assert.Equal(t, "BTC", reports[0].Coin)
	assert.Equal(t, 2, reports[0].Trades())
	assert.InDelta(t, 50, reports[0].WinRate(), 1e-9)
	assert.InDelta(t, 600, reports[0].TotalProfit, 1e-9)
	assert.Equal(t, "ETH", reports[1].Coin)
}

func TestWriteSummary(t *testing.T) {
	var b strings.Builder
	WriteSummary(&b, []core.TradeOutcome{
		outcome("BTC", 1000, 5),
		outcome("BTC", -400, -2),
		outcome("ETH", 500, 2.5),
	}, "KRW")

	out := b.String()
	assert.Contains(t, out, "BTC")
	assert.Contains(t, out, "CONFIDENCE INTERVAL")
	assert.Contains(t, out, "RETURN:")

	var empty strings.Builder
	WriteSummary(&empty, nil, "KRW")
	assert.Contains(t, empty.String(), "no realized trades")
}
