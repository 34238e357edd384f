package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ver3trade/engine/core"
)

func barsFromHLC(hlc [][3]float64) []core.Candle {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.Candle, len(hlc))
	for i, v := range hlc {
		bars[i] = core.Candle{
			Pair:   "BTC/KRW",
			Time:   start.Add(time.Duration(i) * 4 * time.Hour),
			High:   v[0],
			Low:    v[1],
			Close:  v[2],
			Open:   v[2],
			Volume: 1,
		}
	}
	return bars
}

func trendingBars(n int, step float64) []core.Candle {
	hlc := make([][3]float64, n)
	price := 100.0
	for i := range hlc {
		price += step
		hlc[i] = [3]float64{price + 1, price - 1, price}
	}
	return barsFromHLC(hlc)
}

func TestSMA(t *testing.T) {
	v, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	_, err = SMA([]float64{1, 2}, 3)
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestEMASeededWithSMA(t *testing.T) {
	series, err := EMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	require.Len(t, series, 5)

	assert.True(t, math.IsNaN(series[0]))
	assert.True(t, math.IsNaN(series[1]))
	assert.Equal(t, 2.0, series[2]) // SMA seed
	assert.Equal(t, 3.0, series[3])
	assert.Equal(t, 4.0, series[4])
}

func TestEMAConstantSeries(t *testing.T) {
	values := []float64{7, 7, 7, 7, 7, 7, 7}
	last, err := EMALast(values, 4)
	require.NoError(t, err)
	assert.Equal(t, 7.0, last)
}

func TestRSI(t *testing.T) {
	t.Run("hand computed", func(t *testing.T) {
		v, err := RSI([]float64{1, 2, 1.5, 1.75}, 2)
		require.NoError(t, err)
		assert.InDelta(t, 75.0, v, 1e-9)
	})

	t.Run("all gains is 100", func(t *testing.T) {
		v, err := RSI([]float64{1, 2, 3, 4, 5, 6}, 4)
		require.NoError(t, err)
		assert.Equal(t, 100.0, v)
	})

	t.Run("flat series is 50", func(t *testing.T) {
		v, err := RSI([]float64{3, 3, 3, 3, 3, 3}, 4)
		require.NoError(t, err)
		assert.Equal(t, 50.0, v)
	})

	t.Run("warmup", func(t *testing.T) {
		_, err := RSI([]float64{1, 2, 3}, 14)
		assert.ErrorIs(t, err, core.ErrInsufficientData)
	})
}

func TestATRZeroTrueRangeCarriesForward(t *testing.T) {
	bars := barsFromHLC([][3]float64{
		{10.5, 9.5, 10},
		{12, 9, 11},      // TR 3
		{11.5, 10.5, 11}, // TR 1
		{11, 11, 11},     // TR 0, must not decay the ATR
	})

	atr, err := ATR(bars, 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, atr)

	bars = append(bars, barsFromHLC([][3]float64{{13, 11, 12}})...)
	bars[4].Time = bars[3].Time.Add(4 * time.Hour)
	atr, err = ATR(bars, 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, atr) // (2*1 + 2) / 2
}

func TestStochastic(t *testing.T) {
	hlc := [][3]float64{
		{2, 1, 1.2},
		{2, 1, 1.4},
		{2, 1, 1.8},
		{2, 1, 1.1},
	}
	k, d, err := Stochastic(barsFromHLC(hlc), 3, 2)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(k[1]))
	assert.InDelta(t, 80.0, k[2], 1e-9)
	assert.InDelta(t, 10.0, k[3], 1e-9)
	assert.InDelta(t, 45.0, d[3], 1e-9)
}

func TestStochasticFlatRange(t *testing.T) {
	hlc := [][3]float64{{5, 5, 5}, {5, 5, 5}, {5, 5, 5}, {5, 5, 5}}
	k, _, err := Stochastic(barsFromHLC(hlc), 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 50.0, k[3])
}

func TestCrossedAbove(t *testing.T) {
	assert.True(t, CrossedAbove([]float64{1, 5}, []float64{3, 4}))
	assert.True(t, CrossedAbove([]float64{1, 4}, []float64{3, 4})) // touch counts
	assert.False(t, CrossedAbove([]float64{5, 6}, []float64{3, 4}))
	assert.False(t, CrossedAbove([]float64{5, 2}, []float64{3, 4}))
	assert.False(t, CrossedAbove([]float64{math.NaN(), 5}, []float64{3, 4}))
}

func TestBollinger(t *testing.T) {
	bands, err := Bollinger([]float64{1, 2, 3, 4, 5}, 5, 2)
	require.NoError(t, err)

	std := math.Sqrt(2)
	assert.InDelta(t, 3.0, bands.Middle, 1e-9)
	assert.InDelta(t, 3.0+2*std, bands.Upper, 1e-9)
	assert.InDelta(t, 3.0-2*std, bands.Lower, 1e-9)
}

func TestADX(t *testing.T) {
	bars := trendingBars(60, 2)

	adx, err := ADX(bars, 14)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, adx, 0.0)
	assert.LessOrEqual(t, adx, 100.0)
	// A clean monotonic trend should read as strongly directional
	assert.Greater(t, adx, 25.0)

	_, err = ADX(bars[:20], 14)
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

// Indicator purity: identical inputs must be bit-identical across calls.
func TestDeterminism(t *testing.T) {
	bars := trendingBars(80, 1.3)
	closes := core.Closes(bars)

	ema1, err := EMA(closes, 20)
	require.NoError(t, err)
	ema2, _ := EMA(closes, 20)
	for i := range ema1 {
		if math.IsNaN(ema1[i]) {
			assert.True(t, math.IsNaN(ema2[i]))
			continue
		}
		assert.Equal(t, ema1[i], ema2[i])
	}

	atr1, _ := ATR(bars, 14)
	atr2, _ := ATR(bars, 14)
	assert.Equal(t, atr1, atr2)

	adx1, _ := ADX(bars, 14)
	adx2, _ := ADX(bars, 14)
	assert.Equal(t, adx1, adx2)

	rsi1, _ := RSI(closes, 14)
	rsi2, _ := RSI(closes, 14)
	assert.Equal(t, rsi1, rsi2)
}
