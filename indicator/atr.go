package indicator

import (
	"math"

	"github.com/ver3trade/engine/core"
)

// trueRange computes the true range of bar i against the prior close.
func trueRange(bars []core.Candle, i int) float64 {
	highLow := bars[i].High - bars[i].Low
	highClose := math.Abs(bars[i].High - bars[i-1].Close)
	lowClose := math.Abs(bars[i].Low - bars[i-1].Close)
	return math.Max(highLow, math.Max(highClose, lowClose))
}

// ATR computes the average true range with Wilder smoothing and returns
// the latest value. A bar with zero true range carries the previous ATR
// forward instead of decaying it.
func ATR(bars []core.Candle, period int) (float64, error) {
	if period <= 0 || len(bars) < period+1 {
		return 0, insufficient("atr", period+1, len(bars))
	}

	// Seed with the simple mean of the first period true ranges
	var seed float64
	for i := 1; i <= period; i++ {
		seed += trueRange(bars, i)
	}
	atr := seed / float64(period)

	for i := period + 1; i < len(bars); i++ {
		tr := trueRange(bars, i)
		if tr == 0 {
			continue
		}
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr, nil
}

// ATRPercent returns ATR as a percentage of the latest close.
func ATRPercent(bars []core.Candle, period int) (float64, error) {
	atr, err := ATR(bars, period)
	if err != nil {
		return 0, err
	}
	lastClose := bars[len(bars)-1].Close
	if lastClose == 0 {
		return 0, nil
	}
	return atr / lastClose * 100, nil
}
