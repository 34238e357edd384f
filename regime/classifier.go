// Package regime classifies daily market data into coarse regimes and
// volatility buckets that drive the dynamic-factor tables.
package regime

import (
	"fmt"

	"github.com/ver3trade/engine/core"
	"github.com/ver3trade/engine/indicator"
)

// Classification parameters
const (
	// MinBars is the minimum daily history required for classification.
	MinBars = 50
	// RecommendedBars gives the long EMA its full period plus warmup.
	RecommendedBars = 220

	emaShortPeriod      = 50
	emaLongPeriod       = 200
	adxPeriod           = 14
	adxRangingThreshold = 20.0
	atrPeriod           = 14
)

// Classify maps a daily OHLCV series to a market regime. When fewer
// bars than the long EMA period are available the long EMA is computed
// over the whole series; below MinBars classification fails with
// ErrInsufficientData and the caller must fall back to the coin's last
// valid regime.
func Classify(bars []core.Candle) (core.Regime, error) {
	if len(bars) < MinBars {
		return "", fmt.Errorf("regime: %w: need %d daily bars, got %d",
			core.ErrInsufficientData, MinBars, len(bars))
	}

	closes := core.Closes(bars)

	emaShort, err := indicator.EMALast(closes, emaShortPeriod)
	if err != nil {
		return "", fmt.Errorf("regime: %w", err)
	}

	longPeriod := emaLongPeriod
	if len(closes) < longPeriod {
		longPeriod = len(closes)
	}
	emaLong, err := indicator.EMALast(closes, longPeriod)
	if err != nil {
		return "", fmt.Errorf("regime: %w", err)
	}
	if emaLong == 0 {
		return "", fmt.Errorf("regime: zero long EMA")
	}

	adx, err := indicator.ADX(bars, adxPeriod)
	if err != nil {
		return "", fmt.Errorf("regime: %w", err)
	}

	spreadPct := (emaShort - emaLong) / emaLong * 100
	return FromMetrics(spreadPct, adx), nil
}

// FromMetrics applies the classification thresholds to a precomputed
// EMA spread (percent) and ADX value. A weak ADX overrides the spread.
func FromMetrics(emaSpreadPct, adx float64) core.Regime {
	if adx < adxRangingThreshold {
		return core.RegimeRanging
	}

	switch {
	case emaSpreadPct > 5:
		return core.RegimeStrongBullish
	case emaSpreadPct > 2:
		return core.RegimeBullish
	case emaSpreadPct > -2:
		return core.RegimeNeutral
	case emaSpreadPct > -5:
		return core.RegimeBearish
	default:
		return core.RegimeStrongBearish
	}
}

// Volatility buckets the 4h series ATR as a percentage of the latest
// close. The percentage is returned alongside for persistence.
func Volatility(bars []core.Candle) (core.VolatilityBucket, float64, error) {
	atrPct, err := indicator.ATRPercent(bars, atrPeriod)
	if err != nil {
		return "", 0, fmt.Errorf("volatility: %w", err)
	}
	return BucketFor(atrPct), atrPct, nil
}

// BucketFor maps an ATR percentage onto its volatility bucket.
func BucketFor(atrPct float64) core.VolatilityBucket {
	switch {
	case atrPct < 1.5:
		return core.VolatilityLow
	case atrPct < 3.0:
		return core.VolatilityNormal
	case atrPct < 5.0:
		return core.VolatilityHigh
	default:
		return core.VolatilityExtreme
	}
}
