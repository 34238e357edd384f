package core

// Regime is a coarse classification of market trend and strength,
// derived from the EMA50/EMA200 spread and ADX on daily candles.
type Regime string

// Available market regimes
const (
	RegimeStrongBullish Regime = "strong_bullish"
	RegimeBullish       Regime = "bullish"
	RegimeNeutral       Regime = "neutral"
	RegimeBearish       Regime = "bearish"
	RegimeStrongBearish Regime = "strong_bearish"
	RegimeRanging       Regime = "ranging"
)

// IsBearish reports whether the regime requires the extreme-oversold entry gate.
func (r Regime) IsBearish() bool {
	return r == RegimeBearish || r == RegimeStrongBearish
}

// VolatilityBucket classifies ATR/close x 100 into coarse volatility levels.
type VolatilityBucket string

// Available volatility buckets
const (
	VolatilityLow     VolatilityBucket = "low"
	VolatilityNormal  VolatilityBucket = "normal"
	VolatilityHigh    VolatilityBucket = "high"
	VolatilityExtreme VolatilityBucket = "extreme"
)
