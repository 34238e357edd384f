package strategy

import (
	"fmt"

	"github.com/ver3trade/engine/core"
	"github.com/ver3trade/engine/indicator"
)

// Indicator periods used by the score strategy
const (
	rsiPeriod    = 14
	stochKPeriod = 14
	stochDPeriod = 3
	bbPeriod     = 20
	bbStdDev     = 2.0
	atrPeriod    = 14
)

// Extreme-oversold gate thresholds for bearish regimes
const (
	gateRSIMax    = 20.0
	gateStochKMax = 10.0
	gateMinHits   = 2
)

// ScoreStrategy scores Bollinger lower-band touches, RSI oversold
// readings and Stochastic oversold crosses against the active minimum
// entry score, and drives exits off the position's stop and targets.
type ScoreStrategy struct{}

// NewScoreStrategy creates the engine's default strategy.
func NewScoreStrategy() *ScoreStrategy {
	return &ScoreStrategy{}
}

// WarmupPeriod implements Strategy. The Bollinger window dominates; a
// little slack keeps Wilder smoothing out of its seed region.
func (s *ScoreStrategy) WarmupPeriod() int { return bbPeriod + atrPeriod + 2 }

// Analyze implements Strategy.
func (s *ScoreStrategy) Analyze(bars []core.Candle, factors core.Factors, position *core.Position) (core.Decision, error) {
	if len(bars) < s.WarmupPeriod() {
		return core.Decision{}, fmt.Errorf("strategy: %w: need %d bars, got %d",
			core.ErrInsufficientData, s.WarmupPeriod(), len(bars))
	}

	snapshot, crossed, err := s.snapshot(bars)
	if err != nil {
		return core.Decision{}, err
	}

	coin := bars[len(bars)-1].Pair
	if position != nil {
		return s.decideExit(coin, snapshot, factors, position), nil
	}
	return s.decideEntry(coin, snapshot, crossed, factors), nil
}

// snapshot computes the indicator values for the latest bar and whether
// the stochastic %K crossed above %D on the last two bars.
func (s *ScoreStrategy) snapshot(bars []core.Candle) (core.IndicatorSnapshot, bool, error) {
	closes := core.Closes(bars)

	rsi, err := indicator.RSI(closes, rsiPeriod)
	if err != nil {
		return core.IndicatorSnapshot{}, false, err
	}

	k, d, err := indicator.Stochastic(bars, stochKPeriod, stochDPeriod)
	if err != nil {
		return core.IndicatorSnapshot{}, false, err
	}

	bands, err := indicator.Bollinger(closes, bbPeriod, bbStdDev)
	if err != nil {
		return core.IndicatorSnapshot{}, false, err
	}

	atr, err := indicator.ATR(bars, atrPeriod)
	if err != nil {
		return core.IndicatorSnapshot{}, false, err
	}

	last := len(bars) - 1
	snapshot := core.IndicatorSnapshot{
		Close:    closes[last],
		RSI:      rsi,
		StochK:   k[last],
		StochD:   d[last],
		BBLower:  bands.Lower,
		BBMiddle: bands.Middle,
		BBUpper:  bands.Upper,
		ATR:      atr,
	}
	return snapshot, indicator.CrossedAbove(k, d), nil
}

// decideEntry scores the oversold setup and emits BUY when the score
// clears the active minimum and the bearish gate (when required) passes.
func (s *ScoreStrategy) decideEntry(coin string, snap core.IndicatorSnapshot, crossed bool, f core.Factors) core.Decision {
	w := f.EntryWeights

	var score float64
	if snap.Close <= snap.BBLower {
		score += 1 * w.BBTouch
	}
	if snap.RSI < f.RSIOversold {
		score += 1 * w.RSIOversold
	}
	if crossed && snap.StochK < f.StochOversold {
		score += 2 * w.StochCross
	}

	decision := core.Decision{
		Coin:       coin,
		Action:     core.ActionHold,
		Score:      score,
		Regime:     f.Regime,
		Indicators: snap,
	}

	if f.RequireOversoldGate && !passesOversoldGate(snap) {
		decision.Reason = ReasonOversoldGate
		return decision
	}

	if score >= float64(f.MinEntryScore) {
		decision.Action = core.ActionBuy
		decision.Reason = ReasonEntryScore
		return decision
	}

	decision.Reason = ReasonScoreBelowMin
	return decision
}

// passesOversoldGate requires at least two extreme-oversold conditions
// before allowing entries in bearish regimes.
func passesOversoldGate(snap core.IndicatorSnapshot) bool {
	hits := 0
	if snap.RSI < gateRSIMax {
		hits++
	}
	if snap.StochK < gateStochKMax {
		hits++
	}
	if snap.Close <= snap.BBLower {
		hits++
	}
	return hits >= gateMinHits
}

// decideExit evaluates the exit ladder in strict priority order:
// stop-loss, first target, then the mode-dependent profit target.
func (s *ScoreStrategy) decideExit(coin string, snap core.IndicatorSnapshot, f core.Factors, p *core.Position) core.Decision {
	decision := core.Decision{
		Coin:       coin,
		Action:     core.ActionHold,
		Reason:     ReasonHold,
		Regime:     f.Regime,
		Indicators: snap,
	}

	stop := p.StopLossPrice.InexactFloat64()
	if snap.Close <= stop {
		decision.Action = core.ActionClose
		decision.Reason = ReasonStopLoss
		return decision
	}

	if !p.FirstTargetHit && snap.Close >= p.FirstTargetPrice.InexactFloat64() {
		decision.Action = core.ActionSellPartial
		decision.Reason = ReasonFirstTarget
		return decision
	}

	switch p.ProfitTarget {
	case core.TargetBBUpper:
		if snap.Close >= snap.BBUpper {
			decision.Action = core.ActionClose
			decision.Reason = ReasonProfitTarget
		}
	case core.TargetBBMiddle:
		if snap.Close >= snap.BBMiddle {
			decision.Action = core.ActionClose
			decision.Reason = ReasonMeanReversion
		}
	}
	return decision
}
