// Package factors derives the active trading parameter set from the
// current market regime and volatility bucket. The tables here are the
// single source of truth; factors carry no hysteresis and are rebuilt
// from scratch every cycle.
package factors

import (
	"math"

	"github.com/ver3trade/engine/core"
)

// Shared defaults
const (
	defaultRSIOversold   = 30.0
	defaultStochOversold = 20.0
	defaultTrailingPct   = 0.02
	defaultPyramidPct    = 0.03

	// chandelierFloor bounds the stop multiplier from below regardless
	// of the regime/volatility combination.
	chandelierFloor = 2.5
)

type regimeModifier struct {
	baseMinScore int
	scoreMul     float64
	stopMul      float64
	target       core.ProfitTargetMode
	oversoldGate bool
}

var regimeTable = map[core.Regime]regimeModifier{
	core.RegimeStrongBullish: {1, 1.0, 1.0, core.TargetBBUpper, false},
	core.RegimeBullish:       {1, 1.0, 1.0, core.TargetBBUpper, false},
	core.RegimeNeutral:       {2, 1.2, 1.0, core.TargetBBMiddle, false},
	core.RegimeBearish:       {2, 1.3, 0.85, core.TargetBBMiddle, true},
	core.RegimeStrongBearish: {3, 1.5, 0.8, core.TargetBBMiddle, true},
	core.RegimeRanging:       {2, 1.0, 1.0, core.TargetBBUpper, false},
}

type volatilityModifier struct {
	sizeMul    float64
	chandelier float64
	scoreBonus int
}

var volatilityTable = map[core.VolatilityBucket]volatilityModifier{
	core.VolatilityLow:     {1.2, 3.5, 0},
	core.VolatilityNormal:  {1.0, 3.0, 0},
	core.VolatilityHigh:    {0.7, 2.5, 1},
	core.VolatilityExtreme: {0.5, 2.5, 2},
}

// Compute builds the full factor set for a (regime, volatility) pair.
// Unknown inputs fall back to Neutral/Normal.
func Compute(regime core.Regime, bucket core.VolatilityBucket) core.Factors {
	rm, ok := regimeTable[regime]
	if !ok {
		regime = core.RegimeNeutral
		rm = regimeTable[regime]
	}
	vm, ok := volatilityTable[bucket]
	if !ok {
		bucket = core.VolatilityNormal
		vm = volatilityTable[bucket]
	}

	chandelier := vm.chandelier * rm.stopMul
	if chandelier < chandelierFloor {
		chandelier = chandelierFloor
	}

	return core.Factors{
		Regime:     regime,
		Volatility: bucket,
		EntryWeights: core.EntryWeights{
			BBTouch:     1.0,
			RSIOversold: 1.0,
			StochCross:  1.0,
		},
		MinEntryScore:       int(math.Ceil(float64(rm.baseMinScore)*rm.scoreMul)) + vm.scoreBonus,
		RSIOversold:         defaultRSIOversold,
		StochOversold:       defaultStochOversold,
		Chandelier:          chandelier,
		PositionSizeMul:     vm.sizeMul,
		ProfitTarget:        rm.target,
		TrailingStopPct:     defaultTrailingPct,
		PyramidThreshold:    defaultPyramidPct,
		RequireOversoldGate: rm.oversoldGate,
	}
}
