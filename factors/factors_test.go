package factors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ver3trade/engine/core"
)

// The full regime x volatility grid is the contract; every cell is checked.
func TestComputeGrid(t *testing.T) {
	type expect struct {
		minScore   int
		chandelier float64
		sizeMul    float64
	}

	grid := map[core.Regime]map[core.VolatilityBucket]expect{
		core.RegimeStrongBullish: {
			core.VolatilityLow:     {1, 3.5, 1.2},
			core.VolatilityNormal:  {1, 3.0, 1.0},
			core.VolatilityHigh:    {2, 2.5, 0.7},
			core.VolatilityExtreme: {3, 2.5, 0.5},
		},
		core.RegimeBullish: {
			core.VolatilityLow:     {1, 3.5, 1.2},
			core.VolatilityNormal:  {1, 3.0, 1.0},
			core.VolatilityHigh:    {2, 2.5, 0.7},
			core.VolatilityExtreme: {3, 2.5, 0.5},
		},
		core.RegimeNeutral: {
			core.VolatilityLow:     {3, 3.5, 1.2},
			core.VolatilityNormal:  {3, 3.0, 1.0},
			core.VolatilityHigh:    {4, 2.5, 0.7},
			core.VolatilityExtreme: {5, 2.5, 0.5},
		},
		core.RegimeBearish: {
			core.VolatilityLow:     {3, 2.975, 1.2},
			core.VolatilityNormal:  {3, 2.55, 1.0},
			core.VolatilityHigh:    {4, 2.5, 0.7},
			core.VolatilityExtreme: {5, 2.5, 0.5},
		},
		core.RegimeStrongBearish: {
			core.VolatilityLow:     {5, 2.8, 1.2},
			core.VolatilityNormal:  {5, 2.5, 1.0},
			core.VolatilityHigh:    {6, 2.5, 0.7},
			core.VolatilityExtreme: {7, 2.5, 0.5},
		},
		core.RegimeRanging: {
			core.VolatilityLow:     {2, 3.5, 1.2},
			core.VolatilityNormal:  {2, 3.0, 1.0},
			core.VolatilityHigh:    {3, 2.5, 0.7},
			core.VolatilityExtreme: {4, 2.5, 0.5},
		},
	}

	for regime, buckets := range grid {
		for bucket, want := range buckets {
			t.Run(fmt.Sprintf("%s/%s", regime, bucket), func(t *testing.T) {
				f := Compute(regime, bucket)
				assert.Equal(t, want.minScore, f.MinEntryScore, "min entry score")
				assert.InDelta(t, want.chandelier, f.Chandelier, 1e-9, "chandelier")
				assert.InDelta(t, want.sizeMul, f.PositionSizeMul, 1e-9, "position size mul")
				assert.GreaterOrEqual(t, f.Chandelier, 2.5, "chandelier lower bound")
			})
		}
	}
}

func TestProfitTargetModes(t *testing.T) {
	upper := []core.Regime{core.RegimeStrongBullish, core.RegimeBullish, core.RegimeRanging}
	middle := []core.Regime{core.RegimeNeutral, core.RegimeBearish, core.RegimeStrongBearish}

	for _, r := range upper {
		assert.Equal(t, core.TargetBBUpper, Compute(r, core.VolatilityNormal).ProfitTarget, r)
	}
	for _, r := range middle {
		assert.Equal(t, core.TargetBBMiddle, Compute(r, core.VolatilityNormal).ProfitTarget, r)
	}
}

func TestOversoldGateOnlyInBearishRegimes(t *testing.T) {
	for _, r := range []core.Regime{
		core.RegimeStrongBullish, core.RegimeBullish,
		core.RegimeNeutral, core.RegimeRanging,
	} {
		assert.False(t, Compute(r, core.VolatilityNormal).RequireOversoldGate, r)
	}
	assert.True(t, Compute(core.RegimeBearish, core.VolatilityNormal).RequireOversoldGate)
	assert.True(t, Compute(core.RegimeStrongBearish, core.VolatilityNormal).RequireOversoldGate)
}

func TestUnknownInputsFallBack(t *testing.T) {
	f := Compute(core.Regime("???"), core.VolatilityBucket("???"))
	assert.Equal(t, core.RegimeNeutral, f.Regime)
	assert.Equal(t, core.VolatilityNormal, f.Volatility)
}

func TestDefaultWeightsAndThresholds(t *testing.T) {
	f := Compute(core.RegimeBullish, core.VolatilityNormal)
	assert.Equal(t, 1.0, f.EntryWeights.BBTouch)
	assert.Equal(t, 1.0, f.EntryWeights.RSIOversold)
	assert.Equal(t, 1.0, f.EntryWeights.StochCross)
	assert.Equal(t, 30.0, f.RSIOversold)
	assert.Equal(t, 20.0, f.StochOversold)
	assert.Equal(t, 0.02, f.TrailingStopPct)
}
