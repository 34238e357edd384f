package indicator

import (
	"math"

	"github.com/ver3trade/engine/core"
)

// Stochastic computes the %K and %D oscillator series. %K compares the
// close against the high/low range of the last kPeriod bars; %D is the
// simple moving average of %K over dPeriod. Both series are aligned with
// the input and NaN before their warmup points. A zero high/low range
// yields a neutral 50.
func Stochastic(bars []core.Candle, kPeriod, dPeriod int) (k, d []float64, err error) {
	need := kPeriod + dPeriod - 1
	if kPeriod <= 0 || dPeriod <= 0 || len(bars) < need {
		return nil, nil, insufficient("stochastic", need, len(bars))
	}

	k = make([]float64, len(bars))
	d = make([]float64, len(bars))
	for i := range k {
		k[i] = math.NaN()
		d[i] = math.NaN()
	}

	for i := kPeriod - 1; i < len(bars); i++ {
		low, high := bars[i].Low, bars[i].High
		for j := i - kPeriod + 1; j < i; j++ {
			if bars[j].Low < low {
				low = bars[j].Low
			}
			if bars[j].High > high {
				high = bars[j].High
			}
		}
		if high == low {
			k[i] = 50
			continue
		}
		k[i] = (bars[i].Close - low) / (high - low) * 100
	}

	for i := kPeriod + dPeriod - 2; i < len(bars); i++ {
		var sum float64
		for j := i - dPeriod + 1; j <= i; j++ {
			sum += k[j]
		}
		d[i] = sum / float64(dPeriod)
	}
	return k, d, nil
}

// CrossedAbove reports whether k crossed above d on the last two bars:
// previous k below previous d, current k at or above current d.
func CrossedAbove(k, d []float64) bool {
	n := len(k)
	if n < 2 || len(d) != n {
		return false
	}
	prevK, prevD := k[n-2], d[n-2]
	curK, curD := k[n-1], d[n-1]
	if math.IsNaN(prevK) || math.IsNaN(prevD) || math.IsNaN(curK) || math.IsNaN(curD) {
		return false
	}
	return prevK < prevD && curK >= curD
}
