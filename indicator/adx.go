package indicator

import (
	"math"

	"github.com/ver3trade/engine/core"
)

// ADX computes the average directional index with the standard Wilder
// DI+/DI- construction and returns the latest value.
func ADX(bars []core.Candle, period int) (float64, error) {
	need := 2*period + 1
	if period <= 0 || len(bars) < need {
		return 0, insufficient("adx", need, len(bars))
	}

	// Directional movement and true range per bar
	n := len(bars) - 1
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < len(bars); i++ {
		upMove := bars[i].High - bars[i-1].High
		downMove := bars[i-1].Low - bars[i].Low
		if upMove > downMove && upMove > 0 {
			plusDM[i-1] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i-1] = downMove
		}
		tr[i-1] = trueRange(bars, i)
	}

	// Wilder-smoothed sums seeded with the first period totals
	var smPlus, smMinus, smTR float64
	for i := 0; i < period; i++ {
		smPlus += plusDM[i]
		smMinus += minusDM[i]
		smTR += tr[i]
	}

	dx := make([]float64, 0, n-period+1)
	appendDX := func() {
		if smTR == 0 {
			dx = append(dx, 0)
			return
		}
		plusDI := smPlus / smTR * 100
		minusDI := smMinus / smTR * 100
		sum := plusDI + minusDI
		if sum == 0 {
			dx = append(dx, 0)
			return
		}
		dx = append(dx, math.Abs(plusDI-minusDI)/sum*100)
	}
	appendDX()

	for i := period; i < n; i++ {
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		smTR = smTR - smTR/float64(period) + tr[i]
		appendDX()
	}

	// ADX: Wilder smoothing of DX, seeded with the first period mean
	adx := mean(dx[:period])
	for i := period; i < len(dx); i++ {
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
	}
	return adx, nil
}
