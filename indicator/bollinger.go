package indicator

import "math"

// Bands holds one set of Bollinger band values.
type Bands struct {
	Lower  float64
	Middle float64
	Upper  float64
}

// Bollinger computes the latest Bollinger bands: an SMA middle band with
// upper and lower bands stdMul population standard deviations away.
func Bollinger(values []float64, period int, stdMul float64) (Bands, error) {
	if period <= 0 || len(values) < period {
		return Bands{}, insufficient("bollinger", period, len(values))
	}

	window := values[len(values)-period:]
	middle := mean(window)

	var variance float64
	for _, v := range window {
		diff := v - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return Bands{
		Lower:  middle - stdMul*stdDev,
		Middle: middle,
		Upper:  middle + stdMul*stdDev,
	}, nil
}
