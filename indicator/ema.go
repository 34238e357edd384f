package indicator

import "math"

// EMA computes the exponential moving average, seeded with the
// period-length SMA to avoid transient bias. The returned series is
// aligned with the input; indices before the warmup point are NaN.
func EMA(values []float64, period int) ([]float64, error) {
	if period <= 0 || len(values) < period {
		return nil, insufficient("ema", period, len(values))
	}

	out := make([]float64, len(values))
	for i := 0; i < period-1; i++ {
		out[i] = math.NaN()
	}

	// Seed with the SMA of the first period values
	out[period-1] = mean(values[:period])

	multiplier := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*multiplier + out[i-1]
	}
	return out, nil
}

// EMALast returns only the most recent EMA value.
func EMALast(values []float64, period int) (float64, error) {
	series, err := EMA(values, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}
