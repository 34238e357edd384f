// Package indicator provides pure technical-indicator functions over
// ordered OHLCV series. Every function is deterministic: the same input
// always produces the same output, with no hidden state.
package indicator

import (
	"fmt"

	"github.com/ver3trade/engine/core"
)

// insufficient builds the standard warmup error for an indicator.
func insufficient(name string, need, got int) error {
	return fmt.Errorf("%s: %w: need %d bars, got %d", name, core.ErrInsufficientData, need, got)
}

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if len(values) < period || period <= 0 {
		return 0, insufficient("sma", period, len(values))
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// mean averages a full slice.
func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
