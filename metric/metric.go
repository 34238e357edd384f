// Package metric computes trading performance statistics for the
// shutdown report and the analytics files.
package metric

import (
	"math"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of the values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Payoff calculates the ratio of average wins to average losses.
func Payoff(values []float64) float64 {
	wins, losses := partition(values)

	if len(losses) == 0 {
		return 10 // no losses observed
	}

	avgWin := stat.Mean(wins, nil)
	avgLoss := stat.Mean(losses, nil)
	if avgLoss == 0 {
		return 10
	}
	return math.Abs(avgWin / avgLoss)
}

// ProfitFactor calculates the ratio of gross profit to gross loss.
func ProfitFactor(values []float64) float64 {
	var totalWins, totalLosses float64
	for _, value := range values {
		if value >= 0 {
			totalWins += value
		} else {
			totalLosses += value
		}
	}

	if totalLosses == 0 {
		return 10
	}
	return math.Abs(totalWins / totalLosses)
}

// SQN calculates the system quality number sqrt(n) × mean/stddev.
func SQN(values []float64) float64 {
	n := float64(len(values))
	if n == 0 {
		return 0
	}

	mean, stdDev := stat.MeanStdDev(values, nil)
	if stdDev == 0 {
		return 0
	}
	return math.Sqrt(n) * mean / stdDev
}

// BootstrapInterval is a bootstrap confidence interval for a measure.
type BootstrapInterval struct {
	Lower  float64
	Upper  float64
	StdDev float64
	Mean   float64
}

// Bootstrap estimates the confidence interval of measure over values by
// resampling with replacement.
func Bootstrap(values []float64, measure func([]float64) float64, sampleSize int, confidence float64) BootstrapInterval {
	if len(values) == 0 {
		return BootstrapInterval{}
	}

	data := make([]float64, 0, sampleSize)
	for i := 0; i < sampleSize; i++ {
		sample := make([]float64, len(values))
		for j := range sample {
			sample[j] = lo.Sample(values)
		}
		data = append(data, measure(sample))
	}

	tail := 1 - confidence
	sort.Float64s(data)

	mean, stdDev := stat.MeanStdDev(data, nil)
	return BootstrapInterval{
		Lower:  stat.Quantile(tail/2, stat.LinInterp, data, nil),
		Upper:  stat.Quantile(1-tail/2, stat.LinInterp, data, nil),
		StdDev: stdDev,
		Mean:   mean,
	}
}

func partition(values []float64) (wins, losses []float64) {
	for _, value := range values {
		if value >= 0 {
			wins = append(wins, value)
		} else {
			losses = append(losses, math.Abs(value))
		}
	}
	return wins, losses
}
