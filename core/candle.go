package core

import (
	"fmt"
	"time"
)

// Candle represents a single OHLCV bar for a trading pair.
type Candle struct {
	Pair     string
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Complete bool
}

// GetTime returns the open time of the candle.
func (c Candle) GetTime() time.Time { return c.Time }

// IsEmpty checks if the candle contains no significant data.
func (c Candle) IsEmpty() bool { return c.Pair == "" && c.Close == 0 && c.Open == 0 && c.Volume == 0 }

// Validate checks the OHLCV invariants of a single bar.
func (c Candle) Validate() error {
	if c.Volume < 0 {
		return fmt.Errorf("candle %s @ %s: negative volume", c.Pair, c.Time)
	}
	lo, hi := c.Open, c.Open
	if c.Close < lo {
		lo = c.Close
	}
	if c.Close > hi {
		hi = c.Close
	}
	if c.Low > lo || c.High < hi || c.Low > c.High {
		return fmt.Errorf("candle %s @ %s: high/low do not bound open/close", c.Pair, c.Time)
	}
	return nil
}

// ValidateSeries checks that candles are strictly increasing in time with
// uniform spacing and that every bar satisfies its own OHLCV invariants.
func ValidateSeries(candles []Candle) error {
	var spacing time.Duration
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return err
		}
		if i == 0 {
			continue
		}
		gap := c.Time.Sub(candles[i-1].Time)
		if gap <= 0 {
			return fmt.Errorf("candle series not strictly increasing at index %d", i)
		}
		if spacing == 0 {
			spacing = gap
		} else if gap != spacing {
			return fmt.Errorf("candle series spacing changed at index %d: %s != %s", i, gap, spacing)
		}
	}
	return nil
}

// Closes extracts the close prices of a candle series.
func Closes(candles []Candle) []float64 {
	values := make([]float64, len(candles))
	for i, c := range candles {
		values[i] = c.Close
	}
	return values
}

// Highs extracts the high prices of a candle series.
func Highs(candles []Candle) []float64 {
	values := make([]float64, len(candles))
	for i, c := range candles {
		values[i] = c.High
	}
	return values
}

// Lows extracts the low prices of a candle series.
func Lows(candles []Candle) []float64 {
	values := make([]float64, len(candles))
	for i, c := range candles {
		values[i] = c.Low
	}
	return values
}

// LastCandles returns the last n candles of a series, or the whole series
// when it is shorter than n.
func LastCandles(candles []Candle, n int) []Candle {
	if len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}
