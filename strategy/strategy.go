// Package strategy implements the score-based entry/exit decision logic.
package strategy

import (
	"github.com/ver3trade/engine/core"
)

// Strategy analyzes a single coin's 4h series under the active factors
// and emits a decision. Implementations must be stateless with respect
// to the series: the same inputs always produce the same decision.
type Strategy interface {
	// WarmupPeriod is the number of 4h bars required before Analyze can run.
	WarmupPeriod() int
	// Analyze inspects the series and the current position (nil when flat)
	// and returns the intended action with its reason and the indicator
	// snapshot it was based on.
	Analyze(bars []core.Candle, factors core.Factors, position *core.Position) (core.Decision, error)
}

// Decision reasons shared with the executor and cycle summaries
const (
	ReasonEntryScore    = "entry_score"
	ReasonScoreBelowMin = "score_below_min"
	ReasonOversoldGate  = "extreme_oversold_gate"
	ReasonStopLoss      = "stop_loss"
	ReasonFirstTarget   = "first_target"
	ReasonProfitTarget  = "profit_target"
	ReasonMeanReversion = "mean_reversion"
	ReasonHold          = "hold"
)
