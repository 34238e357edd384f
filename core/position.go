package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Position is an open long position for a single coin. At most one
// position exists per coin; it is created and mutated only by the
// live executor.
type Position struct {
	Coin              string           `json:"coin"`
	EntryPrice        decimal.Decimal  `json:"entry_price"`
	Size              decimal.Decimal  `json:"size"`
	EntryTime         time.Time        `json:"entry_time"`
	RegimeAtEntry     Regime           `json:"regime_at_entry"`
	EntryScore        float64          `json:"entry_score"`
	StopLossPrice     decimal.Decimal  `json:"stop_loss_price"`
	FirstTargetPrice  decimal.Decimal  `json:"first_target_price"`
	SecondTargetPrice decimal.Decimal  `json:"second_target_price"`
	ProfitTarget      ProfitTargetMode `json:"profit_target_mode"`
	FirstTargetHit    bool             `json:"first_target_hit"`
	HighestSinceEntry decimal.Decimal  `json:"highest_since_entry"`
	EntriesTaken      int              `json:"entries_taken"`
	LastExitReason    string           `json:"last_exit_reason,omitempty"`
}

// Validate checks the invariants a freshly created position must satisfy.
func (p Position) Validate() error {
	if !p.Size.IsPositive() {
		return fmt.Errorf("position %s: size must be positive", p.Coin)
	}
	if p.StopLossPrice.GreaterThanOrEqual(p.EntryPrice) {
		return fmt.Errorf("position %s: stop loss must be below entry for a long", p.Coin)
	}
	if p.HighestSinceEntry.LessThan(p.EntryPrice) {
		return fmt.Errorf("position %s: highest-since-entry below entry price", p.Coin)
	}
	if p.EntriesTaken < 1 || p.EntriesTaken > 3 {
		return fmt.Errorf("position %s: entries taken out of range", p.Coin)
	}
	return nil
}

// ObservePrice records a new price tick, updating the running high.
func (p *Position) ObservePrice(price decimal.Decimal) {
	if price.GreaterThan(p.HighestSinceEntry) {
		p.HighestSinceEntry = price
	}
}

// RaiseStop lifts the stop-loss to candidate if it is higher than the
// current stop. The stop never decreases.
func (p *Position) RaiseStop(candidate decimal.Decimal) {
	if candidate.GreaterThan(p.StopLossPrice) {
		p.StopLossPrice = candidate
	}
}

// UnrealizedPnLPct returns the percent gain at a given price relative to entry.
func (p Position) UnrealizedPnLPct(price decimal.Decimal) decimal.Decimal {
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	return price.Sub(p.EntryPrice).Div(p.EntryPrice).Mul(decimal.NewFromInt(100))
}
