package core

import "time"

// ProfitTargetMode selects the Bollinger band used as the final profit target.
type ProfitTargetMode string

// Available profit target modes
const (
	TargetBBUpper  ProfitTargetMode = "bb_upper"
	TargetBBMiddle ProfitTargetMode = "bb_middle"
)

// EntryWeights are the multipliers applied to each entry-score component.
type EntryWeights struct {
	BBTouch     float64 `json:"bb_touch"`
	RSIOversold float64 `json:"rsi_oversold"`
	StochCross  float64 `json:"stoch_cross"`
}

// Factors is the active, cycle-scoped parameter set derived from the
// current regime and volatility bucket. It is recomputed at the start of
// every cycle and carries no hysteresis.
type Factors struct {
	Regime           Regime           `json:"regime"`
	Volatility       VolatilityBucket `json:"volatility_bucket"`
	EntryWeights     EntryWeights     `json:"entry_weights"`
	MinEntryScore    int              `json:"min_entry_score"`
	RSIOversold      float64          `json:"rsi_oversold_threshold"`
	StochOversold    float64          `json:"stoch_oversold_threshold"`
	Chandelier       float64          `json:"chandelier_multiplier"`
	PositionSizeMul  float64          `json:"position_size_multiplier"`
	ProfitTarget     ProfitTargetMode `json:"profit_target_mode"`
	TrailingStopPct  float64          `json:"trailing_stop_pct"`
	PyramidThreshold float64          `json:"pyramid_threshold_pct"`

	// RequireOversoldGate forces the extreme-oversold entry gate
	// regardless of score (bearish regimes).
	RequireOversoldGate bool `json:"require_oversold_gate"`
}

// FactorsRecord is the persisted snapshot of the last computed factors.
type FactorsRecord struct {
	Factors     Factors   `json:"factors"`
	ATRPct      float64   `json:"atr_pct"`
	GeneratedAt time.Time `json:"generated_at"`
}
