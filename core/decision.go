package core

// Action is the intent emitted by the strategy for a single coin.
type Action string

// Available strategy actions
const (
	ActionBuy         Action = "BUY"
	ActionHold        Action = "HOLD"
	ActionSellPartial Action = "SELL_PARTIAL"
	ActionClose       Action = "CLOSE"
)

// IndicatorSnapshot carries the indicator values a decision was based on,
// so the executor can seed position targets without recomputing them.
type IndicatorSnapshot struct {
	Close    float64 `json:"close"`
	RSI      float64 `json:"rsi"`
	StochK   float64 `json:"stoch_k"`
	StochD   float64 `json:"stoch_d"`
	BBLower  float64 `json:"bb_lower"`
	BBMiddle float64 `json:"bb_middle"`
	BBUpper  float64 `json:"bb_upper"`
	ATR      float64 `json:"atr"`
}

// Decision is the outcome of one per-coin analysis.
type Decision struct {
	Coin       string            `json:"coin"`
	Action     Action            `json:"action"`
	Reason     string            `json:"reason"`
	Score      float64           `json:"score"`
	Regime     Regime            `json:"regime"`
	Indicators IndicatorSnapshot `json:"indicators"`

	// TimedOut marks a decision substituted after a per-coin timeout.
	TimedOut bool `json:"timed_out,omitempty"`
}

// HoldDecision builds the substitute decision used when a per-coin task
// times out or fails: HOLD with the last valid regime for the coin.
func HoldDecision(coin string, reason string, lastRegime Regime) Decision {
	return Decision{
		Coin:     coin,
		Action:   ActionHold,
		Reason:   reason,
		Regime:   lastRegime,
		TimedOut: true,
	}
}
