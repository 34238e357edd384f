package core

import "time"

// EngineState is the durable state of the engine, persisted once at the
// end of every cycle and reloaded on startup.
type EngineState struct {
	UpdatedAt                time.Time         `json:"updated_at"`
	Positions                []Position        `json:"positions"`
	LastFactors              *FactorsRecord    `json:"last_factors,omitempty"`
	LastRegimePerCoin        map[string]Regime `json:"last_regime_per_coin"`
	DailyLossPct             float64           `json:"daily_loss_pct"`
	ConsecutiveLosses        int               `json:"consecutive_losses"`
	ConsecutiveTimeoutCycles int               `json:"consecutive_timeout_cycles"`
	ObservationMode          bool              `json:"observation_mode"`
	LastRebalanceMonth       string            `json:"last_rebalance_month,omitempty"`
	LastEmergencyMonth       string            `json:"last_emergency_month,omitempty"`
}

// NewEngineState returns an empty state suitable for a first run or for
// recovery from a missing state file.
func NewEngineState() *EngineState {
	return &EngineState{
		LastRegimePerCoin: make(map[string]Regime),
	}
}
