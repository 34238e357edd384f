package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// SideType identifies the direction of an executed order.
type SideType string

// Available order sides
const (
	SideBuy  SideType = "BUY"
	SideSell SideType = "SELL"
)

// Transaction is one append-only journal row recording an executed
// (or simulated) order. Rows are immutable once written.
type Transaction struct {
	Timestamp   time.Time        `json:"timestamp"`
	Coin        string           `json:"coin"`
	Side        SideType         `json:"side"`
	Qty         decimal.Decimal  `json:"qty"`
	Price       decimal.Decimal  `json:"price"`
	Fee         decimal.Decimal  `json:"fee"`
	Reason      string           `json:"reason"`
	Regime      Regime           `json:"regime"`
	EntryScore  float64          `json:"entry_score,omitempty"`
	RealizedPnL *decimal.Decimal `json:"realized_pnl,omitempty"`
	PnLPct      *decimal.Decimal `json:"pnl_pct,omitempty"`
	DryRun      bool             `json:"dry_run"`
}

// DailySnapshot is the once-per-day performance row consumed by the
// sibling dashboard.
type DailySnapshot struct {
	Date             string          `json:"date"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	DailyPnL         decimal.Decimal `json:"daily_pnl"`
	DailyPnLPct      decimal.Decimal `json:"daily_pnl_pct"`
	CumulativePnLPct decimal.Decimal `json:"cumulative_pnl_pct"`
	PositionCount    int             `json:"position_count"`
	TradesToday      int             `json:"trades_today"`
}

// TradeOutcome is one realized trade result kept for analytics.
type TradeOutcome struct {
	ClosedAt  time.Time       `json:"closed_at"`
	Coin      string          `json:"coin"`
	Reason    string          `json:"reason"`
	Regime    Regime          `json:"regime"`
	PnL       decimal.Decimal `json:"pnl"`
	PnLPct    decimal.Decimal `json:"pnl_pct"`
	HoldHours float64         `json:"hold_hours"`
	DryRun    bool            `json:"dry_run"`
}
