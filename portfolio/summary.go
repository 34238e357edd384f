package portfolio

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ver3trade/engine/core"
)

// CoinReport is one coin's line in a cycle summary.
type CoinReport struct {
	Coin     string
	Action   core.Action
	Reason   string
	Score    float64
	Regime   core.Regime
	TimedOut bool
	Err      string
}

// Summary describes one completed cycle.
type Summary struct {
	Cycle     int64
	StartedAt time.Time
	Elapsed   time.Duration

	Reports       []CoinReport
	OpenPositions int
	Observation   bool
	DailyLossPct  float64

	AllTimedOut              bool
	ConsecutiveTimeoutCycles int
	StopRequested            bool
}

// TimeoutCount returns how many coins were substituted this cycle.
func (s Summary) TimeoutCount() int {
	return lo.CountBy(s.Reports, func(r CoinReport) bool { return r.TimedOut })
}

// String renders the summary for the notifier.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cycle %d (%s)\n", s.Cycle, s.Elapsed.Round(time.Millisecond))

	for _, r := range s.Reports {
		switch {
		case r.TimedOut:
			fmt.Fprintf(&b, "%s: HOLD (timeout, prev_regime=%s)\n", r.Coin, r.Regime)
		case r.Err != "":
			fmt.Fprintf(&b, "%s: error: %s\n", r.Coin, r.Err)
		case r.Action == core.ActionBuy || r.Action == core.ActionSellPartial || r.Action == core.ActionClose:
			fmt.Fprintf(&b, "%s: %s (%s, score %.1f, %s)\n", r.Coin, r.Action, r.Reason, r.Score, r.Regime)
		default:
			fmt.Fprintf(&b, "%s: %s (%s)\n", r.Coin, r.Action, r.Reason)
		}
	}

	fmt.Fprintf(&b, "positions: %d, daily pnl: %.2f%%", s.OpenPositions, s.DailyLossPct)
	if s.Observation {
		b.WriteString(", observation mode")
	}
	return b.String()
}

// statusText answers the status operator command.
func (m *Manager) statusText() string {
	m.mu.Lock()
	assets := m.lastAssets
	initial := m.initialAssets
	m.mu.Unlock()

	var b strings.Builder
	b.WriteString("engine status\n")
	fmt.Fprintf(&b, "total assets: %s %s\n", assets.StringFixed(0), m.cfg.QuoteAsset)
	if initial.IsPositive() {
		pct := assets.Sub(initial).Div(initial).Mul(decimal.NewFromInt(100))
		fmt.Fprintf(&b, "cumulative pnl: %s%%\n", pct.StringFixed(2))
	}
	fmt.Fprintf(&b, "open positions: %d/%d\n", m.exec.OpenCount(), m.cfg.MaxPositions)
	fmt.Fprintf(&b, "daily pnl: %.2f%%\n", m.dailyLossPct())
	fmt.Fprintf(&b, "loss streak: %d", m.exec.ConsecutiveLosses())
	if m.ObservationMode() {
		b.WriteString(" (observation mode)")
	}
	return b.String()
}

// positionsText answers the positions operator command.
func (m *Manager) positionsText() string {
	positions := m.exec.Positions()
	if len(positions) == 0 {
		return "no open positions"
	}

	var b strings.Builder
	for _, p := range positions {
		fmt.Fprintf(&b, "%s: %s @ %s, stop %s, target %s",
			p.Coin, p.Size, p.EntryPrice, p.StopLossPrice, p.FirstTargetPrice)
		if p.FirstTargetHit {
			b.WriteString(" (trailing)")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// factorsText answers the factors operator command.
func (m *Manager) factorsText() string {
	record := m.LastFactors()
	if record == nil {
		return "no factors computed yet"
	}

	f := record.Factors
	return fmt.Sprintf(
		"regime: %s, volatility: %s (atr %.2f%%)\n"+
			"min entry score: %d, chandelier: %.2f, size mul: %.2f\n"+
			"profit target: %s, trailing: %.1f%%",
		f.Regime, f.Volatility, record.ATRPct,
		f.MinEntryScore, f.Chandelier, f.PositionSizeMul,
		f.ProfitTarget, f.TrailingStopPct*100)
}
