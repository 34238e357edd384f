// Package portfolio orchestrates one trading cycle: it fans per-coin
// analyses out under timeouts, arbitrates the resulting decisions
// against portfolio-level gates, routes the accepted actions to the
// executor, and persists engine state at the cycle boundary.
package portfolio

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/StudioSol/set"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ver3trade/engine/core"
	"github.com/ver3trade/engine/executor"
	"github.com/ver3trade/engine/factors"
	"github.com/ver3trade/engine/monitoring"
	"github.com/ver3trade/engine/regime"
	"github.com/ver3trade/engine/strategy"
)

// Gate rejection reasons surfaced in cycle reports.
const (
	RejectPortfolioSlot  = "portfolio_slot"
	RejectObservation    = "observation_mode"
	RejectDailyLossLimit = "daily_loss_limit"
	RejectInPosition     = "already_in_position"

	reasonTimeout   = "timeout"
	reasonRebalance = "rebalance"
)

// Config holds the portfolio manager's tunables.
type Config struct {
	Timeframe      string
	DailyTimeframe string
	CandleLimit    int

	MaxPositions         int
	MaxDailyLossPct      float64
	MaxConsecutiveLosses int

	PerCoinTimeout time.Duration
	TotalTimeout   time.Duration

	QuoteAsset string

	RebalanceEnabled bool
	RebalanceTarget  int
}

// DefaultConfig returns the stock cycle configuration.
func DefaultConfig() Config {
	return Config{
		Timeframe:            "4h",
		DailyTimeframe:       "1d",
		CandleLimit:          220,
		MaxPositions:         2,
		MaxDailyLossPct:      3.0,
		MaxConsecutiveLosses: 3,
		PerCoinTimeout:       60 * time.Second,
		TotalTimeout:         120 * time.Second,
		QuoteAsset:           "KRW",
	}
}

// realClock is the default core.Clock.
type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Manager drives trading cycles for a fixed coin universe.
type Manager struct {
	cfg      Config
	feed     core.Feeder
	broker   core.Broker
	strategy strategy.Strategy
	exec     *executor.Live
	store    core.StateStore
	log      core.Logger

	notifier core.Notifier
	commands core.CommandSource
	metrics  *monitoring.Metrics
	clock    core.Clock

	coins    []core.Coin // sorted by rank
	universe *set.LinkedHashSetString

	mu              sync.Mutex
	cycleSeq        int64
	lastRegime      map[string]core.Regime
	lastFactors     *core.FactorsRecord
	dayKey          string
	dayStartAssets  decimal.Decimal
	dailyRealized   decimal.Decimal
	restoredLossPct float64
	tradesToday     int
	initialAssets   decimal.Decimal
	lastAssets      decimal.Decimal

	lastRebalanceMonth string
	lastEmergencyMonth string
	timeoutCycles      int
}

// Option configures optional manager collaborators.
type Option func(*Manager)

// WithNotifier attaches an operator notifier.
func WithNotifier(n core.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithCommandSource attaches a remote command source.
func WithCommandSource(src core.CommandSource) Option {
	return func(m *Manager) { m.commands = src }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithClock substitutes the time source, used by scheduler tests.
func WithClock(clock core.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// NewManager wires a portfolio manager for the given coin universe.
func NewManager(
	cfg Config,
	feed core.Feeder,
	broker core.Broker,
	strat strategy.Strategy,
	exec *executor.Live,
	store core.StateStore,
	coins []core.Coin,
	log core.Logger,
	opts ...Option,
) *Manager {
	sorted := make([]core.Coin, len(coins))
	copy(sorted, coins)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	universe := set.NewLinkedHashSetString()
	for _, c := range sorted {
		universe.Add(c.Symbol)
	}

	m := &Manager{
		cfg:        cfg,
		feed:       feed,
		broker:     broker,
		strategy:   strat,
		exec:       exec,
		store:      store,
		log:        log,
		coins:      sorted,
		universe:   universe,
		clock:      realClock{},
		lastRegime: make(map[string]core.Regime),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore rehydrates cycle-level state after a restart. Position and
// loss-streak recovery is the executor's, via its own Restore. The
// persisted day and daily-loss figure are carried over so the daily
// loss gate holds across a same-day restart.
func (m *Manager) Restore(state *core.EngineState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for coin, r := range state.LastRegimePerCoin {
		m.lastRegime[coin] = r
	}
	m.lastFactors = state.LastFactors
	m.lastRebalanceMonth = state.LastRebalanceMonth
	m.lastEmergencyMonth = state.LastEmergencyMonth
	m.timeoutCycles = state.ConsecutiveTimeoutCycles

	if !state.UpdatedAt.IsZero() {
		m.dayKey = state.UpdatedAt.UTC().Format("2006-01-02")
		m.restoredLossPct = state.DailyLossPct
	}
}

// ObservationMode reports whether new entries are currently suppressed
// by the consecutive-loss guard.
func (m *Manager) ObservationMode() bool {
	return m.exec.ConsecutiveLosses() >= m.cfg.MaxConsecutiveLosses
}

// LastFactors returns the most recently computed reference factors.
func (m *Manager) LastFactors() *core.FactorsRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFactors
}

// analysis is one per-coin task result.
type analysis struct {
	coin     core.Coin
	decision core.Decision
	factors  core.Factors
	atrPct   float64
	err      error
	timedOut bool
}

// RunCycle performs one full pass: drain commands, refresh capital,
// optionally rebalance, analyze all coins in parallel, arbitrate, and
// persist. It returns the cycle summary for the notifier and scheduler.
func (m *Manager) RunCycle(ctx context.Context) (Summary, error) {
	start := m.clock.Now()
	m.mu.Lock()
	m.cycleSeq++
	cycle := m.cycleSeq
	m.mu.Unlock()

	log := m.log.WithField("cycle", cycle)
	log.WithField("started_at", start.Format(time.RFC3339)).Info("cycle start")

	summary := Summary{Cycle: cycle, StartedAt: start}

	stopRequested := m.drainCommands(ctx, log)
	m.rollDay(start)
	m.refreshCapital(ctx, log)

	if m.cfg.RebalanceEnabled {
		m.maybeRebalance(ctx, start, log, &summary)
	}

	results := m.analyzeAll(ctx, log)
	m.substituteFailures(results, log)

	m.persistReferenceFactors(results, start, log)
	m.applyExits(ctx, results, log, &summary)
	m.applyEntries(ctx, results, log, &summary)

	summary.OpenPositions = m.exec.OpenCount()
	summary.Observation = m.ObservationMode()
	summary.StopRequested = stopRequested
	summary.DailyLossPct = m.dailyLossPct()
	summary.AllTimedOut = len(results) > 0 && lo.EveryBy(results, func(a *analysis) bool {
		return a.timedOut
	})
	summary.Elapsed = m.clock.Now().Sub(start)

	m.mu.Lock()
	if summary.AllTimedOut {
		m.timeoutCycles++
	} else {
		m.timeoutCycles = 0
	}
	summary.ConsecutiveTimeoutCycles = m.timeoutCycles
	m.mu.Unlock()

	if summary.AllTimedOut {
		m.notify(fmt.Sprintf("⚠️ all coins timed out (%d consecutive cycles)",
			summary.ConsecutiveTimeoutCycles))
	}

	if err := m.persist(start); err != nil {
		log.WithError(err).Error("state persistence failed")
		if m.metrics != nil {
			m.metrics.RecordError("persist")
		}
		return summary, err
	}

	if m.metrics != nil {
		m.metrics.ObserveCycle(summary.Elapsed, summary.OpenPositions, summary.Observation)
	}
	if m.notifier != nil {
		m.notifier.Notify(summary.String())
	}
	log.WithFields(map[string]any{
		"elapsed":   summary.Elapsed.String(),
		"positions": summary.OpenPositions,
		"timeouts":  summary.TimeoutCount(),
	}).Info("cycle complete")

	return summary, nil
}

// drainCommands applies all pending operator commands. Returns true
// when a stop was requested.
func (m *Manager) drainCommands(ctx context.Context, log core.Logger) bool {
	if m.commands == nil {
		return false
	}

	stop := false
	for {
		cmd, ok := m.commands.Next()
		if !ok {
			break
		}
		switch cmd.Type {
		case core.CommandStop:
			log.Warn("stop requested by operator")
			stop = true
		case core.CommandClose:
			res, err := m.exec.Close(ctx, cmd.Coin, "operator_close")
			switch {
			case err != nil:
				log.WithError(err).WithField("coin", cmd.Coin).Error("operator close failed")
				m.notifyError(fmt.Errorf("close %s: %w", cmd.Coin, err))
			case res.Executed:
				m.recordRealized(cmd.Coin, res)
				m.recordTrade(cmd.Coin, res)
				log.WithField("coin", cmd.Coin).Info("position closed by operator")
			default:
				m.notify(fmt.Sprintf("no open position for %s", cmd.Coin))
			}
		case core.CommandStatus:
			m.notify(m.statusText())
		case core.CommandPositions:
			m.notify(m.positionsText())
		case core.CommandFactors:
			m.notify(m.factorsText())
		}
	}
	return stop
}

// rollDay resets daily counters when the calendar date changes.
func (m *Manager) rollDay(now time.Time) {
	day := now.UTC().Format("2006-01-02")

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dayKey == day {
		return
	}
	m.dayKey = day
	m.dailyRealized = decimal.Zero
	m.restoredLossPct = 0
	m.tradesToday = 0
	m.dayStartAssets = m.lastAssets
}

// refreshCapital recomputes total assets (quote balance plus marked
// position value) and pushes it to the executor for sizing. Failures
// keep the previous figure.
func (m *Manager) refreshCapital(ctx context.Context, log core.Logger) {
	total, err := m.totalAssets(ctx)
	if err != nil {
		log.WithError(err).Warn("capital refresh failed, keeping previous")
		return
	}

	m.mu.Lock()
	if m.initialAssets.IsZero() {
		m.initialAssets = total
	}
	if m.dayStartAssets.IsZero() {
		m.dayStartAssets = total
	}
	m.lastAssets = total
	m.mu.Unlock()

	m.exec.SetCapital(total)
}

func (m *Manager) totalAssets(ctx context.Context) (decimal.Decimal, error) {
	total, err := m.broker.Balance(ctx, m.cfg.QuoteAsset)
	if err != nil {
		return decimal.Zero, err
	}
	for _, p := range m.exec.Positions() {
		coin, ok := lo.Find(m.coins, func(c core.Coin) bool { return c.Symbol == p.Coin })
		if !ok {
			continue
		}
		quote, err := m.feed.LastQuote(ctx, coin.Pair)
		if err != nil {
			// Fall back on entry value rather than dropping the position.
			total = total.Add(p.EntryPrice.Mul(p.Size))
			continue
		}
		total = total.Add(decimal.NewFromFloat(quote).Mul(p.Size))
	}
	return total, nil
}

// analyzeAll launches one task per coin and collects results under the
// total timeout. Tasks that miss the deadline are abandoned; their
// slots stay nil for substitution.
func (m *Manager) analyzeAll(ctx context.Context, log core.Logger) []*analysis {
	type indexed struct {
		idx int
		res *analysis
	}

	totalCtx, cancel := context.WithTimeout(ctx, m.cfg.TotalTimeout)
	defer cancel()

	ch := make(chan indexed, len(m.coins))
	for i, coin := range m.coins {
		go func(i int, coin core.Coin) {
			coinCtx, coinCancel := context.WithTimeout(totalCtx, m.cfg.PerCoinTimeout)
			defer coinCancel()
			ch <- indexed{idx: i, res: m.analyzeCoin(coinCtx, coin)}
		}(i, coin)
	}

	results := make([]*analysis, len(m.coins))
	for range m.coins {
		select {
		case r := <-ch:
			results[r.idx] = r.res
		case <-totalCtx.Done():
			log.Warn("total cycle timeout reached, using partial results")
			return results
		}
	}
	return results
}

// analyzeCoin runs the classifier, factor derivation and strategy for
// one coin. A deadline expiry anywhere is reported as a timeout.
func (m *Manager) analyzeCoin(ctx context.Context, coin core.Coin) *analysis {
	out := &analysis{coin: coin}

	daily, err := m.feed.CandlesByLimit(ctx, coin.Pair, m.cfg.DailyTimeframe, m.cfg.CandleLimit)
	if err != nil {
		return out.fail(ctx, err)
	}
	reg, err := regime.Classify(daily)
	if err != nil {
		return out.fail(ctx, err)
	}

	bars, err := m.feed.CandlesByLimit(ctx, coin.Pair, m.cfg.Timeframe, m.cfg.CandleLimit)
	if err != nil {
		return out.fail(ctx, err)
	}
	bucket, atrPct, err := regime.Volatility(bars)
	if err != nil {
		return out.fail(ctx, err)
	}

	f := factors.Compute(reg, bucket)

	var pos *core.Position
	if p, ok := m.exec.Position(coin.Symbol); ok {
		pos = &p
	}
	decision, err := m.strategy.Analyze(bars, f, pos)
	if err != nil {
		return out.fail(ctx, err)
	}
	decision.Coin = coin.Symbol

	out.decision = decision
	out.factors = f
	out.atrPct = atrPct

	if m.metrics != nil {
		m.metrics.ObserveAnalysis(coin.Symbol, decision.Indicators.Close, decision.Score)
	}
	return out
}

func (a *analysis) fail(ctx context.Context, err error) *analysis {
	a.err = err
	a.timedOut = ctx.Err() != nil
	return a
}

// substituteFailures replaces timed-out or failed slots with HOLD
// decisions carrying the last valid regime, and refreshes the regime
// memory for the coins that did complete.
func (m *Manager) substituteFailures(results []*analysis, log core.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, coin := range m.coins {
		a := results[i]
		if a == nil {
			a = &analysis{coin: coin, timedOut: true}
			results[i] = a
		}
		if a.err == nil && !a.timedOut && a.decision.Action != "" {
			m.lastRegime[coin.Symbol] = a.decision.Regime
			continue
		}

		a.timedOut = true
		a.decision = core.HoldDecision(coin.Symbol, reasonTimeout, m.lastRegime[coin.Symbol])
		a.factors = factors.Compute(m.lastRegime[coin.Symbol], core.VolatilityNormal)
		if a.err != nil {
			log.WithError(a.err).WithField("coin", coin.Symbol).Warn("analysis failed, substituting HOLD")
		} else {
			log.WithField("coin", coin.Symbol).Warn("analysis timed out, substituting HOLD")
		}
		if m.metrics != nil {
			m.metrics.RecordTimeout(coin.Symbol)
		}
	}
}

// persistReferenceFactors stores the factors of the highest-ranked coin
// with a live analysis as the cycle's dynamic-factors record.
func (m *Manager) persistReferenceFactors(results []*analysis, now time.Time, log core.Logger) {
	ref, ok := lo.Find(results, func(a *analysis) bool { return !a.timedOut })
	if !ok {
		return
	}

	record := core.FactorsRecord{Factors: ref.factors, ATRPct: ref.atrPct, GeneratedAt: now}
	m.mu.Lock()
	previous := m.lastFactors
	m.lastFactors = &record
	m.mu.Unlock()

	if err := m.store.SaveFactors(record); err != nil {
		log.WithError(err).Error("factors persistence failed")
	}
	if previous != nil && previous.Factors.Regime != record.Factors.Regime {
		m.notify(fmt.Sprintf("regime change: %s → %s (vol %s)",
			previous.Factors.Regime, record.Factors.Regime, record.Factors.Volatility))
	}
}

// applyExits routes every decision for a coin holding a position to the
// executor. Holds go through too so the trailing-stop machinery sees
// the latest close.
func (m *Manager) applyExits(ctx context.Context, results []*analysis, log core.Logger, summary *Summary) {
	for _, a := range results {
		if _, ok := m.exec.Position(a.coin.Symbol); !ok {
			continue
		}
		report := reportFor(a)

		res, err := m.exec.Apply(ctx, a.decision, a.factors)
		if err != nil {
			log.WithError(err).WithField("coin", a.coin.Symbol).Error("exit execution failed")
			m.notifyError(err)
			report.Err = err.Error()
			if m.metrics != nil {
				m.metrics.RecordError("execution")
			}
		} else if res.Executed {
			m.recordRealized(a.coin.Symbol, res)
			m.recordTrade(a.coin.Symbol, res)
			m.notifyFill(a.coin.Symbol, a.decision.Reason, res)
			// Reflect the executed action, including a stop enforced
			// over a HOLD decision.
			if res.Position == nil {
				report.Action = core.ActionClose
			} else if res.Position.FirstTargetHit && a.decision.Action == core.ActionSellPartial {
				report.Action = core.ActionSellPartial
			}
		}
		summary.Reports = append(summary.Reports, report)
	}
}

// applyEntries arbitrates BUY candidates: sorted by score descending
// then rank ascending, accepted while slots remain and every gate
// passes.
func (m *Manager) applyEntries(ctx context.Context, results []*analysis, log core.Logger, summary *Summary) {
	var candidates []*analysis
	for _, a := range results {
		if _, held := m.exec.Position(a.coin.Symbol); held {
			continue // already reported by the exit pass
		}
		if a.decision.Action == core.ActionBuy {
			candidates = append(candidates, a)
			continue
		}
		summary.Reports = append(summary.Reports, reportFor(a))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].decision.Score != candidates[j].decision.Score {
			return candidates[i].decision.Score > candidates[j].decision.Score
		}
		return candidates[i].coin.Rank < candidates[j].coin.Rank
	})

	for _, a := range candidates {
		report := reportFor(a)

		switch {
		case m.ObservationMode():
			report.Action = core.ActionHold
			report.Reason = RejectObservation
		case m.dailyLossPct() <= -m.cfg.MaxDailyLossPct:
			report.Action = core.ActionHold
			report.Reason = RejectDailyLossLimit
		case m.exec.OpenCount() >= m.cfg.MaxPositions:
			report.Action = core.ActionHold
			report.Reason = RejectPortfolioSlot
		default:
			res, err := m.exec.Apply(ctx, a.decision, a.factors)
			switch {
			case err != nil:
				log.WithError(err).WithField("coin", a.coin.Symbol).Error("entry execution failed")
				m.notifyError(err)
				report.Err = err.Error()
				if m.metrics != nil {
					m.metrics.RecordError("execution")
				}
			case res.Executed:
				m.recordTrade(a.coin.Symbol, res)
				m.notifyFill(a.coin.Symbol, a.decision.Reason, res)
			default:
				report.Action = core.ActionHold
				report.Reason = res.Skipped
			}
		}
		summary.Reports = append(summary.Reports, report)
	}
}

// maybeRebalance fires the monthly re-selection on the first cycle of a
// new month, and the emergency path when open positions fall below 70%
// of the target. Both are bounded to once per calendar month and both
// feed closed coins back through the normal gates next cycle.
func (m *Manager) maybeRebalance(ctx context.Context, now time.Time, log core.Logger, summary *Summary) {
	month := now.UTC().Format("2006-01")

	m.mu.Lock()
	monthly := now.UTC().Day() == 1 && m.lastRebalanceMonth != month
	emergency := !monthly &&
		float64(m.exec.OpenCount()) < 0.7*float64(m.cfg.RebalanceTarget) &&
		m.lastEmergencyMonth != month
	m.mu.Unlock()

	if !monthly && !emergency {
		return
	}

	kind := "monthly"
	if emergency {
		kind = "emergency"
	}
	log.WithField("kind", kind).Info("rebalance triggered")

	// Re-select the top coins by rank; anything held outside the new
	// selection is closed. Entries into the selection go through the
	// regular arbitration, not a side door. The universe set fixed at
	// construction carries the rank order.
	target := m.cfg.RebalanceTarget
	if target <= 0 || target > m.universe.Length() {
		target = m.universe.Length()
	}
	selected := set.NewLinkedHashSetString()
	for symbol := range m.universe.Iter() {
		if selected.Length() < target {
			selected.Add(symbol)
		}
	}

	for _, p := range m.exec.Positions() {
		if selected.InArray(p.Coin) {
			continue
		}
		res, err := m.exec.Close(ctx, p.Coin, reasonRebalance)
		if err != nil {
			log.WithError(err).WithField("coin", p.Coin).Error("rebalance close failed")
			m.notifyError(err)
			continue
		}
		if res.Executed {
			m.recordRealized(p.Coin, res)
			m.recordTrade(p.Coin, res)
			summary.Reports = append(summary.Reports, CoinReport{
				Coin: p.Coin, Action: core.ActionClose, Reason: reasonRebalance,
			})
		}
	}

	m.mu.Lock()
	if emergency {
		m.lastEmergencyMonth = month
	} else {
		m.lastRebalanceMonth = month
	}
	m.mu.Unlock()

	m.notify(fmt.Sprintf("%s rebalance executed (target %d coins)", kind, target))
}

// recordRealized folds a realized close into the daily loss tracker.
func (m *Manager) recordRealized(coin string, res executor.Result) {
	if res.RealizedPnL == nil {
		return
	}
	m.mu.Lock()
	m.dailyRealized = m.dailyRealized.Add(*res.RealizedPnL)
	m.mu.Unlock()

	if m.metrics != nil && res.RealizedPnLPct != nil {
		m.metrics.ObserveRealized(coin, res.RealizedPnLPct.InexactFloat64())
	}
}

func (m *Manager) recordTrade(coin string, res executor.Result) {
	m.mu.Lock()
	m.tradesToday++
	m.mu.Unlock()

	if m.metrics != nil && res.Fill != nil {
		m.metrics.RecordTrade(coin, string(res.Fill.Side), "")
	}
}

// dailyLossPct returns today's realized PnL as a percentage of the
// day's starting assets, including anything realized before a same-day
// restart. Losses are negative.
func (m *Manager) dailyLossPct() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	pct := m.restoredLossPct
	if m.dayStartAssets.IsPositive() {
		pct += m.dailyRealized.Div(m.dayStartAssets).
			Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return pct
}

// persist assembles and writes the durable engine state plus the daily
// performance row.
func (m *Manager) persist(now time.Time) error {
	m.mu.Lock()
	state := &core.EngineState{
		UpdatedAt:                now.UTC(),
		Positions:                m.exec.Positions(),
		LastFactors:              m.lastFactors,
		LastRegimePerCoin:        make(map[string]core.Regime, len(m.lastRegime)),
		DailyLossPct:             0,
		ConsecutiveLosses:        m.exec.ConsecutiveLosses(),
		ObservationMode:          m.exec.ConsecutiveLosses() >= m.cfg.MaxConsecutiveLosses,
		LastRebalanceMonth:       m.lastRebalanceMonth,
		LastEmergencyMonth:       m.lastEmergencyMonth,
		ConsecutiveTimeoutCycles: m.timeoutCycles,
	}
	for coin, r := range m.lastRegime {
		state.LastRegimePerCoin[coin] = r
	}

	dayStart := m.dayStartAssets
	assets := m.lastAssets
	realizedToday := m.dailyRealized
	trades := m.tradesToday
	initial := m.initialAssets
	day := m.dayKey
	m.mu.Unlock()

	state.DailyLossPct = m.dailyLossPct()

	if err := m.store.SaveState(state); err != nil {
		return err
	}

	snapshot := core.DailySnapshot{
		Date:          day,
		TotalAssets:   assets,
		DailyPnL:      realizedToday,
		PositionCount: len(state.Positions),
		TradesToday:   trades,
	}
	if dayStart.IsPositive() {
		snapshot.DailyPnLPct = assets.Sub(dayStart).Div(dayStart).Mul(decimal.NewFromInt(100))
	}
	if initial.IsPositive() {
		snapshot.CumulativePnLPct = assets.Sub(initial).Div(initial).Mul(decimal.NewFromInt(100))
	}
	return m.store.SaveDailySnapshot(snapshot)
}

func (m *Manager) notify(message string) {
	if m.notifier != nil {
		m.notifier.Notify(message)
	}
}

func (m *Manager) notifyError(err error) {
	if m.notifier != nil {
		m.notifier.OnError(err)
	}
}

func (m *Manager) notifyFill(coin, reason string, res executor.Result) {
	if m.notifier == nil || res.Fill == nil {
		return
	}
	msg := fmt.Sprintf("%s %s %s @ %s (%s)",
		res.Fill.Side, res.Fill.Qty, coin, res.Fill.AvgPrice, reason)
	if res.RealizedPnLPct != nil {
		msg += fmt.Sprintf(" pnl %s%%", res.RealizedPnLPct.StringFixed(2))
	}
	m.notifier.Notify(msg)
}

func reportFor(a *analysis) CoinReport {
	return CoinReport{
		Coin:     a.coin.Symbol,
		Action:   a.decision.Action,
		Reason:   a.decision.Reason,
		Score:    a.decision.Score,
		Regime:   a.decision.Regime,
		TimedOut: a.timedOut,
	}
}
