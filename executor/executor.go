// Package executor owns the position table and is the only component
// that sends orders to the exchange. It turns strategy decisions into
// fills, seeds position risk levels from the ATR, and runs the
// stop-loss and trailing-stop machinery on every price it observes.
package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"

	"github.com/ver3trade/engine/core"
	"github.com/ver3trade/engine/storage"
	"github.com/ver3trade/engine/strategy"
)

// Order placement retry policy. Rate-limit waits are bounded separately
// and do not consume retry attempts.
const (
	retryAttempts     = 3
	retryBase         = time.Second
	retryMax          = 8 * time.Second
	rateLimitWait     = 5 * time.Second
	maxRateLimitWaits = 3
)

// Skip reasons reported in Result when no order was sent.
const (
	SkipAlreadyInPosition = "already_in_position"
	SkipBelowMinOrder     = "below_min_order_value"
	SkipNoPosition        = "no_position"
	SkipPyramidLimit      = "pyramid_limit"
	SkipPyramidThreshold  = "pyramid_threshold"
)

// Result reports what applying one decision did.
type Result struct {
	Executed bool
	Skipped  string // set when an entry or exit was declined
	Fill     *core.Fill
	Position *core.Position // state after the apply, nil once fully closed

	RealizedPnL    *decimal.Decimal
	RealizedPnLPct *decimal.Decimal
}

// Live is the live executor. A single instance owns all positions;
// Apply is serialized by an internal mutex so position mutation and
// order submission form one exclusive section per call.
type Live struct {
	broker core.Broker
	store  core.StateStore
	log    core.Logger
	coins  map[string]core.Coin

	orderLog   storage.OrderLog
	dryRun     bool
	pyramiding bool
	riskPct    decimal.Decimal

	mu        sync.Mutex
	capital   decimal.Decimal
	positions map[string]*core.Position
	losses    int
}

// Option configures the live executor.
type Option func(*Live)

// WithOrderLog attaches a raw fill journal.
func WithOrderLog(ol storage.OrderLog) Option {
	return func(e *Live) { e.orderLog = ol }
}

// WithDryRun marks journal rows as simulated.
func WithDryRun(enabled bool) Option {
	return func(e *Live) { e.dryRun = enabled }
}

// WithPyramiding enables scale-in entries (disabled by default).
func WithPyramiding(enabled bool) Option {
	return func(e *Live) { e.pyramiding = enabled }
}

// WithRiskPct overrides the per-trade capital risk fraction.
func WithRiskPct(pct decimal.Decimal) Option {
	return func(e *Live) { e.riskPct = pct }
}

// WithCapital sets the starting capital used for position sizing.
func WithCapital(capital decimal.Decimal) Option {
	return func(e *Live) { e.capital = capital }
}

// NewLive creates the executor for a fixed coin universe.
func NewLive(broker core.Broker, store core.StateStore, coins []core.Coin, log core.Logger, opts ...Option) *Live {
	bySymbol := make(map[string]core.Coin, len(coins))
	for _, c := range coins {
		bySymbol[c.Symbol] = c
	}

	e := &Live{
		broker:    broker,
		store:     store,
		log:       log,
		coins:     bySymbol,
		riskPct:   decimal.NewFromFloat(0.01),
		positions: make(map[string]*core.Position),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Restore loads positions and the loss streak from persisted state.
func (e *Live) Restore(state *core.EngineState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.positions = make(map[string]*core.Position, len(state.Positions))
	for i := range state.Positions {
		p := state.Positions[i]
		e.positions[p.Coin] = &p
	}
	e.losses = state.ConsecutiveLosses
}

// SetCapital updates the capital base used for sizing new entries. The
// portfolio manager refreshes it from the account balance every cycle.
func (e *Live) SetCapital(capital decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.capital = capital
}

// Positions returns a copy of the open positions sorted by coin.
func (e *Live) Positions() []core.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]core.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Coin < out[j].Coin })
	return out
}

// Position returns the open position for a coin, if any.
func (e *Live) Position(coin string) (core.Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.positions[coin]
	if !ok {
		return core.Position{}, false
	}
	return *p, true
}

// OpenCount returns the number of open positions.
func (e *Live) OpenCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.positions)
}

// ConsecutiveLosses returns the current realized loss streak.
func (e *Live) ConsecutiveLosses() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.losses
}

// Apply executes one decision. Before acting it feeds the decision's
// close price into the position's trailing-stop machinery, so a stop
// crossed since the last cycle closes the position even when the
// decision itself says HOLD.
func (e *Live) Apply(ctx context.Context, d core.Decision, f core.Factors) (Result, error) {
	coin, ok := e.coins[d.Coin]
	if !ok {
		return Result{}, fmt.Errorf("apply: unknown coin %q", d.Coin)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	price := decimal.NewFromFloat(d.Indicators.Close)
	pos := e.positions[d.Coin]
	if pos != nil && price.IsPositive() {
		pos.ObservePrice(price)
		if pos.FirstTargetHit {
			pos.RaiseStop(trailingStop(pos.HighestSinceEntry, f.TrailingStopPct))
		}
	}

	switch d.Action {
	case core.ActionBuy:
		if pos != nil {
			if e.pyramiding {
				return e.pyramidEntry(ctx, coin, pos, d, f)
			}
			return Result{Skipped: SkipAlreadyInPosition, Position: snapshot(pos)}, nil
		}
		return e.openPosition(ctx, coin, d, f)

	case core.ActionSellPartial:
		if pos == nil {
			return Result{Skipped: SkipNoPosition}, nil
		}
		return e.sellPartial(ctx, coin, pos, d, f)

	case core.ActionClose:
		if pos == nil {
			return Result{Skipped: SkipNoPosition}, nil
		}
		return e.closeLocked(ctx, coin, pos, d.Reason, d.Regime)

	case core.ActionHold:
		if pos != nil && price.IsPositive() && price.LessThanOrEqual(pos.StopLossPrice) {
			return e.closeLocked(ctx, coin, pos, strategy.ReasonStopLoss, d.Regime)
		}
		return Result{Position: snapshot(pos)}, nil

	default:
		return Result{}, fmt.Errorf("apply: unknown action %q", d.Action)
	}
}

// Close force-closes the position for a coin at market, used by
// operator commands and the rebalance path.
func (e *Live) Close(ctx context.Context, symbol, reason string) (Result, error) {
	coin, ok := e.coins[symbol]
	if !ok {
		return Result{}, fmt.Errorf("close: unknown coin %q", symbol)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.positions[symbol]
	if pos == nil {
		return Result{Skipped: SkipNoPosition}, nil
	}
	return e.closeLocked(ctx, coin, pos, reason, pos.RegimeAtEntry)
}

// openPosition sizes and places a new entry. Risk per trade is a fixed
// fraction of capital scaled by the volatility size multiplier; the
// stop distance is the ATR scaled by the chandelier multiplier.
func (e *Live) openPosition(ctx context.Context, coin core.Coin, d core.Decision, f core.Factors) (Result, error) {
	atr := decimal.NewFromFloat(d.Indicators.ATR)
	price := decimal.NewFromFloat(d.Indicators.Close)
	if !atr.IsPositive() || !price.IsPositive() {
		return Result{}, fmt.Errorf("open %s: decision carries no usable ATR/close", coin.Symbol)
	}

	stopDist := atr.Mul(decimal.NewFromFloat(f.Chandelier))
	risk := e.capital.Mul(e.riskPct).Mul(decimal.NewFromFloat(f.PositionSizeMul))
	size := coin.RoundQty(risk.Div(stopDist))

	if size.Mul(price).LessThan(coin.MinOrderValue) {
		e.log.WithFields(map[string]any{
			"coin": coin.Symbol, "size": size.String(),
		}).Debug("entry below minimum order value")
		return Result{Skipped: SkipBelowMinOrder}, nil
	}

	fill, err := e.placeOrder(ctx, coin.Pair, core.SideBuy, size)
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", coin.Symbol, err)
	}

	entry := fill.AvgPrice
	pos := &core.Position{
		Coin:              coin.Symbol,
		EntryPrice:        entry,
		Size:              fill.Qty,
		EntryTime:         fill.Time,
		RegimeAtEntry:     d.Regime,
		EntryScore:        d.Score,
		StopLossPrice:     entry.Sub(stopDist),
		FirstTargetPrice:  entry.Add(stopDist.Mul(decimal.NewFromFloat(1.5))),
		SecondTargetPrice: entry.Add(stopDist.Mul(decimal.NewFromFloat(2.5))),
		ProfitTarget:      f.ProfitTarget,
		HighestSinceEntry: entry,
		EntriesTaken:      1,
	}
	if err := pos.Validate(); err != nil {
		return Result{}, fmt.Errorf("open %s: %w", coin.Symbol, err)
	}
	e.positions[coin.Symbol] = pos

	if err := e.journal(fill, d.Reason, d.Regime, d.Score, nil, nil); err != nil {
		e.log.WithError(err).Error("journal write failed")
	}
	e.log.WithFields(map[string]any{
		"coin": coin.Symbol, "size": fill.Qty.String(), "entry": entry.String(),
		"stop": pos.StopLossPrice.String(), "score": d.Score,
	}).Info("position opened")

	return Result{Executed: true, Fill: &fill, Position: snapshot(pos)}, nil
}

// pyramidEntry scales into an existing position when price has fallen
// far enough below the current average. Entries 2 and 3 use 50% and
// 25% of the freshly computed base size; stop math is refreshed on the
// combined position and the trailing anchor resets to the new average.
func (e *Live) pyramidEntry(ctx context.Context, coin core.Coin, pos *core.Position, d core.Decision, f core.Factors) (Result, error) {
	if pos.EntriesTaken >= 3 {
		return Result{Skipped: SkipPyramidLimit, Position: snapshot(pos)}, nil
	}

	price := decimal.NewFromFloat(d.Indicators.Close)
	threshold := pos.EntryPrice.Mul(decimal.NewFromFloat(1 - f.PyramidThreshold))
	if price.GreaterThan(threshold) {
		return Result{Skipped: SkipPyramidThreshold, Position: snapshot(pos)}, nil
	}

	atr := decimal.NewFromFloat(d.Indicators.ATR)
	if !atr.IsPositive() {
		return Result{}, fmt.Errorf("pyramid %s: decision carries no usable ATR", coin.Symbol)
	}
	stopDist := atr.Mul(decimal.NewFromFloat(f.Chandelier))
	risk := e.capital.Mul(e.riskPct).Mul(decimal.NewFromFloat(f.PositionSizeMul))
	base := risk.Div(stopDist)

	frac := decimal.NewFromFloat(0.5)
	if pos.EntriesTaken == 2 {
		frac = decimal.NewFromFloat(0.25)
	}
	size := coin.RoundQty(base.Mul(frac))
	if size.Mul(price).LessThan(coin.MinOrderValue) {
		return Result{Skipped: SkipBelowMinOrder, Position: snapshot(pos)}, nil
	}

	fill, err := e.placeOrder(ctx, coin.Pair, core.SideBuy, size)
	if err != nil {
		return Result{}, fmt.Errorf("pyramid %s: %w", coin.Symbol, err)
	}

	oldValue := pos.EntryPrice.Mul(pos.Size)
	addValue := fill.AvgPrice.Mul(fill.Qty)
	newSize := pos.Size.Add(fill.Qty)
	newAvg := oldValue.Add(addValue).Div(newSize)

	pos.EntryPrice = newAvg
	pos.Size = newSize
	pos.EntriesTaken++
	pos.StopLossPrice = newAvg.Sub(stopDist)
	pos.FirstTargetPrice = newAvg.Add(stopDist.Mul(decimal.NewFromFloat(1.5)))
	pos.SecondTargetPrice = newAvg.Add(stopDist.Mul(decimal.NewFromFloat(2.5)))
	pos.HighestSinceEntry = newAvg

	if err := e.journal(fill, d.Reason, d.Regime, d.Score, nil, nil); err != nil {
		e.log.WithError(err).Error("journal write failed")
	}
	e.log.WithFields(map[string]any{
		"coin": coin.Symbol, "entries": pos.EntriesTaken, "avg": newAvg.String(),
	}).Info("pyramid entry added")

	return Result{Executed: true, Fill: &fill, Position: snapshot(pos)}, nil
}

// sellPartial sells half the position on the first target and arms the
// trailing stop from the running high.
func (e *Live) sellPartial(ctx context.Context, coin core.Coin, pos *core.Position, d core.Decision, f core.Factors) (Result, error) {
	half := coin.RoundQty(pos.Size.Div(decimal.NewFromInt(2)))
	if !half.IsPositive() || half.Equal(pos.Size) {
		// Too small to split, take the whole position off instead.
		return e.closeLocked(ctx, coin, pos, d.Reason, d.Regime)
	}

	fill, err := e.placeOrder(ctx, coin.Pair, core.SideSell, half)
	if err != nil {
		return Result{}, fmt.Errorf("partial %s: %w", coin.Symbol, err)
	}

	pos.Size = pos.Size.Sub(fill.Qty)
	pos.FirstTargetHit = true
	pos.RaiseStop(trailingStop(pos.HighestSinceEntry, f.TrailingStopPct))

	pnl, pnlPct := realized(pos.EntryPrice, fill)
	if pnl.IsPositive() {
		e.losses = 0
	}
	if err := e.journal(fill, d.Reason, d.Regime, 0, &pnl, &pnlPct); err != nil {
		e.log.WithError(err).Error("journal write failed")
	}
	e.log.WithFields(map[string]any{
		"coin": coin.Symbol, "sold": fill.Qty.String(), "pnl_pct": pnlPct.StringFixed(2),
		"stop": pos.StopLossPrice.String(),
	}).Info("first target reached, trailing stop armed")

	return Result{
		Executed: true, Fill: &fill, Position: snapshot(pos),
		RealizedPnL: &pnl, RealizedPnLPct: &pnlPct,
	}, nil
}

// closeLocked fully exits a position. Caller holds the mutex.
func (e *Live) closeLocked(ctx context.Context, coin core.Coin, pos *core.Position, reason string, regime core.Regime) (Result, error) {
	fill, err := e.placeOrder(ctx, coin.Pair, core.SideSell, pos.Size)
	if err != nil {
		return Result{}, fmt.Errorf("close %s: %w", coin.Symbol, err)
	}

	pnl, pnlPct := realized(pos.EntryPrice, fill)
	switch {
	case pnl.IsNegative():
		e.losses++
	case pnl.IsPositive():
		e.losses = 0
	}
	delete(e.positions, coin.Symbol)

	if err := e.journal(fill, reason, regime, 0, &pnl, &pnlPct); err != nil {
		e.log.WithError(err).Error("journal write failed")
	}
	outcome := core.TradeOutcome{
		ClosedAt:  fill.Time,
		Coin:      coin.Symbol,
		Reason:    reason,
		Regime:    regime,
		PnL:       pnl,
		PnLPct:    pnlPct,
		HoldHours: fill.Time.Sub(pos.EntryTime).Hours(),
		DryRun:    e.dryRun,
	}
	if err := e.store.AppendOutcome(outcome); err != nil {
		e.log.WithError(err).Error("outcome write failed")
	}
	e.log.WithFields(map[string]any{
		"coin": coin.Symbol, "reason": reason, "pnl_pct": pnlPct.StringFixed(2),
		"loss_streak": e.losses,
	}).Info("position closed")

	return Result{
		Executed: true, Fill: &fill,
		RealizedPnL: &pnl, RealizedPnLPct: &pnlPct,
	}, nil
}

// placeOrder submits a market order with exponential-backoff retries on
// transient failures. Rate limits wait out a fixed pause without
// consuming an attempt; auth and parameter errors fail immediately.
func (e *Live) placeOrder(ctx context.Context, pair string, side core.SideType, qty decimal.Decimal) (core.Fill, error) {
	b := &backoff.Backoff{Min: retryBase, Max: retryMax, Jitter: true}
	attempts, rateWaits := 0, 0

	for {
		fill, err := e.broker.PlaceMarketOrder(ctx, pair, side, qty)
		if err == nil {
			if e.orderLog != nil {
				if logErr := e.orderLog.RecordFill(ctx, fill); logErr != nil {
					e.log.WithError(logErr).Warn("order log write failed")
				}
			}
			return fill, nil
		}

		switch core.KindOf(err) {
		case core.KindRateLimited:
			rateWaits++
			if rateWaits > maxRateLimitWaits {
				return core.Fill{}, err
			}
			e.log.WithField("pair", pair).Warn("rate limited, waiting")
			if sleepErr := sleepCtx(ctx, rateLimitWait); sleepErr != nil {
				return core.Fill{}, sleepErr
			}
		case core.KindTransient:
			attempts++
			if attempts >= retryAttempts {
				return core.Fill{}, err
			}
			wait := b.Duration()
			e.log.WithError(err).WithField("wait", wait.String()).Warn("order failed, retrying")
			if sleepErr := sleepCtx(ctx, wait); sleepErr != nil {
				return core.Fill{}, sleepErr
			}
		default:
			return core.Fill{}, err
		}
	}
}

func (e *Live) journal(fill core.Fill, reason string, regime core.Regime, score float64, pnl, pnlPct *decimal.Decimal) error {
	base, _ := core.SplitPair(fill.Pair)
	return e.store.AppendTransaction(core.Transaction{
		Timestamp:   fill.Time,
		Coin:        base,
		Side:        fill.Side,
		Qty:         fill.Qty,
		Price:       fill.AvgPrice,
		Fee:         fill.Fee,
		Reason:      reason,
		Regime:      regime,
		EntryScore:  score,
		RealizedPnL: pnl,
		PnLPct:      pnlPct,
		DryRun:      e.dryRun,
	})
}

// realized computes the net PnL of a sell fill against the position's
// average entry.
func realized(entry decimal.Decimal, fill core.Fill) (pnl, pnlPct decimal.Decimal) {
	pnl = fill.AvgPrice.Sub(entry).Mul(fill.Qty).Sub(fill.Fee)
	if entry.IsPositive() {
		pnlPct = fill.AvgPrice.Sub(entry).Div(entry).Mul(decimal.NewFromInt(100))
	}
	return pnl, pnlPct
}

func trailingStop(highest decimal.Decimal, pct float64) decimal.Decimal {
	return highest.Mul(decimal.NewFromFloat(1 - pct))
}

func snapshot(p *core.Position) *core.Position {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
