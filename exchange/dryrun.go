package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ver3trade/engine/core"
)

// DryRun is a broker that simulates fills locally at the reference
// price with a configured fee rate. Market data is delegated to the
// wrapped feeder, so dry-run sessions see real candles while orders
// never leave the process.
type DryRun struct {
	feeder  core.Feeder
	feeRate decimal.Decimal

	mu       sync.Mutex
	balances map[string]decimal.Decimal
	orderSeq int64
}

// NewDryRun creates a dry-run broker with an initial quote balance.
func NewDryRun(feeder core.Feeder, quoteAsset string, initialBalance, feeRate decimal.Decimal) *DryRun {
	return &DryRun{
		feeder:  feeder,
		feeRate: feeRate,
		balances: map[string]decimal.Decimal{
			quoteAsset: initialBalance,
		},
	}
}

// CandlesByLimit implements core.Feeder.
func (d *DryRun) CandlesByLimit(ctx context.Context, pair, timeframe string, limit int) ([]core.Candle, error) {
	return d.feeder.CandlesByLimit(ctx, pair, timeframe, limit)
}

// LastQuote implements core.Feeder.
func (d *DryRun) LastQuote(ctx context.Context, pair string) (float64, error) {
	return d.feeder.LastQuote(ctx, pair)
}

// PlaceMarketOrder implements core.Broker by filling immediately at the
// latest quote and charging the configured fee on the quote leg.
func (d *DryRun) PlaceMarketOrder(ctx context.Context, pair string, side core.SideType, qty decimal.Decimal) (core.Fill, error) {
	if !qty.IsPositive() {
		return core.Fill{}, WrapError(core.KindInvalidParam, pair, fmt.Errorf("non-positive quantity %s", qty))
	}

	quote, err := d.feeder.LastQuote(ctx, pair)
	if err != nil {
		return core.Fill{}, err
	}
	price := decimal.NewFromFloat(quote)

	base, quoteAsset := core.SplitPair(pair)
	value := price.Mul(qty)
	fee := value.Mul(d.feeRate)

	d.mu.Lock()
	defer d.mu.Unlock()

	switch side {
	case core.SideBuy:
		available := d.balances[quoteAsset]
		if available.LessThan(value.Add(fee)) {
			return core.Fill{}, WrapError(core.KindPermanent, pair,
				fmt.Errorf("insufficient %s balance: have %s, need %s", quoteAsset, available, value.Add(fee)))
		}
		d.balances[quoteAsset] = available.Sub(value).Sub(fee)
		d.balances[base] = d.balances[base].Add(qty)
	case core.SideSell:
		held := d.balances[base]
		if held.LessThan(qty) {
			return core.Fill{}, WrapError(core.KindPermanent, pair,
				fmt.Errorf("insufficient %s balance: have %s, need %s", base, held, qty))
		}
		d.balances[base] = held.Sub(qty)
		d.balances[quoteAsset] = d.balances[quoteAsset].Add(value).Sub(fee)
	default:
		return core.Fill{}, WrapError(core.KindInvalidParam, pair, fmt.Errorf("unknown side %q", side))
	}

	d.orderSeq++
	return core.Fill{
		OrderID:  fmt.Sprintf("dry-%d", d.orderSeq),
		Pair:     pair,
		Side:     side,
		Qty:      qty,
		AvgPrice: price,
		Fee:      fee,
		Time:     time.Now().UTC(),
	}, nil
}

// Balance implements core.Broker.
func (d *DryRun) Balance(_ context.Context, asset string) (decimal.Decimal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.balances[asset], nil
}
