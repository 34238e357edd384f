package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Exchange combines market data access and order placement.
type Exchange interface {
	Broker
	Feeder
}

// Feeder provides market data for a trading pair.
type Feeder interface {
	CandlesByLimit(ctx context.Context, pair, timeframe string, limit int) ([]Candle, error)
	LastQuote(ctx context.Context, pair string) (float64, error)
}

// Fill is the result of an accepted market order.
type Fill struct {
	OrderID  string
	Pair     string
	Side     SideType
	Qty      decimal.Decimal
	AvgPrice decimal.Decimal
	Fee      decimal.Decimal
	Time     time.Time
}

// Broker places orders and reports balances.
type Broker interface {
	PlaceMarketOrder(ctx context.Context, pair string, side SideType, qty decimal.Decimal) (Fill, error)
	Balance(ctx context.Context, asset string) (decimal.Decimal, error)
}

// Notifier delivers best-effort operator alerts. Implementations must
// never block the trading cycle.
type Notifier interface {
	Notify(message string)
	OnError(err error)
}

// NotifierWithStart is a notifier that runs its own receive loop.
type NotifierWithStart interface {
	Notifier
	Start()
	Stop()
}

// Clock abstracts time for the scheduler so tests can drive cycles.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// StateStore persists the engine's durable files atomically.
type StateStore interface {
	LoadState() (*EngineState, error)
	SaveState(state *EngineState) error
	SaveFactors(record FactorsRecord) error
	AppendTransaction(tx Transaction) error
	AppendOutcome(outcome TradeOutcome) error
	SaveDailySnapshot(snapshot DailySnapshot) error
	Outcomes() ([]TradeOutcome, error)
}
