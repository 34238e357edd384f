// Package binance adapts the binance spot REST API to the engine's
// exchange interfaces.
package binance

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"

	"github.com/ver3trade/engine/core"
	"github.com/ver3trade/engine/exchange"
)

// Binance implements core.Exchange over the spot REST API. Public data
// and private order endpoints use separate HTTP clients so their read
// timeouts can differ.
type Binance struct {
	public  *binance.Client
	private *binance.Client
	log     core.Logger
}

// NewBinance creates the adapter. API credentials may be empty when
// only public market data is needed (dry-run mode).
func NewBinance(apiKey, secretKey string, log core.Logger) *Binance {
	public := binance.NewClient("", "")
	public.HTTPClient = httpClient(exchange.PublicReadTimeout)

	private := binance.NewClient(apiKey, secretKey)
	private.HTTPClient = httpClient(exchange.PrivateReadTimeout)

	return &Binance{public: public, private: private, log: log}
}

// httpClient builds a client with a bounded connect timeout separate
// from the overall request deadline.
func httpClient(readTimeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: readTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: exchange.ConnectTimeout}).DialContext,
		},
	}
}

// CandlesByLimit implements core.Feeder.
func (b *Binance) CandlesByLimit(ctx context.Context, pair, timeframe string, limit int) ([]core.Candle, error) {
	klines, err := b.public.NewKlinesService().
		Symbol(exchange.Symbol(pair)).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, classify(pair, err)
	}

	candles := make([]core.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := toCandle(pair, k)
		if err != nil {
			return nil, exchange.WrapError(core.KindInvalidParam, pair, err)
		}
		candles = append(candles, candle)
	}

	// The newest kline may still be forming
	if len(candles) > 0 {
		candles[len(candles)-1].Complete = false
	}
	return candles, nil
}

// LastQuote implements core.Feeder.
func (b *Binance) LastQuote(ctx context.Context, pair string) (float64, error) {
	prices, err := b.public.NewListPricesService().Symbol(exchange.Symbol(pair)).Do(ctx)
	if err != nil {
		return 0, classify(pair, err)
	}
	if len(prices) == 0 {
		return 0, exchange.WrapError(core.KindInvalidParam, pair, fmt.Errorf("no ticker for %s", pair))
	}
	return strconv.ParseFloat(prices[0].Price, 64)
}

// PlaceMarketOrder implements core.Broker.
func (b *Binance) PlaceMarketOrder(ctx context.Context, pair string, side core.SideType, qty decimal.Decimal) (core.Fill, error) {
	orderSide := binance.SideTypeBuy
	if side == core.SideSell {
		orderSide = binance.SideTypeSell
	}

	resp, err := b.private.NewCreateOrderService().
		Symbol(exchange.Symbol(pair)).
		Side(orderSide).
		Type(binance.OrderTypeMarket).
		Quantity(qty.String()).
		Do(ctx)
	if err != nil {
		return core.Fill{}, classify(pair, err)
	}

	filledQty, err := decimal.NewFromString(resp.ExecutedQuantity)
	if err != nil {
		return core.Fill{}, exchange.WrapError(core.KindInvalidParam, pair, err)
	}

	avgPrice, fee := fillAverages(resp.Fills)
	return core.Fill{
		OrderID:  strconv.FormatInt(resp.OrderID, 10),
		Pair:     pair,
		Side:     side,
		Qty:      filledQty,
		AvgPrice: avgPrice,
		Fee:      fee,
		Time:     time.UnixMilli(resp.TransactTime).UTC(),
	}, nil
}

// Balance implements core.Broker.
func (b *Binance) Balance(ctx context.Context, asset string) (decimal.Decimal, error) {
	account, err := b.private.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, classify(asset, err)
	}
	for _, balance := range account.Balances {
		if balance.Asset == asset {
			return decimal.NewFromString(balance.Free)
		}
	}
	return decimal.Zero, nil
}

// fillAverages computes the quantity-weighted average price and total
// commission over the partial fills of one order.
func fillAverages(fills []*binance.Fill) (avgPrice, fee decimal.Decimal) {
	var totalQty, totalValue decimal.Decimal
	for _, f := range fills {
		price, err := decimal.NewFromString(f.Price)
		if err != nil {
			continue
		}
		qty, err := decimal.NewFromString(f.Quantity)
		if err != nil {
			continue
		}
		commission, err := decimal.NewFromString(f.Commission)
		if err == nil {
			fee = fee.Add(commission)
		}
		totalQty = totalQty.Add(qty)
		totalValue = totalValue.Add(price.Mul(qty))
	}
	if totalQty.IsPositive() {
		avgPrice = totalValue.Div(totalQty)
	}
	return avgPrice, fee
}

// toCandle converts one kline row into an engine candle.
func toCandle(pair string, k *binance.Kline) (core.Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return core.Candle{}, err
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return core.Candle{}, err
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return core.Candle{}, err
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return core.Candle{}, err
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return core.Candle{}, err
	}

	return core.Candle{
		Pair:     pair,
		Time:     time.UnixMilli(k.OpenTime).UTC(),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   volume,
		Complete: true,
	}, nil
}

// classify maps a binance API error onto the engine's error kinds.
func classify(pair string, err error) error {
	apiErr, ok := err.(*common.APIError)
	if !ok {
		return exchange.WrapError(core.KindTransient, pair, err)
	}

	switch {
	case apiErr.Code == -1003 || apiErr.Code == -1015:
		return exchange.WrapError(core.KindRateLimited, pair, err)
	case apiErr.Code == -2014 || apiErr.Code == -2015 || apiErr.Code == -1022:
		return exchange.WrapError(core.KindAuth, pair, err)
	case apiErr.Code == -1013 || apiErr.Code == -1100 || apiErr.Code == -1102 || apiErr.Code == -1121 || apiErr.Code == -2010:
		return exchange.WrapError(core.KindInvalidParam, pair, err)
	case apiErr.Code <= -1000 && apiErr.Code > -1010:
		return exchange.WrapError(core.KindTransient, pair, err)
	default:
		return exchange.WrapError(core.KindTransient, pair, err)
	}
}
