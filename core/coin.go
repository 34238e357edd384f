package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Coin describes a tradable market and its exchange constraints.
// Rank is the deterministic tiebreaker used when entry scores are equal.
type Coin struct {
	Symbol         string          `json:"symbol"`
	Pair           string          `json:"pair"`
	MinOrderQty    decimal.Decimal `json:"min_order_qty"`
	MinOrderValue  decimal.Decimal `json:"min_order_value"`
	PricePrecision int32           `json:"price_precision"`
	QtyPrecision   int32           `json:"qty_precision"`
	Rank           int             `json:"rank"`
}

// SplitPair separates a pair like "BTC/KRW" into base and quote assets.
func SplitPair(pair string) (base, quote string) {
	parts := strings.SplitN(pair, "/", 2)
	if len(parts) != 2 {
		return pair, ""
	}
	return parts[0], parts[1]
}

// QuoteAsset returns the quote side of the coin's pair.
func (c Coin) QuoteAsset() string {
	_, quote := SplitPair(c.Pair)
	return quote
}

// RoundQty truncates a quantity down to the coin's quantity precision.
func (c Coin) RoundQty(qty decimal.Decimal) decimal.Decimal {
	return qty.RoundDown(c.QtyPrecision)
}

// RoundPrice rounds a price to the coin's price precision.
func (c Coin) RoundPrice(price decimal.Decimal) decimal.Decimal {
	return price.Round(c.PricePrecision)
}
