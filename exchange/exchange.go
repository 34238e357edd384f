// Package exchange provides the concrete adapters the engine trades
// through: a live binance implementation and a dry-run broker that
// simulates fills locally.
package exchange

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ver3trade/engine/core"
)

// Transport timeouts required from any adapter implementation
const (
	ConnectTimeout     = 5 * time.Second
	PublicReadTimeout  = 30 * time.Second
	PrivateReadTimeout = 15 * time.Second
)

// Symbol converts an engine pair like "BTC/KRW" into the exchange's
// concatenated symbol form.
func Symbol(pair string) string {
	return strings.ReplaceAll(pair, "/", "")
}

// WrapError classifies an adapter failure into an ExchangeError. Context
// cancellation and deadline expiry map to transient so the caller's
// timeout accounting stays in charge.
func WrapError(kind core.ErrorKind, pair string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = core.KindTransient
	}
	return &core.ExchangeError{Kind: kind, Pair: pair, Err: err}
}
