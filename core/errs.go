package core

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine
var (
	// ErrInsufficientData is returned when an indicator or classifier is
	// given fewer bars than its warmup requires.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrStateCorruption marks a persisted file that could not be decoded.
	ErrStateCorruption = errors.New("state corruption")
)

// ErrorKind classifies exchange and execution failures so callers can
// pick the right recovery path.
type ErrorKind string

// Available error kinds
const (
	KindTransient    ErrorKind = "transient"
	KindRateLimited  ErrorKind = "rate_limited"
	KindAuth         ErrorKind = "auth"
	KindInvalidParam ErrorKind = "invalid_param"
	KindPermanent    ErrorKind = "permanent"
)

// ExchangeError wraps an exchange failure with its classified kind.
type ExchangeError struct {
	Kind ErrorKind
	Pair string
	Err  error
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange error (%s) on %s: %v", e.Kind, e.Pair, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ExchangeError) Unwrap() error { return e.Err }

// KindOf extracts the error kind from an error chain, defaulting to
// transient for unclassified failures.
func KindOf(err error) ErrorKind {
	var ee *ExchangeError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindTransient
}
