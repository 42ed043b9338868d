// Package service provides business logic implementations.
package service

import (
	"errors"
	"fmt"
	"time"
)

// Common errors for ledger operations. Validation errors are reported before
// any state is touched.
var (
	ErrInvalidAmount     = errors.New("invalid amount: must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSelfTransfer      = errors.New("cannot transfer to self")
	ErrForbidden         = errors.New("forbidden")
)

// CooldownError is returned when a daily claim is attempted before the
// cooldown window has elapsed. No mutation has taken place.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("daily reward on cooldown, %s remaining", e.Remaining.Round(time.Second))
}

// PersistenceError is returned when a settlement credit could not be made
// durable after retries. The debit side already happened; Ref identifies the
// pending credit for operator reconciliation.
type PersistenceError struct {
	Ref string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("settlement not persisted (ref %s), contact an operator: %v", e.Ref, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
