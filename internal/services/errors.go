package services

import (
	"errors"
	"fmt"

	"matchmarket-service/internal/store"
)

// Business outcomes. Callers match them with errors.Is and present them; they
// never indicate a broken store.
var (
	ErrAlreadyWaiting = errors.New("user is already on the waitlist for this match")
	ErrNotFound       = errors.New("record not found")
	ErrOverpayment    = errors.New("payment exceeds the commission due")
	ErrInvalidState   = errors.New("operation not allowed in the current state")
	ErrInvalidInput   = errors.New("invalid input")
	ErrOfferExpired   = errors.New("payment offer has expired")
	ErrCapacityFull   = errors.New("no slot left for this gender")
	ErrInvalidAmount  = errors.New("amount must be greater than zero")
	ErrForbidden      = errors.New("not allowed for this user")
)

// PersistenceError wraps an unexpected store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// storeErr maps a store error onto the service taxonomy. Not-found becomes
// ErrNotFound, anything else is a PersistenceError. Errors that are already
// part of the taxonomy pass through, so it is safe on Transaction results.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		return ErrNotFound
	case errors.As(err, &pe), isBusinessErr(err):
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func isBusinessErr(err error) bool {
	for _, target := range []error{ErrAlreadyWaiting, ErrNotFound, ErrOverpayment, ErrInvalidState, ErrInvalidInput, ErrOfferExpired, ErrCapacityFull, ErrInvalidAmount, ErrForbidden} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
