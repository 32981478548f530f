package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	// ErrDuplicateOperation is absorbed by the ledger; callers receive the original result.
	ErrDuplicateOperation     = errors.New("duplicate operation")
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrExpiredRequest         = errors.New("request expired")

	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidInput    = errors.New("invalid input")
	ErrSlotUnavailable = errors.New("tutor is not available in that window")
)

// TransitionError carries the booking state an illegal event was applied to.
type TransitionError struct {
	From  BookingStatus
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a booking in status %s", e.Event, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidStateTransition }

// Invalid wraps ErrInvalidInput with a message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
