package models

import (
	"errors"
	"fmt"
)

// Domain errors. Handlers map these onto HTTP statuses; services wrap them
// with context via fmt.Errorf("...: %w", err).
var (
	// ErrAuthRequired is returned when no authenticated user is present.
	ErrAuthRequired = errors.New("authentication required")

	// ErrValidation is returned when required checkout or cart fields are
	// missing or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrSignatureInvalid is returned when a payment or webhook signature
	// does not match the server-side recomputation. Always fatal to the
	// request; never silently accepted.
	ErrSignatureInvalid = errors.New("signature verification failed")

	// ErrGatewayUnavailable is returned when a provider call fails or times
	// out. The order stays pending and the user may retry checkout.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrNotFound is returned when an order or provider reference lookup
	// finds nothing.
	ErrNotFound = errors.New("not found")
)

// StateTransitionError is returned when a finalization attempts to move an
// order that already sits in a conflicting terminal state. Re-applying the
// same terminal state is a no-op, not an error.
type StateTransitionError struct {
	OrderID string
	From    string
	To      string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition for order %s: %s -> %s", e.OrderID, e.From, e.To)
}

// ValidationError wraps ErrValidation with the offending field so the API
// can surface a user-actionable message.
func ValidationError(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}
