package control

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrTicketActive = errors.New("a ticket is already active")
	ErrNotDelivered = errors.New("message not delivered")
)

// ValidationError is reported to the operator; the call is aborted and
// nothing is published.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
