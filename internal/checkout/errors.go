package checkout

import (
	"errors"
	"fmt"
)

// ValidationError blocks a checkout submission locally; it never reaches
// the gateway or the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

var ErrIllegalTransition = errors.New("illegal checkout state transition")
