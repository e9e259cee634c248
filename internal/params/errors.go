package params

import (
	"errors"
	"fmt"
)

// Validation errors. These fail fast and never reach the kernel.
var (
	// ErrCashReserveConflict is returned when both targetMonths and
	// targetAmount are supplied for the cash reserve. The source of truth
	// is ambiguous, so the conflict is surfaced instead of tie-broken.
	ErrCashReserveConflict = errors.New("cash reserve: targetMonths and targetAmount are mutually exclusive")

	// ErrUnknownFieldPath is returned for a confirmed change whose path is
	// not in the field table.
	ErrUnknownFieldPath = errors.New("unknown field path")

	// ErrInvalidNumeric is returned for negative or NaN numeric inputs.
	ErrInvalidNumeric = errors.New("invalid numeric input")
)

// MissingInputError reports a required field absent from the request.
// Maps to HTTP 400 MISSING_INPUT.
type MissingInputError struct {
	Field string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing required input: %s", e.Field)
}

// IsMissingInput reports whether err is a MissingInputError.
func IsMissingInput(err error) bool {
	var me *MissingInputError
	return errors.As(err, &me)
}
