package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLoanType covers both unknown and deactivated products;
	// callers cannot tell the two apart.
	ErrInvalidLoanType = errors.New("invalid or inactive loan type")

	// ErrPermissionDenied is returned when the acting user lacks the
	// capability an operation requires. No state is changed.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotApproved is returned when disbursement is attempted on a loan
	// that has not been approved.
	ErrNotApproved = errors.New("loan is not approved")

	// ErrAlreadyDisbursed is returned when approval is attempted on a loan
	// that has already been disbursed; the status never regresses.
	ErrAlreadyDisbursed = errors.New("loan is already disbursed")
)

// ValidationError reports malformed input, e.g. a non-positive principal.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
