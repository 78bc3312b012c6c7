package domain

import "fmt"

// ─── Business Errors ────────────────────────────────────────────────────────
// Every expected rejection carries a stable machine-readable code so callers
// can branch without string matching. These are outcomes, not crashes; the
// coordinator always rolls back before one surfaces.

// Error is a typed business-rule rejection.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches on code, so parameterized instances compare equal to their
// sentinel under errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	// ErrValidation rejects malformed or missing input.
	ErrValidation = &Error{Code: "payments.validation", Message: "invalid payment request"}

	// ErrProjectNotFound rejects references to a project that does not exist.
	ErrProjectNotFound = &Error{Code: "payments.project_not_found", Message: "project not found"}

	// ErrNotFound rejects lookups of a payment that does not exist.
	ErrNotFound = &Error{Code: "payments.not_found", Message: "payment not found"}

	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = &Error{Code: "payments.invalid_amount", Message: "amount must be a positive number"}

	// ErrAlreadySettled rejects payments against a fully paid project.
	ErrAlreadySettled = &Error{Code: "payments.already_settled", Message: "project balance is already settled"}

	// ErrSinglePaymentRequired rejects partial payments from cash clients:
	// they settle the full pending balance in exactly one payment.
	ErrSinglePaymentRequired = &Error{Code: "payments.single_payment_required", Message: "client must settle the full balance in a single payment"}

	// ErrOverTotal rejects payments that would push the paid total past the
	// contracted cost.
	ErrOverTotal = &Error{Code: "payments.over_total", Message: "payment would exceed the project total"}

	// ErrAlreadyCancelledOrNotFound rejects cancellation of a payment that
	// is not in a cancellable state. Callers cannot distinguish "never
	// existed" from "already cancelled" and need not.
	ErrAlreadyCancelledOrNotFound = &Error{Code: "payments.cancel_conflict", Message: "payment is already cancelled or does not exist"}

	// ErrBusy reports lock contention. The only code safe to retry, and
	// only by the caller, with backoff.
	ErrBusy = &Error{Code: "payments.busy", Message: "ledger is busy, retry later"}
)

// Validationf builds a field-specific validation rejection sharing
// ErrValidation's code.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: ErrValidation.Code, Message: fmt.Sprintf(format, args...)}
}
