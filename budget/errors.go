/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:
  Every rejection a reconciliation or rollover can produce lives here as a
  typed value. Callers branch with errors.Is/errors.As and map each category
  to a deterministic user-facing message; nothing in the engine throws a
  generic error for a business-rule violation.

ERROR CATEGORIES:
  1. Rejections - business-rule violations (access, window, capacity, locks)
  2. Conflicts  - store-detected concurrent modification
  3. Lookups    - referenced employee/category/budget missing

SEE ALSO:
  - reconcile.go: returns rejection values
  - store.go: PutBudget returns ErrConcurrentModification on stale writes
*/
package budget

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAccessDenied is returned when the employee lacks access to the
	// category under its access policy.
	ErrAccessDenied = errors.New("employee does not have access to this expense category")

	// ErrOutOfFiscalWindow is returned when a purchase date falls outside the
	// applicable fiscal period.
	ErrOutOfFiscalWindow = errors.New("purchase date is outside the fiscal period")

	// ErrInsufficientBudget is returned when a charge would exceed the
	// ceiling, or double the ceiling for overdraft categories.
	ErrInsufficientBudget = errors.New("insufficient budget capacity")

	// ErrAlreadyReimbursed is returned on amend/remove of a reimbursed
	// expense. Reimbursed expenses are immutable.
	ErrAlreadyReimbursed = errors.New("cannot perform action because it has already been reimbursed")

	// ErrEmployeeInactive is returned when charging on behalf of an inactive
	// employee.
	ErrEmployeeInactive = errors.New("employee is inactive")

	// ErrConcurrentModification is returned when optimistic locking detects a
	// conflicting write. Callers should re-fetch and re-apply.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrNotFound is returned when a referenced employee, category, or budget
	// does not exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBudgetError details a capacity shortfall.
type InsufficientBudgetError struct {
	BudgetID  BudgetID
	Requested Money
	Available Money
}

func (e *InsufficientBudgetError) Error() string {
	return fmt.Sprintf("insufficient budget: requested %s, available %s", e.Requested, e.Available)
}

func (e *InsufficientBudgetError) Unwrap() error { return ErrInsufficientBudget }

// OutOfWindowError details a purchase date outside its fiscal period.
type OutOfWindowError struct {
	PurchaseDate Date
	Period       FiscalPeriod
}

func (e *OutOfWindowError) Error() string {
	return fmt.Sprintf("purchase date %s outside fiscal period %s", e.PurchaseDate, e.Period)
}

func (e *OutOfWindowError) Unwrap() error { return ErrOutOfFiscalWindow }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "employee", "category", "budget"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if re-fetching and re-applying might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsRejection returns true if the error is a business-rule rejection rather
// than an infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrOutOfFiscalWindow) ||
		errors.Is(err, ErrInsufficientBudget) ||
		errors.Is(err, ErrAlreadyReimbursed) ||
		errors.Is(err, ErrEmployeeInactive)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
