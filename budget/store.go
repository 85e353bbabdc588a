/*
store.go - Persistence boundary

PURPOSE:
  Defines the interface between the engine and whatever keyed store backs
  it. The engine never owns a connection; every operation is
  read -> pure compute -> write against this interface.

CONCURRENCY CONTRACT:
  PutBudget is an optimistic compare-and-swap on Budget.Version. Two
  concurrent reconciliations against the same budget cannot both win: the
  second write observes a stale version and fails with
  ErrConcurrentModification, and the caller re-drives the whole
  reconciliation (re-fetch, re-validate, re-apply).

IMPLEMENTATIONS:
  - budget/store/memory.go: in-memory (tests/dev)
  - store/sqlite/sqlite.go: production SQLite

SEE ALSO:
  - service.go: the only writer of budgets
  - engine.go: the nightly batch reader/writer
*/
package budget

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Abstract keyed store with secondary-index queries
// =============================================================================

type Store interface {
	// GetEmployee returns the employee or a NotFoundError.
	GetEmployee(ctx context.Context, id EmployeeID) (Employee, error)

	// GetCategory returns the expense category or a NotFoundError.
	GetCategory(ctx context.Context, id CategoryID) (ExpenseCategory, error)

	// GetBudget returns the budget or a NotFoundError.
	GetBudget(ctx context.Context, id BudgetID) (Budget, error)

	// FindBudget resolves the budget owning (employee, category, date) by
	// fiscal-period containment. Returns nil when no period covers the date.
	FindBudget(ctx context.Context, employeeID EmployeeID, categoryID CategoryID, date Date) (*Budget, error)

	// BudgetsEndingOn returns all budgets whose fiscal period ends exactly on
	// the given date. Secondary-index lookup used by the nightly rollover.
	BudgetsEndingOn(ctx context.Context, end Date) ([]Budget, error)

	// PutBudget inserts or replaces a budget. The write succeeds only when
	// the incoming Version matches the stored one (zero for inserts); the
	// stored version is then bumped and the persisted value returned. A
	// stale version yields ErrConcurrentModification. Inserts are also
	// serialized per (employee, category, period start): when another budget
	// already owns that period the insert yields ErrConcurrentModification
	// and the caller re-fetches the winner.
	PutBudget(ctx context.Context, b Budget) (Budget, error)

	// DeleteBudget removes a budget. Deleting a missing budget is not an error.
	DeleteBudget(ctx context.Context, id BudgetID) error
}

// =============================================================================
// ROLLOVER RUNS - Operator-facing record of nightly batches
// =============================================================================

// RolloverRun records one nightly batch for observability and safe re-runs.
// Timestamps are full instants so repeated re-runs of the same date stay
// distinguishable.
type RolloverRun struct {
	ID          string
	RunDate     Date
	Rolled      int
	Skipped     int
	Failed      int
	Status      string // "completed" or "failed"
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// RunStore persists rollover run records. Optional: the engine degrades to
// logging only when no RunStore is wired.
type RunStore interface {
	SaveRolloverRun(ctx context.Context, run RolloverRun) error
	ListRolloverRuns(ctx context.Context, limit int) ([]RolloverRun, error)
}
