/*
Package budget implements the budget lifecycle and overdraft carry-over engine.

PURPOSE:
  Computes, for an employee and an expense category, how much money is
  available in the current fiscal period, how overspent amounts roll forward
  into the next period, and how a single expense create/amend/remove is
  reconciled against a budget's pending and reimbursed balances.

KEY CONCEPTS IN THIS FILE (types.go):
  - ExpenseCategory: an administrator-defined spending bucket with a ceiling,
    recurrence, overdraft policy, and an access policy
  - AccessPolicy: tagged union of the four access rules
  - Employee: the subset of the employee record the engine reads
  - Budget: one employee's allocation of one category for one fiscal period
  - Expense: a single purchase reconciled against exactly one budget

DESIGN PRINCIPLES:
  1. Immutability: Budget values are never mutated in place; every transition
     returns a new value plus an explicit persistence instruction
  2. Precision: Money (decimal-backed) for every balance field
  3. Purity: no I/O in any transition function; the Store boundary is explicit

SEE ALSO:
  - access.go: access + proration evaluation
  - reconcile.go: expense-to-budget transitions
  - rollover.go, engine.go: period-end carry-over
*/
package budget

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type CategoryID string
type BudgetID string
type ExpenseID string
type TagID string

// =============================================================================
// ACCESS POLICY - Tagged union of the four access rules
// =============================================================================

// AccessPolicy determines which employees may charge a category and, for tag
// budgets, at what ceiling. The interface is sealed: exactly four variants.
type AccessPolicy interface {
	accessPolicy()
}

// AllEmployees grants access to every active employee.
type AllEmployees struct{}

// FullTimeOnly grants access only to employees at 100% work status.
type FullTimeOnly struct{}

// EmployeeIDList grants access to an explicit set of employees.
type EmployeeIDList struct {
	IDs []EmployeeID
}

// TagBudgets grants access to employees holding any listed tag, with a
// per-tag ceiling that supersedes proration. Order matters: the first entry
// whose tags intersect the employee's wins.
type TagBudgets struct {
	Entries []TagBudget
}

type TagBudget struct {
	TagIDs  []TagID
	Ceiling Money
}

func (AllEmployees) accessPolicy()   {}
func (FullTimeOnly) accessPolicy()   {}
func (EmployeeIDList) accessPolicy() {}
func (TagBudgets) accessPolicy()     {}

// =============================================================================
// EXPENSE CATEGORY
// =============================================================================

type ExpenseCategory struct {
	ID              CategoryID
	Name            string
	BudgetCeiling   Money
	Recurring       bool // anniversary-derived periods vs. a fixed window
	AllowsOverdraft bool
	RequiresReceipt bool
	Active          bool
	Access          AccessPolicy

	// Window is the fixed fiscal period for non-recurring categories.
	// Invariant: Recurring == false implies Window != nil.
	Window *FiscalPeriod
}

// =============================================================================
// EMPLOYEE - Read-only view of the employee record
// =============================================================================

type Employee struct {
	ID                EmployeeID
	HireDate          Date
	WorkStatusPercent int // 0-100
	TagIDs            []TagID
	Active            bool
}

func (e Employee) IsFullTime() bool { return e.WorkStatusPercent >= 100 }

func (e Employee) HasTag(id TagID) bool {
	for _, t := range e.TagIDs {
		if t == id {
			return true
		}
	}
	return false
}

// =============================================================================
// BUDGET - One employee's allocation for one category and period
// =============================================================================

type Budget struct {
	ID         BudgetID
	EmployeeID EmployeeID
	CategoryID CategoryID
	Period     FiscalPeriod
	Ceiling    Money
	Pending    Money // unreimbursed expenses charged so far
	Reimbursed Money // reimbursed expenses charged so far

	// Version supports optimistic concurrency at the store boundary.
	// A stale version on write yields ErrConcurrentModification.
	Version int64
}

// Spent is the total charged against this budget.
func (b Budget) Spent() Money { return b.Pending.Add(b.Reimbursed) }

// RemainingCapacity is how much more can be charged: ceiling minus spent
// under the default policy, or double the ceiling minus spent when the
// category allows overdraft.
func (b Budget) RemainingCapacity(cat ExpenseCategory) Money {
	cap := b.Ceiling
	if cat.AllowsOverdraft {
		cap = b.Ceiling.Double()
	}
	return cap.Sub(b.Spent())
}

// IsDrained reports a fully unwound budget: nothing pending, nothing
// reimbursed. Drained budgets of non-recurring categories are deleted.
func (b Budget) IsDrained() bool { return b.Pending.IsZero() && b.Reimbursed.IsZero() }

// BudgetView is the read-only projection served to dashboards. When no
// budget is persisted yet it carries a synthesized zero-balance allocation.
type BudgetView struct {
	Ceiling    Money
	Pending    Money
	Reimbursed Money
	Period     FiscalPeriod
}

// =============================================================================
// EXPENSE - The event being reconciled
// =============================================================================

type Expense struct {
	ID           ExpenseID
	EmployeeID   EmployeeID
	CategoryID   CategoryID
	Cost         Money
	PurchaseDate Date
	// ReimbursedDate, when set, means the expense has been paid out and is
	// locked from the reconciler's perspective.
	ReimbursedDate *Date
}

func (e Expense) IsReimbursed() bool { return e.ReimbursedDate != nil }
