/*
reconcile.go - Expense-to-budget reconciliation state machine

PURPOSE:
  Applies, amends, or reverses a single expense's effect on a budget's
  pending and reimbursed balances. Each transition is a pure function over
  (Budget, Expense): it validates, then returns a NEW budget value and an
  explicit persistence instruction. No I/O happens here; the Service owns
  the read-validate-write cycle.

STATES (per expense, relative to its budget):
  Unpending -> Pending     create, no reimbursed date
  Unpending -> Reimbursed  create, reimbursed date present
  Pending   -> Pending     amend (cost change)
  Pending   -> Reimbursed  amend (newly marked reimbursed)
  Pending   -> Removed     remove
  Reimbursed is terminal: any amend or remove is rejected.

CAPACITY RULE:
  A charge must fit within ceiling - spent, or 2*ceiling - spent when the
  category allows overdraft. The doubling rule is deliberate legacy policy.

SEE ALSO:
  - service.go: resolves/materializes the owning budget and persists results
  - access.go: sizes newly materialized budgets
*/
package budget

// =============================================================================
// PERSISTENCE INSTRUCTIONS
// =============================================================================

// StoreOp tells the caller what to do with the returned budget value.
type StoreOp int

const (
	OpPut StoreOp = iota
	OpDelete
)

// ReconcileResult is a new budget value plus the instruction for persisting it.
type ReconcileResult struct {
	Budget Budget
	Op     StoreOp
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// ApplyCreate charges a new expense against the budget.
//
// Rejections: inactive employee, purchase date outside the budget's period,
// insufficient capacity. On acceptance the cost lands in the pending bucket,
// or directly in the reimbursed bucket when the expense already carries a
// reimbursed date.
func ApplyCreate(b Budget, cat ExpenseCategory, emp Employee, exp Expense) (ReconcileResult, error) {
	if !emp.Active {
		return ReconcileResult{}, ErrEmployeeInactive
	}
	if !b.Period.Contains(exp.PurchaseDate) {
		return ReconcileResult{}, &OutOfWindowError{PurchaseDate: exp.PurchaseDate, Period: b.Period}
	}
	if remaining := b.RemainingCapacity(cat); exp.Cost.GreaterThan(remaining) {
		return ReconcileResult{}, &InsufficientBudgetError{
			BudgetID:  b.ID,
			Requested: exp.Cost,
			Available: remaining,
		}
	}

	next := b
	if exp.IsReimbursed() {
		next.Reimbursed = b.Reimbursed.Add(exp.Cost)
	} else {
		next.Pending = b.Pending.Add(exp.Cost)
	}
	return ReconcileResult{Budget: next, Op: OpPut}, nil
}

// ApplyAmend replaces a charged expense's cost and/or reimbursement status.
//
// The prior state must be Pending: reimbursed expenses are locked. The old
// cost is subtracted from the pending bucket, then the new cost is charged
// to its new bucket under the usual window and capacity validation.
func ApplyAmend(b Budget, cat ExpenseCategory, oldExp, newExp Expense) (ReconcileResult, error) {
	if oldExp.IsReimbursed() {
		return ReconcileResult{}, ErrAlreadyReimbursed
	}
	if !b.Period.Contains(newExp.PurchaseDate) {
		return ReconcileResult{}, &OutOfWindowError{PurchaseDate: newExp.PurchaseDate, Period: b.Period}
	}

	// Undo the old charge before validating the new one.
	unwound := b
	unwound.Pending = b.Pending.Sub(oldExp.Cost)

	if remaining := unwound.RemainingCapacity(cat); newExp.Cost.GreaterThan(remaining) {
		return ReconcileResult{}, &InsufficientBudgetError{
			BudgetID:  b.ID,
			Requested: newExp.Cost,
			Available: remaining,
		}
	}

	next := unwound
	if newExp.IsReimbursed() {
		next.Reimbursed = unwound.Reimbursed.Add(newExp.Cost)
	} else {
		next.Pending = unwound.Pending.Add(newExp.Cost)
	}
	return ReconcileResult{Budget: next, Op: OpPut}, nil
}

// ApplyRemove reverses a charged expense.
//
// Reimbursed expenses are locked and rejected. The cost leaves the pending
// bucket; a fully drained budget of a non-recurring category is deleted
// rather than kept around empty.
func ApplyRemove(b Budget, cat ExpenseCategory, exp Expense) (ReconcileResult, error) {
	if exp.IsReimbursed() {
		return ReconcileResult{}, ErrAlreadyReimbursed
	}

	next := b
	next.Pending = b.Pending.Sub(exp.Cost)

	if next.IsDrained() && !cat.Recurring {
		return ReconcileResult{Budget: next, Op: OpDelete}, nil
	}
	return ReconcileResult{Budget: next, Op: OpPut}, nil
}
