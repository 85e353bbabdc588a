/*
rollover.go - Annual overdraft carry-over computation

PURPOSE:
  When a recurring budget's fiscal period ends overspent, the excess spills
  into the successor period as overdraft. This file is the pure half of the
  rollover: given the ending budget and its category, it decides whether a
  carry-over applies and computes both the clamped old budget and the seeded
  successor. The nightly batch (engine.go) handles selection and persistence.

CARRY-OVER RULE (legacy accounting, preserved exactly):
  Reimbursed dollars are absorbed by the ceiling first; anything beyond
  spills into the new period.

  If reimbursed > ceiling:
    old:  reimbursed = ceiling, pending = 0
    new:  reimbursed = old.reimbursed - ceiling, pending = old.pending
  Else:
    old:  pending = ceiling - old.reimbursed (reimbursed unchanged)
    new:  pending = old.pending + old.reimbursed - ceiling, reimbursed = 0

  The combined overdraft-allowed + rollover case has no symmetric rule in
  the source system; the formulas above apply unmodified (see DESIGN.md).
*/
package budget

// =============================================================================
// CARRY-OVER SPLIT
// =============================================================================

// CarryOver is the outcome of rolling one budget: the old budget clamped to
// its ceiling and the successor-period budget seeded with the excess.
type CarryOver struct {
	Closed    Budget
	Successor Budget
}

// ShouldRollOver reports whether the ending budget qualifies for carry-over:
// overspent, recurring category, and a full unprorated allocation. Prorated
// or partial budgets are not rolled with this rule.
func ShouldRollOver(b Budget, cat ExpenseCategory) bool {
	return b.Spent().GreaterThan(b.Ceiling) &&
		cat.Recurring &&
		b.Ceiling.Equal(cat.BudgetCeiling)
}

// RollOver computes the carry-over split for a qualifying budget. The
// successor's ID is left empty for the caller to mint; everything else is
// fully populated.
func RollOver(b Budget, cat ExpenseCategory) (CarryOver, bool) {
	if !ShouldRollOver(b, cat) {
		return CarryOver{}, false
	}

	ceiling := cat.BudgetCeiling
	closed := b
	successor := Budget{
		EmployeeID: b.EmployeeID,
		CategoryID: b.CategoryID,
		Period:     b.Period.Next(),
		Ceiling:    ceiling,
	}

	if b.Reimbursed.GreaterThan(ceiling) {
		// Reimbursed alone exceeds the ceiling: the overflow carries as
		// reimbursed, pending carries untouched.
		closed.Reimbursed = ceiling
		closed.Pending = ZeroMoney()
		successor.Reimbursed = b.Reimbursed.Sub(ceiling)
		successor.Pending = b.Pending
	} else {
		// Ceiling absorbs all reimbursed dollars plus part of pending; the
		// rest of pending spills forward.
		closed.Pending = ceiling.Sub(b.Reimbursed)
		successor.Pending = b.Pending.Add(b.Reimbursed).Sub(ceiling)
		successor.Reimbursed = ZeroMoney()
	}

	return CarryOver{Closed: closed, Successor: successor}, true
}
