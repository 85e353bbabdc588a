/*
access.go - Access and proration evaluation

PURPOSE:
  The single place where "may this employee charge this category, and at what
  ceiling" is answered. Both the expense reconciler (sizing a newly
  materialized budget) and the rollover engine consult this file, so the
  access rules cannot drift between the two.

ACCESS RULES:
  AllEmployees   -> everyone
  FullTimeOnly   -> 100% work status only
  EmployeeIDList -> explicit membership
  TagBudgets     -> any listed tag intersects the employee's tags; grants
                    access independent of work status

PRORATION:
  Full-time employees (and FullTimeOnly categories) take the category ceiling
  as-is. Part-time employees take ceiling * workStatus/100, rounded half-up
  to cents. A matching tag budget supersedes both: first declared entry that
  matches wins.

FAILURE MODE:
  An unmapped or malformed access policy degrades to "no access" - the
  evaluator never returns an error.
*/
package budget

// =============================================================================
// ACCESS EVALUATION
// =============================================================================

// HasAccess reports whether the employee may charge the category.
func HasAccess(emp Employee, cat ExpenseCategory) bool {
	switch p := cat.Access.(type) {
	case AllEmployees:
		return true
	case FullTimeOnly:
		return emp.IsFullTime()
	case EmployeeIDList:
		for _, id := range p.IDs {
			if id == emp.ID {
				return true
			}
		}
		return false
	case TagBudgets:
		_, ok := matchTagBudget(emp, p)
		return ok
	default:
		// Unknown policy representation degrades to no access.
		return false
	}
}

// AdjustedCeiling computes the ceiling for a budget materialized for this
// employee and category: zero without access, the full ceiling for full-time
// allocations, the prorated ceiling otherwise, with tag-budget overrides
// superseding all of it.
func AdjustedCeiling(emp Employee, cat ExpenseCategory) Money {
	if !HasAccess(emp, cat) {
		return ZeroMoney()
	}

	switch p := cat.Access.(type) {
	case FullTimeOnly:
		// Access already implies 100% work status.
		return cat.BudgetCeiling
	case TagBudgets:
		if entry, ok := matchTagBudget(emp, p); ok {
			return entry.Ceiling
		}
		return ZeroMoney()
	default:
		if emp.IsFullTime() {
			return cat.BudgetCeiling
		}
		return cat.BudgetCeiling.Prorate(emp.WorkStatusPercent)
	}
}

// matchTagBudget returns the first declared entry whose tags intersect the
// employee's. Declaration order is the tie-break when multiple entries match.
func matchTagBudget(emp Employee, p TagBudgets) (TagBudget, bool) {
	for _, entry := range p.Entries {
		for _, tag := range entry.TagIDs {
			if emp.HasTag(tag) {
				return entry, true
			}
		}
	}
	return TagBudget{}, false
}
