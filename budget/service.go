/*
service.go - Reconciliation service façade

PURPOSE:
  The entry point callers (HTTP routes, batch schedulers) use. Each method
  is one atomic read-validate-write unit: load the referenced records,
  resolve or materialize the owning budget, run the pure transition from
  reconcile.go, persist the result.

CONCURRENCY:
  PutBudget is a compare-and-swap. On ErrConcurrentModification the service
  re-drives the whole reconciliation once (re-fetch, re-validate, re-apply);
  a second conflict surfaces the typed error so the caller can retry.

SEE ALSO:
  - reconcile.go: the pure transitions
  - engine.go: the nightly rollover batch
*/
package budget

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Service exposes expense reconciliation and budget views over a Store.
type Service struct {
	store Store
	log   *logrus.Logger
}

func NewService(store Store, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{store: store, log: log}
}

// =============================================================================
// RECONCILIATION API
// =============================================================================

// ReconcileExpenseCreate charges a newly created expense against its budget,
// materializing the budget if this is the first charge of the period.
func (s *Service) ReconcileExpenseCreate(ctx context.Context, exp Expense) (Budget, error) {
	return s.withRetry(ctx, func(ctx context.Context) (Budget, error) {
		return s.reconcileCreate(ctx, exp)
	})
}

// ReconcileExpenseAmend replaces an expense's cost and/or reimbursement
// status against the budget that owns it.
func (s *Service) ReconcileExpenseAmend(ctx context.Context, oldExp, newExp Expense) (Budget, error) {
	return s.withRetry(ctx, func(ctx context.Context) (Budget, error) {
		return s.reconcileAmend(ctx, oldExp, newExp)
	})
}

// ReconcileExpenseRemove reverses an expense's charge. Returns nil when the
// drained budget was deleted alongside its last expense.
func (s *Service) ReconcileExpenseRemove(ctx context.Context, exp Expense) (*Budget, error) {
	b, err := s.reconcileRemove(ctx, exp)
	if IsRetryable(err) {
		s.log.WithField("expense", exp.ID).Warn("budget write conflict, retrying reconciliation")
		b, err = s.reconcileRemove(ctx, exp)
	}
	return b, err
}

// ActiveBudgetView is the read-only projection for dashboards. When no
// budget is persisted for the period containing asOf, a transient
// zero-balance allocation is synthesized.
func (s *Service) ActiveBudgetView(ctx context.Context, employeeID EmployeeID, categoryID CategoryID, asOf Date) (BudgetView, error) {
	emp, err := s.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return BudgetView{}, err
	}
	cat, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return BudgetView{}, err
	}

	b, err := s.store.FindBudget(ctx, employeeID, categoryID, asOf)
	if err != nil {
		return BudgetView{}, err
	}
	if b != nil {
		return BudgetView{Ceiling: b.Ceiling, Pending: b.Pending, Reimbursed: b.Reimbursed, Period: b.Period}, nil
	}

	period, err := applicablePeriod(emp, cat, asOf)
	if err != nil {
		return BudgetView{}, err
	}
	return BudgetView{
		Ceiling:    AdjustedCeiling(emp, cat),
		Pending:    ZeroMoney(),
		Reimbursed: ZeroMoney(),
		Period:     period,
	}, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (s *Service) withRetry(ctx context.Context, fn func(context.Context) (Budget, error)) (Budget, error) {
	b, err := fn(ctx)
	if IsRetryable(err) {
		s.log.Warn("budget write conflict, retrying reconciliation")
		b, err = fn(ctx)
	}
	return b, err
}

func (s *Service) reconcileCreate(ctx context.Context, exp Expense) (Budget, error) {
	emp, err := s.store.GetEmployee(ctx, exp.EmployeeID)
	if err != nil {
		return Budget{}, err
	}
	cat, err := s.store.GetCategory(ctx, exp.CategoryID)
	if err != nil {
		return Budget{}, err
	}

	if !emp.Active {
		return Budget{}, ErrEmployeeInactive
	}
	if !HasAccess(emp, cat) {
		return Budget{}, ErrAccessDenied
	}

	b, err := s.resolveBudget(ctx, emp, cat, exp.PurchaseDate)
	if err != nil {
		return Budget{}, err
	}

	result, err := ApplyCreate(*b, cat, emp, exp)
	if err != nil {
		return Budget{}, err
	}
	return s.store.PutBudget(ctx, result.Budget)
}

func (s *Service) reconcileAmend(ctx context.Context, oldExp, newExp Expense) (Budget, error) {
	emp, err := s.store.GetEmployee(ctx, oldExp.EmployeeID)
	if err != nil {
		return Budget{}, err
	}
	cat, err := s.store.GetCategory(ctx, oldExp.CategoryID)
	if err != nil {
		return Budget{}, err
	}
	if !emp.Active {
		return Budget{}, ErrEmployeeInactive
	}

	b, err := s.store.FindBudget(ctx, oldExp.EmployeeID, oldExp.CategoryID, oldExp.PurchaseDate)
	if err != nil {
		return Budget{}, err
	}
	if b == nil {
		return Budget{}, &NotFoundError{Kind: "budget", ID: string(oldExp.ID)}
	}

	result, err := ApplyAmend(*b, cat, oldExp, newExp)
	if err != nil {
		return Budget{}, err
	}
	return s.store.PutBudget(ctx, result.Budget)
}

func (s *Service) reconcileRemove(ctx context.Context, exp Expense) (*Budget, error) {
	cat, err := s.store.GetCategory(ctx, exp.CategoryID)
	if err != nil {
		return nil, err
	}

	b, err := s.store.FindBudget(ctx, exp.EmployeeID, exp.CategoryID, exp.PurchaseDate)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, &NotFoundError{Kind: "budget", ID: string(exp.ID)}
	}

	result, err := ApplyRemove(*b, cat, exp)
	if err != nil {
		return nil, err
	}

	if result.Op == OpDelete {
		if err := s.store.DeleteBudget(ctx, result.Budget.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	persisted, err := s.store.PutBudget(ctx, result.Budget)
	if err != nil {
		return nil, err
	}
	return &persisted, nil
}

// resolveBudget finds the budget owning (employee, category, date), or
// materializes a zero-balance one sized by the access evaluator.
func (s *Service) resolveBudget(ctx context.Context, emp Employee, cat ExpenseCategory, date Date) (*Budget, error) {
	existing, err := s.store.FindBudget(ctx, emp.ID, cat.ID, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	period, err := applicablePeriod(emp, cat, date)
	if err != nil {
		return nil, err
	}
	if !period.Contains(date) {
		return nil, &OutOfWindowError{PurchaseDate: date, Period: period}
	}

	return &Budget{
		ID:         BudgetID(uuid.NewString()),
		EmployeeID: emp.ID,
		CategoryID: cat.ID,
		Period:     period,
		Ceiling:    AdjustedCeiling(emp, cat),
		Pending:    ZeroMoney(),
		Reimbursed: ZeroMoney(),
	}, nil
}

// applicablePeriod derives the fiscal period covering the date: the
// employee's anniversary year for recurring categories, the fixed window
// otherwise.
func applicablePeriod(emp Employee, cat ExpenseCategory, date Date) (FiscalPeriod, error) {
	if cat.Recurring {
		return AnniversaryPeriod(emp.HireDate, date), nil
	}
	if cat.Window == nil {
		// Non-recurring category missing its window: nothing applicable.
		return FiscalPeriod{}, &OutOfWindowError{PurchaseDate: date}
	}
	return *cat.Window, nil
}
