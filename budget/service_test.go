package budget_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/budget/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*budget.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	mem.PutEmployee(fullTimeEmployee("emp-1"))
	mem.PutCategory(categoryWith(budget.AllEmployees{}, "1000"))
	return budget.NewService(mem, nil), mem
}

// =============================================================================
// CREATE FLOW
// =============================================================================

func TestService_Create_MaterializesBudgetOnFirstCharge(t *testing.T) {
	// GIVEN: No budget persisted for the period
	// WHEN: The first expense of the period is reconciled
	// THEN: A budget is materialized with the anniversary period and the
	//       evaluator-sized ceiling

	svc, _ := newTestService(t)
	ctx := context.Background()

	exp := pendingExpense("exp-1", "250", budget.NewDate(2025, time.October, 1))
	b, err := svc.ReconcileExpenseCreate(ctx, exp)
	require.NoError(t, err)

	// Hired 2020-08-18, purchased 2025-10-01 -> period [2025-08-18, 2026-08-17]
	assert.True(t, b.Period.Start.Equal(budget.NewDate(2025, time.August, 18)))
	assert.True(t, b.Period.End.Equal(budget.NewDate(2026, time.August, 17)))
	assert.True(t, b.Ceiling.Equal(budget.MustMoney("1000")))
	assert.True(t, b.Pending.Equal(budget.MustMoney("250")))
	assert.NotEmpty(t, b.ID)
}

func TestService_Create_SecondChargeLandsOnSameBudget(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	_, err := svc.ReconcileExpenseCreate(ctx, pendingExpense("exp-1", "250", budget.NewDate(2025, time.October, 1)))
	require.NoError(t, err)
	b, err := svc.ReconcileExpenseCreate(ctx, pendingExpense("exp-2", "100", budget.NewDate(2025, time.November, 5)))
	require.NoError(t, err)

	assert.True(t, b.Pending.Equal(budget.MustMoney("350")))

	found, err := mem.FindBudget(ctx, "emp-1", "cat-tech", budget.NewDate(2025, time.October, 1))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, b.ID, found.ID)
}

func TestService_Create_NoAccess_Rejected(t *testing.T) {
	svc, mem := newTestService(t)
	mem.PutCategory(categoryWith(budget.EmployeeIDList{IDs: []budget.EmployeeID{"emp-9"}}, "1000"))

	_, err := svc.ReconcileExpenseCreate(context.Background(),
		pendingExpense("exp-1", "10", budget.NewDate(2025, time.October, 1)))
	assert.ErrorIs(t, err, budget.ErrAccessDenied)
}

func TestService_Create_FixedWindowCategory_OutsideWindow_Rejected(t *testing.T) {
	svc, mem := newTestService(t)
	cat := categoryWith(budget.AllEmployees{}, "1000")
	cat.Recurring = false
	cat.Window = &budget.FiscalPeriod{
		Start: budget.NewDate(2025, time.January, 1),
		End:   budget.NewDate(2025, time.March, 31),
	}
	mem.PutCategory(cat)

	_, err := svc.ReconcileExpenseCreate(context.Background(),
		pendingExpense("exp-1", "10", budget.NewDate(2025, time.June, 1)))
	assert.ErrorIs(t, err, budget.ErrOutOfFiscalWindow)
}

func TestService_Create_UnknownEmployee_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	exp := pendingExpense("exp-1", "10", budget.NewDate(2025, time.October, 1))
	exp.EmployeeID = "emp-missing"

	_, err := svc.ReconcileExpenseCreate(context.Background(), exp)
	assert.True(t, budget.IsNotFound(err))
}

// =============================================================================
// AMEND / REMOVE FLOW
// =============================================================================

func TestService_AmendThenRemove_LeavesBudgetConsistent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	oldExp := pendingExpense("exp-1", "250", budget.NewDate(2025, time.October, 1))
	_, err := svc.ReconcileExpenseCreate(ctx, oldExp)
	require.NoError(t, err)

	newExp := pendingExpense("exp-1", "400", budget.NewDate(2025, time.October, 1))
	b, err := svc.ReconcileExpenseAmend(ctx, oldExp, newExp)
	require.NoError(t, err)
	assert.True(t, b.Pending.Equal(budget.MustMoney("400")))

	remaining, err := svc.ReconcileExpenseRemove(ctx, newExp)
	require.NoError(t, err)
	require.NotNil(t, remaining) // recurring category keeps its drained budget
	assert.True(t, remaining.IsDrained())
}

func TestService_Remove_LastExpenseOfFixedWindowBudget_DeletesBudget(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	cat := categoryWith(budget.AllEmployees{}, "1000")
	cat.Recurring = false
	cat.Window = &budget.FiscalPeriod{
		Start: budget.NewDate(2025, time.January, 1),
		End:   budget.NewDate(2025, time.December, 31),
	}
	mem.PutCategory(cat)

	exp := pendingExpense("exp-1", "50", budget.NewDate(2025, time.June, 1))
	_, err := svc.ReconcileExpenseCreate(ctx, exp)
	require.NoError(t, err)

	b, err := svc.ReconcileExpenseRemove(ctx, exp)
	require.NoError(t, err)
	assert.Nil(t, b)

	found, err := mem.FindBudget(ctx, "emp-1", "cat-tech", budget.NewDate(2025, time.June, 1))
	require.NoError(t, err)
	assert.Nil(t, found)
}

// =============================================================================
// VIEWS
// =============================================================================

func TestService_ActiveBudgetView_SynthesizesZeroBalance(t *testing.T) {
	svc, _ := newTestService(t)

	view, err := svc.ActiveBudgetView(context.Background(), "emp-1", "cat-tech", budget.NewDate(2025, time.October, 1))
	require.NoError(t, err)

	assert.True(t, view.Ceiling.Equal(budget.MustMoney("1000")))
	assert.True(t, view.Pending.IsZero())
	assert.True(t, view.Reimbursed.IsZero())
	assert.True(t, view.Period.Start.Equal(budget.NewDate(2025, time.August, 18)))
}

func TestService_ActiveBudgetView_ReflectsPersistedBudget(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ReconcileExpenseCreate(ctx, pendingExpense("exp-1", "250", budget.NewDate(2025, time.October, 1)))
	require.NoError(t, err)

	view, err := svc.ActiveBudgetView(ctx, "emp-1", "cat-tech", budget.NewDate(2025, time.November, 1))
	require.NoError(t, err)
	assert.True(t, view.Pending.Equal(budget.MustMoney("250")))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

// flakyStore injects write conflicts before delegating to the real store.
type flakyStore struct {
	budget.Store
	conflicts int
}

func (f *flakyStore) PutBudget(ctx context.Context, b budget.Budget) (budget.Budget, error) {
	if f.conflicts > 0 {
		f.conflicts--
		return budget.Budget{}, budget.ErrConcurrentModification
	}
	return f.Store.PutBudget(ctx, b)
}

func TestService_RetriesOnceOnWriteConflict(t *testing.T) {
	mem := store.NewMemory()
	mem.PutEmployee(fullTimeEmployee("emp-1"))
	mem.PutCategory(categoryWith(budget.AllEmployees{}, "1000"))

	svc := budget.NewService(&flakyStore{Store: mem, conflicts: 1}, nil)

	b, err := svc.ReconcileExpenseCreate(context.Background(),
		pendingExpense("exp-1", "250", budget.NewDate(2025, time.October, 1)))
	require.NoError(t, err)
	assert.True(t, b.Pending.Equal(budget.MustMoney("250")))
}

func TestService_SurfacesConflictAfterRetryExhausted(t *testing.T) {
	mem := store.NewMemory()
	mem.PutEmployee(fullTimeEmployee("emp-1"))
	mem.PutCategory(categoryWith(budget.AllEmployees{}, "1000"))

	svc := budget.NewService(&flakyStore{Store: mem, conflicts: 2}, nil)

	_, err := svc.ReconcileExpenseCreate(context.Background(),
		pendingExpense("exp-1", "250", budget.NewDate(2025, time.October, 1)))
	assert.ErrorIs(t, err, budget.ErrConcurrentModification)
}

func TestMemoryStore_SecondMaterializationOfSamePeriod_Conflicts(t *testing.T) {
	// GIVEN: Two reconciliations that both observed "no budget yet" and each
	//        minted a fresh budget for the same (employee, category, period)
	// WHEN: Both inserts reach the store
	// THEN: Only the first lands; the loser gets the retryable conflict and a
	//       re-fetch resolves the winner, so charges cannot split across rows

	mem := store.NewMemory()
	ctx := context.Background()

	winner := testBudget("100")
	winner.ID = "bud-winner"
	winner.Pending = budget.MustMoney("100")
	_, err := mem.PutBudget(ctx, winner)
	require.NoError(t, err)

	loser := testBudget("100")
	loser.ID = "bud-loser"
	loser.Pending = budget.MustMoney("100")
	_, err = mem.PutBudget(ctx, loser)
	assert.ErrorIs(t, err, budget.ErrConcurrentModification)

	found, err := mem.FindBudget(ctx, winner.EmployeeID, winner.CategoryID, midYear())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, budget.BudgetID("bud-winner"), found.ID)
	assert.True(t, found.Pending.Equal(budget.MustMoney("100")))
}

func TestMemoryStore_StaleVersionWrite_Conflicts(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	b := testBudget("1000")
	b.ID = "bud-cas"
	stored, err := mem.PutBudget(ctx, b)
	require.NoError(t, err)

	// First writer wins.
	_, err = mem.PutBudget(ctx, stored)
	require.NoError(t, err)

	// Second writer still holds the old version.
	_, err = mem.PutBudget(ctx, stored)
	assert.ErrorIs(t, err, budget.ErrConcurrentModification)
}
