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

// seedOverspentBudget persists a fully-funded, overspent budget whose period
// ends on 2025-08-17 and returns it as stored.
func seedOverspentBudget(t *testing.T, mem *store.Memory, id budget.BudgetID, owner budget.EmployeeID) budget.Budget {
	t.Helper()
	b := budget.Budget{
		ID:         id,
		EmployeeID: owner,
		CategoryID: "cat-tech",
		Period: budget.FiscalPeriod{
			Start: budget.NewDate(2024, time.August, 18),
			End:   budget.NewDate(2025, time.August, 17),
		},
		Ceiling:    budget.MustMoney("500"),
		Pending:    budget.ZeroMoney(),
		Reimbursed: budget.MustMoney("650"),
	}
	stored, err := mem.PutBudget(context.Background(), b)
	require.NoError(t, err)
	return stored
}

func newRolloverFixture(t *testing.T) (*budget.RolloverEngine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	mem.PutEmployee(fullTimeEmployee("emp-1"))
	cat := categoryWith(budget.AllEmployees{}, "500")
	cat.AllowsOverdraft = true
	mem.PutCategory(cat)
	return budget.NewRolloverEngine(mem, mem, nil), mem
}

// =============================================================================
// NIGHTLY BATCH TESTS
// =============================================================================

func TestRunNightlyRollover_ClampsOldAndSeedsSuccessor(t *testing.T) {
	// GIVEN: A budget ending 2025-08-17 with $650 reimbursed against a $500
	//        ceiling
	// WHEN: The nightly batch runs on 2025-08-18
	// THEN: The old budget is clamped to its ceiling and a successor for the
	//       following year carries the $150 excess

	engine, mem := newRolloverFixture(t)
	ctx := context.Background()
	old := seedOverspentBudget(t, mem, "bud-roll", "emp-1")

	report, err := engine.RunNightlyRollover(ctx, budget.NewDate(2025, time.August, 18))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rolled)
	assert.Equal(t, 0, report.Failed)

	closed, err := mem.GetBudget(ctx, old.ID)
	require.NoError(t, err)
	assert.True(t, closed.Reimbursed.Equal(budget.MustMoney("500")))
	assert.True(t, closed.Pending.IsZero())

	successor, err := mem.FindBudget(ctx, "emp-1", "cat-tech", budget.NewDate(2025, time.September, 1))
	require.NoError(t, err)
	require.NotNil(t, successor)
	assert.True(t, successor.Reimbursed.Equal(budget.MustMoney("150")))
	assert.True(t, successor.Pending.IsZero())
	assert.True(t, successor.Period.Start.Equal(budget.NewDate(2025, time.August, 18)))
	assert.True(t, successor.Period.End.Equal(budget.NewDate(2026, time.August, 17)))
	assert.NotEqual(t, old.ID, successor.ID)
}

func TestRunNightlyRollover_Idempotent(t *testing.T) {
	engine, mem := newRolloverFixture(t)
	ctx := context.Background()
	seedOverspentBudget(t, mem, "bud-roll", "emp-1")
	asOf := budget.NewDate(2025, time.August, 18)

	first, err := engine.RunNightlyRollover(ctx, asOf)
	require.NoError(t, err)
	require.Equal(t, 1, first.Rolled)

	// Re-running the same date must not double-roll.
	second, err := engine.RunNightlyRollover(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Rolled)
	assert.Equal(t, 1, second.Skipped)
}

func TestRunNightlyRollover_UnqualifiedBudget_Skipped(t *testing.T) {
	engine, mem := newRolloverFixture(t)
	ctx := context.Background()

	// Within ceiling, nothing to carry.
	b := seedOverspentBudget(t, mem, "bud-under", "emp-1")
	b.Reimbursed = budget.MustMoney("400")
	_, err := mem.PutBudget(ctx, b)
	require.NoError(t, err)

	report, err := engine.RunNightlyRollover(ctx, budget.NewDate(2025, time.August, 18))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Rolled)
	assert.Equal(t, 1, report.Skipped)
}

func TestRunNightlyRollover_ContinuesPastFailingBudget(t *testing.T) {
	// GIVEN: Two overspent budgets, one referencing a category that no longer
	//        exists
	// THEN: The orphan is counted as failed and the healthy one still rolls

	engine, mem := newRolloverFixture(t)
	ctx := context.Background()

	orphan := seedOverspentBudget(t, mem, "bud-a-orphan", "emp-1")
	orphan.CategoryID = "cat-gone"
	_, err := mem.PutBudget(ctx, orphan)
	require.NoError(t, err)
	seedOverspentBudget(t, mem, "bud-b-healthy", "emp-2")

	report, err := engine.RunNightlyRollover(ctx, budget.NewDate(2025, time.August, 18))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rolled)
	assert.Equal(t, 1, report.Failed)
}

func TestRunNightlyRollover_NoBudgetsEnding_EmptyReport(t *testing.T) {
	engine, _ := newRolloverFixture(t)

	report, err := engine.RunNightlyRollover(context.Background(), budget.NewDate(2025, time.April, 1))
	require.NoError(t, err)
	assert.Zero(t, report.Rolled)
	assert.Zero(t, report.Skipped)
	assert.Zero(t, report.Failed)
}

// =============================================================================
// RUN RECORDS
// =============================================================================

func TestRunNightlyRollover_RecordsRun(t *testing.T) {
	engine, mem := newRolloverFixture(t)
	ctx := context.Background()
	seedOverspentBudget(t, mem, "bud-roll", "emp-1")

	_, err := engine.RunNightlyRollover(ctx, budget.NewDate(2025, time.August, 18))
	require.NoError(t, err)
	_, err = engine.RunNightlyRollover(ctx, budget.NewDate(2025, time.August, 19))
	require.NoError(t, err)

	runs, err := mem.ListRolloverRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	assert.True(t, runs[0].RunDate.Equal(budget.NewDate(2025, time.August, 19)))
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 1, runs[1].Rolled)
	assert.NotEmpty(t, runs[1].ID)
}
