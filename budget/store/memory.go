// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/budget-engine/budget"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	employees  map[budget.EmployeeID]budget.Employee
	categories map[budget.CategoryID]budget.ExpenseCategory
	budgets    map[budget.BudgetID]budget.Budget
	runs       []budget.RolloverRun
}

func NewMemory() *Memory {
	return &Memory{
		employees:  make(map[budget.EmployeeID]budget.Employee),
		categories: make(map[budget.CategoryID]budget.ExpenseCategory),
		budgets:    make(map[budget.BudgetID]budget.Budget),
	}
}

// Seed helpers. Employees and categories are owned by external systems; the
// engine only reads them, so these sit outside the budget.Store interface.

func (m *Memory) PutEmployee(e budget.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
}

func (m *Memory) PutCategory(c budget.ExpenseCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = c
}

// =============================================================================
// budget.Store
// =============================================================================

func (m *Memory) GetEmployee(_ context.Context, id budget.EmployeeID) (budget.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return budget.Employee{}, &budget.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return e, nil
}

func (m *Memory) GetCategory(_ context.Context, id budget.CategoryID) (budget.ExpenseCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.categories[id]
	if !ok {
		return budget.ExpenseCategory{}, &budget.NotFoundError{Kind: "category", ID: string(id)}
	}
	return c, nil
}

func (m *Memory) GetBudget(_ context.Context, id budget.BudgetID) (budget.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.budgets[id]
	if !ok {
		return budget.Budget{}, &budget.NotFoundError{Kind: "budget", ID: string(id)}
	}
	return b, nil
}

func (m *Memory) FindBudget(_ context.Context, employeeID budget.EmployeeID, categoryID budget.CategoryID, date budget.Date) (*budget.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.budgets {
		if b.EmployeeID == employeeID && b.CategoryID == categoryID && b.Period.Contains(date) {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (m *Memory) BudgetsEndingOn(_ context.Context, end budget.Date) ([]budget.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []budget.Budget
	for _, b := range m.budgets {
		if b.Period.End.Equal(end) {
			result = append(result, b)
		}
	}
	// Deterministic order for tests and logs.
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// PutBudget is a compare-and-swap on Version. Inserts additionally enforce
// one budget per (employee, category, period start), so two concurrent
// materializations of the same period cannot both land.
func (m *Memory) PutBudget(_ context.Context, b budget.Budget) (budget.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.budgets[b.ID]
	if ok && existing.Version != b.Version {
		return budget.Budget{}, budget.ErrConcurrentModification
	}
	if !ok {
		if b.Version != 0 {
			return budget.Budget{}, budget.ErrConcurrentModification
		}
		for _, other := range m.budgets {
			if other.EmployeeID == b.EmployeeID && other.CategoryID == b.CategoryID &&
				other.Period.Start.Equal(b.Period.Start) {
				return budget.Budget{}, budget.ErrConcurrentModification
			}
		}
	}

	b.Version++
	m.budgets[b.ID] = b
	return b, nil
}

func (m *Memory) DeleteBudget(_ context.Context, id budget.BudgetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.budgets, id)
	return nil
}

// =============================================================================
// budget.RunStore
// =============================================================================

func (m *Memory) SaveRolloverRun(_ context.Context, run budget.RolloverRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) ListRolloverRuns(_ context.Context, limit int) ([]budget.RolloverRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]budget.RolloverRun, len(m.runs))
	copy(runs, m.runs)
	// Newest first.
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
