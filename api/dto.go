/*
dto.go - Request/response types and error mapping

PURPOSE:
  Translates between the JSON wire shapes and the core types, and maps the
  engine's error taxonomy to deterministic HTTP statuses so clients can
  branch on codes rather than parse messages.
*/
package api

import (
	"errors"
	"fmt"

	"github.com/warp/budget-engine/budget"
)

// =============================================================================
// REQUESTS
// =============================================================================

type expensePayload struct {
	ID             string  `json:"id"`
	EmployeeID     string  `json:"employee_id"`
	CategoryID     string  `json:"category_id"`
	Cost           string  `json:"cost"`
	PurchaseDate   string  `json:"purchase_date"`
	ReimbursedDate *string `json:"reimbursed_date,omitempty"`
}

func (p expensePayload) toExpense() (budget.Expense, error) {
	cost, err := budget.NewMoneyFromString(p.Cost)
	if err != nil {
		return budget.Expense{}, fmt.Errorf("invalid cost %q: %w", p.Cost, err)
	}
	purchased, err := budget.ParseDate(p.PurchaseDate)
	if err != nil {
		return budget.Expense{}, fmt.Errorf("invalid purchase_date %q: %w", p.PurchaseDate, err)
	}

	exp := budget.Expense{
		ID:           budget.ExpenseID(p.ID),
		EmployeeID:   budget.EmployeeID(p.EmployeeID),
		CategoryID:   budget.CategoryID(p.CategoryID),
		Cost:         cost,
		PurchaseDate: purchased,
	}
	if p.ReimbursedDate != nil {
		d, err := budget.ParseDate(*p.ReimbursedDate)
		if err != nil {
			return budget.Expense{}, fmt.Errorf("invalid reimbursed_date %q: %w", *p.ReimbursedDate, err)
		}
		exp.ReimbursedDate = &d
	}
	return exp, nil
}

type amendRequest struct {
	Old expensePayload `json:"old"`
	New expensePayload `json:"new"`
}

type rolloverRequest struct {
	AsOf string `json:"as_of,omitempty"` // defaults to today in the configured zone
}

// =============================================================================
// RESPONSES
// =============================================================================

type budgetResponse struct {
	ID          string `json:"id"`
	EmployeeID  string `json:"employee_id"`
	CategoryID  string `json:"category_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Ceiling     string `json:"ceiling"`
	Pending     string `json:"pending"`
	Reimbursed  string `json:"reimbursed"`
}

func toBudgetResponse(b budget.Budget) budgetResponse {
	return budgetResponse{
		ID:          string(b.ID),
		EmployeeID:  string(b.EmployeeID),
		CategoryID:  string(b.CategoryID),
		PeriodStart: b.Period.Start.String(),
		PeriodEnd:   b.Period.End.String(),
		Ceiling:     b.Ceiling.String(),
		Pending:     b.Pending.String(),
		Reimbursed:  b.Reimbursed.String(),
	}
}

type removeResponse struct {
	Deleted bool            `json:"deleted"`
	Budget  *budgetResponse `json:"budget,omitempty"`
}

type viewResponse struct {
	Ceiling     string `json:"ceiling"`
	Pending     string `json:"pending"`
	Reimbursed  string `json:"reimbursed"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

type rolloverResponse struct {
	RunDate string `json:"run_date"`
	Rolled  int    `json:"rolled"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func errorCode(err error) string {
	switch {
	case errors.Is(err, budget.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, budget.ErrOutOfFiscalWindow):
		return "out_of_fiscal_window"
	case errors.Is(err, budget.ErrInsufficientBudget):
		return "insufficient_budget"
	case errors.Is(err, budget.ErrAlreadyReimbursed):
		return "already_reimbursed"
	case errors.Is(err, budget.ErrEmployeeInactive):
		return "employee_inactive"
	case errors.Is(err, budget.ErrConcurrentModification):
		return "conflict"
	case budget.IsNotFound(err):
		return "not_found"
	default:
		return "internal"
	}
}

func errorStatus(err error) int {
	switch {
	case budget.IsNotFound(err):
		return 404
	case budget.IsRetryable(err):
		return 409
	case budget.IsRejection(err):
		return 422
	default:
		return 500
	}
}
