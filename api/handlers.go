/*
handlers.go - HTTP handler implementations

PURPOSE:
  Thin translation layer between HTTP and the budget service: decode the
  payload, call the one matching service method, encode the result or map
  the typed rejection to a status code. No business logic lives here.

SEE ALSO:
  - server.go: route wiring
  - dto.go: wire shapes and error mapping
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/budget-engine/budget"
)

// Handler bundles the service, the rollover engine, and request-scoped deps.
type Handler struct {
	Service *budget.Service
	Engine  *budget.RolloverEngine
	Runs    budget.RunStore // optional, for the runs listing
	Loc     *time.Location
	Log     *logrus.Logger
}

func NewHandler(service *budget.Service, engine *budget.RolloverEngine, runs budget.RunStore, loc *time.Location, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{Service: service, Engine: engine, Runs: runs, Loc: loc, Log: log}
}

// =============================================================================
// RECONCILIATION ENDPOINTS
// =============================================================================

// ReconcileExpenseCreate handles POST /api/expenses/reconcile.
func (h *Handler) ReconcileExpenseCreate(w http.ResponseWriter, r *http.Request) {
	var payload expensePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	exp, err := payload.toExpense()
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}

	b, err := h.Service.ReconcileExpenseCreate(r.Context(), exp)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toBudgetResponse(b))
}

// ReconcileExpenseAmend handles POST /api/expenses/reconcile/amend.
func (h *Handler) ReconcileExpenseAmend(w http.ResponseWriter, r *http.Request) {
	var req amendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	oldExp, err := req.Old.toExpense()
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	newExp, err := req.New.toExpense()
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}

	b, err := h.Service.ReconcileExpenseAmend(r.Context(), oldExp, newExp)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toBudgetResponse(b))
}

// ReconcileExpenseRemove handles POST /api/expenses/reconcile/remove.
func (h *Handler) ReconcileExpenseRemove(w http.ResponseWriter, r *http.Request) {
	var payload expensePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	exp, err := payload.toExpense()
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}

	b, err := h.Service.ReconcileExpenseRemove(r.Context(), exp)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := removeResponse{Deleted: b == nil}
	if b != nil {
		br := toBudgetResponse(*b)
		resp.Budget = &br
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// VIEWS
// =============================================================================

// GetBudgetView handles GET /api/budgets/view.
func (h *Handler) GetBudgetView(w http.ResponseWriter, r *http.Request) {
	employeeID := r.URL.Query().Get("employee_id")
	categoryID := r.URL.Query().Get("category_id")
	if employeeID == "" || categoryID == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "employee_id and category_id are required", Code: "bad_request"})
		return
	}

	asOf := budget.DateOf(time.Now(), h.Loc)
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := budget.ParseDate(raw)
		if err != nil {
			h.writeBadRequest(w, err)
			return
		}
		asOf = parsed
	}

	view, err := h.Service.ActiveBudgetView(r.Context(), budget.EmployeeID(employeeID), budget.CategoryID(categoryID), asOf)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, viewResponse{
		Ceiling:     view.Ceiling.String(),
		Pending:     view.Pending.String(),
		Reimbursed:  view.Reimbursed.String(),
		PeriodStart: view.Period.Start.String(),
		PeriodEnd:   view.Period.End.String(),
	})
}

// =============================================================================
// ADMIN
// =============================================================================

// TriggerRollover handles POST /api/admin/rollover. Same code path as the
// nightly schedule; operators use it to re-run a date after failures.
func (h *Handler) TriggerRollover(w http.ResponseWriter, r *http.Request) {
	asOf := budget.DateOf(time.Now(), h.Loc)
	if r.Body != nil && r.ContentLength != 0 {
		var req rolloverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeBadRequest(w, err)
			return
		}
		if req.AsOf != "" {
			parsed, err := budget.ParseDate(req.AsOf)
			if err != nil {
				h.writeBadRequest(w, err)
				return
			}
			asOf = parsed
		}
	}

	report, err := h.Engine.RunNightlyRollover(r.Context(), asOf)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rolloverResponse{
		RunDate: report.RunDate.String(),
		Rolled:  report.Rolled,
		Skipped: report.Skipped,
		Failed:  report.Failed,
	})
}

// ListRolloverRuns handles GET /api/admin/rollover/runs.
func (h *Handler) ListRolloverRuns(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		h.writeJSON(w, http.StatusOK, []budget.RolloverRun{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.Runs.ListRolloverRuns(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, runs)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.WithError(err).Error("failed to encode response")
	}
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, err error) {
	h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "bad_request"})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.Log.WithError(err).Error("request failed")
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error(), Code: errorCode(err)})
}
