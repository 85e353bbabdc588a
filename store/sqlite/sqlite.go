/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements budget.Store and budget.RunStore using SQLite. In production the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  employees:          Read-only employee records (owned externally, mirrored here)
  expense_categories: Read-only category definitions with JSON access policy
  budgets:            One row per employee+category+fiscal period
  rollover_runs:      Nightly batch outcomes for operators

INDEXES:
  - idx_budgets_period_end: the nightly rollover selection (hot path)
  - idx_budgets_owner: period-containment lookup per employee+category

CONCURRENCY:
  Budget writes are optimistic compare-and-swap on the version column. A
  stale write affects zero rows and surfaces budget.ErrConcurrentModification
  so the caller re-drives the reconciliation.

WAL MODE:
  Opened with WAL for better concurrency: readers don't block, single writer,
  better crash recovery.

USAGE:
  store, err := sqlite.New("./data/budgets.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - budget/store.go: interface definitions
  - budget/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/budget"
)

// Store implements budget.Store and budget.RunStore using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		hire_date TEXT NOT NULL,
		work_status_percent INTEGER NOT NULL,
		tags_json TEXT NOT NULL DEFAULT '[]',
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS expense_categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		ceiling TEXT NOT NULL,
		recurring INTEGER NOT NULL,
		allows_overdraft INTEGER NOT NULL DEFAULT 0,
		requires_receipt INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		access_json TEXT NOT NULL,
		window_start TEXT,
		window_end TEXT
	);

	CREATE TABLE IF NOT EXISTS budgets (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		ceiling TEXT NOT NULL,
		pending TEXT NOT NULL,
		reimbursed TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);

	-- Nightly rollover selection (hot path)
	CREATE INDEX IF NOT EXISTS idx_budgets_period_end
		ON budgets(period_end);

	-- Period-containment lookup per employee+category. UNIQUE so two
	-- concurrent materializations of the same period cannot both insert:
	-- the loser maps to ErrConcurrentModification and re-fetches the winner.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_budgets_owner
		ON budgets(employee_id, category_id, period_start);

	CREATE TABLE IF NOT EXISTS rollover_runs (
		id TEXT PRIMARY KEY,
		run_date TEXT NOT NULL,
		rolled INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rollover_runs_date
		ON rollover_runs(run_date DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// PutEmployee upserts an employee record. Employees are owned by an external
// system; this is the sync/seed entry point, not part of budget.Store.
func (s *Store) PutEmployee(ctx context.Context, e budget.Employee) error {
	tags, err := json.Marshal(e.TagIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO employees (id, hire_date, work_status_percent, tags_json, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			hire_date = excluded.hire_date,
			work_status_percent = excluded.work_status_percent,
			tags_json = excluded.tags_json,
			active = excluded.active`,
		string(e.ID), e.HireDate.String(), e.WorkStatusPercent, string(tags), boolToInt(e.Active))
	return err
}

func (s *Store) GetEmployee(ctx context.Context, id budget.EmployeeID) (budget.Employee, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, hire_date, work_status_percent, tags_json, active
		FROM employees WHERE id = ?`, string(id))

	var e budget.Employee
	var empID, hireDate, tagsJSON string
	var active int
	if err := row.Scan(&empID, &hireDate, &e.WorkStatusPercent, &tagsJSON, &active); err != nil {
		if err == sql.ErrNoRows {
			return budget.Employee{}, &budget.NotFoundError{Kind: "employee", ID: string(id)}
		}
		return budget.Employee{}, err
	}

	e.ID = budget.EmployeeID(empID)
	e.Active = active != 0
	d, err := budget.ParseDate(hireDate)
	if err != nil {
		return budget.Employee{}, fmt.Errorf("employee %s: bad hire_date: %w", id, err)
	}
	e.HireDate = d
	if err := json.Unmarshal([]byte(tagsJSON), &e.TagIDs); err != nil {
		return budget.Employee{}, fmt.Errorf("employee %s: bad tags_json: %w", id, err)
	}
	return e, nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

// PutCategory upserts a category definition (admin/seed entry point).
func (s *Store) PutCategory(ctx context.Context, c budget.ExpenseCategory) error {
	access, err := encodeAccessPolicy(c.Access)
	if err != nil {
		return err
	}
	var windowStart, windowEnd sql.NullString
	if c.Window != nil {
		windowStart = sql.NullString{String: c.Window.Start.String(), Valid: true}
		windowEnd = sql.NullString{String: c.Window.End.String(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO expense_categories
			(id, name, ceiling, recurring, allows_overdraft, requires_receipt, active, access_json, window_start, window_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			ceiling = excluded.ceiling,
			recurring = excluded.recurring,
			allows_overdraft = excluded.allows_overdraft,
			requires_receipt = excluded.requires_receipt,
			active = excluded.active,
			access_json = excluded.access_json,
			window_start = excluded.window_start,
			window_end = excluded.window_end`,
		string(c.ID), c.Name, c.BudgetCeiling.String(),
		boolToInt(c.Recurring), boolToInt(c.AllowsOverdraft), boolToInt(c.RequiresReceipt), boolToInt(c.Active),
		access, windowStart, windowEnd)
	return err
}

func (s *Store) GetCategory(ctx context.Context, id budget.CategoryID) (budget.ExpenseCategory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, ceiling, recurring, allows_overdraft, requires_receipt, active, access_json, window_start, window_end
		FROM expense_categories WHERE id = ?`, string(id))

	var c budget.ExpenseCategory
	var catID, name, ceiling, accessJSON string
	var recurring, overdraft, receipt, active int
	var windowStart, windowEnd sql.NullString
	err := row.Scan(&catID, &name, &ceiling, &recurring, &overdraft, &receipt, &active, &accessJSON, &windowStart, &windowEnd)
	if err != nil {
		if err == sql.ErrNoRows {
			return budget.ExpenseCategory{}, &budget.NotFoundError{Kind: "category", ID: string(id)}
		}
		return budget.ExpenseCategory{}, err
	}

	c.ID = budget.CategoryID(catID)
	c.Name = name
	c.Recurring = recurring != 0
	c.AllowsOverdraft = overdraft != 0
	c.RequiresReceipt = receipt != 0
	c.Active = active != 0

	if c.BudgetCeiling, err = parseMoney(ceiling); err != nil {
		return budget.ExpenseCategory{}, fmt.Errorf("category %s: bad ceiling: %w", id, err)
	}
	if c.Access, err = decodeAccessPolicy(accessJSON); err != nil {
		return budget.ExpenseCategory{}, fmt.Errorf("category %s: bad access_json: %w", id, err)
	}
	if windowStart.Valid && windowEnd.Valid {
		start, err := budget.ParseDate(windowStart.String)
		if err != nil {
			return budget.ExpenseCategory{}, err
		}
		end, err := budget.ParseDate(windowEnd.String)
		if err != nil {
			return budget.ExpenseCategory{}, err
		}
		c.Window = &budget.FiscalPeriod{Start: start, End: end}
	}
	return c, nil
}

// =============================================================================
// BUDGETS
// =============================================================================

const budgetColumns = `id, employee_id, category_id, period_start, period_end, ceiling, pending, reimbursed, version`

func (s *Store) GetBudget(ctx context.Context, id budget.BudgetID) (budget.Budget, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, string(id))
	b, err := scanBudget(row)
	if err == sql.ErrNoRows {
		return budget.Budget{}, &budget.NotFoundError{Kind: "budget", ID: string(id)}
	}
	return b, err
}

func (s *Store) FindBudget(ctx context.Context, employeeID budget.EmployeeID, categoryID budget.CategoryID, date budget.Date) (*budget.Budget, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+budgetColumns+` FROM budgets
		WHERE employee_id = ? AND category_id = ? AND period_start <= ? AND period_end >= ?
		LIMIT 1`,
		string(employeeID), string(categoryID), date.String(), date.String())
	b, err := scanBudget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) BudgetsEndingOn(ctx context.Context, end budget.Date) ([]budget.Budget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+budgetColumns+` FROM budgets
		WHERE period_end = ? ORDER BY id`, end.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []budget.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// PutBudget inserts (version 0) or compare-and-swaps (version > 0).
func (s *Store) PutBudget(ctx context.Context, b budget.Budget) (budget.Budget, error) {
	if b.Version == 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO budgets (`+budgetColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			string(b.ID), string(b.EmployeeID), string(b.CategoryID),
			b.Period.Start.String(), b.Period.End.String(),
			b.Ceiling.String(), b.Pending.String(), b.Reimbursed.String())
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return budget.Budget{}, budget.ErrConcurrentModification
			}
			return budget.Budget{}, err
		}
		b.Version = 1
		return b, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE budgets
		SET period_start = ?, period_end = ?, ceiling = ?, pending = ?, reimbursed = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		b.Period.Start.String(), b.Period.End.String(),
		b.Ceiling.String(), b.Pending.String(), b.Reimbursed.String(),
		string(b.ID), b.Version)
	if err != nil {
		return budget.Budget{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return budget.Budget{}, err
	}
	if affected == 0 {
		return budget.Budget{}, budget.ErrConcurrentModification
	}
	b.Version++
	return b, nil
}

func (s *Store) DeleteBudget(ctx context.Context, id budget.BudgetID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, string(id))
	return err
}

// =============================================================================
// ROLLOVER RUNS
// =============================================================================

func (s *Store) SaveRolloverRun(ctx context.Context, run budget.RolloverRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rollover_runs (id, run_date, rolled, skipped, failed, status, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.RunDate.String(), run.Rolled, run.Skipped, run.Failed,
		run.Status, run.Error,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.CompletedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Store) ListRolloverRuns(ctx context.Context, limit int) ([]budget.RolloverRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_date, rolled, skipped, failed, status, COALESCE(error, ''), started_at, completed_at
		FROM rollover_runs ORDER BY run_date DESC, started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []budget.RolloverRun
	for rows.Next() {
		var run budget.RolloverRun
		var runDate, startedAt, completedAt string
		if err := rows.Scan(&run.ID, &runDate, &run.Rolled, &run.Skipped, &run.Failed,
			&run.Status, &run.Error, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		if run.RunDate, err = budget.ParseDate(runDate); err != nil {
			return nil, err
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, err
		}
		if run.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// SCANNING / ENCODING HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudget(row rowScanner) (budget.Budget, error) {
	var b budget.Budget
	var id, employeeID, categoryID, periodStart, periodEnd, ceiling, pending, reimbursed string
	err := row.Scan(&id, &employeeID, &categoryID, &periodStart, &periodEnd, &ceiling, &pending, &reimbursed, &b.Version)
	if err != nil {
		return budget.Budget{}, err
	}

	b.ID = budget.BudgetID(id)
	b.EmployeeID = budget.EmployeeID(employeeID)
	b.CategoryID = budget.CategoryID(categoryID)

	if b.Period.Start, err = budget.ParseDate(periodStart); err != nil {
		return budget.Budget{}, err
	}
	if b.Period.End, err = budget.ParseDate(periodEnd); err != nil {
		return budget.Budget{}, err
	}
	if b.Ceiling, err = parseMoney(ceiling); err != nil {
		return budget.Budget{}, err
	}
	if b.Pending, err = parseMoney(pending); err != nil {
		return budget.Budget{}, err
	}
	if b.Reimbursed, err = parseMoney(reimbursed); err != nil {
		return budget.Budget{}, err
	}
	return b, nil
}

func parseMoney(s string) (budget.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return budget.Money{}, err
	}
	return budget.Money{Value: d}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// =============================================================================
// ACCESS POLICY JSON - storage representation of the tagged union
// =============================================================================

type accessPolicyJSON struct {
	Type        string          `json:"type"`
	EmployeeIDs []string        `json:"employee_ids,omitempty"`
	TagBudgets  []tagBudgetJSON `json:"tag_budgets,omitempty"`
}

type tagBudgetJSON struct {
	TagIDs  []string `json:"tag_ids"`
	Ceiling string   `json:"ceiling"`
}

func encodeAccessPolicy(p budget.AccessPolicy) (string, error) {
	var doc accessPolicyJSON
	switch v := p.(type) {
	case budget.AllEmployees:
		doc.Type = "all"
	case budget.FullTimeOnly:
		doc.Type = "full_time"
	case budget.EmployeeIDList:
		doc.Type = "employee_list"
		for _, id := range v.IDs {
			doc.EmployeeIDs = append(doc.EmployeeIDs, string(id))
		}
	case budget.TagBudgets:
		doc.Type = "tag_budgets"
		for _, e := range v.Entries {
			entry := tagBudgetJSON{Ceiling: e.Ceiling.String()}
			for _, t := range e.TagIDs {
				entry.TagIDs = append(entry.TagIDs, string(t))
			}
			doc.TagBudgets = append(doc.TagBudgets, entry)
		}
	default:
		return "", fmt.Errorf("unknown access policy %T", p)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeAccessPolicy maps stored JSON back to the tagged union. An unknown
// type decodes to a nil policy, which the evaluator treats as no access.
func decodeAccessPolicy(raw string) (budget.AccessPolicy, error) {
	var doc accessPolicyJSON
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}

	switch doc.Type {
	case "all":
		return budget.AllEmployees{}, nil
	case "full_time":
		return budget.FullTimeOnly{}, nil
	case "employee_list":
		var p budget.EmployeeIDList
		for _, id := range doc.EmployeeIDs {
			p.IDs = append(p.IDs, budget.EmployeeID(id))
		}
		return p, nil
	case "tag_budgets":
		var p budget.TagBudgets
		for _, e := range doc.TagBudgets {
			ceiling, err := parseMoney(e.Ceiling)
			if err != nil {
				return nil, err
			}
			entry := budget.TagBudget{Ceiling: ceiling}
			for _, t := range e.TagIDs {
				entry.TagIDs = append(entry.TagIDs, budget.TagID(t))
			}
			p.Entries = append(p.Entries, entry)
		}
		return p, nil
	default:
		return nil, nil
	}
}
