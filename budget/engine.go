/*
engine.go - Nightly rollover batch

PURPOSE:
  Once a day, find every budget whose fiscal period ended yesterday and, for
  overspent recurring fully-funded budgets, close it out and seed the
  successor period with the excess (rollover.go computes the split).

OPERATIONAL CONTRACT:
  - Budgets are processed independently, in any order.
  - A failure on one budget is logged and the batch continues.
  - The old budget is committed before the successor is inserted; a failure
    between the two writes is logged and NOT retried automatically.
  - Re-running the batch for the same date is safe: a budget whose successor
    period already exists is skipped.
  - Each run is recorded for operators when a RunStore is wired.
*/
package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RolloverReport is the aggregate outcome of one nightly batch.
type RolloverReport struct {
	RunDate Date
	Rolled  int
	Skipped int
	Failed  int
}

// RolloverEngine runs the nightly carry-over batch over a Store.
type RolloverEngine struct {
	store Store
	runs  RunStore // optional
	log   *logrus.Logger
}

func NewRolloverEngine(store Store, runs RunStore, log *logrus.Logger) *RolloverEngine {
	if log == nil {
		log = logrus.New()
	}
	return &RolloverEngine{store: store, runs: runs, log: log}
}

// RunNightlyRollover processes all budgets whose period ended the day before
// asOf. Idempotent for a given date; operators re-run it after partial
// failures.
func (e *RolloverEngine) RunNightlyRollover(ctx context.Context, asOf Date) (RolloverReport, error) {
	yesterday := asOf.AddDays(-1)
	report := RolloverReport{RunDate: asOf}
	startedAt := time.Now().UTC()

	log := e.log.WithField("period_end", yesterday.String())
	log.Info("nightly rollover starting")

	ending, err := e.store.BudgetsEndingOn(ctx, yesterday)
	if err != nil {
		e.recordRun(ctx, report, startedAt, err)
		return report, fmt.Errorf("selecting budgets ending %s: %w", yesterday, err)
	}

	for _, b := range ending {
		switch rolled, err := e.rollOne(ctx, b); {
		case err != nil:
			report.Failed++
			log.WithFields(logrus.Fields{"budget": b.ID, "employee": b.EmployeeID}).
				WithError(err).Error("rollover failed")
		case rolled:
			report.Rolled++
		default:
			report.Skipped++
		}
	}

	log.WithFields(logrus.Fields{
		"rolled": report.Rolled, "skipped": report.Skipped, "failed": report.Failed,
	}).Info("nightly rollover completed")

	e.recordRun(ctx, report, startedAt, nil)
	return report, nil
}

// rollOne closes out a single budget and seeds its successor. Returns
// (false, nil) when the budget does not qualify or was already rolled.
func (e *RolloverEngine) rollOne(ctx context.Context, b Budget) (bool, error) {
	cat, err := e.store.GetCategory(ctx, b.CategoryID)
	if err != nil {
		return false, fmt.Errorf("loading category %s: %w", b.CategoryID, err)
	}

	carry, ok := RollOver(b, cat)
	if !ok {
		return false, nil
	}

	// Idempotency: skip when the successor period already materialized.
	existing, err := e.store.FindBudget(ctx, b.EmployeeID, b.CategoryID, carry.Successor.Period.Start)
	if err != nil {
		return false, err
	}
	if existing != nil {
		e.log.WithField("budget", b.ID).Debug("successor already exists, skipping")
		return false, nil
	}

	// Commit the clamped old budget first, then insert the successor. A
	// failure between the two writes is surfaced for the operator re-run.
	if _, err := e.store.PutBudget(ctx, carry.Closed); err != nil {
		return false, fmt.Errorf("closing budget %s: %w", b.ID, err)
	}

	carry.Successor.ID = BudgetID(uuid.NewString())
	if _, err := e.store.PutBudget(ctx, carry.Successor); err != nil {
		return false, fmt.Errorf("seeding successor of budget %s (old budget already clamped): %w", b.ID, err)
	}

	e.log.WithFields(logrus.Fields{
		"budget":     b.ID,
		"successor":  carry.Successor.ID,
		"pending":    carry.Successor.Pending.String(),
		"reimbursed": carry.Successor.Reimbursed.String(),
	}).Info("budget rolled over")
	return true, nil
}

func (e *RolloverEngine) recordRun(ctx context.Context, report RolloverReport, startedAt time.Time, runErr error) {
	if e.runs == nil {
		return
	}
	run := RolloverRun{
		ID:          uuid.NewString(),
		RunDate:     report.RunDate,
		Rolled:      report.Rolled,
		Skipped:     report.Skipped,
		Failed:      report.Failed,
		Status:      "completed",
		StartedAt:   startedAt,
		CompletedAt: time.Now().UTC(),
	}
	if runErr != nil {
		run.Status = "failed"
		run.Error = runErr.Error()
	}
	if err := e.runs.SaveRolloverRun(ctx, run); err != nil {
		e.log.WithError(err).Warn("failed to record rollover run")
	}
}
