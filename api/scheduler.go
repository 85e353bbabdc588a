/*
scheduler.go - Nightly rollover scheduler

PURPOSE:
  Drives the rollover engine once per day on a cron schedule evaluated in
  the configured time zone. The manual TriggerRollover endpoint shares the
  same engine code path, so an operator re-run behaves identically to the
  scheduled run.

CONFIGURATION:
  - Schedule: cron expression (default "0 2 * * *" - 02:00 local)
  - Location: the single designated zone all calendar dates live in

USAGE:
  sched, err := NewRolloverScheduler(engine, cfg.Rollover.Schedule, loc, log)
  sched.Start()
  // ... later
  sched.Stop()
*/
package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/warp/budget-engine/budget"
)

// RolloverScheduler runs the nightly batch on a cron schedule.
type RolloverScheduler struct {
	engine *budget.RolloverEngine
	cron   *cron.Cron
	loc    *time.Location
	log    *logrus.Logger
}

func NewRolloverScheduler(engine *budget.RolloverEngine, schedule string, loc *time.Location, log *logrus.Logger) (*RolloverScheduler, error) {
	if log == nil {
		log = logrus.New()
	}
	s := &RolloverScheduler{
		engine: engine,
		cron:   cron.New(cron.WithLocation(loc)),
		loc:    loc,
		log:    log,
	}
	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the schedule in a background goroutine.
func (s *RolloverScheduler) Start() {
	s.cron.Start()
	s.log.Info("rollover scheduler started")
}

// Stop halts the schedule and waits for a running job to finish.
func (s *RolloverScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("rollover scheduler stopped")
}

func (s *RolloverScheduler) runOnce() {
	asOf := budget.DateOf(time.Now(), s.loc)
	if _, err := s.engine.RunNightlyRollover(context.Background(), asOf); err != nil {
		s.log.WithError(err).Error("scheduled rollover failed")
	}
}
