// Package scheduler runs the recurring jobs of the API process on one cron
// instance: the match lifecycle monitor, the overdue-offer sweep and the
// nightly settlement reconciliation.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"matchmarket-service/internal/services"

	"github.com/robfig/cron/v3"
)

type Schedules struct {
	Monitor    string
	OfferSweep string
	Reconcile  string
}

// Jobs are the cron entry points. Each run gets its own timeout so a stuck
// store cannot pile up overlapping runs forever.
type Jobs struct {
	Monitor     *services.MatchMonitorService
	Waitlist    *services.WaitlistService
	Settlements *services.SettlementService
	Logger      *slog.Logger
	Location    *time.Location
	Now         func() time.Time
	Timeout     time.Duration
}

func (j *Jobs) context() (context.Context, context.CancelFunc) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return context.WithTimeout(context.Background(), timeout)
}

func (j *Jobs) RunMonitor() {
	ctx, cancel := j.context()
	defer cancel()
	if _, err := j.Monitor.RunOnce(ctx); err != nil {
		j.Logger.Error("match monitor failed", "error", err)
	}
}

func (j *Jobs) SweepOffers() {
	ctx, cancel := j.context()
	defer cancel()
	n, err := j.Waitlist.ExpireOverdueOffers(ctx)
	if err != nil {
		j.Logger.Error("offer sweep failed", "error", err)
		return
	}
	if n > 0 {
		j.Logger.Info("expired overdue offers", "count", n)
	}
}

// Reconcile recomputes the current and the previous month.
func (j *Jobs) Reconcile() {
	ctx, cancel := j.context()
	defer cancel()

	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	loc := j.Location
	if loc == nil {
		loc = time.UTC
	}
	current := now().In(loc)
	firstOfMonth := time.Date(current.Year(), current.Month(), 1, 0, 0, 0, 0, loc)

	for _, month := range []time.Time{firstOfMonth.AddDate(0, -1, 0), firstOfMonth} {
		n, err := j.Settlements.RecomputeMonth(ctx, month.Year(), int(month.Month()))
		if err != nil {
			j.Logger.Error("settlement reconciliation failed", "period", month.Format("2006-01"), "error", err)
			continue
		}
		j.Logger.Info("settlements reconciled", "period", month.Format("2006-01"), "sellers", n)
	}
}

type Scheduler struct {
	cron      *cron.Cron
	jobs      *Jobs
	logger    *slog.Logger
	schedules Schedules
}

func NewScheduler(jobs *Jobs, logger *slog.Logger, schedules Schedules) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLocation(jobs.locationOrUTC()),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:      c,
		jobs:      jobs,
		logger:    logger,
		schedules: schedules,
	}
}

func (j *Jobs) locationOrUTC() *time.Location {
	if j.Location == nil {
		return time.UTC
	}
	return j.Location
}

// Start registers the jobs and starts the cron scheduler. A job with an
// invalid schedule is logged and left out; the first such error is returned.
func (s *Scheduler) Start() error {
	var firstErr error
	register := func(name, spec string, fn func()) {
		if _, err := s.cron.AddFunc(spec, fn); err != nil {
			s.logger.Error("failed to schedule job", "job", name, "schedule", spec, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		s.logger.Info("scheduled job", "job", name, "schedule", spec)
	}

	register("match-monitor", s.schedules.Monitor, s.jobs.RunMonitor)
	register("offer-sweep", s.schedules.OfferSweep, s.jobs.SweepOffers)
	register("settlement-reconcile", s.schedules.Reconcile, s.jobs.Reconcile)

	s.cron.Start()
	return firstErr
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
