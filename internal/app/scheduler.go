/**
 * @description
 * Cron scheduler setup for the periodic sync, renewal, rollup, and digest
 * jobs.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/cjflanagan1/FamilyBudget/internal/config"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	s.add(s.config.SyncJobSchedule, "transaction sync", s.jobs.RunSyncJob)
	s.add(s.config.RenewalJobSchedule, "subscription renewal", s.jobs.RunRenewalJob)
	s.add(s.config.RollupJobSchedule, "monthly spend rollup", s.jobs.RunRollupJob)
	s.add(s.config.WeeklySummaryJobSchedule, "weekly summary", s.jobs.RunWeeklySummaryJob)
	s.add(s.config.MonthlySummaryJobSchedule, "monthly summary", s.jobs.RunMonthlySummaryJob)
	s.cron.Start()
}

func (s *Scheduler) add(schedule, name string, fn func()) {
	if _, err := s.cron.AddFunc(schedule, fn); err != nil {
		s.logger.Error("failed to schedule job", "job", name, "schedule", schedule, "error", err)
		return
	}
	s.logger.Info("scheduled job", "job", name, "schedule", schedule)
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
