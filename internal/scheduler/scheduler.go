// Package scheduler runs periodic maintenance jobs on cron schedules.
// The only job today is the token budget reset sweep; the runner is
// generic so further jobs can hang off the same cron instance.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Job is a named unit of periodic work.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Run executes one sweep of the job.
	Run(ctx context.Context) error
}

// Scheduler wraps a cron runner and dispatches registered jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a Scheduler. If logger is nil, a default logger will be used.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cron:   cron.New(),
		logger: logger.With(slog.String("component", "scheduler")),
	}
}

// AddJob registers a job under a standard 5-field cron expression.
func (s *Scheduler) AddJob(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		s.logger.Info("running scheduled job", slog.String("job", job.Name()))
		if err := job.Run(ctx); err != nil {
			s.logger.Error("scheduled job failed",
				slog.String("job", job.Name()),
				slog.String("error", err.Error()))
			return
		}
		s.logger.Info("scheduled job finished", slog.String("job", job.Name()))
	})
	if err != nil {
		return err
	}

	s.logger.Info("scheduled job registered",
		slog.String("job", job.Name()),
		slog.String("schedule", spec))
	return nil
}

// Start begins dispatching jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts dispatching and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
