package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule is Monday 09:00 UTC.
const DefaultSchedule = "0 9 * * 1"

// Scheduler runs a Job on a cron schedule
type Scheduler struct {
	cron *cron.Cron
	job  *Job
	ctx  context.Context
}

// NewScheduler validates spec (standard five-field cron syntax) and registers job.
func NewScheduler(spec string, job *Job) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		job:  job,
		ctx:  context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	start := time.Now()
	sent, err := s.job.Run(s.ctx)
	if err != nil {
		slog.Error("Reminder run failed", "sent", sent, "error", err)
		return
	}
	slog.Info("Reminder run finished", "sent", sent, "duration", time.Since(start))
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for a running job.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	entries := s.cron.Entries()
	if len(entries) > 0 {
		slog.Info("Reminder scheduler started", "next", entries[0].Next)
	}

	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
