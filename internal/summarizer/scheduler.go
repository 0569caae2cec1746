package summarizer

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/gryag-bot/gryag/internal/store"
)

// Default schedules: weekly digests refresh nightly, monthly ones weekly.
const (
	DefaultWeeklySchedule  = "0 4 * * *"
	DefaultMonthlySchedule = "0 5 * * 1"
)

// Scheduler regenerates both summary windows on independent cron schedules.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler wires the summarizer into a cron runner. Empty schedules use
// the defaults.
func NewScheduler(s *Summarizer, weeklySchedule, monthlySchedule string) (*Scheduler, error) {
	if weeklySchedule == "" {
		weeklySchedule = DefaultWeeklySchedule
	}
	if monthlySchedule == "" {
		monthlySchedule = DefaultMonthlySchedule
	}

	c := cron.New()
	if _, err := c.AddFunc(weeklySchedule, func() {
		s.GenerateAll(context.Background(), store.SummaryWeekly)
	}); err != nil {
		return nil, err
	}
	if _, err := c.AddFunc(monthlySchedule, func() {
		s.GenerateAll(context.Background(), store.SummaryMonthly)
	}); err != nil {
		return nil, err
	}

	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() {
	slog.Info("summary scheduler started")
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
