package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Strob0t/Herald/internal/config"
	"github.com/Strob0t/Herald/internal/domain/event"
)

// ReminderScheduler runs the daily reminder run and the job ledger purge on
// cron schedules evaluated in UTC.
type ReminderScheduler struct {
	cron    *cron.Cron
	booking *BookingService
	jobs    *JobService
	cfg     config.Reminders
	now     func() time.Time
}

// NewReminderScheduler parses the configured schedules. jobs may be nil to
// skip the purge.
func NewReminderScheduler(cfg config.Reminders, booking *BookingService, jobs *JobService) (*ReminderScheduler, error) {
	s := &ReminderScheduler{
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithLogger(cronLogger{}), cron.WithChain(cron.Recover(cronLogger{}))),
		booking: booking,
		jobs:    jobs,
		cfg:     cfg,
		now:     time.Now,
	}
	if _, err := s.cron.AddFunc(cfg.Spec, s.remind); err != nil {
		return nil, fmt.Errorf("parse reminder schedule %q: %w", cfg.Spec, err)
	}
	if cfg.PurgeSpec != "" && jobs != nil && cfg.RetainJobs > 0 {
		if _, err := s.cron.AddFunc(cfg.PurgeSpec, s.purge); err != nil {
			return nil, fmt.Errorf("parse purge schedule %q: %w", cfg.PurgeSpec, err)
		}
	}
	return s, nil
}

// Start runs the scheduler in the background.
func (s *ReminderScheduler) Start() {
	s.cron.Start()
	slog.Info("reminder scheduler started", "spec", s.cfg.Spec, "purge_spec", s.cfg.PurgeSpec)
}

// Stop stops scheduling and waits for a running run to finish or ctx to end.
func (s *ReminderScheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce queues reminders for the events booked on the next UTC day.
func (s *ReminderScheduler) RunOnce(ctx context.Context) (int, error) {
	date := event.Today(s.now().AddDate(0, 0, 1))
	n, err := s.booking.RemindUpcoming(ctx, date)
	slog.InfoContext(ctx, "reminder run finished", "date", date, "jobs", n, "error", err)
	return n, err
}

func (s *ReminderScheduler) remind() {
	if _, err := s.RunOnce(context.Background()); err != nil {
		slog.Error("reminder run failed", "error", err)
	}
}

func (s *ReminderScheduler) purge() {
	n, err := s.jobs.PurgeJobs(context.Background(), s.cfg.RetainJobs)
	if err != nil {
		slog.Error("job purge failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("purged finished jobs", "count", n, "older_than", s.cfg.RetainJobs)
	}
}

// cronLogger routes cron's logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
