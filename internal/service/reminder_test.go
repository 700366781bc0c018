package service

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/Herald/internal/config"
	"github.com/Strob0t/Herald/internal/domain/event"
	"github.com/Strob0t/Herald/internal/domain/job"
)

func TestReminderSchedulerRunOnce(t *testing.T) {
	f := newBookingFixture()
	f.store.events = append(f.store.events,
		event.Event{ID: "today", Date: "2026-03-14", Status: event.StatusBooked},
		event.Event{ID: "tomorrow", Date: "2026-03-15", Status: event.StatusBooked},
	)
	f.store.holders["today"] = []event.Holder{{Email: "a@example.com"}}
	f.store.holders["tomorrow"] = []event.Holder{{Email: "b@example.com"}}

	s, err := NewReminderScheduler(config.Defaults().Reminders, f.svc, nil)
	if err != nil {
		t.Fatalf("NewReminderScheduler: %v", err)
	}
	s.now = func() time.Time { return fixedNow }

	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("queued %d jobs, want 1", n)
	}
	if j := f.jobs.only(); j.Kind != job.KindEventReminder || j.Reference != "tomorrow" {
		t.Errorf("job = %+v", j)
	}
}

func TestReminderSchedulerEntries(t *testing.T) {
	f := newBookingFixture()
	cfg := config.Defaults().Reminders

	s, err := NewReminderScheduler(cfg, f.svc, &JobService{})
	if err != nil {
		t.Fatalf("NewReminderScheduler: %v", err)
	}
	if got := len(s.cron.Entries()); got != 2 {
		t.Errorf("entries = %d, want reminder and purge", got)
	}

	cfg.PurgeSpec = ""
	s, err = NewReminderScheduler(cfg, f.svc, &JobService{})
	if err != nil {
		t.Fatalf("NewReminderScheduler: %v", err)
	}
	if got := len(s.cron.Entries()); got != 1 {
		t.Errorf("entries = %d, want reminder only", got)
	}
}

func TestReminderSchedulerBadSpec(t *testing.T) {
	if _, err := NewReminderScheduler(config.Reminders{Spec: "every morning"}, nil, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestReminderSchedulerStartStop(t *testing.T) {
	s, err := NewReminderScheduler(config.Defaults().Reminders, newBookingFixture().svc, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
