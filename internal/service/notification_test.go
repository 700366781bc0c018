package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Strob0t/Herald/internal/domain/alert"
	"github.com/Strob0t/Herald/internal/domain/job"
	"github.com/Strob0t/Herald/internal/port/notifier"
)

// mockNotifier implements notifier.Notifier for testing.
type mockNotifier struct {
	name    string
	sent    []notifier.Notification
	sendErr error
}

func (m *mockNotifier) Name() string                        { return m.name }
func (m *mockNotifier) Capabilities() notifier.Capabilities { return notifier.Capabilities{} }
func (m *mockNotifier) Send(_ context.Context, n notifier.Notification) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, n)
	return nil
}

func TestNotificationService_Notify(t *testing.T) {
	m1 := &mockNotifier{name: "mock1"}
	m2 := &mockNotifier{name: "mock2"}
	svc := NewNotificationService([]notifier.Notifier{m1, m2}, nil)

	svc.Notify(context.Background(), notifier.Notification{
		Title:   "Test",
		Message: "Hello",
		Level:   "info",
		Source:  "alert.issued",
	})

	if len(m1.sent) != 1 {
		t.Fatalf("expected 1 notification on mock1, got %d", len(m1.sent))
	}
	if len(m2.sent) != 1 {
		t.Fatalf("expected 1 notification on mock2, got %d", len(m2.sent))
	}
}

func TestNotificationService_FilterEvents(t *testing.T) {
	m := &mockNotifier{name: "mock"}
	svc := NewNotificationService([]notifier.Notifier{m}, []string{"job.failed"})

	// This should be filtered out
	svc.Notify(context.Background(), notifier.Notification{
		Title:  "Test",
		Source: "alert.issued",
	})
	if len(m.sent) != 0 {
		t.Fatalf("expected 0 notifications (filtered), got %d", len(m.sent))
	}

	// This should pass through
	svc.Notify(context.Background(), notifier.Notification{
		Title:  "Test",
		Source: "job.failed",
	})
	if len(m.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(m.sent))
	}
}

func TestNotificationService_ErrorContinues(t *testing.T) {
	failer := &mockNotifier{name: "fail", sendErr: errors.New("connection refused")}
	success := &mockNotifier{name: "ok"}
	svc := NewNotificationService([]notifier.Notifier{failer, success}, nil)

	svc.Notify(context.Background(), notifier.Notification{
		Title:  "Test",
		Source: "alert.issued",
	})

	// First notifier failed but second should still receive
	if len(success.sent) != 1 {
		t.Fatalf("expected 1 notification on success notifier, got %d", len(success.sent))
	}
}

func TestNotificationService_Count(t *testing.T) {
	svc := NewNotificationService([]notifier.Notifier{
		&mockNotifier{name: "a"},
		&mockNotifier{name: "b"},
	}, nil)
	if svc.NotifierCount() != 2 {
		t.Fatalf("expected 2, got %d", svc.NotifierCount())
	}
}

func TestNotificationService_MirrorAlert(t *testing.T) {
	m := &mockNotifier{name: "slack"}
	svc := NewNotificationService([]notifier.Notifier{m}, nil)

	svc.MirrorAlert(context.Background(), &alert.Alert{
		ID:           "A-7",
		DisasterType: "Cyclone",
		Regions:      "Coastal North",
		Severity:     "High",
		Message:      "Landfall expected at 18:00.",
	}, 120)

	if len(m.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(m.sent))
	}
	n := m.sent[0]
	if n.Title != "Cyclone Alert for Coastal North" || n.Level != "error" || n.Source != SourceAlertIssued {
		t.Errorf("unexpected notification %+v", n)
	}
	var gotRecipients bool
	for _, f := range n.Fields {
		if f.Name == "Email Recipients" && f.Value == "120" {
			gotRecipients = true
		}
	}
	if !gotRecipients {
		t.Error("expected recipient count field")
	}
}

func TestNotificationService_JobFailed(t *testing.T) {
	m := &mockNotifier{name: "discord"}
	svc := NewNotificationService([]notifier.Notifier{m}, []string{SourceJobFailed})

	svc.JobFailed(context.Background(), &job.Job{ID: "j1", Kind: job.KindAlertBulk, Status: job.StatusPartial, Total: 3, Sent: 2, Failed: 1})
	if len(m.sent) != 1 || m.sent[0].Level != "warning" {
		t.Fatalf("unexpected notifications %+v", m.sent)
	}
}

func TestNotificationService_NilSafe(t *testing.T) {
	var svc *NotificationService
	svc.MirrorAlert(context.Background(), &alert.Alert{DisasterType: "Flood"}, 0)
	if svc.NotifierCount() != 0 {
		t.Fatal("nil service should report zero notifiers")
	}
}

func TestAlertLevel(t *testing.T) {
	tests := map[alert.Level]string{
		alert.LevelCritical: "error",
		alert.LevelHigh:     "error",
		alert.LevelMedium:   "warning",
		alert.LevelLow:      "info",
		"unknown":           "info",
	}
	for in, want := range tests {
		if got := AlertLevel(in); got != want {
			t.Errorf("AlertLevel(%s) = %s, want %s", in, got, want)
		}
	}
}
