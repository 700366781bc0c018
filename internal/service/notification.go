// Package service contains application services.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/Herald/internal/domain/alert"
	"github.com/Strob0t/Herald/internal/domain/job"
	"github.com/Strob0t/Herald/internal/port/notifier"
)

// Notification sources mirrored to chat.
const (
	SourceAlertIssued = "alert.issued"
	SourceJobFailed   = "job.failed"
)

// NotificationService dispatches notifications to all registered notifiers.
type NotificationService struct {
	notifiers     []notifier.Notifier
	enabledEvents map[string]bool
}

// NewNotificationService creates a NotificationService with the given notifiers
// and list of enabled sources (e.g. "alert.issued", "job.failed").
// If enabledEvents is nil or empty, all sources are enabled.
func NewNotificationService(notifiers []notifier.Notifier, enabledEvents []string) *NotificationService {
	enabled := make(map[string]bool, len(enabledEvents))
	for _, e := range enabledEvents {
		enabled[e] = true
	}
	return &NotificationService{
		notifiers:     notifiers,
		enabledEvents: enabled,
	}
}

// Notify sends a notification to all registered notifiers.
// Errors are logged but do not interrupt delivery to other notifiers.
func (s *NotificationService) Notify(ctx context.Context, n notifier.Notification) {
	if s == nil {
		return
	}
	if len(s.enabledEvents) > 0 && !s.enabledEvents[n.Source] {
		return
	}

	for _, provider := range s.notifiers {
		if err := provider.Send(ctx, n); err != nil {
			slog.WarnContext(ctx, "notification send failed",
				"provider", provider.Name(),
				"title", n.Title,
				"error", err,
			)
			continue
		}
		slog.DebugContext(ctx, "notification sent", "provider", provider.Name(), "title", n.Title)
	}
}

// MirrorAlert posts a disaster alert to the chat channels.
func (s *NotificationService) MirrorAlert(ctx context.Context, a *alert.Alert, recipients int) {
	n := notifier.Notification{
		Title:   a.Subject(),
		Message: a.Body(),
		Level:   AlertLevel(a.Level()),
		Source:  SourceAlertIssued,
		Fields: []notifier.Field{
			{Name: "Severity", Value: a.Severity},
			{Name: "Area", Value: a.Area()},
			{Name: "Evacuation Orders", Value: a.Evacuation()},
			{Name: "Emergency Contacts", Value: a.Contacts()},
			{Name: "Issued By", Value: a.Issuer()},
		},
	}
	if a.ID != "" {
		n.Fields = append(n.Fields, notifier.Field{Name: "Alert ID", Value: a.ID})
	}
	if recipients > 0 {
		n.Fields = append(n.Fields, notifier.Field{Name: "Email Recipients", Value: fmt.Sprint(recipients)})
	}
	s.Notify(ctx, n)
}

// JobFailed reports a job that finished without delivering every message.
func (s *NotificationService) JobFailed(ctx context.Context, j *job.Job) {
	level := "warning"
	if j.Status == job.StatusFailed {
		level = "error"
	}
	s.Notify(ctx, notifier.Notification{
		Title:   fmt.Sprintf("Mail job %s %s", j.Kind, j.Status),
		Message: fmt.Sprintf("%d sent, %d failed of %d", j.Sent, j.Failed, j.Total),
		Level:   level,
		Source:  SourceJobFailed,
		Fields:  []notifier.Field{{Name: "Job ID", Value: j.ID}},
	})
}

// NotifierCount returns the number of registered notifiers.
func (s *NotificationService) NotifierCount() int {
	if s == nil {
		return 0
	}
	return len(s.notifiers)
}

// AlertLevel maps alert severity onto notifier levels.
func AlertLevel(l alert.Level) string {
	switch l {
	case alert.LevelCritical, alert.LevelHigh:
		return "error"
	case alert.LevelMedium:
		return "warning"
	default:
		return "info"
	}
}
