// Package job defines background notification jobs and their per-recipient
// delivery ledger.
package job

import (
	"time"

	"github.com/Strob0t/Herald/internal/domain"
	"github.com/Strob0t/Herald/internal/domain/alert"
	"github.com/Strob0t/Herald/internal/domain/event"
	"github.com/Strob0t/Herald/internal/domain/mail"
)

// Kind names the type of notification a job sends.
type Kind string

const (
	KindAlertBulk         Kind = "alert.bulk"
	KindEventReminder     Kind = "event.reminder"
	KindEventCancellation Kind = "event.cancellation"
	KindEventConfirmation Kind = "event.confirmation"
)

// Status represents the current state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further processing will happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// Job is one queued batch of notifications.
type Job struct {
	ID         string     `json:"id"`
	Kind       Kind       `json:"kind"`
	Reference  string     `json:"reference,omitempty"` // alert or event id
	Status     Status     `json:"status"`
	Total      int        `json:"total"`
	Sent       int        `json:"sent"`
	Failed     int        `json:"failed"`
	Attempts   int        `json:"attempts"`
	Error      string     `json:"error,omitempty"`
	Deliveries []Delivery `json:"deliveries,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Delivery is the outcome of one recipient within a job.
type Delivery struct {
	Email     string             `json:"email"`
	Status    mail.DeliveryState `json:"status"`
	MessageID string             `json:"message_id,omitempty"`
	Error     string             `json:"error,omitempty"`
	SentAt    time.Time          `json:"sent_at"`
}

// Payload is the message body published to the job queue.
type Payload struct {
	JobID      string          `json:"job_id"`
	Kind       Kind            `json:"kind"`
	Recipients []mail.Recipient `json:"recipients"`
	Alert      *alert.Alert    `json:"alert,omitempty"`
	Event      *event.Event    `json:"event,omitempty"`
}

// Validate checks that the payload carries what its kind needs.
func (p *Payload) Validate() error {
	if len(p.Recipients) == 0 {
		return domain.Invalid("Recipients list is required")
	}
	switch p.Kind {
	case KindAlertBulk:
		if p.Alert == nil {
			return domain.Invalid("Alert data is required")
		}
	case KindEventReminder, KindEventCancellation, KindEventConfirmation:
		if p.Event == nil {
			return domain.Invalid("Event data is required")
		}
	default:
		return domain.Invalidf("unknown job kind %q", p.Kind)
	}
	return nil
}

// Reference returns the id of the alert or event the payload is about.
func (p *Payload) Reference() string {
	switch {
	case p.Alert != nil:
		return p.Alert.ID
	case p.Event != nil:
		return p.Event.ID
	}
	return ""
}

// Outcome derives the terminal status from the delivery counts.
func Outcome(sent, failed int) Status {
	switch {
	case failed == 0:
		return StatusCompleted
	case sent == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}
