package job

import (
	"errors"
	"testing"

	"github.com/Strob0t/Herald/internal/domain"
	"github.com/Strob0t/Herald/internal/domain/alert"
	"github.com/Strob0t/Herald/internal/domain/event"
	"github.com/Strob0t/Herald/internal/domain/mail"
)

func TestPayloadValidate(t *testing.T) {
	rcpts := mail.Recipients{{Email: "a@example.com"}}

	tests := []struct {
		name    string
		p       Payload
		wantErr string
	}{
		{"bulk ok", Payload{Kind: KindAlertBulk, Recipients: rcpts, Alert: &alert.Alert{ID: "A1"}}, ""},
		{"reminder ok", Payload{Kind: KindEventReminder, Recipients: rcpts, Event: &event.Event{ID: "E1"}}, ""},
		{"no recipients", Payload{Kind: KindAlertBulk, Alert: &alert.Alert{}}, "Recipients list is required"},
		{"bulk no alert", Payload{Kind: KindAlertBulk, Recipients: rcpts}, "Alert data is required"},
		{"cancel no event", Payload{Kind: KindEventCancellation, Recipients: rcpts}, "Event data is required"},
		{"confirmation no event", Payload{Kind: KindEventConfirmation, Recipients: rcpts}, "Event data is required"},
		{"unknown kind", Payload{Kind: "sms", Recipients: rcpts}, `unknown job kind "sms"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("got %v, want %q", err, tt.wantErr)
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Error("expected ErrValidation")
			}
		})
	}
}

func TestPayloadReference(t *testing.T) {
	p := Payload{Alert: &alert.Alert{ID: "ALERT-7"}}
	if p.Reference() != "ALERT-7" {
		t.Errorf("Reference() = %q", p.Reference())
	}
	p = Payload{Event: &event.Event{ID: "ev-1"}}
	if p.Reference() != "ev-1" {
		t.Errorf("Reference() = %q", p.Reference())
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		sent, failed int
		want         Status
	}{
		{3, 0, StatusCompleted},
		{0, 0, StatusCompleted},
		{0, 2, StatusFailed},
		{2, 1, StatusPartial},
	}
	for _, tt := range tests {
		if got := Outcome(tt.sent, tt.failed); got != tt.want {
			t.Errorf("Outcome(%d, %d) = %s, want %s", tt.sent, tt.failed, got, tt.want)
		}
		if !tt.want.Terminal() {
			t.Errorf("%s should be terminal", tt.want)
		}
	}
	if StatusRunning.Terminal() {
		t.Error("running must not be terminal")
	}
}
