package alert

import (
	"strings"
	"testing"
	"time"
)

func TestArea(t *testing.T) {
	tests := []struct {
		name string
		a    Alert
		want string
	}{
		{"regions", Alert{Regions: "North", Location: "City"}, "North"},
		{"location", Alert{Location: "City"}, "City"},
		{"default", Alert{}, "All Regions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Area(); got != tt.want {
				t.Errorf("Area() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubject(t *testing.T) {
	a := Alert{DisasterType: "Flood", Location: "Riverside"}
	if got := a.Subject(); got != "Flood Alert for Riverside" {
		t.Errorf("Subject() = %q", got)
	}
}

func TestBodyFallsBackToDescription(t *testing.T) {
	a := Alert{Description: "Water rising"}
	if a.Body() != "Water rising" {
		t.Errorf("Body() = %q", a.Body())
	}
	a.Message = "Move to higher ground"
	if a.Body() != "Move to higher ground" {
		t.Errorf("Body() = %q", a.Body())
	}
}

func TestDefaults(t *testing.T) {
	var a Alert
	if a.Evacuation() != DefaultEvacuationOrders {
		t.Errorf("Evacuation() = %q", a.Evacuation())
	}
	if a.Contacts() != DefaultEmergencyContacts {
		t.Errorf("Contacts() = %q", a.Contacts())
	}
	if a.Issuer() != DefaultIssuedBy {
		t.Errorf("Issuer() = %q", a.Issuer())
	}
}

func TestLevelColor(t *testing.T) {
	tests := map[string]string{
		"Critical": "#c0392b",
		"HIGH":     "#e74c3c",
		"medium":   "#f39c12",
		" low ":    "#2ecc71",
		"":         "#3498db",
		"extreme":  "#3498db",
	}
	for sev, want := range tests {
		a := Alert{Severity: sev}
		if got := a.Level().Color(); got != want {
			t.Errorf("severity %q: color %s, want %s", sev, got, want)
		}
	}
}

func TestFormatIssuedAt(t *testing.T) {
	ts := time.Date(2026, 7, 4, 9, 5, 3, 0, time.UTC)
	if got := FormatIssuedAt(ts); got != "2026-07-04-09.05.03" {
		t.Errorf("FormatIssuedAt() = %q", got)
	}
}

func TestNewTest(t *testing.T) {
	now := time.UnixMilli(1767225600123)
	a := NewTest(now)
	if a.ID != "TEST-600123" {
		t.Errorf("ID = %q, want TEST-600123", a.ID)
	}
	if !strings.HasPrefix(a.Message, "This is a test email") {
		t.Errorf("unexpected message %q", a.Message)
	}
	if a.Level() != LevelLow {
		t.Errorf("expected low severity, got %q", a.Level())
	}
}
