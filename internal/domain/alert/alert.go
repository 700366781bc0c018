// Package alert defines disaster alerts broadcast to residents by email.
package alert

import (
	"fmt"
	"strings"
	"time"
)

// Default texts used when an alert omits the field.
const (
	DefaultArea              = "All Regions"
	DefaultEvacuationOrders  = "No evacuation orders at this time"
	DefaultEmergencyContacts = "Emergency Services: 911"
	DefaultIssuedBy          = "Email Test Panel"
	DefaultRecipientName     = "Test Recipient"
)

// Alert is a disaster warning as submitted by the alert console.
type Alert struct {
	ID                string    `json:"id"`
	DisasterType      string    `json:"disasterType"`
	Regions           string    `json:"regions,omitempty"`
	Location          string    `json:"location,omitempty"`
	Severity          string    `json:"severity"`
	Message           string    `json:"message,omitempty"`
	Description       string    `json:"description,omitempty"`
	EvacuationOrders  string    `json:"evacuationOrders,omitempty"`
	EmergencyContacts string    `json:"emergencyContacts,omitempty"`
	IssuedBy          string    `json:"issuedBy,omitempty"`
	ReportedBy        string    `json:"reportedBy,omitempty"`
	Timestamp         time.Time `json:"timestamp,omitzero"`
}

// Area returns the regions, else the location, else DefaultArea.
func (a *Alert) Area() string {
	if a.Regions != "" {
		return a.Regions
	}
	if a.Location != "" {
		return a.Location
	}
	return DefaultArea
}

// Body returns the alert message, falling back to its description.
func (a *Alert) Body() string {
	if a.Message != "" {
		return a.Message
	}
	return a.Description
}

// Subject is the email subject line for the alert.
func (a *Alert) Subject() string {
	return fmt.Sprintf("%s Alert for %s", a.DisasterType, a.Area())
}

// Evacuation returns the evacuation orders or the default notice.
func (a *Alert) Evacuation() string {
	return orDefault(a.EvacuationOrders, DefaultEvacuationOrders)
}

// Contacts returns the emergency contacts or the default number.
func (a *Alert) Contacts() string {
	return orDefault(a.EmergencyContacts, DefaultEmergencyContacts)
}

// Issuer returns who issued the alert.
func (a *Alert) Issuer() string {
	return orDefault(a.IssuedBy, DefaultIssuedBy)
}

// Level is the normalized severity.
type Level string

const (
	LevelCritical Level = "critical"
	LevelHigh     Level = "high"
	LevelMedium   Level = "medium"
	LevelLow      Level = "low"
)

// Level returns the lower-cased severity.
func (a *Alert) Level() Level {
	return Level(strings.ToLower(strings.TrimSpace(a.Severity)))
}

// Color returns the header colour for the severity.
func (l Level) Color() string {
	switch l {
	case LevelCritical:
		return "#c0392b"
	case LevelHigh:
		return "#e74c3c"
	case LevelMedium:
		return "#f39c12"
	case LevelLow:
		return "#2ecc71"
	default:
		return "#3498db"
	}
}

// FormatIssuedAt renders t as YYYY-MM-DD-HH.MM.SS in UTC.
func FormatIssuedAt(t time.Time) string {
	return t.UTC().Format("2006-01-02-15.04.05")
}

// NewTest builds the alert sent by the test endpoint.
func NewTest(now time.Time) Alert {
	ms := fmt.Sprintf("%d", now.UnixMilli())
	return Alert{
		ID:                "TEST-" + ms[len(ms)-6:],
		DisasterType:      "Test Alert",
		Regions:           "Test Region",
		Severity:          "Low",
		Message:           "This is a test email from the Disaster Management System.",
		EvacuationOrders:  DefaultEvacuationOrders,
		EmergencyContacts: DefaultEmergencyContacts,
		IssuedBy:          DefaultIssuedBy,
		Timestamp:         now.UTC(),
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
