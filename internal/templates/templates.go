// Package templates renders the HTML and plain-text bodies of every mail
// Herald sends. Templates are embedded in the binary.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/Strob0t/Herald/internal/domain/alert"
	"github.com/Strob0t/Herald/internal/domain/event"
	"github.com/Strob0t/Herald/internal/domain/mail"
)

//go:embed html/*.html text/*.txt
var files embed.FS

// NotAvailable is rendered for optional event fields that are empty.
const NotAvailable = "N/A"

// DefaultName greets event recipients without a name.
const DefaultName = "User"

// Guidelines are the venue rules repeated in confirmation and reminder mail.
var Guidelines = []string{
	"No food is allowed in the auditorium",
	"All events must end by 10 PM",
	"Please arrive at least 30 minutes before your event starts",
}

// EventKind selects one of the event notification layouts.
type EventKind string

const (
	EventConfirmation EventKind = "confirmation"
	EventUpdate       EventKind = "update"
	EventReminder     EventKind = "reminder"
	EventCancellation EventKind = "cancellation"
)

type eventLayout struct {
	title          string
	color          string
	intro          string
	detailsLabel   string
	full           bool
	guidelinesLead string
	closing        []string
}

var eventLayouts = map[EventKind]eventLayout{
	EventConfirmation: {
		title:          "Event Confirmation",
		color:          "#3498db",
		intro:          "Your event has been successfully booked!",
		detailsLabel:   "Event Details",
		full:           true,
		guidelinesLead: "Please note the following guidelines:",
		closing:        []string{"If you need to make any changes to your event, please log in to your account and update the event details."},
	},
	EventUpdate: {
		title:        "Event Update",
		color:        "#f39c12",
		intro:        "Your event has been updated with the following details:",
		detailsLabel: "Updated Event Details",
		full:         true,
		closing: []string{
			"Please review these details and make sure they are correct.",
			"If you need to make any further changes, please log in to your account and update the event details.",
		},
	},
	EventReminder: {
		title:          "Event Reminder",
		color:          "#9b59b6",
		intro:          "This is a reminder about your upcoming event:",
		detailsLabel:   "Event Details",
		full:           true,
		guidelinesLead: "Please remember the following guidelines:",
		closing:        []string{"We look forward to your event!"},
	},
	EventCancellation: {
		title:        "Event Cancellation",
		color:        "#e74c3c",
		intro:        "We regret to inform you that your event has been cancelled:",
		detailsLabel: "Cancelled Event Details",
		closing:      []string{"If you have any questions or would like to reschedule, please contact the event management team."},
	},
}

// Rendered is a subject with its HTML and plain-text bodies.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Renderer executes the embedded templates.
type Renderer struct {
	html     *htmltemplate.Template
	text     *texttemplate.Template
	eventOrg string
	alertOrg string
}

// New parses the embedded templates. eventOrg signs event mail and test
// email; alertOrg signs disaster alerts.
func New(eventOrg, alertOrg string) (*Renderer, error) {
	h, err := htmltemplate.ParseFS(files, "html/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	t, err := texttemplate.ParseFS(files, "text/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	return &Renderer{html: h, text: t, eventOrg: eventOrg, alertOrg: alertOrg}, nil
}

// MustNew is New that panics on a template error.
func MustNew(eventOrg, alertOrg string) *Renderer {
	r, err := New(eventOrg, alertOrg)
	if err != nil {
		panic(err)
	}
	return r
}

// AlertOrg returns the organization that signs alerts.
func (r *Renderer) AlertOrg() string { return r.alertOrg }

// EventOrg returns the organization that signs event mail.
func (r *Renderer) EventOrg() string { return r.eventOrg }

type eventFields struct {
	Name          string
	Date          string
	Time          string
	Venue         string
	ChiefGuest    string
	AudienceLimit string
	Club          string
}

type eventData struct {
	Title          string
	Subtitle       string
	Color          htmltemplate.CSS
	Name           string
	Intro          string
	DetailsLabel   string
	Event          eventFields
	Full           bool
	GuidelinesLead string
	Guidelines     []string
	Closing        []string
	Org            string
}

// Event renders an event notification of the given kind.
func (r *Renderer) Event(kind EventKind, to mail.Recipient, ev event.Event) (Rendered, error) {
	layout, ok := eventLayouts[kind]
	if !ok {
		return Rendered{}, fmt.Errorf("unknown event mail kind %q", kind)
	}
	data := eventData{
		Title:        layout.title,
		Color:        htmltemplate.CSS(layout.color),
		Name:         to.DisplayName(DefaultName),
		Intro:        layout.intro,
		DetailsLabel: layout.detailsLabel,
		Event: eventFields{
			Name:          ev.Name,
			Date:          ev.Date,
			Time:          ev.Time,
			Venue:         ev.Venue,
			ChiefGuest:    orNA(ev.ChiefGuest),
			AudienceLimit: ev.AudienceLimit.String(),
			Club:          orNA(ev.Club),
		},
		Full:           layout.full,
		GuidelinesLead: layout.guidelinesLead,
		Closing:        layout.closing,
		Org:            r.eventOrg,
	}
	if layout.guidelinesLead != "" {
		data.Guidelines = Guidelines
	}
	return r.render("event", layout.title+": "+ev.Name, data)
}

type alertData struct {
	Alert         alert.Alert
	Color         htmltemplate.CSS
	SeverityLabel string
	Name          string
	Area          string
	Body          string
	IssuedAt      string
	Issuer        string
	Evacuation    string
	Contacts      string
	Org           string
}

// Alert renders a disaster alert addressed to recipient. subject overrides
// the default "<type> Alert for <area>" when non-empty.
func (r *Renderer) Alert(to mail.Recipient, a alert.Alert, subject string, now time.Time) (Rendered, error) {
	issued := a.Timestamp
	if issued.IsZero() {
		issued = now
	}
	if subject == "" {
		subject = a.Subject()
	}
	data := alertData{
		Alert:         a,
		Color:         htmltemplate.CSS(a.Level().Color()),
		SeverityLabel: strings.ToUpper(a.Severity),
		Name:          to.DisplayName(alert.DefaultRecipientName),
		Area:          a.Area(),
		Body:          a.Body(),
		IssuedAt:      alert.FormatIssuedAt(issued),
		Issuer:        a.Issuer(),
		Evacuation:    a.Evacuation(),
		Contacts:      a.Contacts(),
		Org:           r.alertOrg,
	}
	return r.render("alert", subject, data)
}

type testData struct {
	Title     string
	Subtitle  string
	Color     htmltemplate.CSS
	Recipient string
	SentAt    string
	Org       string
}

// TestEmail renders the transport check mail signed by the event organization.
func (r *Renderer) TestEmail(now time.Time) (Rendered, error) {
	return r.render("test", "Test Email from "+r.eventOrg, testData{
		Title:  "Test Email",
		Color:  "#4CAF50",
		SentAt: now.UTC().Format(time.RFC1123),
		Org:    r.eventOrg,
	})
}

// DirectTest renders the mail sent by the tracked direct test for to.
func (r *Renderer) DirectTest(to string, now time.Time) (Rendered, error) {
	return r.render("test", "Direct Test Email from "+r.alertOrg, testData{
		Title:     "Direct Test Email",
		Subtitle:  "Delivery tracking check",
		Color:     "#3498db",
		Recipient: to,
		SentAt:    now.UTC().Format(time.RFC1123),
		Org:       r.alertOrg,
	})
}

func (r *Renderer) render(name, subject string, data any) (Rendered, error) {
	var h, t bytes.Buffer
	if err := r.html.ExecuteTemplate(&h, name, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s html: %w", name, err)
	}
	if err := r.text.ExecuteTemplate(&t, name, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s text: %w", name, err)
	}
	return Rendered{Subject: subject, HTML: h.String(), Text: t.String()}, nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}
