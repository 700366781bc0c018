// Package event defines booked campus events and the bookings that hold them.
package event

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Strob0t/Herald/internal/domain"
)

// DateLayout is the calendar date format used for event dates.
const DateLayout = "2006-01-02"

// Status is the lifecycle state of an event.
type Status string

const (
	StatusBooked    Status = "booked"
	StatusCancelled Status = "cancelled"
)

// PaymentCompleted is the payment status recorded for paid bookings.
const PaymentCompleted = "completed"

// Event is a booked use of a venue at a date and time.
type Event struct {
	ID            string    `json:"id,omitempty"`
	Name          string    `json:"name"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Venue         string    `json:"venue"`
	ChiefGuest    string    `json:"chief_guest"`
	AudienceLimit Limit     `json:"audience_limit,omitempty"`
	Club          string    `json:"club,omitempty"`
	Status        Status    `json:"status,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitzero"`
}

// Slot identifies a venue at a date and time.
type Slot struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Venue string `json:"venue"`
}

// Slot returns the slot the event occupies.
func (e *Event) Slot() Slot {
	return Slot{Date: e.Date, Time: e.Time, Venue: e.Venue}
}

// SlotStatus is the answer to a slot availability check.
type SlotStatus string

const (
	SlotBooked    SlotStatus = "booked"
	SlotAvailable SlotStatus = "available"
)

// Booking links a user to an event they paid for.
type Booking struct {
	ID            string    `json:"id,omitempty"`
	UserID        string    `json:"user_id"`
	EventID       string    `json:"event_id"`
	PaymentStatus string    `json:"payment_status"`
	CreatedAt     time.Time `json:"created_at,omitzero"`
}

// Holder is a booking owner together with the address notifications go to.
type Holder struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"fullname,omitempty"`
}

// Placeholder is returned when no event is booked for today.
func Placeholder() Event {
	return Event{Name: "No event today", ChiefGuest: ""}
}

// Limit is an audience size that accepts both numbers and numeric strings,
// since form posts deliver it as text.
type Limit int

// UnmarshalJSON implements json.Unmarshaler.
func (l *Limit) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*l = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return domain.Invalid("audience_limit must be a number")
		}
		*l = Limit(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return domain.Invalid("audience_limit must be a number")
	}
	*l = Limit(n)
	return nil
}

// String renders the limit, or "N/A" when unset.
func (l Limit) String() string {
	if l <= 0 {
		return "N/A"
	}
	return strconv.Itoa(int(l))
}

// CreateRequest is the input for booking a new event.
type CreateRequest struct {
	Name          string `json:"name"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Venue         string `json:"venue"`
	ChiefGuest    string `json:"chief_guest"`
	AudienceLimit Limit  `json:"audience_limit"`
	Club          string `json:"club,omitempty"`
	UserID        string `json:"user_id"`
	// Optional confirmation addressee.
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullname,omitempty"`
}

// Validate checks the fields of a booking request.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return domain.Invalid("name is required")
	}
	if len(r.Name) > 255 {
		return domain.Invalid("name exceeds 255 characters")
	}
	for _, c := range r.Name {
		if unicode.IsControl(c) {
			return domain.Invalid("name contains control characters")
		}
	}
	if err := ValidateSlot(Slot{Date: r.Date, Time: r.Time, Venue: r.Venue}); err != nil {
		return err
	}
	if r.AudienceLimit < 0 {
		return domain.Invalid("audience_limit must not be negative")
	}
	return nil
}

// Event builds the booked event described by the request.
func (r *CreateRequest) Event() Event {
	return Event{
		Name:          strings.TrimSpace(r.Name),
		Date:          r.Date,
		Time:          strings.TrimSpace(r.Time),
		Venue:         strings.TrimSpace(r.Venue),
		ChiefGuest:    strings.TrimSpace(r.ChiefGuest),
		AudienceLimit: r.AudienceLimit,
		Club:          strings.TrimSpace(r.Club),
		Status:        StatusBooked,
	}
}

// ValidateSlot checks that a slot names a date, time and venue.
func ValidateSlot(s Slot) error {
	if s.Date == "" || strings.TrimSpace(s.Time) == "" || strings.TrimSpace(s.Venue) == "" {
		return domain.Invalid("date, time and venue are required")
	}
	if _, err := time.Parse(DateLayout, s.Date); err != nil {
		return domain.Invalidf("date %q must be formatted YYYY-MM-DD", s.Date)
	}
	return nil
}

// Today returns the current UTC calendar date in DateLayout.
func Today(now time.Time) string {
	return now.UTC().Format(DateLayout)
}
