package supabase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Strob0t/Herald/internal/domain"
	"github.com/Strob0t/Herald/internal/domain/event"
	"github.com/Strob0t/Herald/internal/port/database"
)

var _ database.EventStore = (*Client)(nil)

const (
	tableEvents   = "events"
	tableBookings = "bookings"
	tableProfiles = "profiles"

	preferRepresentation = "return=representation"
)

func eq(v string) string { return "eq." + v }

// FindBooked lists booked events on date ordered by time.
func (c *Client) FindBooked(ctx context.Context, date string, limit int) ([]event.Event, error) {
	q := url.Values{
		"select": {"*"},
		"date":   {eq(date)},
		"status": {eq(string(event.StatusBooked))},
		"order":  {"time.asc"},
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var evs []event.Event
	if err := c.do(ctx, request{method: http.MethodGet, url: c.table(tableEvents, q)}, &evs); err != nil {
		return nil, fmt.Errorf("find booked events: %w", err)
	}
	return evs, nil
}

// SlotBooked reports whether a booked event occupies slot.
func (c *Client) SlotBooked(ctx context.Context, slot event.Slot) (bool, error) {
	q := url.Values{
		"select": {"id"},
		"date":   {eq(slot.Date)},
		"time":   {eq(slot.Time)},
		"venue":  {eq(slot.Venue)},
		"status": {eq(string(event.StatusBooked))},
		"limit":  {"1"},
	}
	var rows []struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, url: c.table(tableEvents, q)}, &rows); err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return len(rows) > 0, nil
}

// CreateEvent inserts ev. A unique constraint on booked slots surfaces as
// domain.ErrConflict.
func (c *Client) CreateEvent(ctx context.Context, ev event.Event) (*event.Event, error) {
	var rows []event.Event
	err := c.do(ctx, request{
		method: http.MethodPost,
		url:    c.table(tableEvents, url.Values{"select": {"*"}}),
		body:   []event.Event{ev},
		prefer: preferRepresentation,
	}, &rows)
	if err != nil {
		if statusOf(err) == http.StatusConflict {
			return nil, fmt.Errorf("create event: %w", domain.ErrConflict)
		}
		return nil, fmt.Errorf("create event: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create event: empty representation")
	}
	return &rows[0], nil
}

// BookEvent inserts ev and then its holding booking. PostgREST offers no
// transaction across two requests, so a failed booking insert is undone by
// deleting the new event again.
func (c *Client) BookEvent(ctx context.Context, ev event.Event, b event.Booking) (*event.Event, error) {
	created, err := c.CreateEvent(ctx, ev)
	if err != nil {
		return nil, err
	}
	b.EventID = created.ID
	if _, err := c.CreateBooking(ctx, b); err != nil {
		if derr := c.deleteEvent(context.WithoutCancel(ctx), created.ID); derr != nil {
			slog.ErrorContext(ctx, "orphaned event after failed booking", "event_id", created.ID, "error", derr)
			return nil, errors.Join(err, derr)
		}
		return nil, err
	}
	return created, nil
}

func (c *Client) deleteEvent(ctx context.Context, id string) error {
	err := c.do(ctx, request{
		method: http.MethodDelete,
		url:    c.table(tableEvents, url.Values{"id": {eq(id)}}),
	}, nil)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return nil
}

// GetEvent returns the event with id.
func (c *Client) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	q := url.Values{"select": {"*"}, "id": {eq(id)}, "limit": {"1"}}
	var rows []event.Event
	if err := c.do(ctx, request{method: http.MethodGet, url: c.table(tableEvents, q)}, &rows); err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
	}
	return &rows[0], nil
}

// CancelEvent marks the event cancelled.
func (c *Client) CancelEvent(ctx context.Context, id string) error {
	var rows []struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, request{
		method: http.MethodPatch,
		url:    c.table(tableEvents, url.Values{"id": {eq(id)}, "select": {"id"}}),
		body:   map[string]string{"status": string(event.StatusCancelled)},
		prefer: preferRepresentation,
	}, &rows)
	if err != nil {
		return fmt.Errorf("cancel event %s: %w", id, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CreateBooking inserts b.
func (c *Client) CreateBooking(ctx context.Context, b event.Booking) (*event.Booking, error) {
	var rows []event.Booking
	err := c.do(ctx, request{
		method: http.MethodPost,
		url:    c.table(tableBookings, url.Values{"select": {"*"}}),
		body:   []event.Booking{b},
		prefer: preferRepresentation,
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create booking: empty representation")
	}
	return &rows[0], nil
}

// Holders lists the owners of the bookings for eventID with the addresses
// from their profiles. Bookings whose user has no profile are skipped.
func (c *Client) Holders(ctx context.Context, eventID string) ([]event.Holder, error) {
	var bookings []struct {
		UserID string `json:"user_id"`
	}
	q := url.Values{"select": {"user_id"}, "event_id": {eq(eventID)}}
	if err := c.do(ctx, request{method: http.MethodGet, url: c.table(tableBookings, q)}, &bookings); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if len(bookings) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(bookings))
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		if b.UserID != "" && !seen[b.UserID] {
			seen[b.UserID] = true
			ids = append(ids, b.UserID)
		}
	}

	var profiles []struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		FullName string `json:"full_name"`
	}
	q = url.Values{"select": {"id,email,full_name"}, "id": {"in.(" + strings.Join(ids, ",") + ")"}}
	if err := c.do(ctx, request{method: http.MethodGet, url: c.table(tableProfiles, q)}, &profiles); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	byID := make(map[string]event.Holder, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = event.Holder{UserID: p.ID, Email: p.Email, FullName: p.FullName}
	}
	holders := make([]event.Holder, 0, len(ids))
	for _, id := range ids {
		if h, ok := byID[id]; ok && h.Email != "" {
			holders = append(holders, h)
		}
	}
	return holders, nil
}
