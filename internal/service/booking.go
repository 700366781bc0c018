package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/Herald/internal/domain"
	"github.com/Strob0t/Herald/internal/domain/event"
	"github.com/Strob0t/Herald/internal/domain/job"
	"github.com/Strob0t/Herald/internal/domain/mail"
	"github.com/Strob0t/Herald/internal/domain/user"
	"github.com/Strob0t/Herald/internal/port/broadcast"
	"github.com/Strob0t/Herald/internal/port/database"
	"github.com/Strob0t/Herald/internal/port/identity"
)

// BookingService handles portal logins and venue bookings.
type BookingService struct {
	identity identity.Provider
	events   database.EventStore
	jobs     *JobService
	hub      broadcast.Broadcaster
	now      func() time.Time
}

// NewBookingService creates a BookingService. jobs may be nil, in which case
// no booking mail is queued.
func NewBookingService(id identity.Provider, events database.EventStore, jobs *JobService, hub broadcast.Broadcaster) *BookingService {
	if hub == nil {
		hub = broadcast.Nop{}
	}
	return &BookingService{identity: id, events: events, jobs: jobs, hub: hub, now: time.Now}
}

// Login signs a user in to the portal of role. Any failure, including a
// role mismatch, yields the same unauthorized error.
func (s *BookingService) Login(ctx context.Context, role user.Role, req user.LoginRequest) (*user.LoginResponse, error) {
	id, err := s.identity.SignIn(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if !errors.Is(err, domain.ErrUnauthorized) {
			slog.ErrorContext(ctx, "identity provider sign-in failed", "role", role, "error", err)
		}
		return nil, domain.Unauthorized(user.ErrInvalidLogin)
	}
	if id.Role != role {
		slog.InfoContext(ctx, "login rejected for role", "user_id", id.ID, "want", role, "got", id.Role)
		return nil, domain.Unauthorized(user.ErrInvalidLogin)
	}
	slog.InfoContext(ctx, "user logged in", "user_id", id.ID, "role", role)
	return &user.LoginResponse{Redirect: user.DashboardPath, AccessToken: id.AccessToken}, nil
}

// Authenticate resolves a bearer token to the signed-in user.
func (s *BookingService) Authenticate(ctx context.Context, token string) (*user.Identity, error) {
	id, err := s.identity.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return nil, domain.Unauthorized("invalid or expired token")
		}
		return nil, err
	}
	return id, nil
}

// TodayEvent returns the first event booked for the current UTC date, or
// the placeholder event when there is none.
func (s *BookingService) TodayEvent(ctx context.Context) (event.Event, error) {
	evs, err := s.events.FindBooked(ctx, event.Today(s.now()), 1)
	if err != nil {
		return event.Event{}, fmt.Errorf("find today's event: %w", err)
	}
	if len(evs) == 0 {
		return event.Placeholder(), nil
	}
	return evs[0], nil
}

// CheckSlot reports whether a booked event already occupies the slot.
func (s *BookingService) CheckSlot(ctx context.Context, slot event.Slot) (event.SlotStatus, error) {
	if err := event.ValidateSlot(slot); err != nil {
		return "", err
	}
	booked, err := s.events.SlotBooked(ctx, slot)
	if err != nil {
		return "", fmt.Errorf("check slot: %w", err)
	}
	if booked {
		return event.SlotBooked, nil
	}
	return event.SlotAvailable, nil
}

// CreateEvent books the requested slot for req.UserID and records a paid
// booking. When the request names an addressee a confirmation mail is
// queued; a queueing failure does not fail the booking.
func (s *BookingService) CreateEvent(ctx context.Context, req event.CreateRequest) (*event.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, domain.Invalid("user_id is required")
	}

	ev := req.Event()
	booked, err := s.events.SlotBooked(ctx, ev.Slot())
	if err != nil {
		return nil, fmt.Errorf("check slot: %w", err)
	}
	if booked {
		return nil, domain.Conflict("Slot is already booked")
	}

	created, err := s.events.BookEvent(ctx, ev, event.Booking{
		UserID:        req.UserID,
		PaymentStatus: event.PaymentCompleted,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.Conflict("Slot is already booked")
		}
		return nil, fmt.Errorf("book event: %w", err)
	}

	slog.InfoContext(ctx, "event booked", "event_id", created.ID, "user_id", req.UserID, "date", created.Date, "venue", created.Venue)
	s.hub.BroadcastEvent(ctx, broadcast.EventSlotBooked, created.Slot())

	if email := strings.TrimSpace(req.Email); email != "" && s.jobs != nil {
		to := mail.Recipients{{Email: email, FullName: req.FullName}}
		if _, err := s.jobs.EnqueueEventMail(ctx, job.KindEventConfirmation, to, created); err != nil {
			slog.WarnContext(ctx, "queue booking confirmation failed", "event_id", created.ID, "error", err)
		}
	}
	return created, nil
}

// CancelEvent cancels a booked event and queues the cancellation mail to
// everyone holding a booking for it. The returned job is nil when nobody
// needs to be told.
func (s *BookingService) CancelEvent(ctx context.Context, id string) (*job.Job, error) {
	ev, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.Status == event.StatusCancelled {
		return nil, domain.Conflict("Event is already cancelled")
	}
	if err := s.events.CancelEvent(ctx, id); err != nil {
		return nil, fmt.Errorf("cancel event: %w", err)
	}
	ev.Status = event.StatusCancelled
	slog.InfoContext(ctx, "event cancelled", "event_id", id)

	return s.notifyHolders(ctx, job.KindEventCancellation, ev)
}

// RemindUpcoming queues reminder mail for every event booked on date and
// returns the number of jobs queued. A failure for one event does not stop
// the others.
func (s *BookingService) RemindUpcoming(ctx context.Context, date string) (int, error) {
	evs, err := s.events.FindBooked(ctx, date, 0)
	if err != nil {
		return 0, fmt.Errorf("find events on %s: %w", date, err)
	}
	queued := 0
	var errs []error
	for i := range evs {
		j, err := s.notifyHolders(ctx, job.KindEventReminder, &evs[i])
		if err != nil {
			errs = append(errs, fmt.Errorf("remind event %s: %w", evs[i].ID, err))
			continue
		}
		if j != nil {
			queued++
		}
	}
	return queued, errors.Join(errs...)
}

func (s *BookingService) notifyHolders(ctx context.Context, kind job.Kind, ev *event.Event) (*job.Job, error) {
	if s.jobs == nil {
		return nil, nil
	}
	holders, err := s.events.Holders(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("list booking holders: %w", err)
	}
	to := make(mail.Recipients, 0, len(holders))
	for _, h := range holders {
		to = append(to, mail.Recipient{Email: h.Email, FullName: h.FullName})
	}
	if len(to) == 0 {
		slog.InfoContext(ctx, "no booking holders to notify", "event_id", ev.ID, "kind", kind)
		return nil, nil
	}
	return s.jobs.EnqueueEventMail(ctx, kind, to, ev)
}
