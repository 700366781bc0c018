package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Strob0t/Herald/internal/domain"
	"github.com/Strob0t/Herald/internal/domain/event"
	"github.com/Strob0t/Herald/internal/port/payment"
)

// PaymentService creates checkout sessions and books events once paid.
type PaymentService struct {
	processor payment.Processor
	booking   *BookingService
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(p payment.Processor, booking *BookingService) *PaymentService {
	return &PaymentService{processor: p, booking: booking}
}

// CreateCheckout opens a hosted checkout session. A pending booking is
// validated up front and carried through the session metadata.
func (s *PaymentService) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	if req.Pending != nil {
		if err := req.Pending.Validate(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(req.Pending.UserID) == "" {
			return nil, domain.Invalid("user_id is required")
		}
	}
	sess, err := s.processor.CreateCheckout(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	slog.InfoContext(ctx, "checkout session created", "session_id", sess.ID, "pending_booking", req.Pending != nil)
	return sess, nil
}

// HandleWebhook verifies a processor webhook and, for a completed checkout
// carrying a pending booking, creates the event. It returns the created
// event or nil when there was nothing to book. A slot taken between
// checkout and payment is logged and acknowledged.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*event.Event, error) {
	c, err := s.processor.ParseWebhook(payload, signature)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}
	if c.Pending == nil {
		slog.InfoContext(ctx, "checkout completed without pending booking", "session_id", c.SessionID)
		return nil, nil
	}

	ev, err := s.booking.CreateEvent(ctx, *c.Pending)
	switch {
	case errors.Is(err, domain.ErrConflict):
		slog.WarnContext(ctx, "paid slot no longer available", "session_id", c.SessionID,
			"date", c.Pending.Date, "time", c.Pending.Time, "venue", c.Pending.Venue)
		return nil, nil
	case errors.Is(err, domain.ErrValidation):
		slog.ErrorContext(ctx, "paid booking is invalid", "session_id", c.SessionID, "error", err)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("book paid event: %w", err)
	}
	slog.InfoContext(ctx, "paid event booked", "session_id", c.SessionID, "event_id", ev.ID)
	return ev, nil
}
