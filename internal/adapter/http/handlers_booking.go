package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Strob0t/Herald/internal/domain"
	"github.com/Strob0t/Herald/internal/domain/event"
	"github.com/Strob0t/Herald/internal/domain/user"
	"github.com/Strob0t/Herald/internal/port/payment"
)

// maxWebhookBody matches the payload cap Stripe documents for webhooks.
const maxWebhookBody = 65536

// StudentLogin handles POST /student-login
func (h *Handlers) StudentLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, user.RoleStudent)
}

// FacultyLogin handles POST /faculty-login
func (h *Handlers) FacultyLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, user.RoleFaculty)
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request, role user.Role) {
	req, ok := readJSON[user.LoginRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	resp, err := h.Booking.Login(r.Context(), role, req)
	if err != nil {
		writeDomainError(w, err, user.ErrInvalidLogin)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// TodayEvent handles GET /api/today-event
func (h *Handlers) TodayEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.Booking.TodayEvent(r.Context())
	if err != nil {
		writeDomainError(w, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

type slotResponse struct {
	Status event.SlotStatus `json:"status"`
}

// CheckSlot handles POST /api/check-slot
func (h *Handlers) CheckSlot(w http.ResponseWriter, r *http.Request) {
	slot, ok := readJSON[event.Slot](w, r, h.bodyLimit())
	if !ok {
		return
	}
	status, err := h.Booking.CheckSlot(r.Context(), slot)
	if err != nil {
		writeDomainError(w, err, "slot not found")
		return
	}
	writeJSON(w, http.StatusOK, slotResponse{Status: status})
}

type createEventResponse struct {
	Message string       `json:"message"`
	Event   *event.Event `json:"event"`
}

// CreateEvent handles POST /api/create-event. A bearer token, when sent,
// decides the booking user; otherwise user_id comes from the body.
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[event.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	if token := bearerToken(r); token != "" {
		id, err := h.Booking.Authenticate(r.Context(), token)
		if err != nil {
			writeDomainError(w, err, "unauthorized")
			return
		}
		req.UserID = id.ID
		if req.Email == "" {
			req.Email = id.Email
			req.FullName = id.FullName
		}
	}

	ev, err := h.Booking.CreateEvent(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, createEventResponse{Message: "Event booked successfully", Event: ev})
}

type cancelEventResponse struct {
	Message string `json:"message"`
	JobID   string `json:"jobId,omitempty"`
}

// CancelEvent handles POST /api/events/{id}/cancel
func (h *Handlers) CancelEvent(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	j, err := h.Booking.CancelEvent(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "event not found")
		return
	}
	resp := cancelEventResponse{Message: "Event cancelled"}
	if j != nil {
		resp.JobID = j.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

type createPaymentRequest struct {
	Email string               `json:"email,omitempty"`
	Event *event.CreateRequest `json:"event,omitempty"`
}

// CreatePayment handles POST /api/create-payment. An empty body opens a
// plain checkout; an event in the body is booked once the payment lands.
func (h *Handlers) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if r.ContentLength != 0 {
		var ok bool
		if req, ok = readJSON[createPaymentRequest](w, r, h.bodyLimit()); !ok {
			return
		}
	}
	if req.Event != nil {
		if token := bearerToken(r); token != "" {
			id, err := h.Booking.Authenticate(r.Context(), token)
			if err != nil {
				writeDomainError(w, err, "unauthorized")
				return
			}
			req.Event.UserID = id.ID
		}
	}

	sess, err := h.Payment.CreateCheckout(r.Context(), payment.CheckoutRequest{
		CustomerEmail: req.Email,
		Pending:       req.Event,
	})
	if err != nil {
		writeDomainError(w, err, "checkout not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type webhookResponse struct {
	Received bool   `json:"received"`
	EventID  string `json:"eventId,omitempty"`
}

// StripeWebhook handles POST /api/webhooks/stripe
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	ev, err := h.Payment.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			slog.WarnContext(r.Context(), "stripe webhook rejected", "error", err)
		}
		writeDomainError(w, err, "webhook not found")
		return
	}
	resp := webhookResponse{Received: true}
	if ev != nil {
		resp.EventID = ev.ID
	}
	writeJSON(w, http.StatusOK, resp)
}
