package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/Herald/internal/middleware"
	"github.com/Strob0t/Herald/internal/port/cache"
)

// RouteOptions configures the guards placed in front of the routes.
type RouteOptions struct {
	// APIKey, when set, is required on mail and job endpoints.
	APIKey string
	// APIKeySource, when non-nil, supplies the key per request and takes
	// precedence over APIKey.
	APIKeySource func() string
	// Idempotency stores replayable POST responses; nil disables replay.
	Idempotency cache.Cache
	// WebSocket serves GET /ws; nil leaves the route unmounted.
	WebSocket http.HandlerFunc
}

// MountRoutes registers all Herald routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, opts RouteOptions) {
	r.Get("/health", h.Health)
	r.Get("/api/health", h.Health)

	if opts.WebSocket != nil {
		r.Get("/ws", opts.WebSocket)
	}

	// Stripe signs its deliveries; no API key and no replay.
	if h.Payment != nil {
		r.Post("/api/webhooks/stripe", h.StripeWebhook)
	}

	// Login responses carry tokens and are never stored for replay.
	r.Post("/student-login", h.StudentLogin)
	r.Post("/faculty-login", h.FacultyLogin)

	r.Group(func(r chi.Router) {
		if opts.Idempotency != nil {
			r.Use(middleware.Idempotency(opts.Idempotency))
		}

		// Portal
		r.Get("/api/today-event", h.TodayEvent)
		r.Post("/api/check-slot", h.CheckSlot)
		r.Post("/api/create-event", h.CreateEvent)
		if h.Payment != nil {
			r.Post("/api/create-payment", h.CreatePayment)
		}

		r.Group(func(r chi.Router) {
			r.Use(apiKeyGuard(opts))

			// Event mail
			r.Post("/api/send-event-confirmation", h.SendEventConfirmation)
			r.Post("/api/send-event-update", h.SendEventUpdate)
			r.Post("/api/send-event-reminder", h.SendEventReminder)
			r.Post("/api/send-event-cancellation", h.SendEventCancellation)
			r.Get("/api/test-email", h.SendTestEmail)

			// Alerts
			r.Post("/api/send-alert-email", h.SendAlert)
			r.Post("/api/send-alert", h.SendAlert)
			r.Get("/api/test-alert-email", h.SendTestAlert)
			r.Post("/api/send-bulk-alerts", h.SendBulkAlerts)

			// Direct mail
			r.Post("/api/send-direct", h.SendDirect)
			r.Get("/api/direct-test", h.StartDirectTest)
			r.Get("/api/direct-test-status", h.DirectTestStatus)

			// Status and jobs
			r.Get("/api/email-status", h.EmailStatus)
			r.Get("/api/jobs", h.ListJobs)
			r.Get("/api/jobs/{id}", h.GetJob)

			r.Post("/api/events/{id}/cancel", h.CancelEvent)
		})
	})
}

func apiKeyGuard(opts RouteOptions) func(http.Handler) http.Handler {
	if opts.APIKeySource != nil {
		return middleware.APIKeyFunc(opts.APIKeySource)
	}
	return middleware.APIKey(opts.APIKey)
}
