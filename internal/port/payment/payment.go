// Package payment defines the port for the hosted payment processor.
package payment

import (
	"context"

	"github.com/Strob0t/Herald/internal/domain/event"
)

// Session is a hosted checkout page the browser is redirected to.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// CheckoutRequest optionally carries the booking to create once paid.
type CheckoutRequest struct {
	CustomerEmail string
	Pending       *event.CreateRequest
}

// Completion is a verified, paid checkout.
type Completion struct {
	SessionID string
	Pending   *event.CreateRequest
}

// Processor creates checkout sessions and verifies webhook deliveries.
type Processor interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Session, error)

	// ParseWebhook verifies the signature and returns the completion for
	// checkout.session.completed events, or nil for other event types.
	ParseWebhook(payload []byte, signature string) (*Completion, error)
}
