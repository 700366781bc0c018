// Package stripe implements the payment processor port with Stripe Checkout.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/Strob0t/Herald/internal/config"
	"github.com/Strob0t/Herald/internal/domain"
	"github.com/Strob0t/Herald/internal/domain/event"
	"github.com/Strob0t/Herald/internal/port/payment"
	"github.com/Strob0t/Herald/internal/resilience"
)

var _ payment.Processor = (*Processor)(nil)

const eventCheckoutCompleted = "checkout.session.completed"

// Metadata keys carrying a pending booking through the session.
const (
	metaName       = "name"
	metaDate       = "date"
	metaTime       = "time"
	metaVenue      = "venue"
	metaChiefGuest = "chief_guest"
	metaAudience   = "audience_limit"
	metaClub       = "club"
	metaUserID     = "user_id"
	metaEmail      = "email"
	metaFullName   = "fullname"
)

// Processor creates Checkout sessions and verifies webhook deliveries.
type Processor struct {
	api     *client.API
	cfg     config.Stripe
	breaker *resilience.Breaker
}

// New creates a Processor using the live Stripe API.
func New(cfg config.Stripe, b *resilience.Breaker) (*Processor, error) {
	return newProcessor(cfg, b, nil)
}

func newProcessor(cfg config.Stripe, b *resilience.Breaker, url *string) (*Processor, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	if cfg.PriceID == "" {
		return nil, errors.New("stripe: price id is required")
	}
	if b == nil {
		b = resilience.NewNamedBreaker("stripe", 5, 30*time.Second)
	}
	backendCfg := func() *stripe.BackendConfig {
		return &stripe.BackendConfig{
			URL:               url,
			LeveledLogger:     slogLogger{},
			MaxNetworkRetries: stripe.Int64(1),
		}
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg()),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg()),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg()),
	})
	return &Processor{api: api, cfg: cfg, breaker: b}, nil
}

// CreateCheckout opens a card payment session for one unit of the
// configured price.
func (p *Processor) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(p.cfg.PriceID),
			Quantity: stripe.Int64(1),
		}},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.cfg.SuccessURL),
		CancelURL:  stripe.String(p.cfg.CancelURL),
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range pendingMetadata(req.Pending) {
		params.AddMetadata(k, v)
	}

	var sess *stripe.CheckoutSession
	err := p.breaker.Execute(func() error {
		var err error
		sess, err = p.api.CheckoutSessions.New(params)
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500 && se.HTTPStatusCode != 429 {
			return resilience.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("stripe checkout: %w", err)
	}
	return &payment.Session{ID: sess.ID, URL: sess.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header and returns the
// completion of a paid checkout. Other event types yield nil.
func (p *Processor) ParseWebhook(payload []byte, signature string) (*payment.Completion, error) {
	if p.cfg.WebhookSecret == "" {
		return nil, domain.Invalid("webhook secret is not configured")
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		slog.Warn("stripe webhook rejected", "error", err)
		return nil, domain.Invalid("invalid webhook signature")
	}
	if string(ev.Type) != eventCheckoutCompleted {
		slog.Debug("stripe webhook ignored", "type", ev.Type, "id", ev.ID)
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
		return nil, domain.Invalidf("decode checkout session: %v", err)
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		slog.Info("checkout completed but not paid", "session_id", sess.ID, "payment_status", sess.PaymentStatus)
		return nil, nil
	}
	return &payment.Completion{SessionID: sess.ID, Pending: pendingFromMetadata(sess.Metadata)}, nil
}

func pendingMetadata(r *event.CreateRequest) map[string]string {
	if r == nil {
		return nil
	}
	m := map[string]string{
		metaName:       r.Name,
		metaDate:       r.Date,
		metaTime:       r.Time,
		metaVenue:      r.Venue,
		metaChiefGuest: r.ChiefGuest,
		metaClub:       r.Club,
		metaUserID:     r.UserID,
		metaEmail:      r.Email,
		metaFullName:   r.FullName,
	}
	if r.AudienceLimit > 0 {
		m[metaAudience] = strconv.Itoa(int(r.AudienceLimit))
	}
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	return m
}

func pendingFromMetadata(m map[string]string) *event.CreateRequest {
	if m[metaName] == "" || m[metaDate] == "" {
		return nil
	}
	r := &event.CreateRequest{
		Name:       m[metaName],
		Date:       m[metaDate],
		Time:       m[metaTime],
		Venue:      m[metaVenue],
		ChiefGuest: m[metaChiefGuest],
		Club:       m[metaClub],
		UserID:     m[metaUserID],
		Email:      m[metaEmail],
		FullName:   m[metaFullName],
	}
	if n, err := strconv.Atoi(m[metaAudience]); err == nil {
		r.AudienceLimit = event.Limit(n)
	}
	return r
}

// slogLogger routes stripe-go logging to slog.
type slogLogger struct{}

func (slogLogger) Debugf(format string, v ...any) { slog.Debug("stripe: " + fmt.Sprintf(format, v...)) }
func (slogLogger) Infof(format string, v ...any)  { slog.Debug("stripe: " + fmt.Sprintf(format, v...)) }
func (slogLogger) Warnf(format string, v ...any)  { slog.Warn("stripe: " + fmt.Sprintf(format, v...)) }
func (slogLogger) Errorf(format string, v ...any) { slog.Error("stripe: " + fmt.Sprintf(format, v...)) }
