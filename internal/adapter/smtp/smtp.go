// Package smtp implements the mailer port on top of gopkg.in/mail.v2.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	gomail "gopkg.in/mail.v2"

	"github.com/Strob0t/Herald/internal/config"
	domainmail "github.com/Strob0t/Herald/internal/domain/mail"
	"github.com/Strob0t/Herald/internal/port/mailer"
	"github.com/Strob0t/Herald/internal/resilience"
)

var _ mailer.Mailer = (*Mailer)(nil)

// dialer is the subset of *gomail.Dialer the mailer uses.
type dialer interface {
	Dial() (gomail.SendCloser, error)
	DialAndSend(m ...*gomail.Message) error
}

type route struct {
	addr string
	d    dialer
}

// Mailer sends messages through an SMTP relay. A fallback route (STARTTLS on
// another port) is tried once when the primary route cannot connect or
// authenticate.
type Mailer struct {
	from     string
	host     string
	primary  route
	fallback *route
	limiter  *rate.Limiter
	breaker  *resilience.Breaker
	now      func() time.Time
}

// New builds an SMTP mailer from configuration.
func New(cfg config.SMTP, b *resilience.Breaker) *Mailer {
	limit := rate.Inf
	if cfg.MaxPerSecond > 0 {
		limit = rate.Limit(cfg.MaxPerSecond)
	}
	m := &Mailer{
		from: cfg.From,
		host: cfg.Host,
		primary: route{
			addr: net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
			d:    newDialer(cfg.Host, cfg.Port, cfg, cfg.TLSMode == "ssl"),
		},
		limiter: rate.NewLimiter(limit, max(cfg.Burst, 1)),
		breaker: b,
		now:     time.Now,
	}
	if cfg.FallbackPort > 0 && cfg.FallbackPort != cfg.Port {
		m.fallback = &route{
			addr: net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.FallbackPort)),
			d:    newDialer(cfg.Host, cfg.FallbackPort, cfg, false),
		}
	}
	return m
}

func newDialer(host string, port int, cfg config.SMTP, ssl bool) *gomail.Dialer {
	d := gomail.NewDialer(host, port, cfg.Username, cfg.Password)
	d.SSL = ssl
	d.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	if !ssl {
		d.StartTLSPolicy = gomail.MandatoryStartTLS
	}
	if cfg.Timeout > 0 {
		d.Timeout = cfg.Timeout
	}
	return d
}

// Name implements mailer.Mailer.
func (m *Mailer) Name() string { return "smtp" }

// Send delivers msg, waiting for the outbound rate limiter first.
func (m *Mailer) Send(ctx context.Context, msg domainmail.Message) (domainmail.Receipt, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return domainmail.Receipt{}, fmt.Errorf("smtp throttle: %w", err)
	}

	from := msg.From
	if from == "" {
		from = m.from
	}
	id := m.messageID(from)
	gm, err := buildMessage(msg, from, id)
	if err != nil {
		return domainmail.Receipt{}, err
	}

	var used string
	err = m.breaker.Execute(func() error {
		var sendErr error
		used, sendErr = m.deliver(gm)
		return sendErr
	})
	if err != nil {
		return domainmail.Receipt{}, err
	}

	return domainmail.Receipt{
		MessageID: id,
		Response:  "250 accepted by " + used,
		Recipient: msg.To,
		SentAt:    m.now().UTC(),
	}, nil
}

// deliver sends on the primary route and, for transport-level failures, once
// on the fallback route. Rejections of the message itself are permanent.
func (m *Mailer) deliver(gm *gomail.Message) (string, error) {
	err := m.primary.d.DialAndSend(gm)
	if err == nil {
		return m.primary.addr, nil
	}
	if isMessageRejection(err) {
		return "", resilience.Permanent(fmt.Errorf("smtp send: %w", err))
	}
	if m.fallback == nil {
		return "", fmt.Errorf("smtp send via %s: %w", m.primary.addr, err)
	}

	slog.Warn("smtp primary route failed, trying fallback",
		"primary", m.primary.addr, "fallback", m.fallback.addr, "error", err)
	if ferr := m.fallback.d.DialAndSend(gm); ferr != nil {
		if isMessageRejection(ferr) {
			return "", resilience.Permanent(fmt.Errorf("smtp send: %w", ferr))
		}
		return "", fmt.Errorf("smtp send via %s: %w (fallback %s: %w)", m.primary.addr, err, m.fallback.addr, ferr)
	}
	return m.fallback.addr, nil
}

// Verify dials and authenticates against the primary route, then the fallback.
// The returned error is classified for operators.
func (m *Mailer) Verify(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := verifyRoute(m.primary)
	if err == nil {
		return nil
	}
	if m.fallback != nil {
		if ferr := verifyRoute(*m.fallback); ferr == nil {
			slog.Warn("smtp primary route unavailable, fallback verified", "primary", m.primary.addr, "error", err)
			return nil
		}
	}
	return err
}

func verifyRoute(r route) error {
	s, err := r.d.Dial()
	if err != nil {
		return &VerifyError{Kind: Classify(err), Addr: r.addr, Err: err}
	}
	return s.Close()
}

func (m *Mailer) messageID(from string) string {
	host := m.host
	if addr, err := mail.ParseAddress(from); err == nil {
		if at := strings.LastIndexByte(addr.Address, '@'); at >= 0 {
			host = addr.Address[at+1:]
		}
	}
	return "<" + uuid.NewString() + "@" + host + ">"
}

func buildMessage(msg domainmail.Message, from, id string) (*gomail.Message, error) {
	if msg.To == "" {
		return nil, errors.New("smtp: message has no recipient")
	}
	gm := gomail.NewMessage()
	gm.SetHeader("From", from)
	gm.SetHeader("To", msg.To)
	if len(msg.Bcc) > 0 {
		gm.SetHeader("Bcc", msg.Bcc...)
	}
	gm.SetHeader("Subject", msg.Subject)
	gm.SetHeader("Message-ID", id)
	gm.SetDateHeader("Date", time.Now())
	for k, v := range msg.PriorityHeaders() {
		gm.SetHeader(k, v)
	}
	for k, v := range msg.Headers {
		gm.SetHeader(k, v)
	}

	switch {
	case msg.Text != "" && msg.HTML != "":
		gm.SetBody("text/plain", msg.Text)
		gm.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		gm.SetBody("text/html", msg.HTML)
	default:
		gm.SetBody("text/plain", msg.Text)
	}
	return gm, nil
}

// isMessageRejection reports a 5xx reply to the message itself (after
// authentication succeeded), such as an unknown mailbox.
func isMessageRejection(err error) bool {
	var se *gomail.SendError
	if !errors.As(err, &se) {
		return false
	}
	var tp *textproto.Error
	return errors.As(se.Cause, &tp) && tp.Code >= 500 && !isAuthCode(tp.Code)
}

func isAuthCode(code int) bool {
	return code == 530 || code == 534 || code == 535
}
