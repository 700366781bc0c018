package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/Herald/internal/adapter/otel"
	"github.com/Strob0t/Herald/internal/domain"
	"github.com/Strob0t/Herald/internal/domain/alert"
	"github.com/Strob0t/Herald/internal/domain/event"
	"github.com/Strob0t/Herald/internal/domain/mail"
	"github.com/Strob0t/Herald/internal/port/mailer"
	"github.com/Strob0t/Herald/internal/templates"
)

// Mail kinds used for metrics and span attributes.
const (
	kindEventPrefix = "event."
	kindAlert       = "alert"
	kindTest        = "test"
	kindDirect      = "direct"
	kindDirectTest  = "direct.test"
)

// MailConfig holds the sender identities and limits of the MailService.
type MailConfig struct {
	EventFrom      string // From header for event and test mail
	AlertFrom      string // From header for alerts and direct mail
	TestRecipient  string
	SMTPUser       string
	ExtraTestBCC   []string
	MaxConcurrency int
}

// MailService renders and sends every kind of notification mail and tracks
// the delivery status of each send.
type MailService struct {
	mailer  mailer.Mailer
	tmpl    *templates.Renderer
	status  *StatusStore
	cfg     MailConfig
	metrics *otel.Metrics
	mirror  *NotificationService
	now     func() time.Time

	// background direct tests
	wg sync.WaitGroup
}

// NewMailService creates a MailService.
func NewMailService(m mailer.Mailer, tmpl *templates.Renderer, status *StatusStore, cfg MailConfig) *MailService {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if cfg.AlertFrom == "" {
		cfg.AlertFrom = cfg.EventFrom
	}
	return &MailService{mailer: m, tmpl: tmpl, status: status, cfg: cfg, now: time.Now}
}

// SetMetrics enables OpenTelemetry metrics.
func (s *MailService) SetMetrics(m *otel.Metrics) { s.metrics = m }

// SetAlertMirror enables mirroring of alerts to chat notifiers.
func (s *MailService) SetAlertMirror(n *NotificationService) { s.mirror = n }

// Transport returns the underlying mailer.
func (s *MailService) Transport() mailer.Mailer { return s.mailer }

// SendEventConfirmation sends the booking confirmation for ev to one recipient.
func (s *MailService) SendEventConfirmation(ctx context.Context, to mail.Recipient, ev *event.Event) (mail.Receipt, error) {
	return s.sendSingleEvent(ctx, templates.EventConfirmation, to, ev)
}

// SendEventUpdate sends the changed details of ev to one recipient.
func (s *MailService) SendEventUpdate(ctx context.Context, to mail.Recipient, ev *event.Event) (mail.Receipt, error) {
	return s.sendSingleEvent(ctx, templates.EventUpdate, to, ev)
}

// SendEventReminder sends a reminder for ev to every recipient.
func (s *MailService) SendEventReminder(ctx context.Context, to mail.Recipients, ev *event.Event) (mail.BulkResult, error) {
	return s.sendEventBatch(ctx, templates.EventReminder, to, ev)
}

// SendEventCancellation tells every recipient that ev was cancelled.
func (s *MailService) SendEventCancellation(ctx context.Context, to mail.Recipients, ev *event.Event) (mail.BulkResult, error) {
	return s.sendEventBatch(ctx, templates.EventCancellation, to, ev)
}

func (s *MailService) sendSingleEvent(ctx context.Context, kind templates.EventKind, to mail.Recipient, ev *event.Event) (mail.Receipt, error) {
	if strings.TrimSpace(to.Email) == "" {
		return mail.Receipt{}, domain.Invalid("Recipient email is required")
	}
	if ev == nil {
		return mail.Receipt{}, domain.Invalid("Event data is required")
	}
	return s.SendEventMail(ctx, kind, to, ev)
}

func (s *MailService) sendEventBatch(ctx context.Context, kind templates.EventKind, to mail.Recipients, ev *event.Event) (mail.BulkResult, error) {
	if to == nil {
		return mail.BulkResult{}, domain.Invalid("Recipients are required")
	}
	if len(to) == 0 || strings.TrimSpace(to[0].Email) == "" {
		return mail.BulkResult{}, domain.Invalid("At least one valid recipient email is required")
	}
	if ev == nil {
		return mail.BulkResult{}, domain.Invalid("Event data is required")
	}
	return s.FanOut(ctx, to, func(ctx context.Context, r mail.Recipient) (mail.Receipt, error) {
		return s.SendEventMail(ctx, kind, r, ev)
	}), nil
}

// SendEventMail renders and sends one event notification without request
// validation. Used by the job worker.
func (s *MailService) SendEventMail(ctx context.Context, kind templates.EventKind, to mail.Recipient, ev *event.Event) (mail.Receipt, error) {
	out, err := s.tmpl.Event(kind, to, *ev)
	if err != nil {
		return mail.Receipt{}, err
	}
	return s.deliver(ctx, kindEventPrefix+string(kind), mail.Message{
		From:    s.cfg.EventFrom,
		To:      to.Email,
		Subject: out.Subject,
		HTML:    out.HTML,
		Text:    out.Text,
	})
}

// FanOut calls send for every recipient with bounded concurrency and
// collects the outcomes in recipient order. Recipients without an address
// are recorded as failed; a failure never aborts the batch.
func (s *MailService) FanOut(ctx context.Context, to []mail.Recipient, send func(context.Context, mail.Recipient) (mail.Receipt, error)) mail.BulkResult {
	type outcome struct {
		receipt mail.Receipt
		err     error
	}
	outcomes := make([]outcome, len(to))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, r := range to {
		if strings.TrimSpace(r.Email) == "" {
			outcomes[i].err = errMissingEmail
			continue
		}
		g.Go(func() error {
			outcomes[i].receipt, outcomes[i].err = send(gctx, r)
			return nil
		})
	}
	_ = g.Wait()

	res := mail.NewBulkResult()
	for i, o := range outcomes {
		if o.err != nil {
			email := to[i].Email
			if strings.TrimSpace(email) == "" {
				email = mail.UnknownEmail
			}
			res.Failed = append(res.Failed, mail.Failure{Email: email, Error: o.err.Error()})
			continue
		}
		res.Success = append(res.Success, mail.Delivered{Email: to[i].Email, MessageID: o.receipt.MessageID})
	}
	return res
}

// SendTestEmail sends the transport check mail. An empty to falls back to
// the configured test recipient, then to the SMTP user. Additional test
// recipients other than the primary are blind copied.
func (s *MailService) SendTestEmail(ctx context.Context, to string) (mail.Receipt, error) {
	primary := firstNonEmpty(to, s.cfg.TestRecipient, s.cfg.SMTPUser)
	if primary == "" {
		return mail.Receipt{}, domain.Invalid("No test recipient configured")
	}
	var bcc []string
	for _, addr := range s.cfg.ExtraTestBCC {
		if a := strings.TrimSpace(addr); a != "" && !strings.EqualFold(a, primary) {
			bcc = append(bcc, a)
		}
	}

	out, err := s.tmpl.TestEmail(s.now())
	if err != nil {
		return mail.Receipt{}, err
	}
	return s.deliver(ctx, kindTest, mail.Message{
		From:    s.cfg.EventFrom,
		To:      primary,
		Bcc:     bcc,
		Subject: out.Subject,
		HTML:    out.HTML,
		Text:    out.Text,
	})
}

// SendAlert sends a disaster alert to one recipient and mirrors it to chat.
func (s *MailService) SendAlert(ctx context.Context, to mail.Recipient, a *alert.Alert) (mail.Receipt, error) {
	if strings.TrimSpace(to.Email) == "" {
		return mail.Receipt{}, domain.Invalid("Recipient email is required")
	}
	if a == nil {
		return mail.Receipt{}, domain.Invalid("Alert data is required")
	}
	rcpt, err := s.SendAlertMail(ctx, to, a, "")
	if err != nil {
		return rcpt, err
	}
	s.mirror.MirrorAlert(ctx, a, 1)
	return rcpt, nil
}

// SendAlertMail renders and sends one alert without validation or
// mirroring. subject overrides the alert's default subject when set.
func (s *MailService) SendAlertMail(ctx context.Context, to mail.Recipient, a *alert.Alert, subject string) (mail.Receipt, error) {
	out, err := s.tmpl.Alert(to, *a, subject, s.now())
	if err != nil {
		return mail.Receipt{}, err
	}
	return s.deliver(ctx, kindAlert, mail.Message{
		From:     s.cfg.AlertFrom,
		To:       to.Email,
		Subject:  out.Subject,
		HTML:     out.HTML,
		Text:     out.Text,
		Priority: mail.PriorityHigh,
	})
}

// SendTestAlert sends a generated low-severity alert to to (or the
// configured test recipient).
func (s *MailService) SendTestAlert(ctx context.Context, to string) (mail.Receipt, *alert.Alert, error) {
	addr := firstNonEmpty(to, s.cfg.TestRecipient, s.cfg.SMTPUser)
	if addr == "" {
		return mail.Receipt{}, nil, domain.Invalid("Email parameter is required")
	}
	a := alert.NewTest(s.now())
	rcpt, err := s.SendAlertMail(ctx, mail.Recipient{Email: addr}, &a, "Test Alert for "+a.Area())
	return rcpt, &a, err
}

// DirectRequest is a caller-composed message.
type DirectRequest struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// SendDirect sends a caller-composed HTML message.
func (s *MailService) SendDirect(ctx context.Context, req DirectRequest) (mail.Receipt, error) {
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.HTML) == "" {
		return mail.Receipt{}, domain.Invalid("Missing required fields")
	}
	from := req.From
	if from == "" {
		from = s.cfg.AlertFrom
	}
	return s.deliver(ctx, kindDirect, mail.Message{
		From:    from,
		To:      strings.TrimSpace(req.To),
		Subject: req.Subject,
		HTML:    req.HTML,
	})
}

// StartDirectTest records a sending status for to and sends the direct test
// mail in the background. Poll DirectTestStatus for the outcome.
func (s *MailService) StartDirectTest(ctx context.Context, to string) (*mail.Status, error) {
	addr := strings.TrimSpace(to)
	if addr == "" {
		return nil, domain.Invalid("Email parameter is required")
	}
	out, err := s.tmpl.DirectTest(addr, s.now())
	if err != nil {
		return nil, err
	}
	msg := mail.Message{
		From:    s.cfg.AlertFrom,
		To:      addr,
		Subject: out.Subject,
		HTML:    out.HTML,
		Text:    out.Text,
	}
	st := mail.Status{Recipient: addr, Status: mail.StateSending, Subject: msg.Subject, SentAt: s.now().UTC()}
	if err := s.status.Record(ctx, st); err != nil {
		return nil, err
	}

	// Detached from the request so the send outlives the HTTP response.
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.deliver(bg, kindDirectTest, msg); err != nil {
			slog.WarnContext(bg, "direct test failed", "recipient", addr, "error", err)
		}
	}()
	return &st, nil
}

// DirectTestStatus returns the last recorded status for addr.
func (s *MailService) DirectTestStatus(ctx context.Context, addr string) (*mail.Status, error) {
	return s.status.Get(ctx, addr)
}

// Status returns the last recorded status for addr.
func (s *MailService) Status(ctx context.Context, addr string) (*mail.Status, error) {
	return s.status.Get(ctx, addr)
}

// Wait blocks until background direct tests have finished.
func (s *MailService) Wait() { s.wg.Wait() }

// deliver sends msg, tracing and timing the send and recording the
// recipient's delivery status before and after.
func (s *MailService) deliver(ctx context.Context, kind string, msg mail.Message) (mail.Receipt, error) {
	ctx, span := otel.StartSendSpan(ctx, kind, s.mailer.Name())
	start := s.now()

	s.track(ctx, mail.Status{Recipient: msg.To, Status: mail.StateSending, Subject: msg.Subject, SentAt: start.UTC()})

	rcpt, err := s.mailer.Send(ctx, msg)
	s.metrics.RecordSend(ctx, kind, s.now().Sub(start), err)
	otel.EndSpan(span, err)

	if err != nil {
		s.track(ctx, mail.Status{Recipient: msg.To, Status: mail.StateFailed, Subject: msg.Subject, Error: err.Error(), SentAt: start.UTC()})
		slog.ErrorContext(ctx, "mail send failed", "kind", kind, "recipient", msg.To, "error", err)
		return mail.Receipt{}, fmt.Errorf("send %s mail: %w", kind, err)
	}

	s.track(ctx, mail.Status{
		Recipient: msg.To,
		Status:    mail.StateSent,
		Subject:   msg.Subject,
		MessageID: rcpt.MessageID,
		Response:  rcpt.Response,
		SentAt:    rcpt.SentAt,
	})
	slog.InfoContext(ctx, "mail sent", "kind", kind, "recipient", msg.To, "message_id", rcpt.MessageID)
	return rcpt, nil
}

func (s *MailService) track(ctx context.Context, st mail.Status) {
	if err := s.status.Record(ctx, st); err != nil {
		slog.WarnContext(ctx, "record mail status failed", "recipient", st.Recipient, "error", err)
	}
}

var errMissingEmail = domain.Invalid("Missing email address")

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
