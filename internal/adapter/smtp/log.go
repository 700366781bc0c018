package smtp

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/Herald/internal/domain/mail"
	"github.com/Strob0t/Herald/internal/port/mailer"
)

var _ mailer.Mailer = (*LogMailer)(nil)

// LogMailer writes messages to the log instead of sending them. Used when
// smtp.service is "log".
type LogMailer struct {
	from string
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(from string) *LogMailer {
	return &LogMailer{from: from}
}

// Name implements mailer.Mailer.
func (l *LogMailer) Name() string { return "log" }

// Send logs the message envelope and returns a synthetic receipt.
func (l *LogMailer) Send(ctx context.Context, msg mail.Message) (mail.Receipt, error) {
	from := msg.From
	if from == "" {
		from = l.from
	}
	id := "<" + uuid.NewString() + "@herald.local>"
	slog.InfoContext(ctx, "mail (log transport)",
		"message_id", id,
		"from", from,
		"to", msg.To,
		"bcc", len(msg.Bcc),
		"subject", msg.Subject,
		"html_bytes", len(msg.HTML),
	)
	return mail.Receipt{
		MessageID: id,
		Response:  "250 logged",
		Recipient: msg.To,
		SentAt:    time.Now().UTC(),
	}, nil
}

// Verify always succeeds.
func (l *LogMailer) Verify(context.Context) error { return nil }
