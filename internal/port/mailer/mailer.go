// Package mailer defines the outbound email transport port.
package mailer

import (
	"context"

	"github.com/Strob0t/Herald/internal/domain/mail"
)

// Mailer delivers rendered messages.
type Mailer interface {
	// Name identifies the transport in logs ("smtp", "log").
	Name() string

	// Send delivers one message. The receipt carries the transport's message id.
	Send(ctx context.Context, msg mail.Message) (mail.Receipt, error)

	// Verify checks that the transport accepts our credentials.
	Verify(ctx context.Context) error
}
