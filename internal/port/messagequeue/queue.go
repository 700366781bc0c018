// Package messagequeue defines the message queue port (interface).
package messagequeue

import (
	"context"
	"strings"
)

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
// Returning an error asks the broker to redeliver the message later.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	// Pending messages are processed; no new messages are accepted.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subjects used by Herald. Job subjects are SubjectJobs + "." + job kind.
// Dead letters live under SubjectDeadLetter so no job consumer sees them again.
const (
	SubjectJobs       = "mail.jobs"
	SubjectJobsAll    = "mail.jobs.>"
	SubjectDeadLetter = "mail.dlq"
	StreamSubjects    = "mail.>"
	DefaultStream     = "HERALD"
	DefaultConsumer   = "herald-workers"
)

// JobSubject returns the subject a job of the given kind is published on.
func JobSubject(kind string) string {
	return SubjectJobs + "." + kind
}

// DeadLetterSubject returns the subject a message from subject is parked on
// once its deliveries are exhausted.
func DeadLetterSubject(subject string) string {
	return SubjectDeadLetter + "." + subject
}

// IsDeadLetter reports whether subject is a dead-letter subject.
func IsDeadLetter(subject string) bool {
	return strings.HasPrefix(subject, SubjectDeadLetter+".")
}
