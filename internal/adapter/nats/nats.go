// Package nats implements the message queue port using NATS JetStream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/Herald/internal/logger"
	"github.com/Strob0t/Herald/internal/port/messagequeue"
)

const headerRequestID = "X-Request-ID"

// Options tunes stream and consumer behaviour.
type Options struct {
	Stream     string
	Consumer   string        // durable name prefix; one durable per subscribed subject
	MaxDeliver int           // deliveries before a message is parked on mail.dlq.<subject>
	AckWait    time.Duration // redelivery delay for unacknowledged messages
}

func (o *Options) withDefaults() {
	if o.Stream == "" {
		o.Stream = messagequeue.DefaultStream
	}
	if o.Consumer == "" {
		o.Consumer = messagequeue.DefaultConsumer
	}
	if o.MaxDeliver <= 0 {
		o.MaxDeliver = 5
	}
	if o.AckWait <= 0 {
		o.AckWait = 30 * time.Second
	}
}

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc   *nats.Conn
	js   jetstream.JetStream
	opts Options
}

var _ messagequeue.Queue = (*Queue)(nil)

// Connect establishes a connection to NATS and ensures the JetStream stream exists.
func Connect(ctx context.Context, url string, opts Options) (*Queue, error) {
	opts.withDefaults()

	nc, err := nats.Connect(url,
		nats.Name("herald"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	// Ensure the stream exists with subjects matching our topic patterns.
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     opts.Stream,
		Subjects: []string{messagequeue.StreamSubjects},
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", opts.Stream)
	return &Queue{nc: nc, js: js, opts: opts}, nil
}

// Publish validates and sends a message to the given subject. The request ID
// in ctx travels as a message header.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := messagequeue.Validate(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	if reqID := logger.RequestID(ctx); reqID != "" {
		msg.Header.Set(headerRequestID, reqID)
	}

	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a durable consumer for subject. Handler errors NAK the
// message with a delay so JetStream redelivers it; once MaxDeliver is reached
// or the payload fails validation the message is copied to mail.dlq.<subject>
// and terminated.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, q.opts.Stream, jetstream.ConsumerConfig{
		Durable:       durableName(q.opts.Consumer, subject),
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       q.opts.AckWait,
		MaxDeliver:    q.opts.MaxDeliver,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		q.handle(msg, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

func (q *Queue) handle(msg jetstream.Msg, handler messagequeue.Handler) {
	ctx := context.Background()
	if reqID := msg.Headers().Get(headerRequestID); reqID != "" {
		ctx = logger.WithRequestID(ctx, reqID)
	}

	if err := messagequeue.Validate(msg.Subject(), msg.Data()); err != nil {
		slog.Error("invalid message", "subject", msg.Subject(), "error", err)
		q.deadLetter(ctx, msg, err)
		return
	}

	if err := handler(ctx, msg.Subject(), msg.Data()); err != nil {
		delivered := uint64(1)
		if meta, metaErr := msg.Metadata(); metaErr == nil {
			delivered = meta.NumDelivered
		}
		slog.Error("message handler failed", "subject", msg.Subject(), "delivery", delivered, "error", err)

		if delivered >= uint64(q.opts.MaxDeliver) {
			q.deadLetter(ctx, msg, err)
			return
		}
		if nakErr := msg.NakWithDelay(backoff(delivered)); nakErr != nil {
			slog.Error("nats nak failed", "error", nakErr)
		}
		return
	}
	if ackErr := msg.Ack(); ackErr != nil {
		slog.Error("nats ack failed", "error", ackErr)
	}
}

// deadLetter copies the message to mail.dlq.<subject> and terminates it.
// Messages that already are dead letters are only terminated.
func (q *Queue) deadLetter(ctx context.Context, msg jetstream.Msg, cause error) {
	if messagequeue.IsDeadLetter(msg.Subject()) {
		if err := msg.Term(); err != nil {
			slog.Error("nats term failed", "error", err)
		}
		return
	}
	dlq := nats.NewMsg(messagequeue.DeadLetterSubject(msg.Subject()))
	dlq.Data = msg.Data()
	dlq.Header.Set("X-Error", cause.Error())
	if reqID := logger.RequestID(ctx); reqID != "" {
		dlq.Header.Set(headerRequestID, reqID)
	}
	if _, err := q.js.PublishMsg(ctx, dlq); err != nil {
		slog.Error("nats dlq publish failed", "subject", dlq.Subject, "error", err)
	}
	if err := msg.Term(); err != nil {
		slog.Error("nats term failed", "error", err)
	}
}

// backoff grows the redelivery delay with each attempt, capped at one minute.
func backoff(delivered uint64) time.Duration {
	d := time.Duration(1<<min(delivered, 6)) * time.Second
	return min(d, time.Minute)
}

// durableName derives a consumer name that is valid for NATS (no dots or wildcards).
func durableName(prefix, subject string) string {
	out := []byte(prefix + "-")
	for i := 0; i < len(subject); i++ {
		switch c := subject[i]; c {
		case '.', '*', '>', ' ':
			out = append(out, '_')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// KeyValue returns the named KV bucket, creating it with the given TTL when
// missing.
func (q *Queue) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := q.js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("nats kv %s: %w", bucket, err)
	}
	kv, err = q.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("nats kv create %s: %w", bucket, err)
	}
	return kv, nil
}

// Drain gracefully drains all subscriptions before closing.
func (q *Queue) Drain() error {
	if err := q.nc.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc.IsConnected()
}
