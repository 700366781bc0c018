package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "herald"

// Metrics holds all Herald metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	EmailsSent    metric.Int64Counter
	EmailsFailed  metric.Int64Counter
	SendDuration  metric.Float64Histogram
	JobsProcessed metric.Int64Counter

	meter metric.Meter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return newMetrics(otel.Meter(meterName))
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{meter: meter}
	var err error

	m.EmailsSent, err = meter.Int64Counter("herald.emails.sent",
		metric.WithDescription("Number of emails accepted by the transport"))
	if err != nil {
		return nil, err
	}

	m.EmailsFailed, err = meter.Int64Counter("herald.emails.failed",
		metric.WithDescription("Number of emails the transport rejected or could not send"))
	if err != nil {
		return nil, err
	}

	m.SendDuration, err = meter.Float64Histogram("herald.email.send_duration_seconds",
		metric.WithDescription("Time spent handing one email to the transport"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.JobsProcessed, err = meter.Int64Counter("herald.jobs.processed",
		metric.WithDescription("Number of background jobs finished, by kind and status"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordSend records the outcome of one email send.
func (m *Metrics) RecordSend(ctx context.Context, kind string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("mail.kind", kind))
	m.SendDuration.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil {
		m.EmailsFailed.Add(ctx, 1, attrs)
		return
	}
	m.EmailsSent.Add(ctx, 1, attrs)
}

// RecordJob records a finished job.
func (m *Metrics) RecordJob(ctx context.Context, kind, status string) {
	if m == nil {
		return
	}
	m.JobsProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job.kind", kind),
		attribute.String("job.status", status),
	))
}

// ObserveLogDrops exports the running count of log records discarded by a
// full async log buffer as herald.log.dropped.
func (m *Metrics) ObserveLogDrops(dropped func() int64) error {
	if m == nil {
		return nil
	}
	_, err := m.meter.Int64ObservableCounter("herald.log.dropped",
		metric.WithDescription("Log records dropped because the async log buffer was full"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(dropped())
			return nil
		}))
	return err
}
