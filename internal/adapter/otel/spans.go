package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "herald"

// StartSendSpan starts a span for one email send.
func StartSendSpan(ctx context.Context, kind, transport string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "mail.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("mail.kind", kind),
			attribute.String("mail.transport", transport),
		),
	)
}

// StartJobSpan starts a span for a background job.
func StartJobSpan(ctx context.Context, jobID, kind string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "job.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.String("job.kind", kind),
		),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
