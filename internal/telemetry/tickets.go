package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jirabot/jirabot/internal/tickets"
)

const backendScopeName = "github.com/jirabot/jirabot/backend"

// InstrumentedService wraps tickets.Service with OTel tracing and metrics.
// Every call gets a span and its latency is recorded in
// jirabot.backend.duration. Use WrapService to create one; it returns the
// original service unchanged when telemetry is disabled.
type InstrumentedService struct {
	inner  tickets.Service
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapService returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is.
func WrapService(s tickets.Service) tickets.Service {
	if !Enabled() {
		return s
	}
	return newInstrumentedService(s, Meter(backendScopeName), Tracer(backendScopeName))
}

func newInstrumentedService(s tickets.Service, m metric.Meter, t trace.Tracer) *InstrumentedService {
	ops, _ := m.Int64Counter("jirabot.backend.operations",
		metric.WithDescription("Total ticket backend calls"),
	)
	dur, _ := m.Float64Histogram("jirabot.backend.duration",
		metric.WithDescription("Ticket backend call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("jirabot.backend.errors",
		metric.WithDescription("Ticket backend calls that returned an error"),
	)
	return &InstrumentedService{inner: s, tracer: t, ops: ops, dur: dur, errs: errs}
}

func (s *InstrumentedService) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("jirabot.backend.op", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "backend."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

func (s *InstrumentedService) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (s *InstrumentedService) CreateTicket(ctx context.Context, req tickets.CreateRequest) (*tickets.CreationResult, error) {
	attrs := []attribute.KeyValue{attribute.String("jirabot.issue.type", req.IssueType)}
	ctx, span, t := s.op(ctx, "CreateTicket", attrs...)
	res, err := s.inner.CreateTicket(ctx, req)
	if err == nil && res != nil {
		span.SetAttributes(
			attribute.Bool("jirabot.success", res.Success),
			attribute.String("jirabot.ticket.id", res.TicketID),
		)
	}
	s.done(ctx, span, t, err, attrs...)
	return res, err
}

func (s *InstrumentedService) QueryTicket(ctx context.Context, idOrQuery string) (*tickets.QueryResult, error) {
	ctx, span, t := s.op(ctx, "QueryTicket", attribute.String("jirabot.query", idOrQuery))
	res, err := s.inner.QueryTicket(ctx, idOrQuery)
	if err == nil && res != nil {
		span.SetAttributes(attribute.Bool("jirabot.success", res.Success))
		if res.Data != nil && res.Data.IsList() {
			span.SetAttributes(attribute.Int("jirabot.result.count", len(res.Data.Records())))
		}
	}
	s.done(ctx, span, t, err)
	return res, err
}
