package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jirabot/jirabot/internal/tickets"
)

type stubService struct {
	createErr error
}

func (s *stubService) CreateTicket(ctx context.Context, req tickets.CreateRequest) (*tickets.CreationResult, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &tickets.CreationResult{Success: true, TicketID: "JIRA-1000"}, nil
}

func (s *stubService) QueryTicket(ctx context.Context, q string) (*tickets.QueryResult, error) {
	return &tickets.QueryResult{Success: true, Data: tickets.RecordList([]tickets.Record{{ID: "JIRA-1"}, {ID: "JIRA-2"}})}, nil
}

func TestInitDisabledInstallsNoop(t *testing.T) {
	t.Setenv("JIRABOT_OTEL_ENABLED", "")
	require.NoError(t, Init(context.Background(), "jirabot", "test"))
	assert.False(t, Enabled())

	_, span := Tracer("").Start(context.Background(), "noop")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.False(t, span.IsRecording())
}

func TestInitStdout(t *testing.T) {
	t.Setenv("JIRABOT_OTEL_ENABLED", "true")
	t.Setenv("JIRABOT_OTEL_STDOUT", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	var buf strings.Builder
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })

	require.NoError(t, Init(context.Background(), "jirabot", "test"))
	_, span := Tracer("").Start(context.Background(), "dispatch")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	Shutdown(context.Background())

	assert.Contains(t, buf.String(), `"Name": "dispatch"`)
	assert.Empty(t, shutdownFns)
}

func TestWrapServiceDisabledReturnsInner(t *testing.T) {
	t.Setenv("JIRABOT_OTEL_ENABLED", "")
	inner := &stubService{}
	assert.Same(t, inner, WrapService(inner))
}

func TestInstrumentedServiceRecordsSpansAndMetrics(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	svc := newInstrumentedService(&stubService{createErr: errors.New("backend down")}, mp.Meter("test"), tp.Tracer("test"))

	_, err := svc.CreateTicket(context.Background(), tickets.CreateRequest{IssueType: "Task"})
	require.Error(t, err)
	res, err := svc.QueryTicket(context.Background(), "login")
	require.NoError(t, err)
	assert.Len(t, res.Data.Records(), 2)

	ended := spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "backend.CreateTicket", ended[0].Name())
	assert.Equal(t, "backend.QueryTicket", ended[1].Name())
	assert.NotEmpty(t, ended[0].Events(), "error should be recorded on the span")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["jirabot.backend.operations"])
	assert.True(t, names["jirabot.backend.duration"])
	assert.True(t, names["jirabot.backend.errors"])
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
