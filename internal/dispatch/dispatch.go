// Package dispatch turns inbound chat messages into ticket backend calls and
// replies.
//
// A Dispatcher is safe for concurrent use: the transport runs Handle in its
// own goroutine per message and the Dispatcher keeps no per-message state
// between calls. Replies for one message are sent in order (acknowledgement
// before result); replies for different messages may interleave.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jirabot/jirabot/internal/command"
	"github.com/jirabot/jirabot/internal/eventbus"
	"github.com/jirabot/jirabot/internal/format"
	"github.com/jirabot/jirabot/internal/telemetry"
	"github.com/jirabot/jirabot/internal/tickets"
)

const scopeName = "github.com/jirabot/jirabot/dispatch"

// Message is one inbound chat message.
type Message struct {
	Text      string
	SenderID  string
	IsFromBot bool

	// ChannelID and ThreadTS locate the conversation. The dispatcher only
	// copies them into events; the Replier already knows where to post.
	ChannelID string
	ThreadTS  string
}

// Replier sends one reply to the conversation a message came from.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

// ReplierFunc adapts a function to the Replier interface.
type ReplierFunc func(ctx context.Context, text string) error

func (f ReplierFunc) Reply(ctx context.Context, text string) error { return f(ctx, text) }

// stage names where in the pipeline a message is, for logs and spans.
type stage string

const (
	stageParsing    stage = "parsing"
	stageInvoking   stage = "invoking"
	stageFormatting stage = "formatting"
)

// Outcome labels recorded on the jirabot.messages counter.
const (
	outcomeIgnored  = "ignored"
	outcomeReplied  = "replied"
	outcomeSilent   = "silent"
	outcomeApology  = "apology"
	outcomeRejected = "usage"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBackendTimeout bounds every backend call. Zero means no limit.
func WithBackendTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.backendTimeout = d }
}

// WithProjectID sets the project passed along with every create request.
func WithProjectID(id string) Option {
	return func(dp *Dispatcher) { dp.projectID = id }
}

// WithClock overrides the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(dp *Dispatcher) { dp.now = now }
}

// Dispatcher runs the parse, invoke, format pipeline for each message.
type Dispatcher struct {
	svc    tickets.Service
	logger *slog.Logger
	events eventbus.Publisher

	backendTimeout time.Duration
	projectID      string
	now            func() time.Time

	tracer   trace.Tracer
	messages metric.Int64Counter
}

// New creates a Dispatcher. A nil logger uses slog.Default and a nil
// publisher discards events.
func New(svc tickets.Service, logger *slog.Logger, events eventbus.Publisher, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = eventbus.Nop{}
	}
	d := &Dispatcher{
		svc:    svc,
		logger: logger,
		events: events,
		now:    time.Now,
		tracer: telemetry.Tracer(scopeName),
	}
	d.messages, _ = telemetry.Meter(scopeName).Int64Counter("jirabot.messages",
		metric.WithDescription("Inbound chat messages handled, by command kind and outcome"),
	)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// run carries the bookkeeping for a single Handle call.
type run struct {
	msg     Message
	reply   Replier
	stage   stage
	kind    command.Kind
	outcome string
}

// Handle processes one message. Command handling failures never escape:
// they are logged and answered with an apology. The returned error is
// non-nil only when that apology could not be delivered.
func (d *Dispatcher) Handle(ctx context.Context, msg Message, reply Replier) error {
	if msg.IsFromBot {
		d.count(ctx, "", outcomeIgnored)
		return nil
	}

	r := &run{msg: msg, reply: reply, stage: stageParsing}
	ctx, span := d.tracer.Start(ctx, "jirabot.dispatch",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("jirabot.sender", msg.SenderID),
			attribute.String("jirabot.channel", msg.ChannelID),
		),
	)
	defer span.End()

	err := d.process(ctx, r)
	if err == nil {
		span.SetAttributes(
			attribute.String("jirabot.command", string(r.kind)),
			attribute.String("jirabot.outcome", r.outcome),
		)
		d.count(ctx, r.kind, r.outcome)
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.String("jirabot.command", string(r.kind)),
		attribute.String("jirabot.outcome", outcomeApology),
	)
	d.count(ctx, r.kind, outcomeApology)

	attrs := []any{
		"sender", msg.SenderID,
		"channel", msg.ChannelID,
		"command", string(r.kind),
		"stage", string(r.stage),
		"error", err,
	}
	var pe *panicError
	if errors.As(err, &pe) {
		attrs = append(attrs, "stack", string(pe.stack))
	}
	d.logger.ErrorContext(ctx, "message handling failed", attrs...)

	if aerr := d.apologize(ctx, r); aerr != nil {
		d.logger.ErrorContext(ctx, "apology not delivered",
			"sender", msg.SenderID, "channel", msg.ChannelID, "error", aerr)
		return fmt.Errorf("dispatch: send apology: %w", aerr)
	}
	return nil
}

// process runs the pipeline and converts panics into errors.
func (d *Dispatcher) process(ctx context.Context, r *run) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &panicError{value: v, stack: debug.Stack()}
		}
	}()

	cmd, perr := command.Parse(r.msg.Text)
	var parseErr *command.ParseError
	if errors.As(perr, &parseErr) {
		r.kind = parseErr.Command
		r.outcome = outcomeRejected
		d.logger.DebugContext(ctx, "rejected command",
			"sender", r.msg.SenderID, "command", string(parseErr.Command), "reason", parseErr.Reason)
		return d.send(ctx, r, format.Usage{Hint: parseErr.UsageHint})
	}
	if perr != nil {
		return fmt.Errorf("parse: %w", perr)
	}
	r.kind = cmd.Kind()

	switch c := cmd.(type) {
	case command.Ping:
		return d.send(ctx, r, format.Pong{})
	case command.Help:
		return d.send(ctx, r, format.HelpText{Lines: command.Usage()})
	case command.CreateTicket:
		return d.create(ctx, r, c)
	case command.GetTicket:
		return d.query(ctx, r, c)
	case command.Unrecognized:
		r.outcome = outcomeSilent
		return nil
	default:
		return fmt.Errorf("unhandled command %T", cmd)
	}
}

func (d *Dispatcher) create(ctx context.Context, r *run, c command.CreateTicket) error {
	if err := d.send(ctx, r, format.CreateAck{}); err != nil {
		return err
	}

	r.stage = stageInvoking
	bctx, cancel := d.backendContext(ctx)
	res, err := d.svc.CreateTicket(bctx, tickets.CreateRequest{
		Summary:     c.Summary,
		Description: c.Description,
		IssueType:   c.IssueType,
		ProjectID:   d.projectID,
		Reporter:    r.msg.SenderID,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	if err := tickets.ValidateCreation(res); err != nil {
		return err
	}
	if !res.Success {
		d.logger.InfoContext(ctx, "backend rejected create",
			"sender", r.msg.SenderID, "error", res.Error)
	}

	r.stage = stageFormatting
	if err := d.send(ctx, r, format.Created{Result: res}); err != nil {
		return err
	}

	if res.Success {
		d.publish(ctx, &eventbus.Event{
			Type:      eventbus.EventTicketCreated,
			TicketID:  res.TicketID,
			Summary:   c.Summary,
			IssueType: c.IssueType,
			SenderID:  r.msg.SenderID,
			ChannelID: r.msg.ChannelID,
			Timestamp: d.now().UTC(),
		})
	}
	return nil
}

func (d *Dispatcher) query(ctx context.Context, r *run, c command.GetTicket) error {
	if err := d.send(ctx, r, format.QueryAck{Query: c.Query}); err != nil {
		return err
	}

	r.stage = stageInvoking
	bctx, cancel := d.backendContext(ctx)
	res, err := d.svc.QueryTicket(bctx, c.Query)
	cancel()
	if err != nil {
		return fmt.Errorf("query ticket: %w", err)
	}
	if err := tickets.ValidateQuery(res); err != nil {
		return err
	}
	if !res.Success {
		d.logger.InfoContext(ctx, "backend rejected query",
			"sender", r.msg.SenderID, "query", c.Query, "error", res.Error)
	}

	r.stage = stageFormatting
	if err := d.send(ctx, r, format.Queried{Query: c.Query, Result: res}); err != nil {
		return err
	}

	if res.Success {
		ev := &eventbus.Event{
			Type:      eventbus.EventTicketQueried,
			Query:     c.Query,
			SenderID:  r.msg.SenderID,
			ChannelID: r.msg.ChannelID,
			Timestamp: d.now().UTC(),
		}
		switch {
		case res.Data.IsList():
			ev.Results = len(res.Data.Records())
		case res.Data != nil:
			ev.TicketID = res.Data.Record().ID
			ev.Results = 1
		}
		d.publish(ctx, ev)
	}
	return nil
}

// send formats outcome and delivers each reply in order.
func (d *Dispatcher) send(ctx context.Context, r *run, outcome format.Outcome) error {
	replies, err := format.Format(r.msg.SenderID, outcome)
	if err != nil {
		return err
	}
	for _, text := range replies {
		if err := r.reply.Reply(ctx, text); err != nil {
			return fmt.Errorf("send reply: %w", err)
		}
	}
	if r.outcome == "" {
		r.outcome = outcomeReplied
	}
	return nil
}

// apologize sends the generic failure reply. A panicking Replier is reported
// as an error rather than propagated.
func (d *Dispatcher) apologize(ctx context.Context, r *run) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &panicError{value: v, stack: debug.Stack()}
		}
	}()
	replies, err := format.Format(r.msg.SenderID, format.Apology{})
	if err != nil {
		return err
	}
	return r.reply.Reply(ctx, strings.Join(replies, "\n"))
}

func (d *Dispatcher) publish(ctx context.Context, ev *eventbus.Event) {
	if err := d.events.Publish(ctx, ev); err != nil {
		d.logger.WarnContext(ctx, "publish ticket event",
			"type", string(ev.Type), "sender", ev.SenderID, "error", err)
	}
}

func (d *Dispatcher) backendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.backendTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.backendTimeout)
}

func (d *Dispatcher) count(ctx context.Context, kind command.Kind, outcome string) {
	if d.messages == nil {
		return
	}
	d.messages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", string(kind)),
		attribute.String("outcome", outcome),
	))
}

// panicError is a recovered panic from somewhere in the pipeline.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
