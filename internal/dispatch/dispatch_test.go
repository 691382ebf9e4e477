package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jirabot/jirabot/internal/eventbus"
	"github.com/jirabot/jirabot/internal/idgen"
	"github.com/jirabot/jirabot/internal/tickets"
)

const sender = "U123"

// recorder collects replies in order.
type recorder struct {
	mu      sync.Mutex
	replies []string
	failOn  int // 1-based reply number that fails; 0 never fails
}

func (r *recorder) Reply(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn > 0 && len(r.replies)+1 == r.failOn {
		r.failOn = 0
		return errors.New("chat API unavailable")
	}
	r.replies = append(r.replies, text)
	return nil
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.replies...)
}

// fakeService lets each test script the backend.
type fakeService struct {
	creates atomic.Int32
	queries atomic.Int32

	create func(ctx context.Context, req tickets.CreateRequest) (*tickets.CreationResult, error)
	query  func(ctx context.Context, q string) (*tickets.QueryResult, error)
}

func (f *fakeService) CreateTicket(ctx context.Context, req tickets.CreateRequest) (*tickets.CreationResult, error) {
	f.creates.Add(1)
	return f.create(ctx, req)
}

func (f *fakeService) QueryTicket(ctx context.Context, q string) (*tickets.QueryResult, error) {
	f.queries.Add(1)
	return f.query(ctx, q)
}

// eventRecorder is an eventbus.Publisher that keeps events in memory.
type eventRecorder struct {
	mu     sync.Mutex
	events []*eventbus.Event
	err    error
}

func (e *eventRecorder) Publish(ctx context.Context, ev *eventbus.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return e.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newMockDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *tickets.MockService, *eventRecorder) {
	t.Helper()
	svc := tickets.NewMockService(idgen.NewSequence(idgen.DefaultPrefix, 1234))
	events := &eventRecorder{}
	return New(svc, quietLogger(), events, opts...), svc, events
}

func handle(t *testing.T, d *Dispatcher, text string) []string {
	t.Helper()
	rec := &recorder{}
	require.NoError(t, d.Handle(context.Background(), Message{Text: text, SenderID: sender, ChannelID: "C1"}, rec))
	return rec.all()
}

func TestCreateTicketScenario(t *testing.T) {
	stamp := time.Date(2026, 3, 14, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	d, svc, events := newMockDispatcher(t, WithProjectID("OPS"), WithClock(func() time.Time { return stamp }))

	replies := handle(t, d, "jira create Fix login bug; Users cannot log in on mobile")

	require.Len(t, replies, 2)
	assert.Equal(t, "<@U123>: Processing your request to create a Jira ticket... :hourglass_flowing_sand:", replies[0])
	assert.Regexp(t, regexp.MustCompile(`Ticket ID: JIRA-\d{4}\n`), replies[1])
	assert.Contains(t, replies[1], "<@U123>: :white_check_mark: Successfully created ticket JIRA-1234.")
	assert.Contains(t, replies[1], `"summary": "Fix login bug"`)
	assert.Contains(t, replies[1], `"description": "Users cannot log in on mobile"`)
	assert.Contains(t, replies[1], `"issueType": "Task"`)
	assert.Contains(t, replies[1], `"projectId": "OPS"`)
	assert.Contains(t, replies[1], `"status": "Open"`)
	assert.Equal(t, 1, svc.Len())

	require.Len(t, events.events, 1)
	ev := events.events[0]
	assert.Equal(t, eventbus.EventTicketCreated, ev.Type)
	assert.Equal(t, "JIRA-1234", ev.TicketID)
	assert.Equal(t, sender, ev.SenderID)
	assert.Equal(t, "C1", ev.ChannelID)
	assert.Equal(t, stamp.UTC(), ev.Timestamp)
}

func TestCreateTicketIdenticalInputMintsNewIDs(t *testing.T) {
	d, svc, _ := newMockDispatcher(t)

	first := handle(t, d, "jira create A; B")
	second := handle(t, d, "jira create A; B")

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Contains(t, first[1], "Ticket ID: JIRA-1234")
	assert.Contains(t, second[1], "Ticket ID: JIRA-1235")
	assert.Equal(t, 2, svc.Len())
}

func TestCreateWithoutArgumentsRepliesUsageOnly(t *testing.T) {
	svc := &fakeService{}
	d := New(svc, quietLogger(), nil)

	for _, text := range []string{"jira create ", "jira create", "jira create Fix login bug", "jira create ; desc"} {
		t.Run(text, func(t *testing.T) {
			replies := handle(t, d, text)
			assert.Equal(t, []string{"<@U123>: Usage: jira create <summary>; <description>[; <issueType>]"}, replies)
		})
	}
	assert.Zero(t, svc.creates.Load())
}

func TestGetWithoutQueryRepliesUsageOnly(t *testing.T) {
	svc := &fakeService{}
	d := New(svc, quietLogger(), nil)

	replies := handle(t, d, "jira get   ")
	assert.Equal(t, []string{"<@U123>: Usage: jira get <ticket_id_or_query>"}, replies)
	assert.Zero(t, svc.queries.Load())
}

func TestGetTicketByIDScenario(t *testing.T) {
	d, _, events := newMockDispatcher(t)

	replies := handle(t, d, "jira get JIRA-1234")

	require.Len(t, replies, 2)
	assert.Equal(t, `<@U123>: Fetching Jira ticket information for "JIRA-1234"... :hourglass_flowing_sand:`, replies[0])
	assert.Contains(t, replies[1], "<@U123>: :information_source: Ticket Information:\n```{")
	assert.Contains(t, replies[1], `"id": "JIRA-1234"`)

	require.Len(t, events.events, 1)
	assert.Equal(t, eventbus.EventTicketQueried, events.events[0].Type)
	assert.Equal(t, "JIRA-1234", events.events[0].TicketID)
	assert.Equal(t, 1, events.events[0].Results)
}

func TestGetTicketSearch(t *testing.T) {
	d, _, events := newMockDispatcher(t)
	handle(t, d, "jira create Login fails; on mobile")
	handle(t, d, "jira create Payroll export; broken CSV")

	replies := handle(t, d, "jira get login")
	require.Len(t, replies, 2)
	assert.Equal(t, "<@U123>: :information_source: Found 1 ticket(s) for \"login\":\n- `JIRA-1234`: Login fails (Status: Open)\n", replies[1])

	replies = handle(t, d, "jira get nothing-matches")
	require.Len(t, replies, 2)
	assert.Equal(t, `<@U123>: :information_source: No tickets found matching "nothing-matches".`, replies[1])

	last := events.events[len(events.events)-1]
	assert.Equal(t, eventbus.EventTicketQueried, last.Type)
	assert.Zero(t, last.Results)
}

func TestPing(t *testing.T) {
	svc := &fakeService{}
	d := New(svc, quietLogger(), nil)

	for _, text := range []string{"jira_test", "JIRA_TEST", "  Jira_Test  "} {
		assert.Equal(t,
			[]string{"Hello <@U123>, your jira_test command was received! The app is listening."},
			handle(t, d, text))
	}
	assert.Zero(t, svc.creates.Load()+svc.queries.Load())
}

func TestHelpListsUsage(t *testing.T) {
	d := New(&fakeService{}, quietLogger(), nil)

	replies := handle(t, d, "jira help")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "jira create <summary>; <description>[; <issueType>]")
	assert.Contains(t, replies[0], "jira get <ticket_id_or_query>")
}

func TestUnrecognizedIsSilent(t *testing.T) {
	svc := &fakeService{}
	d := New(svc, quietLogger(), nil)

	for _, text := range []string{"", "hello there", "jira", "jira delete JIRA-1", "please jira get x"} {
		assert.Empty(t, handle(t, d, text), "text %q", text)
	}
	assert.Zero(t, svc.creates.Load()+svc.queries.Load())
}

func TestBotMessagesAreIgnored(t *testing.T) {
	svc := &fakeService{}
	d := New(svc, quietLogger(), nil)
	rec := &recorder{}

	err := d.Handle(context.Background(), Message{Text: "jira_test", SenderID: "B1", IsFromBot: true}, rec)
	require.NoError(t, err)
	assert.Empty(t, rec.all())

	err = d.Handle(context.Background(), Message{Text: "jira create a; b", SenderID: "B1", IsFromBot: true}, rec)
	require.NoError(t, err)
	assert.Empty(t, rec.all())
	assert.Zero(t, svc.creates.Load())
}

func TestBackendFailureRepliesWithReason(t *testing.T) {
	svc := &fakeService{
		create: func(ctx context.Context, req tickets.CreateRequest) (*tickets.CreationResult, error) {
			return &tickets.CreationResult{Success: false, Error: "Project is archived."}, nil
		},
		query: func(ctx context.Context, q string) (*tickets.QueryResult, error) {
			return &tickets.QueryResult{Success: false, Error: "Permission denied."}, nil
		},
	}
	events := &eventRecorder{}
	d := New(svc, quietLogger(), events)

	replies := handle(t, d, "jira create a; b")
	require.Len(t, replies, 2)
	assert.Equal(t, "<@U123>: :x: Error creating ticket: Project is archived.", replies[1])

	replies = handle(t, d, "jira get JIRA-1")
	require.Len(t, replies, 2)
	assert.Equal(t, "<@U123>: :x: Error fetching ticket info: Permission denied.", replies[1])

	assert.Empty(t, events.events, "failures publish no events")
}

const apology = "<@U123>: Sorry, something went wrong while processing your request. :sadpanda:"

func TestUnexpectedFailuresBecomeApology(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		svc   *fakeService
		query bool
	}{
		{
			name: "create returns error",
			text: "jira create a; b",
			svc: &fakeService{create: func(ctx context.Context, req tickets.CreateRequest) (*tickets.CreationResult, error) {
				return nil, errors.New("connection refused")
			}},
		},
		{
			name: "create panics",
			text: "jira create a; b",
			svc: &fakeService{create: func(ctx context.Context, req tickets.CreateRequest) (*tickets.CreationResult, error) {
				panic("nil map write")
			}},
		},
		{
			name: "create success without id",
			text: "jira create a; b",
			svc: &fakeService{create: func(ctx context.Context, req tickets.CreateRequest) (*tickets.CreationResult, error) {
				return &tickets.CreationResult{Success: true}, nil
			}},
		},
		{
			name: "query returns nil result",
			text: "jira get JIRA-1",
			svc: &fakeService{query: func(ctx context.Context, q string) (*tickets.QueryResult, error) {
				return nil, nil
			}},
		},
		{
			name: "query empty list without message",
			text: "jira get login",
			svc: &fakeService{query: func(ctx context.Context, q string) (*tickets.QueryResult, error) {
				return &tickets.QueryResult{Success: true, Data: tickets.RecordList(nil)}, nil
			}},
		},
		{
			name: "query panics",
			text: "jira get JIRA-1",
			svc: &fakeService{query: func(ctx context.Context, q string) (*tickets.QueryResult, error) {
				panic(fmt.Errorf("index out of range"))
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			d := New(tt.svc, slog.New(slog.NewTextHandler(&logs, nil)), nil)

			replies := handle(t, d, tt.text)

			require.Len(t, replies, 2, "ack then apology")
			assert.Contains(t, replies[0], ":hourglass_flowing_sand:")
			assert.Equal(t, apology, replies[1])
			assert.Contains(t, logs.String(), "message handling failed")
			assert.Contains(t, logs.String(), "sender=U123")
		})
	}
}

func TestPanicDoesNotAffectNextMessage(t *testing.T) {
	var calls atomic.Int32
	svc := &fakeService{query: func(ctx context.Context, q string) (*tickets.QueryResult, error) {
		if calls.Add(1) == 1 {
			panic("first call explodes")
		}
		return &tickets.QueryResult{Success: true, Data: tickets.SingleRecord(tickets.Record{ID: "JIRA-1", Summary: "s", Status: "Open"})}, nil
	}}
	d := New(svc, quietLogger(), nil)

	first := handle(t, d, "jira get JIRA-1")
	second := handle(t, d, "jira get JIRA-1")

	assert.Equal(t, apology, first[1])
	require.Len(t, second, 2)
	assert.Contains(t, second[1], "Ticket Information")
}

func TestBackendTimeout(t *testing.T) {
	svc := &fakeService{query: func(ctx context.Context, q string) (*tickets.QueryResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	d := New(svc, quietLogger(), nil, WithBackendTimeout(20*time.Millisecond))

	replies := handle(t, d, "jira get JIRA-1")
	require.Len(t, replies, 2)
	assert.Equal(t, apology, replies[1])
}

func TestAckFailureStillApologizes(t *testing.T) {
	d, svc, _ := newMockDispatcher(t)
	rec := &recorder{failOn: 1}

	err := d.Handle(context.Background(), Message{Text: "jira create a; b", SenderID: sender}, rec)
	require.NoError(t, err)
	assert.Equal(t, []string{apology}, rec.all())
	assert.Zero(t, svc.Len(), "backend is not called when the ack fails")
}

func TestApologyFailureIsReturned(t *testing.T) {
	svc := &fakeService{create: func(ctx context.Context, req tickets.CreateRequest) (*tickets.CreationResult, error) {
		return nil, errors.New("boom")
	}}
	d := New(svc, quietLogger(), nil)

	failing := ReplierFunc(func(ctx context.Context, text string) error {
		return errors.New("socket closed")
	})
	err := d.Handle(context.Background(), Message{Text: "jira create a; b", SenderID: sender}, failing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "socket closed")
}

func TestPanickingReplierDoesNotPanic(t *testing.T) {
	d, _, _ := newMockDispatcher(t)
	exploding := ReplierFunc(func(ctx context.Context, text string) error {
		panic("replier bug")
	})

	assert.NotPanics(t, func() {
		err := d.Handle(context.Background(), Message{Text: "jira_test", SenderID: sender}, exploding)
		assert.Error(t, err)
	})
}

func TestPublishFailureDoesNotAffectReplies(t *testing.T) {
	svc := tickets.NewMockService(idgen.NewSequence(idgen.DefaultPrefix, 1000))
	d := New(svc, quietLogger(), &eventRecorder{err: errors.New("nats down")})

	replies := handle(t, d, "jira create a; b")
	require.Len(t, replies, 2)
	assert.Contains(t, replies[1], ":white_check_mark:")
}

func TestConcurrentMessagesKeepPerMessageOrder(t *testing.T) {
	svc := tickets.NewMockService(idgen.NewSequence(idgen.DefaultPrefix, 1000), tickets.WithLatency(time.Millisecond))
	d := New(svc, quietLogger(), nil)

	const n = 20
	recs := make([]*recorder, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		recs[i] = &recorder{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := Message{Text: fmt.Sprintf("jira create ticket %d; body", i), SenderID: fmt.Sprintf("U%d", i)}
			assert.NoError(t, d.Handle(context.Background(), msg, recs[i]))
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	idPattern := regexp.MustCompile(`Ticket ID: (JIRA-\d{4})`)
	for i, rec := range recs {
		replies := rec.all()
		require.Len(t, replies, 2)
		assert.Contains(t, replies[0], "Processing your request")
		m := idPattern.FindStringSubmatch(replies[1])
		require.Len(t, m, 2, "reply %d: %s", i, replies[1])
		assert.False(t, seen[m[1]], "duplicate id %s", m[1])
		seen[m[1]] = true
	}
	assert.Equal(t, n, svc.Len())
}
