package eventbus

import (
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

const (
	// StreamTicketEvents is the JetStream stream for ticket events.
	StreamTicketEvents = "TICKET_EVENTS"

	// DefaultSubjectPrefix is the subject prefix for all ticket events.
	DefaultSubjectPrefix = "jirabot.tickets"
)

// SubjectForEvent returns the NATS subject for a given event type.
// Format: <prefix>.<event_type> (e.g., jirabot.tickets.ticket.created).
func SubjectForEvent(prefix string, eventType EventType) string {
	return strings.TrimSuffix(prefix, ".") + "." + string(eventType)
}

// EnsureStreams creates the ticket event stream if it doesn't already exist.
func EnsureStreams(js nats.JetStreamContext, prefix string) error {
	_, err := js.StreamInfo(StreamTicketEvents)
	if err == nil {
		return nil // Stream already exists.
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamTicketEvents,
		Subjects: []string{strings.TrimSuffix(prefix, ".") + ".>"},
		Storage:  nats.FileStorage,
		// Retain last 10000 messages or 100MB, whichever comes first.
		MaxMsgs:  10000,
		MaxBytes: 100 << 20,
	})
	if err != nil {
		return fmt.Errorf("create %s stream: %w", StreamTicketEvents, err)
	}

	return nil
}

// Connect dials NATS, ensures the ticket stream exists, and returns the
// connection with its JetStream context. The caller owns the connection.
func Connect(url, token, prefix string) (*nats.Conn, nats.JetStreamContext, error) {
	opts := []nats.Option{
		nats.Name("jirabot"),
		nats.MaxReconnects(-1),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream context: %w", err)
	}

	if err := EnsureStreams(js, prefix); err != nil {
		nc.Close()
		return nil, nil, err
	}

	return nc, js, nil
}
