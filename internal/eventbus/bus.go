// Package eventbus fans ticket events out to local handlers and, when
// configured, to a NATS JetStream stream for other services to consume.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/nats-io/nats.go"
)

// Publisher accepts events. Implementations must not block for long and
// must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, *Event) error { return nil }

// Bus dispatches events to registered handlers and, when a JetStream
// context is attached, publishes them to the ticket event stream.
type Bus struct {
	handlers []Handler
	mu       sync.RWMutex

	js     nats.JetStreamContext
	prefix string
	logger *slog.Logger
}

// New creates a new event bus publishing under the given subject prefix.
// An empty prefix selects DefaultSubjectPrefix.
func New(prefix string) *Bus {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Bus{prefix: prefix, logger: slog.Default()}
}

// SetLogger replaces the logger used for handler errors. nil is ignored.
func (b *Bus) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
}

// Register adds a handler to the bus. Handlers are sorted by priority on
// each Publish call, so registration order does not matter.
func (b *Bus) Register(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// SetJetStream attaches (or, with nil, detaches) a JetStream context.
func (b *Bus) SetJetStream(js nats.JetStreamContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.js = js
}

// JetStreamEnabled reports whether events are also published to NATS.
func (b *Bus) JetStreamEnabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.js != nil
}

// Publish sends an event to all registered handlers that handle its type,
// then to JetStream if attached. Handler errors are logged but do not stop
// the chain; a JetStream failure is returned.
func (b *Bus) Publish(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("eventbus: nil event")
	}

	b.mu.RLock()
	matching := b.matchingHandlers(event.Type)
	js := b.js
	logger := b.logger
	b.mu.RUnlock()

	for _, h := range matching {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("eventbus: context cancelled: %w", err)
		}
		if err := h.Handle(ctx, event); err != nil {
			logger.WarnContext(ctx, "event handler failed", "handler", h.ID(), "type", string(event.Type), "error", err)
		}
	}

	if js == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("eventbus: marshal %s: %w", event.Type, err)
	}
	if _, err := js.Publish(SubjectForEvent(b.prefix, event.Type), data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("eventbus: publish %s: %w", event.Type, err)
	}
	return nil
}

// Handlers returns all registered handlers (for introspection/status reporting).
func (b *Bus) Handlers() []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Handler, len(b.handlers))
	copy(out, b.handlers)
	return out
}

// matchingHandlers returns handlers that handle the given event type, sorted
// by priority (lowest first). Must be called with at least a read lock held.
func (b *Bus) matchingHandlers(eventType EventType) []Handler {
	var matched []Handler
	for _, h := range b.handlers {
		for _, t := range h.Handles() {
			if t == eventType {
				matched = append(matched, h)
				break
			}
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority() < matched[j].Priority()
	})
	return matched
}
