package eventbus

import (
	"context"
	"log/slog"
)

// Handler processes events on the bus. Handlers are called in priority order
// (lower priority value = called earlier) for matching event types.
type Handler interface {
	// ID returns a unique identifier for this handler.
	ID() string

	// Handles returns the event types this handler processes.
	Handles() []EventType

	// Priority determines call order. Lower values are called first.
	Priority() int

	// Handle processes a single event. Returning an error logs a warning but
	// does not stop the handler chain.
	Handle(ctx context.Context, event *Event) error
}

// LogHandler writes every ticket event to a structured logger.
type LogHandler struct {
	Logger *slog.Logger
}

func (h *LogHandler) ID() string { return "log" }
func (h *LogHandler) Handles() []EventType {
	return []EventType{EventTicketCreated, EventTicketQueried}
}
func (h *LogHandler) Priority() int { return 100 }

func (h *LogHandler) Handle(ctx context.Context, event *Event) error {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "ticket event",
		"type", string(event.Type),
		"ticket", event.TicketID,
		"query", event.Query,
		"results", event.Results,
		"sender", event.SenderID,
		"channel", event.ChannelID,
	)
	return nil
}
