package eventbus

import (
	"time"
)

// EventType identifies an event flowing through the bus.
type EventType string

const (
	// EventTicketCreated fires after the backend confirms a new ticket.
	EventTicketCreated EventType = "ticket.created"

	// EventTicketQueried fires after a lookup or search succeeds.
	EventTicketQueried EventType = "ticket.queried"
)

// Event describes something the bot did on behalf of a chat user.
type Event struct {
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	IssueType string    `json:"issue_type,omitempty"`
	Query     string    `json:"query,omitempty"`
	Results   int       `json:"results,omitempty"`
	SenderID  string    `json:"sender_id"`
	ChannelID string    `json:"channel_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
