// Package format renders command outcomes as chat replies.
//
// Every reply is addressed to the sender with a Slack mention. Formatting is
// deterministic: the same outcome always yields the same replies.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jirabot/jirabot/internal/tickets"
)

// Fallback texts.
const (
	noDataText  = "No specific data returned."
	apologyText = "Sorry, something went wrong while processing your request. :sadpanda:"
)

// Outcome is something the dispatcher wants to tell the user.
type Outcome interface {
	isOutcome()
}

// Usage reports a command with missing arguments.
type Usage struct{ Hint string }

// Pong acknowledges the connectivity check.
type Pong struct{}

// HelpText lists the available commands.
type HelpText struct{ Lines []string }

// CreateAck is sent before a create request reaches the backend.
type CreateAck struct{}

// QueryAck is sent before a lookup reaches the backend.
type QueryAck struct{ Query string }

// Created carries the backend's answer to a create request.
type Created struct{ Result *tickets.CreationResult }

// Queried carries the backend's answer to a lookup.
type Queried struct {
	Query  string
	Result *tickets.QueryResult
}

// Apology replaces any reply when handling failed unexpectedly.
type Apology struct{}

// Silent produces no reply.
type Silent struct{}

func (Usage) isOutcome()     {}
func (Pong) isOutcome()      {}
func (HelpText) isOutcome()  {}
func (CreateAck) isOutcome() {}
func (QueryAck) isOutcome()  {}
func (Created) isOutcome()   {}
func (Queried) isOutcome()   {}
func (Apology) isOutcome()   {}
func (Silent) isOutcome()    {}

// Mention formats a user id as a Slack mention.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

// Format returns the replies for outcome, addressed to sender.
func Format(sender string, outcome Outcome) ([]string, error) {
	to := Mention(sender)

	switch o := outcome.(type) {
	case Usage:
		return one("%s: Usage: %s", to, o.Hint), nil

	case Pong:
		return one("Hello %s, your jira_test command was received! The app is listening.", to), nil

	case HelpText:
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s: Available commands:\n", to)
		for _, line := range o.Lines {
			fmt.Fprintf(&sb, "- `%s`\n", line)
		}
		return []string{sb.String()}, nil

	case CreateAck:
		return one("%s: Processing your request to create a Jira ticket... :hourglass_flowing_sand:", to), nil

	case QueryAck:
		return one("%s: Fetching Jira ticket information for \"%s\"... :hourglass_flowing_sand:", to, o.Query), nil

	case Created:
		return formatCreated(to, o.Result)

	case Queried:
		return formatQueried(to, o.Query, o.Result)

	case Apology:
		return one("%s: %s", to, apologyText), nil

	case Silent:
		return nil, nil

	default:
		return nil, fmt.Errorf("format: unsupported outcome %T", outcome)
	}
}

func formatCreated(to string, r *tickets.CreationResult) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("format: nil creation result")
	}
	if !r.Success {
		return one("%s: :x: Error creating ticket: %s", to, r.Error), nil
	}
	details, err := dump(r.Details)
	if err != nil {
		return nil, err
	}
	return one("%s: :white_check_mark: %s\nTicket ID: %s\nDetails: ```%s```", to, r.Message, r.TicketID, details), nil
}

func formatQueried(to, query string, r *tickets.QueryResult) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("format: nil query result")
	}
	if !r.Success {
		return one("%s: :x: Error fetching ticket info: %s", to, r.Error), nil
	}

	switch {
	case r.Data == nil:
		msg := r.Message
		if msg == "" {
			msg = noDataText
		}
		return one("%s: :information_source: %s", to, msg), nil

	case r.Data.IsList():
		records := r.Data.Records()
		if len(records) == 0 {
			return one("%s: :information_source: No tickets found matching \"%s\".", to, query), nil
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s: :information_source: Found %d ticket(s) for \"%s\":\n", to, len(records), query)
		for _, rec := range records {
			fmt.Fprintf(&sb, "- `%s`: %s (Status: %s)\n", rec.ID, rec.Summary, rec.Status)
		}
		return []string{sb.String()}, nil

	default:
		body, err := dump(r.Data.Record())
		if err != nil {
			return nil, err
		}
		return one("%s: :information_source: Ticket Information:\n```%s```", to, body), nil
	}
}

// dump pretty-prints v as two-space indented JSON without HTML escaping.
func dump(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("format: encode details: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func one(tmpl string, args ...any) []string {
	return []string{fmt.Sprintf(tmpl, args...)}
}
