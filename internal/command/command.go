// Package command turns raw chat text into typed bot commands.
//
// Parsing is pure: it performs no I/O and never touches the ticket
// backend. Keywords are matched case-insensitively while arguments keep
// the case the user typed.
package command

import (
	"fmt"
	"strings"
)

// Kind identifies a Command variant.
type Kind string

const (
	KindCreateTicket Kind = "create_ticket"
	KindGetTicket    Kind = "get_ticket"
	KindPing         Kind = "ping"
	KindHelp         Kind = "help"
	KindUnrecognized Kind = "unrecognized"
)

// DefaultIssueType is used when "jira create" omits the issue type.
const DefaultIssueType = "Task"

// Usage hints surfaced to users when a recognized command is missing arguments.
const (
	CreateUsage = "jira create <summary>; <description>[; <issueType>]"
	GetUsage    = "jira get <ticket_id_or_query>"
	PingUsage   = "jira_test"
	HelpUsage   = "jira help"
)

const (
	createPrefix = "jira create "
	getPrefix    = "jira get "
	pingKeyword  = "jira_test"
	helpKeyword  = "jira help"
)

// Command is a parsed chat instruction. The set of implementations is
// closed; switch on the concrete type to handle each variant.
type Command interface {
	Kind() Kind
	isCommand()
}

// CreateTicket asks the backend to open a new ticket.
type CreateTicket struct {
	Summary     string `json:"summary" yaml:"summary"`
	Description string `json:"description" yaml:"description"`
	IssueType   string `json:"issueType" yaml:"issueType"`
}

// GetTicket looks up a ticket by id, or searches by free text.
type GetTicket struct {
	Query string `json:"query" yaml:"query"`
}

// Ping is the connectivity check ("jira_test").
type Ping struct{}

// Help lists the available commands.
type Help struct{}

// Unrecognized is any text that is not a bot command. It is not an error.
type Unrecognized struct{}

func (CreateTicket) Kind() Kind { return KindCreateTicket }
func (GetTicket) Kind() Kind    { return KindGetTicket }
func (Ping) Kind() Kind         { return KindPing }
func (Help) Kind() Kind         { return KindHelp }
func (Unrecognized) Kind() Kind { return KindUnrecognized }

func (CreateTicket) isCommand() {}
func (GetTicket) isCommand()    {}
func (Ping) isCommand()         {}
func (Help) isCommand()         {}
func (Unrecognized) isCommand() {}

// ErrorKind classifies a ParseError.
type ErrorKind string

// MissingField means a recognized command had blank required arguments.
const MissingField ErrorKind = "missing_field"

// ParseError is returned when a command prefix matched but its arguments
// were unusable.
type ParseError struct {
	Kind      ErrorKind
	Command   Kind
	Reason    string
	UsageHint string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s (usage: %s)", e.Command, e.Reason, e.UsageHint)
}

// Parse interprets text as a bot command.
//
// It returns a *ParseError when a known prefix matched but required
// arguments are blank. Text that is not a command yields Unrecognized and
// a nil error.
func Parse(text string) (Command, error) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	switch {
	case hasKeyword(lower, createPrefix):
		return parseCreate(remainder(trimmed, createPrefix))
	case hasKeyword(lower, getPrefix):
		return parseGet(remainder(trimmed, getPrefix))
	case lower == pingKeyword:
		return Ping{}, nil
	case lower == helpKeyword:
		return Help{}, nil
	default:
		return Unrecognized{}, nil
	}
}

// Usage returns the usage line of every command, in display order.
func Usage() []string {
	return []string{CreateUsage, GetUsage, PingUsage, HelpUsage}
}

// hasKeyword reports whether lower starts with prefix. Because input is
// trimmed before matching, the bare keyword ("jira create") also counts.
func hasKeyword(lower, prefix string) bool {
	return strings.HasPrefix(lower, prefix) || lower == strings.TrimSpace(prefix)
}

func remainder(trimmed, prefix string) string {
	if len(trimmed) <= len(prefix) {
		return ""
	}
	return trimmed[len(prefix):]
}

func parseCreate(rest string) (Command, error) {
	parts := strings.Split(rest, ";")
	summary := part(parts, 0)
	description := part(parts, 1)
	issueType := part(parts, 2)
	if issueType == "" {
		issueType = DefaultIssueType
	}

	if summary == "" || description == "" {
		return nil, &ParseError{
			Kind:      MissingField,
			Command:   KindCreateTicket,
			Reason:    missingReason(summary, description),
			UsageHint: CreateUsage,
		}
	}

	return CreateTicket{Summary: summary, Description: description, IssueType: issueType}, nil
}

func parseGet(rest string) (Command, error) {
	query := strings.TrimSpace(rest)
	if query == "" {
		return nil, &ParseError{
			Kind:      MissingField,
			Command:   KindGetTicket,
			Reason:    "ticket id or query is required",
			UsageHint: GetUsage,
		}
	}
	return GetTicket{Query: query}, nil
}

func part(parts []string, i int) string {
	if i >= len(parts) {
		return ""
	}
	return strings.TrimSpace(parts[i])
}

func missingReason(summary, description string) string {
	switch {
	case summary == "" && description == "":
		return "summary and description are required"
	case summary == "":
		return "summary is required"
	default:
		return "description is required"
	}
}
