package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jirabot/jirabot/internal/tickets"
)

func mustFormat(t *testing.T, o Outcome) []string {
	t.Helper()
	replies, err := Format("U123", o)
	require.NoError(t, err)
	return replies
}

func TestFormatSimpleOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    string
	}{
		{
			name:    "usage",
			outcome: Usage{Hint: "jira get <ticket_id_or_query>"},
			want:    "<@U123>: Usage: jira get <ticket_id_or_query>",
		},
		{
			name:    "pong",
			outcome: Pong{},
			want:    "Hello <@U123>, your jira_test command was received! The app is listening.",
		},
		{
			name:    "create ack",
			outcome: CreateAck{},
			want:    "<@U123>: Processing your request to create a Jira ticket... :hourglass_flowing_sand:",
		},
		{
			name:    "query ack",
			outcome: QueryAck{Query: `say "hi"`},
			want:    `<@U123>: Fetching Jira ticket information for "say "hi""... :hourglass_flowing_sand:`,
		},
		{
			name:    "apology",
			outcome: Apology{},
			want:    "<@U123>: Sorry, something went wrong while processing your request. :sadpanda:",
		},
		{
			name:    "help",
			outcome: HelpText{Lines: []string{"jira get <q>", "jira_test"}},
			want:    "<@U123>: Available commands:\n- `jira get <q>`\n- `jira_test`\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, []string{tt.want}, mustFormat(t, tt.outcome))
		})
	}
}

func TestFormatSilent(t *testing.T) {
	assert.Empty(t, mustFormat(t, Silent{}))
}

func TestFormatCreatedSuccess(t *testing.T) {
	got := mustFormat(t, Created{Result: &tickets.CreationResult{
		Success:  true,
		TicketID: "JIRA-1234",
		Message:  "Successfully created ticket JIRA-1234.",
		Details: &tickets.TicketDetails{
			Summary:     "Fix <login> & bug",
			Description: "Users cannot log in on mobile",
			IssueType:   "Task",
			Status:      "Open",
		},
	}})

	want := "<@U123>: :white_check_mark: Successfully created ticket JIRA-1234.\n" +
		"Ticket ID: JIRA-1234\n" +
		"Details: ```{\n" +
		"  \"summary\": \"Fix <login> & bug\",\n" +
		"  \"description\": \"Users cannot log in on mobile\",\n" +
		"  \"issueType\": \"Task\",\n" +
		"  \"projectId\": null,\n" +
		"  \"status\": \"Open\"\n" +
		"}```"
	assert.Equal(t, []string{want}, got)
}

func TestFormatCreatedFailure(t *testing.T) {
	got := mustFormat(t, Created{Result: &tickets.CreationResult{Error: "Summary and Description are required."}})
	assert.Equal(t, []string{"<@U123>: :x: Error creating ticket: Summary and Description are required."}, got)
}

func TestFormatQueriedSingle(t *testing.T) {
	got := mustFormat(t, Queried{Query: "JIRA-1234", Result: &tickets.QueryResult{
		Success: true,
		Data: tickets.SingleRecord(tickets.Record{
			ID:       "JIRA-1234",
			Summary:  "Mock summary",
			Status:   "In Progress",
			Assignee: "ai_agent_dev",
		}),
	}})

	want := "<@U123>: :information_source: Ticket Information:\n```{\n" +
		"  \"id\": \"JIRA-1234\",\n" +
		"  \"summary\": \"Mock summary\",\n" +
		"  \"status\": \"In Progress\",\n" +
		"  \"assignee\": \"ai_agent_dev\"\n" +
		"}```"
	assert.Equal(t, []string{want}, got)
}

func TestFormatQueriedList(t *testing.T) {
	got := mustFormat(t, Queried{Query: "login", Result: &tickets.QueryResult{
		Success: true,
		Data: tickets.RecordList([]tickets.Record{
			{ID: "JIRA-1000", Summary: "Login fails", Status: "Open"},
			{ID: "JIRA-1001", Summary: "Login slow", Status: "Done"},
		}),
	}})

	want := "<@U123>: :information_source: Found 2 ticket(s) for \"login\":\n" +
		"- `JIRA-1000`: Login fails (Status: Open)\n" +
		"- `JIRA-1001`: Login slow (Status: Done)\n"
	assert.Equal(t, []string{want}, got)
}

func TestFormatQueriedEmptyListAlwaysOneReply(t *testing.T) {
	for _, msg := range []string{"", "No tickets found matching \"x\".", "Query processed."} {
		got := mustFormat(t, Queried{Query: "x", Result: &tickets.QueryResult{
			Success: true,
			Data:    tickets.RecordList(nil),
			Message: msg,
		}})
		require.Len(t, got, 1)
		assert.Equal(t, "<@U123>: :information_source: No tickets found matching \"x\".", got[0])
	}
}

func TestFormatQueriedNoData(t *testing.T) {
	got := mustFormat(t, Queried{Query: "x", Result: &tickets.QueryResult{Success: true, Message: "Index rebuilding."}})
	assert.Equal(t, []string{"<@U123>: :information_source: Index rebuilding."}, got)

	got = mustFormat(t, Queried{Query: "x", Result: &tickets.QueryResult{Success: true}})
	assert.Equal(t, []string{"<@U123>: :information_source: No specific data returned."}, got)
}

func TestFormatQueriedFailure(t *testing.T) {
	got := mustFormat(t, Queried{Query: "", Result: &tickets.QueryResult{Error: "Ticket ID or query is required."}})
	assert.Equal(t, []string{"<@U123>: :x: Error fetching ticket info: Ticket ID or query is required."}, got)
}

func TestFormatRejectsNilResults(t *testing.T) {
	_, err := Format("U1", Created{})
	assert.Error(t, err)
	_, err = Format("U1", Queried{})
	assert.Error(t, err)
}

func TestFormatUnsupportedOutcome(t *testing.T) {
	_, err := Format("U1", nil)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "format: unsupported outcome"))
}

func TestMention(t *testing.T) {
	assert.Equal(t, "<@W42>", Mention("W42"))
}
