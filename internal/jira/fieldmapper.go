package jira

import (
	"strings"

	"github.com/jirabot/jirabot/internal/tickets"
)

// IssueTypeName maps the issue type typed in chat to Jira's canonical name.
// Unknown types are passed through so custom issue types keep working.
func IssueTypeName(input string) string {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "task":
		return "Task"
	case "bug", "defect":
		return "Bug"
	case "story", "feature":
		return "Story"
	case "epic":
		return "Epic"
	case "sub-task", "subtask":
		return "Sub-task"
	default:
		return strings.TrimSpace(input)
	}
}

// createFields builds the "fields" object of a create-issue request.
func createFields(projectKey string, req tickets.CreateRequest) map[string]interface{} {
	fields := map[string]interface{}{
		"project":   ProjectField{Key: projectKey},
		"summary":   strings.TrimSpace(req.Summary),
		"issuetype": IssueTypeField{Name: IssueTypeName(req.IssueType)},
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		fields["description"] = PlainTextToADF(desc)
	}
	return fields
}

// issueToRecord converts a Jira issue into a chat-facing ticket record.
func issueToRecord(ji *Issue) tickets.Record {
	rec := tickets.Record{
		ID:          ji.Key,
		Summary:     ji.Fields.Summary,
		Description: DescriptionToPlainText(ji.Fields.Description),
		Status:      statusName(ji),
	}
	if ji.Fields.Assignee != nil {
		rec.Assignee = ji.Fields.Assignee.DisplayName
	}
	if ji.Fields.Reporter != nil {
		rec.Reporter = ji.Fields.Reporter.DisplayName
	}
	return rec
}

// issueToDetails echoes a freshly created issue back as creation details.
func issueToDetails(ji *Issue) *tickets.TicketDetails {
	d := &tickets.TicketDetails{
		Summary:     ji.Fields.Summary,
		Description: DescriptionToPlainText(ji.Fields.Description),
		IssueType:   typeName(ji),
		Status:      statusName(ji),
	}
	if ji.Fields.Project != nil && ji.Fields.Project.Key != "" {
		key := ji.Fields.Project.Key
		d.ProjectID = &key
	}
	return d
}

// submittedDetails echoes a create request when the new issue cannot be read back.
func submittedDetails(projectKey string, req tickets.CreateRequest) *tickets.TicketDetails {
	key := projectKey
	return &tickets.TicketDetails{
		Summary:     strings.TrimSpace(req.Summary),
		Description: strings.TrimSpace(req.Description),
		IssueType:   IssueTypeName(req.IssueType),
		ProjectID:   &key,
		Status:      tickets.StatusOpen,
	}
}

// Helper functions for safe field extraction from Jira issues.

func statusName(ji *Issue) string {
	if ji.Fields.Status != nil && ji.Fields.Status.Name != "" {
		return ji.Fields.Status.Name
	}
	return "Unknown"
}

func typeName(ji *Issue) string {
	if ji.Fields.IssueType != nil {
		return ji.Fields.IssueType.Name
	}
	return ""
}
