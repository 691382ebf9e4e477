package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jirabot/jirabot/internal/idgen"
	"github.com/jirabot/jirabot/internal/tickets"
)

// DefaultSearchLimit caps how many issues a free-text search returns.
const DefaultSearchLimit = 20

// ErrProjectRequired is returned to users when no project key is known.
const ErrProjectRequired = "Jira project is not configured."

// Service is a tickets.Service backed by a Jira instance. Requests Jira
// refuses (bad input, missing permissions, unknown issues) come back as
// unsuccessful results; outages and auth failures are returned as errors.
type Service struct {
	client      *Client
	projectKey  string
	searchLimit int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSearchLimit overrides DefaultSearchLimit.
func WithSearchLimit(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.searchLimit = n
		}
	}
}

// NewService wraps client. projectKey is used for creates that do not name
// a project and scopes free-text searches; it may be empty.
func NewService(client *Client, projectKey string, opts ...ServiceOption) *Service {
	s := &Service{
		client:      client,
		projectKey:  strings.TrimSpace(projectKey),
		searchLimit: DefaultSearchLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ tickets.Service = (*Service)(nil)

// CreateTicket creates an issue and echoes back what Jira stored.
func (s *Service) CreateTicket(ctx context.Context, req tickets.CreateRequest) (*tickets.CreationResult, error) {
	if strings.TrimSpace(req.Summary) == "" || strings.TrimSpace(req.Description) == "" {
		return &tickets.CreationResult{Success: false, Error: tickets.ErrSummaryRequired}, nil
	}
	project := strings.TrimSpace(req.ProjectID)
	if project == "" {
		project = s.projectKey
	}
	if project == "" {
		return &tickets.CreationResult{Success: false, Error: ErrProjectRequired}, nil
	}

	created, err := s.client.CreateIssue(ctx, createFields(project, req))
	if err != nil {
		if reason, ok := rejection(err); ok {
			return &tickets.CreationResult{Success: false, Error: reason}, nil
		}
		return nil, err
	}

	// The issue exists from here on. A failed read-back must not turn into a
	// failure reply, or the user retries and files a duplicate.
	details := submittedDetails(project, req)
	issue, err := s.client.GetIssue(ctx, created.Key)
	if err == nil {
		details = issueToDetails(issue)
		if issue.Self == "" {
			issue.Self = created.Self
		}
	} else {
		issue = created
	}

	msg := fmt.Sprintf("Successfully created ticket %s.", created.Key)
	if link := BrowseURL(issue); link != "" {
		msg = fmt.Sprintf("Successfully created ticket %s (%s).", created.Key, link)
	}
	return &tickets.CreationResult{
		Success:  true,
		TicketID: created.Key,
		Message:  msg,
		Details:  details,
	}, nil
}

// QueryTicket fetches one issue when given a key or issue link, and runs a
// JQL text search otherwise.
func (s *Service) QueryTicket(ctx context.Context, idOrQuery string) (*tickets.QueryResult, error) {
	query := strings.TrimSpace(idOrQuery)
	if query == "" {
		return &tickets.QueryResult{Success: false, Error: tickets.ErrQueryRequired}, nil
	}

	if ref := unwrapSlackLink(query); IsBrowseURL(ref, s.client.URL) {
		query = KeyFromBrowseURL(ref)
	}

	if idgen.HasIDShape(query) {
		return s.lookup(ctx, strings.ToUpper(query))
	}
	return s.search(ctx, query)
}

func (s *Service) lookup(ctx context.Context, key string) (*tickets.QueryResult, error) {
	issue, err := s.client.GetIssue(ctx, key)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return &tickets.QueryResult{Success: false, Error: fmt.Sprintf("Ticket %s was not found.", key)}, nil
		}
		if reason, ok := rejection(err); ok {
			return &tickets.QueryResult{Success: false, Error: reason}, nil
		}
		return nil, err
	}
	return &tickets.QueryResult{Success: true, Data: tickets.SingleRecord(issueToRecord(issue))}, nil
}

func (s *Service) search(ctx context.Context, query string) (*tickets.QueryResult, error) {
	issues, err := s.client.SearchIssues(ctx, SearchJQL(s.projectKey, query), s.searchLimit)
	if err != nil {
		if reason, ok := rejection(err); ok {
			return &tickets.QueryResult{Success: false, Error: reason}, nil
		}
		return nil, err
	}

	if len(issues) == 0 {
		return &tickets.QueryResult{
			Success: true,
			Data:    tickets.RecordList(nil),
			Message: fmt.Sprintf("No tickets found matching \"%s\".", query),
		}, nil
	}

	records := make([]tickets.Record, 0, len(issues))
	for i := range issues {
		records = append(records, issueToRecord(&issues[i]))
	}
	return &tickets.QueryResult{
		Success: true,
		Data:    tickets.RecordList(records),
		Message: fmt.Sprintf("Query processed. Found %d matching ticket(s) for '%s'.", len(records), query),
	}, nil
}

// SearchJQL builds the free-text search for query, newest first.
func SearchJQL(projectKey, query string) string {
	jql := fmt.Sprintf("text ~ %s", quoteJQL(query))
	if projectKey != "" {
		jql += fmt.Sprintf(" AND project = %s", quoteJQL(projectKey))
	}
	return jql + " ORDER BY updated DESC"
}

func quoteJQL(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// rejection reports whether err is Jira refusing the request itself, as
// opposed to Jira being unavailable or the bot being misconfigured, and
// returns the user-facing reason.
func rejection(err error) (string, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return "", false
	}
	switch {
	case apiErr.StatusCode == http.StatusUnauthorized,
		apiErr.StatusCode == http.StatusTooManyRequests,
		apiErr.StatusCode < 400,
		apiErr.StatusCode >= 500:
		return "", false
	}
	return "Jira rejected the request: " + apiErr.Reason(), true
}
