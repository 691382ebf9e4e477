package tickets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jirabot/jirabot/internal/idgen"
)

// Messages returned by the in-memory backend for invalid input.
const (
	ErrSummaryRequired = "Summary and Description are required."
	ErrQueryRequired   = "Ticket ID or query is required."
)

const defaultMaxAttempts = 100

// MockService is an in-memory ticket backend. Tickets live only for the
// lifetime of the process; ids minted by it are never reused.
type MockService struct {
	ids         idgen.Generator
	latency     time.Duration
	maxAttempts int

	mu      sync.Mutex
	tickets map[string]Record
	order   []string
}

// MockOption configures a MockService.
type MockOption func(*MockService)

// WithLatency delays every call by d to mimic a remote backend.
func WithLatency(d time.Duration) MockOption {
	return func(m *MockService) { m.latency = d }
}

// WithMaxAttempts bounds how many ids are drawn before giving up on a
// collision-free one.
func WithMaxAttempts(n int) MockOption {
	return func(m *MockService) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// NewMockService returns an empty in-memory backend minting ids with ids.
func NewMockService(ids idgen.Generator, opts ...MockOption) *MockService {
	m := &MockService{
		ids:         ids,
		maxAttempts: defaultMaxAttempts,
		tickets:     make(map[string]Record),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateTicket stores a new ticket with status Open. Every successful call
// mints a fresh id, even for identical input.
func (m *MockService) CreateTicket(ctx context.Context, req CreateRequest) (*CreationResult, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	summary := strings.TrimSpace(req.Summary)
	description := strings.TrimSpace(req.Description)
	if summary == "" || description == "" {
		return &CreationResult{Success: false, Error: ErrSummaryRequired}, nil
	}
	issueType := req.IssueType
	if issueType == "" {
		issueType = "Task"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.mintLocked()
	if err != nil {
		return nil, err
	}
	m.tickets[id] = Record{
		ID:          id,
		Summary:     summary,
		Description: description,
		Status:      StatusOpen,
		Reporter:    req.Reporter,
	}
	m.order = append(m.order, id)

	return &CreationResult{
		Success:  true,
		TicketID: id,
		Message:  fmt.Sprintf("Successfully created ticket %s.", id),
		Details: &TicketDetails{
			Summary:     summary,
			Description: description,
			IssueType:   issueType,
			ProjectID:   optional(req.ProjectID),
			Status:      StatusOpen,
		},
	}, nil
}

// QueryTicket looks up a ticket by id or searches summaries and
// descriptions for the query text.
func (m *MockService) QueryTicket(ctx context.Context, idOrQuery string) (*QueryResult, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	query := strings.TrimSpace(idOrQuery)
	if query == "" {
		return &QueryResult{Success: false, Error: ErrQueryRequired}, nil
	}

	if idgen.LooksLikeID(m.ids.Prefix(), query) {
		return &QueryResult{Success: true, Data: SingleRecord(m.lookup(query))}, nil
	}

	matches := m.search(query)
	if len(matches) == 0 {
		return &QueryResult{
			Success: true,
			Data:    RecordList(nil),
			Message: fmt.Sprintf("No tickets found matching \"%s\".", query),
		}, nil
	}
	return &QueryResult{
		Success: true,
		Data:    RecordList(matches),
		Message: fmt.Sprintf("Query processed. Found %d matching ticket(s) for '%s'.", len(matches), query),
	}, nil
}

// Len returns the number of stored tickets.
func (m *MockService) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickets)
}

// mintLocked draws ids until one is unused. Caller holds m.mu.
func (m *MockService) mintLocked() (string, error) {
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		id := m.ids.Next()
		if !idgen.IsMinted(m.ids.Prefix(), id) {
			return "", fmt.Errorf("mint ticket id: generator returned malformed id %q", id)
		}
		if _, taken := m.tickets[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("mint ticket id: %d attempts collided with existing tickets", m.maxAttempts)
}

// lookup returns the stored ticket, or a synthesized placeholder for ids
// this store never minted.
func (m *MockService) lookup(id string) Record {
	key := strings.ToUpper(id)

	m.mu.Lock()
	rec, ok := m.tickets[key]
	m.mu.Unlock()
	if ok {
		return rec
	}

	return Record{
		ID:          key,
		Summary:     fmt.Sprintf("Mock summary for %s", id),
		Description: "This is a mock description fetched from the ticket backend.",
		Status:      "In Progress",
		Assignee:    "ai_agent_dev",
		Reporter:    "slack_user",
	}
}

func (m *MockService) search(query string) []Record {
	needle := strings.ToLower(query)

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, id := range m.order {
		rec := m.tickets[id]
		if strings.Contains(strings.ToLower(rec.Summary), needle) ||
			strings.Contains(strings.ToLower(rec.Description), needle) {
			out = append(out, rec)
		}
	}
	return out
}

func (m *MockService) wait(ctx context.Context) error {
	if m.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
